// Package comm holds the cross-cylinder communication primitives: the
// generation-stamped Window mailbox, the hub-group reduction barrier, and the
// shared termination flag. No other state crosses cylinder boundaries.
package comm

import (
	"sync/atomic"
	"time"
)

// versioned pairs a payload with its generation stamp. A fresh value is
// allocated per publish so readers never observe a torn payload.
type versioned[T any] struct {
	gen       uint64
	payload   T
	published time.Time
}

// Window is a single-writer, multi-reader latest-value mailbox. Publish
// atomically replaces the visible snapshot and bumps the generation counter;
// Read returns the most recent snapshot without blocking. Readers detect
// staleness by comparing generations to their last-seen value.
//
// The payload is shared between the writer and all readers after publish, so
// writers must hand over a value they will not mutate again (publish a fresh
// copy of any slice).
type Window[T any] struct {
	name string
	cur  atomic.Pointer[versioned[T]]
	beat atomic.Int64
}

// NewWindow names the window after its owning cylinder. The name shows up in
// liveness failures.
func NewWindow[T any](name string) *Window[T] {
	w := &Window[T]{name: name}
	w.beat.Store(time.Now().UnixNano())
	return w
}

// Name returns the owning cylinder's name.
func (w *Window[T]) Name() string { return w.name }

// Publish installs payload as the new snapshot. Non-blocking; only the
// owning cylinder may call it.
func (w *Window[T]) Publish(payload T) uint64 {
	gen := uint64(1)
	if prev := w.cur.Load(); prev != nil {
		gen = prev.gen + 1
	}
	now := time.Now()
	w.cur.Store(&versioned[T]{gen: gen, payload: payload, published: now})
	w.beat.Store(now.UnixNano())
	return gen
}

// Read returns the latest (generation, payload) pair. Before the first
// publish it returns (0, zero value, false), and does so identically on
// every call.
func (w *Window[T]) Read() (uint64, T, bool) {
	v := w.cur.Load()
	if v == nil {
		var zero T
		return 0, zero, false
	}
	return v.gen, v.payload, true
}

// Generation returns the current generation without touching the payload.
func (w *Window[T]) Generation() uint64 {
	if v := w.cur.Load(); v != nil {
		return v.gen
	}
	return 0
}

// Beat records liveness without publishing. Cylinders call it on loop
// passes that produce nothing new so the watchdog can tell "slow" from
// "dead".
func (w *Window[T]) Beat() {
	w.beat.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the most recent publish or beat.
func (w *Window[T]) LastActivity() time.Time {
	return time.Unix(0, w.beat.Load())
}

// Flag is the shared termination signal. The hub sets it once on reaching a
// terminal state; spokes poll it between solves.
type Flag struct {
	set atomic.Bool
}

// Set raises the flag. Idempotent.
func (f *Flag) Set() { f.set.Store(true) }

// IsSet reports whether the flag has been raised.
func (f *Flag) IsSet() bool { return f.set.Load() }
