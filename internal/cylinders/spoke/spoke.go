// Package spoke implements the asynchronous cylinders: each spoke reads the
// hub's latest consensus estimate at its own pace, computes one bound or
// heuristic solution, and publishes the result through its own window. A
// spoke never blocks the hub and the hub never blocks a spoke.
package spoke

import (
	"context"
	"time"

	"github.com/decisionfoundry/hedge-engine/internal/comm"
	"github.com/decisionfoundry/hedge-engine/internal/logging"
	"github.com/decisionfoundry/hedge-engine/internal/observability"
	"github.com/decisionfoundry/hedge-engine/model"
)

// Spoke is one bound computation. Step consumes a hub update and returns a
// report plus whether it should be published; returning publish=false means
// the step produced nothing better than the spoke's previous best.
type Spoke interface {
	Name() string
	Kind() model.BoundKind
	Step(ctx context.Context, upd comm.HubUpdate) (comm.SpokeReport, bool, error)
}

// Runner drives one Spoke against the hub window until the shared
// termination flag is observed. The loop re-reads the hub window, backs off
// while the generation is unchanged, and checks the flag between solves so
// at most one in-flight solve completes after shutdown begins.
type Runner struct {
	Sp      Spoke
	HubWin  *comm.Window[comm.HubUpdate]
	Win     *comm.Window[comm.SpokeReport]
	Term    *comm.Flag
	Poll    time.Duration
	Log     logging.Logger
	Metrics *observability.RunCollector
}

// Run loops until termination. It returns nil on a clean drain and the
// solve error otherwise; the orchestrator treats any error as fatal for the
// whole run.
func (r *Runner) Run(ctx context.Context) error {
	log := r.Log
	if log == nil {
		log = logging.Noop()
	}
	poll := r.Poll
	if poll <= 0 {
		poll = time.Millisecond
	}

	var lastGen uint64
	step := 0
	for {
		if r.Term.IsSet() || ctx.Err() != nil {
			log.Debug(ctx, "spoke draining", logging.Int("steps", step))
			return nil
		}

		gen, upd, ok := r.HubWin.Read()
		if !ok || gen == lastGen {
			// Nothing new from the hub; record liveness and back off.
			r.Win.Beat()
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(poll):
			}
			continue
		}
		lastGen = gen
		if upd.Terminate {
			return nil
		}

		step++
		start := time.Now()
		rep, publish, err := r.Sp.Step(ctx, upd)
		r.Metrics.TimeSolve(r.Sp.Name(), time.Since(start).Seconds())
		if err != nil {
			log.Error(ctx, "spoke step failed", logging.Int("step", step), logging.String("error", err.Error()))
			return err
		}
		if publish {
			rep.Kind = r.Sp.Kind()
			rep.HubGeneration = gen
			rep.Step = step
			r.Win.Publish(rep)
			log.Debug(ctx, "published bound",
				logging.String("kind", rep.Kind.String()),
				logging.Float("value", rep.Value),
				logging.Uint64("hub_generation", gen),
			)
		} else {
			r.Win.Beat()
		}
	}
}

// improvingTracker keeps a spoke's own best value so it only publishes
// reports that tighten its bound, minimization convention.
type improvingTracker struct {
	kind model.BoundKind
	best float64
	seen bool
}

func newImprovingTracker(kind model.BoundKind) *improvingTracker {
	return &improvingTracker{kind: kind}
}

// improves reports whether v tightens the tracked bound and records it.
func (t *improvingTracker) improves(v float64) bool {
	if !t.seen {
		t.seen = true
		t.best = v
		return true
	}
	if t.kind == model.InnerBound && v < t.best {
		t.best = v
		return true
	}
	if t.kind == model.OuterBound && v > t.best {
		t.best = v
		return true
	}
	return false
}
