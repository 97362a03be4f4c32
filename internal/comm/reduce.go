package comm

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Reducer is the blocking sum-reduction barrier used by a multi-worker hub
// group: every participant contributes its partial vector and blocks until
// all n participants of the round have arrived, then all of them observe the
// element-wise sum. This is the only blocking cross-cylinder operation in
// the engine.
type Reducer struct {
	n  int
	mu sync.Mutex

	cur *reduceRound
}

type reduceRound struct {
	sum     []float64
	missing int
	done    chan struct{}
}

// NewReducer builds a barrier for n participants. n must be >= 1.
func NewReducer(n int) *Reducer {
	return &Reducer{n: n}
}

// Participants returns the group size.
func (r *Reducer) Participants() int { return r.n }

// Reduce contributes part to the current round and blocks until the round
// completes or ctx is cancelled. The returned slice is shared by all
// participants of the round and must be treated as read-only. All
// participants must contribute vectors of identical length within a round.
func (r *Reducer) Reduce(ctx context.Context, part []float64) ([]float64, error) {
	r.mu.Lock()
	if r.cur == nil {
		r.cur = &reduceRound{
			sum:     make([]float64, len(part)),
			missing: r.n,
			done:    make(chan struct{}),
		}
	}
	round := r.cur
	floats.Add(round.sum, part)
	round.missing--
	if round.missing == 0 {
		r.cur = nil
		close(round.done)
	}
	r.mu.Unlock()

	select {
	case <-round.done:
		return round.sum, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReduceScalar is Reduce for a single value.
func (r *Reducer) ReduceScalar(ctx context.Context, v float64) (float64, error) {
	sum, err := r.Reduce(ctx, []float64{v})
	if err != nil {
		return 0, err
	}
	return sum[0], nil
}
