package core

import (
	"math"
	"time"

	"github.com/decisionfoundry/hedge-engine/clock"
	"github.com/decisionfoundry/hedge-engine/model"
)

// ConvergenceTracker aggregates bound reports into a gap and a termination
// decision. It is owned and mutated exclusively by the hub; nothing else
// touches the bound history.
//
// Minimization convention throughout: the best inner (feasible) bound only
// ever moves down toward the optimum, the best outer (relaxation) bound only
// ever moves up, and the gap is their difference. Keeping the tightest
// report of each kind makes both monotone by construction.
type ConvergenceTracker struct {
	cfg   Config
	clk   clock.Clock
	start time.Time

	bestInner float64
	bestOuter float64
	history   []model.BoundRecord

	stall int
}

// NewTracker builds a tracker with open bounds.
func NewTracker(cfg Config, clk clock.Clock) *ConvergenceTracker {
	if clk == nil {
		clk = clock.Wall{}
	}
	return &ConvergenceTracker{
		cfg:       cfg,
		clk:       clk,
		start:     clk.Now(),
		bestInner: math.Inf(1),
		bestOuter: math.Inf(-1),
	}
}

// Record merges one bound report, keeping the tightest of each kind.
// Invalid records are appended to the history but never move the bounds.
// Returns true when the report improved its side.
func (t *ConvergenceTracker) Record(rec model.BoundRecord) bool {
	if rec.When.IsZero() {
		rec.When = t.clk.Now()
	}
	t.history = append(t.history, rec)
	if !rec.Valid {
		return false
	}
	switch rec.Kind {
	case model.InnerBound:
		if rec.Value < t.bestInner {
			t.bestInner = rec.Value
			return true
		}
	case model.OuterBound:
		if rec.Value > t.bestOuter {
			t.bestOuter = rec.Value
			return true
		}
	}
	return false
}

// BestInner returns the best feasible objective seen, +Inf before any.
func (t *ConvergenceTracker) BestInner() float64 { return t.bestInner }

// BestOuter returns the best relaxation value seen, -Inf before any.
func (t *ConvergenceTracker) BestOuter() float64 { return t.bestOuter }

// History returns the append-only bound history.
func (t *ConvergenceTracker) History() []model.BoundRecord { return t.history }

// AbsGap returns bestInner - bestOuter, +Inf while either side is open.
func (t *ConvergenceTracker) AbsGap() float64 {
	if math.IsInf(t.bestInner, 1) || math.IsInf(t.bestOuter, -1) {
		return math.Inf(1)
	}
	return t.bestInner - t.bestOuter
}

// RelGap normalizes the absolute gap by the inner bound's magnitude.
func (t *ConvergenceTracker) RelGap() float64 {
	abs := t.AbsGap()
	if math.IsInf(abs, 1) {
		return math.Inf(1)
	}
	return abs / math.Max(1e-10, math.Abs(t.bestInner))
}

// Check evaluates the stopping predicate after iteration iter completed with
// the given proximal residual. The predicate is the disjunction of the gap
// test, the stalled-run test, and the iteration/time budgets; the gap test
// wins when several fire at once.
func (t *ConvergenceTracker) Check(iter int, residual float64) model.Status {
	if t.cfg.AbsGap > 0 && t.AbsGap() <= t.cfg.AbsGap {
		return model.StatusConverged
	}
	if t.cfg.RelGap > 0 && t.RelGap() <= t.cfg.RelGap {
		return model.StatusConverged
	}

	if t.cfg.StallIterations > 0 {
		if residual < t.cfg.StallEpsilon {
			t.stall++
		} else {
			t.stall = 0
		}
		if t.stall >= t.cfg.StallIterations {
			return model.StatusStalled
		}
	}

	if t.cfg.MaxIterations > 0 && iter >= t.cfg.MaxIterations {
		return model.StatusIterationLimit
	}
	if t.cfg.TimeLimit > 0 && t.clk.Now().Sub(t.start) >= t.cfg.TimeLimit {
		return model.StatusTimeLimit
	}
	return model.StatusRunning
}

// StallCount returns the current consecutive-stall counter, for diagnostics.
func (t *ConvergenceTracker) StallCount() int { return t.stall }
