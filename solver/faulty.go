package solver

import (
	"context"
	"sync/atomic"

	"github.com/decisionfoundry/hedge-engine/model"
)

// FaultInjector wraps a Solver and forces an infeasible result for one
// scenario once a solve-count threshold is crossed. Used by the fail-fast
// tests.
type FaultInjector struct {
	Inner Solver
	// Scenario names the scenario whose solve fails.
	Scenario string
	// AfterSolves is how many successful solves of that scenario happen
	// before the failure fires.
	AfterSolves int64

	count atomic.Int64
}

// Solve delegates until the configured solve of the target scenario, then
// reports infeasible.
func (f *FaultInjector) Solve(ctx context.Context, scen *model.Scenario, pen Penalty) (Result, error) {
	if scen.Name == f.Scenario {
		if f.count.Add(1) > f.AfterSolves {
			res := Result{Status: StatusInfeasible}
			return res, AsSolveError(scen.Name, res)
		}
	}
	return f.Inner.Solve(ctx, scen, pen)
}

// SolveBundle fails when the bundle contains the target scenario.
func (f *FaultInjector) SolveBundle(ctx context.Context, scens []*model.Scenario, pen Penalty) (Result, error) {
	for _, s := range scens {
		if s.Name == f.Scenario {
			if f.count.Add(1) > f.AfterSolves {
				res := Result{Status: StatusInfeasible}
				return res, AsSolveError(s.Name, res)
			}
			break
		}
	}
	return f.Inner.SolveBundle(ctx, scens, pen)
}

// Evaluate always delegates; incumbent evaluation is not a solve.
func (f *FaultInjector) Evaluate(scen *model.Scenario, x []float64) (float64, error) {
	return f.Inner.Evaluate(scen, x)
}
