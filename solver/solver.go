// Package solver defines the subproblem-solving contract the consensus
// engine delegates to, plus a closed-form reference implementation for
// box-constrained separable quadratic models. The engine never constructs or
// inspects subproblems; it hands the solver a scenario (whose Handle the
// solver must understand) and a penalty term.
package solver

import (
	"context"
	"fmt"

	"github.com/decisionfoundry/hedge-engine/model"
)

// Status is the termination status of one subproblem solve.
type Status int

const (
	StatusOptimal Status = iota
	StatusFeasible
	StatusInfeasible
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Penalty is the augmentation applied to a subproblem's objective:
//
//	original + W·x + sum_i rho_i/2 (x_i - xbar_i)^2
//
// A nil W or Rho disables that term; W alone (nil Rho) yields the Lagrangian
// subproblem used by outer-bound spokes. All slices are in the run's flat
// nonant layout.
type Penalty struct {
	W    []float64
	Rho  []float64
	Xbar []float64
}

// Result is the outcome of one solve.
type Result struct {
	// Nonants is the solution restricted to the nonanticipative variables,
	// flat layout order.
	Nonants []float64
	// Obj is the original (unaugmented) objective value at Nonants.
	Obj float64
	// AugObj is the augmented objective value actually minimized. Equal to
	// Obj when the penalty is empty.
	AugObj float64
	Status Status
}

// Solver is the collaborator contract. Implementations should reuse
// per-scenario state across calls where their backend allows it, so that
// iteration k+1 only swaps penalty coefficients instead of rebuilding the
// subproblem.
type Solver interface {
	// Solve minimizes the scenario's (possibly augmented) subproblem.
	Solve(ctx context.Context, scen *model.Scenario, pen Penalty) (Result, error)

	// SolveBundle minimizes the combined subproblem of several scenarios
	// sharing one nonant vector, weighting each member objective by its
	// probability conditional on the bundle. The penalty applies once to the
	// shared vector.
	SolveBundle(ctx context.Context, scens []*model.Scenario, pen Penalty) (Result, error)

	// Evaluate returns the true (unaugmented) objective of the scenario's
	// subproblem at a fixed nonant vector, for incumbent evaluation.
	Evaluate(scen *model.Scenario, x []float64) (float64, error)
}

// AsSolveError converts a non-optimal result into the run's error taxonomy.
// Feasible results are accepted; infeasible/error results are fatal.
func AsSolveError(scen string, res Result) error {
	switch res.Status {
	case StatusOptimal, StatusFeasible:
		return nil
	default:
		return &model.SolveError{Scenario: scen, Status: res.Status.String()}
	}
}

// handleError reports a subproblem handle of the wrong concrete type.
func handleError(scen *model.Scenario, want string) error {
	return fmt.Errorf("%w: scenario %q handle is %T, want %s", model.ErrModel, scen.Name, scen.Handle, want)
}
