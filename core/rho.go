package core

import (
	"fmt"

	"github.com/decisionfoundry/hedge-engine/model"
)

// RhoSetter produces the penalty vector used by the next augmented solves.
// It is invoked once before INIT's first augmented solve and, when a dynamic
// policy is configured, again at the PostIteration event. A setter must
// never return a non-positive coefficient; the engine validates every
// returned vector and fails the run otherwise.
type RhoSetter func(scens []*model.Scenario, current model.Rho, hc *HookContext) (model.Rho, error)

// FixedRho keeps rho constant at its initial value.
func FixedRho() RhoSetter {
	return func(_ []*model.Scenario, current model.Rho, _ *HookContext) (model.Rho, error) {
		return current, nil
	}
}

// NormRhoSetter rescales rho from the balance between the primal residual
// (scenario disagreement) and the dual residual (xbar movement): when the
// primal residual dominates, rho grows to pull scenarios together; when the
// dual residual dominates, rho shrinks to let xbar settle. Bounded scaling
// keeps the coefficients positive and the trajectory stable.
func NormRhoSetter(growth float64) RhoSetter {
	if growth <= 1 {
		growth = 1.1
	}
	return func(_ []*model.Scenario, current model.Rho, hc *HookContext) (model.Rho, error) {
		if hc == nil || hc.Iteration == 0 {
			return current, nil
		}
		scale := 1.0
		switch {
		case hc.PrimalResidual > 10*hc.DualResidual:
			scale = growth
		case hc.DualResidual > 10*hc.PrimalResidual:
			scale = 1 / growth
		}
		if scale == 1 {
			return current, nil
		}
		next := current.Clone()
		for i := range next {
			next[i] *= scale
		}
		return next, nil
	}
}

// applyRhoSetter runs the setter and enforces the positivity invariant.
func applyRhoSetter(setter RhoSetter, scens []*model.Scenario, current model.Rho, hc *HookContext) (model.Rho, error) {
	if setter == nil {
		return current, nil
	}
	next, err := setter(scens, current, hc)
	if err != nil {
		return nil, fmt.Errorf("rho setter: %w", err)
	}
	if len(next) != len(current) {
		return nil, fmt.Errorf("%w: rho setter returned %d coefficients, want %d", model.ErrConfig, len(next), len(current))
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}
