package core

import (
	"fmt"
	"math"

	"github.com/decisionfoundry/hedge-engine/model"
	"github.com/decisionfoundry/hedge-engine/solver"
)

// Strategy is the interchangeable consensus-algorithm step: it decides how a
// scenario's solve is augmented at iteration k and how the dual weights move
// afterwards. The hub state machine, xbar averaging, and convergence
// tracking are shared across strategies.
type Strategy interface {
	Name() string

	// Penalty builds the augmentation for one scenario solve at iteration
	// iter (1-based; INIT's seed solves never go through the strategy).
	Penalty(duals []float64, rho model.Rho, xbar []float64, iter int) solver.Penalty

	// UpdateDuals moves W in place given the scenario's fresh solution x and
	// the new consensus estimate.
	UpdateDuals(duals, x, xbar []float64, rho model.Rho, iter int)
}

// NewStrategy maps a configured strategy name to its implementation.
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "", "ph":
		return ProgressiveHedging{}, nil
	case "subgradient":
		return Subgradient{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", model.ErrConfig, name)
	}
}

// ProgressiveHedging is the standard PH step: proximal penalty toward xbar
// plus the linear dual term, with W_s += rho * (x_s - xbar).
type ProgressiveHedging struct{}

func (ProgressiveHedging) Name() string { return "ph" }

func (ProgressiveHedging) Penalty(duals []float64, rho model.Rho, xbar []float64, iter int) solver.Penalty {
	return solver.Penalty{W: duals, Rho: rho, Xbar: xbar}
}

func (ProgressiveHedging) UpdateDuals(duals, x, xbar []float64, rho model.Rho, iter int) {
	for i := range duals {
		duals[i] += rho[i] * (x[i] - xbar[i])
	}
}

// Subgradient is dual ascent without the proximal term: scenario solves see
// only the linear W term, and the dual step shrinks as 1/sqrt(k) so the
// ascent converges on convex models.
type Subgradient struct{}

func (Subgradient) Name() string { return "subgradient" }

func (Subgradient) Penalty(duals []float64, rho model.Rho, xbar []float64, iter int) solver.Penalty {
	return solver.Penalty{W: duals}
}

func (Subgradient) UpdateDuals(duals, x, xbar []float64, rho model.Rho, iter int) {
	step := 1 / math.Sqrt(float64(iter))
	for i := range duals {
		duals[i] += step * rho[i] * (x[i] - xbar[i])
	}
}
