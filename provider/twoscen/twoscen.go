// Package twoscen is a two-scenario linear toy with an analytic fixed
// point, used by the consensus-property tests: one variable on [0, 1] with
// scenario costs of opposite sign. The extensive form minimizes
// (p1*c1 + p2*c2) * x, so the optimum sits at 0 when the weighted cost is
// positive and at 1 when it is negative.
package twoscen

import (
	"fmt"

	"github.com/decisionfoundry/hedge-engine/model"
	"github.com/decisionfoundry/hedge-engine/solver"
)

// Provider implements provider.ModelProvider.
type Provider struct {
	tree   *model.Tree
	C1, C2 float64
}

// New builds the provider with the given per-scenario costs.
func New(c1, c2 float64) *Provider {
	return &Provider{tree: model.NewTwoStageTree(1), C1: c1, C2: c2}
}

func (p *Provider) ScenarioNames() []string { return []string{"low", "high"} }

func (p *Provider) Tree() *model.Tree { return p.tree }

func (p *Provider) Create(name string) (*model.Scenario, error) {
	var c float64
	switch name {
	case "low":
		c = p.C1
	case "high":
		c = p.C2
	default:
		return nil, fmt.Errorf("%w: unknown scenario %q", model.ErrModel, name)
	}
	prog := &solver.Program{
		Q:  []float64{0},
		C:  []float64{c},
		Lo: []float64{0},
		Hi: []float64{1},
	}
	return model.NewScenario(name, 0.5, p.tree, prog), nil
}

// ExpectedOptimum returns the analytic extensive-form solution.
func (p *Provider) ExpectedOptimum() float64 {
	if 0.5*p.C1+0.5*p.C2 > 0 {
		return 0
	}
	return 1
}
