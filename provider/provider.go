// Package provider defines the model-provider contract: the collaborator
// that constructs fully-formed scenarios for a run. Providers are explicit
// values passed by the caller; there is no runtime module discovery.
package provider

import (
	"fmt"

	"github.com/decisionfoundry/hedge-engine/model"
	"github.com/decisionfoundry/hedge-engine/solver"
)

// ModelProvider produces the scenarios of a run. Implementations own the
// subproblem handles they attach; the engine treats them as opaque.
type ModelProvider interface {
	// ScenarioNames lists the names of all scenarios of the run, in the
	// canonical order used for rank assignment.
	ScenarioNames() []string

	// Create builds the named scenario: probability, stage tree reference,
	// and subproblem handle. Each call returns an independent instance, so
	// separate cylinders can own separate copies.
	Create(name string) (*model.Scenario, error)

	// Tree returns the stage tree shared by every scenario.
	Tree() *model.Tree
}

// InitialRhoer is the optional hook for providers that supply a model-aware
// starting rho instead of the configured default.
type InitialRhoer interface {
	InitialRho() model.Rho
}

// PostSolveReporter is the optional hook invoked after each scenario solve,
// for model-side reporting.
type PostSolveReporter interface {
	PostSolve(scen *model.Scenario, res solver.Result)
}

// CreateAll builds and validates every scenario of the provider. Any
// validation failure is a ModelError and aborts before INIT.
func CreateAll(p ModelProvider) ([]*model.Scenario, error) {
	names := p.ScenarioNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: provider produced no scenarios", model.ErrModel)
	}
	if err := p.Tree().Validate(); err != nil {
		return nil, err
	}
	scens := make([]*model.Scenario, 0, len(names))
	total := 0.0
	for _, name := range names {
		s, err := p.Create(name)
		if err != nil {
			return nil, fmt.Errorf("creating scenario %q: %w", name, err)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		total += s.Probability
		scens = append(scens, s)
	}
	if total < 1-model.ProbabilityTolerance*float64(len(names)) || total > 1+model.ProbabilityTolerance*float64(len(names)) {
		return nil, fmt.Errorf("%w: scenario probabilities sum to %g, want 1", model.ErrModel, total)
	}
	return scens, nil
}
