package model

import "fmt"

// Scenario is one realization of the uncertain data: a probability, an
// opaque subproblem handle owned by the model provider, and the mutable
// per-iteration nonant bookkeeping the consensus algorithm maintains.
type Scenario struct {
	// Name identifies the scenario; unique within a run.
	Name string

	// Probability is the scenario's unconditional probability, in (0, 1].
	Probability float64

	// Handle is the model provider's subproblem object. The engine never
	// inspects it; only the Solver collaborator understands its type.
	Handle any

	// Tree is the stage tree shared by all scenarios of the run.
	Tree *Tree

	// NodePath names the tree nodes this scenario passes through, root
	// first. Two-stage models use the default {"ROOT"}.
	NodePath []string

	// Nonants holds the scenario's current nonanticipative variable values
	// in the tree's flat layout order. Overwritten by every solve.
	Nonants []float64

	// Duals holds the scenario's dual weight vector W, same layout as
	// Nonants. Zero at iteration 0.
	Duals []float64

	// Obj is the objective value reported by the most recent solve of this
	// scenario's subproblem (unaugmented value when available).
	Obj float64
}

// NewScenario allocates a scenario with zeroed nonant and dual vectors sized
// to the tree layout.
func NewScenario(name string, prob float64, tree *Tree, handle any) *Scenario {
	return &Scenario{
		Name:        name,
		Probability: prob,
		Handle:      handle,
		Tree:        tree,
		NodePath:    []string{"ROOT"},
		Nonants:     make([]float64, tree.NumVars()),
		Duals:       make([]float64, tree.NumVars()),
	}
}

// Validate checks the completeness contract a model provider must meet
// before the run enters INIT.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: scenario with empty name", ErrModel)
	}
	if s.Probability <= 0 || s.Probability > 1 {
		return fmt.Errorf("%w: scenario %q probability %g outside (0,1]", ErrModel, s.Name, s.Probability)
	}
	if s.Handle == nil {
		return fmt.Errorf("%w: scenario %q has no subproblem handle", ErrModel, s.Name)
	}
	if s.Tree == nil {
		return fmt.Errorf("%w: scenario %q has no stage tree", ErrModel, s.Name)
	}
	if len(s.Nonants) != s.Tree.NumVars() || len(s.Duals) != s.Tree.NumVars() {
		return fmt.Errorf("%w: scenario %q vectors sized %d/%d, tree has %d nonants",
			ErrModel, s.Name, len(s.Nonants), len(s.Duals), s.Tree.NumVars())
	}
	return nil
}

// Rho is the per-variable proximal penalty vector, in tree layout order.
// Coefficients must be strictly positive; SetDefault and rho policies are
// expected to preserve that.
type Rho []float64

// NewRho returns a rho vector of the given size filled with def.
func NewRho(size int, def float64) Rho {
	r := make(Rho, size)
	for i := range r {
		r[i] = def
	}
	return r
}

// Validate rejects non-positive penalty coefficients.
func (r Rho) Validate() error {
	for i, v := range r {
		if v <= 0 {
			return fmt.Errorf("%w: rho[%d] = %g, penalties must be positive", ErrConfig, i, v)
		}
	}
	return nil
}

// Clone returns an independent copy.
func (r Rho) Clone() Rho {
	out := make(Rho, len(r))
	copy(out, r)
	return out
}
