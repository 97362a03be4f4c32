package comm

import "github.com/decisionfoundry/hedge-engine/model"

// HubUpdate is the payload the hub publishes after every iteration: the new
// consensus estimate, a dual-weight summary per scenario, and the iteration
// that produced them. All slices are freshly allocated per publish.
type HubUpdate struct {
	Iteration int
	Xbar      []float64
	// Duals holds one W vector per scenario, in the run's scenario order.
	// Bound spokes need the exact weights; heuristic spokes ignore them.
	Duals [][]float64
	// Nonants holds each scenario's latest solution, same order as Duals.
	// Heuristic spokes mine these for feasible candidates.
	Nonants [][]float64
	// WNorm is the 2-norm of the stacked dual weights, for diagnostics.
	WNorm float64
	// Terminate mirrors the shared flag so a spoke that reads the window
	// anyway learns about shutdown without a second poll.
	Terminate bool
}

// SpokeReport is the payload a spoke publishes after each of its own steps.
type SpokeReport struct {
	Kind model.BoundKind
	// Value is the bound. Bound spokes must only ever publish values that
	// the underlying relaxation guarantees; heuristic spokes publish true
	// objective values of feasible candidates.
	Value float64
	// HubGeneration is the generation of the hub window this report was
	// computed against.
	HubGeneration uint64
	// Step counts the spoke's own loop passes.
	Step int
}
