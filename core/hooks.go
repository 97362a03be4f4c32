package core

// Event names the hub lifecycle points that callbacks may attach to.
// Callbacks replace the inheritance-based pre/post-iteration overrides of
// older designs: they are registered in order and invoked synchronously by
// the hub state machine.
type Event int

const (
	// PreInit fires before the no-penalty seed solves.
	PreInit Event = iota
	// PostInit fires after xbar_0 is published.
	PostInit
	// PreIteration fires at the top of each ITERATING step.
	PreIteration
	// PostSolve fires after all scenario solves of an iteration complete,
	// before xbar is recomputed.
	PostSolve
	// PostIteration fires after duals are updated and the new estimate is
	// published. Dynamic rho policies hang here.
	PostIteration
	// Terminating fires once, after the terminal state is decided.
	Terminating
)

// HookContext is the engine state handed to callbacks.
type HookContext struct {
	Iteration int
	Xbar      []float64
	// PrimalResidual is sqrt(sum_s p_s ||x_s - xbar||^2) for the iteration
	// that just completed; zero before the first iteration.
	PrimalResidual float64
	// DualResidual is the norm of the xbar movement between iterations.
	DualResidual float64
	Base         *PHBase
}

// Hook is one lifecycle callback. Returning an error aborts the run.
type Hook func(ev Event, hc *HookContext) error

// HookRegistry keeps the ordered callback lists per event.
type HookRegistry struct {
	hooks map[Event][]Hook
}

// NewHookRegistry returns an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[Event][]Hook)}
}

// On appends a callback for the given event.
func (r *HookRegistry) On(ev Event, h Hook) {
	r.hooks[ev] = append(r.hooks[ev], h)
}

// Fire invokes the event's callbacks in registration order, stopping at the
// first error.
func (r *HookRegistry) Fire(ev Event, hc *HookContext) error {
	for _, h := range r.hooks[ev] {
		if err := h(ev, hc); err != nil {
			return err
		}
	}
	return nil
}
