package model

import (
	"errors"
	"fmt"
)

// Failure taxonomy for a run. Callers match with errors.Is; the concrete
// messages carry the detail.
var (
	// ErrModel indicates the model provider returned an incomplete scenario
	// (missing probability, handle, or nonant annotation). Fatal before INIT.
	ErrModel = errors.New("model error")
	// ErrSolve indicates the solver reported infeasible/error on a
	// subproblem. Fatal for the whole run: a missing scenario invalidates
	// every bound's validity guarantee.
	ErrSolve = errors.New("solve error")
	// ErrComm indicates a cylinder's window went silent (the cylinder died
	// without reporting). Detected by the orchestrator's liveness check.
	ErrComm = errors.New("comm error")
	// ErrConfig indicates an invalid option combination, detected before any
	// cylinder begins solving.
	ErrConfig = errors.New("config error")
)

// SolveError carries the scenario and solver status behind an ErrSolve.
type SolveError struct {
	Scenario string
	Status   string
	Err      error
}

func (e *SolveError) Error() string {
	msg := fmt.Sprintf("solving scenario %q: status %s", e.Scenario, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap makes errors.Is(err, ErrModel.../ErrSolve) work through the detail.
func (e *SolveError) Unwrap() error { return ErrSolve }

// CommError carries the cylinder whose window went stale behind an ErrComm.
type CommError struct {
	Cylinder string
	Reason   string
}

func (e *CommError) Error() string {
	return fmt.Sprintf("cylinder %q unreachable: %s", e.Cylinder, e.Reason)
}

func (e *CommError) Unwrap() error { return ErrComm }
