package model

import "time"

// BoundKind distinguishes the two sides of the optimality gap.
type BoundKind int

const (
	// InnerBound is a feasible (primal) objective value. For minimization it
	// bounds the optimum from above and only ever tightens downward.
	InnerBound BoundKind = iota
	// OuterBound is a relaxation (dual) value. For minimization it bounds
	// the optimum from below and only ever tightens upward.
	OuterBound
)

func (k BoundKind) String() string {
	switch k {
	case InnerBound:
		return "inner"
	case OuterBound:
		return "outer"
	default:
		return "unknown"
	}
}

// BoundRecord is one bound report received from a spoke (or produced by the
// hub itself). The history of records is owned exclusively by the hub.
type BoundRecord struct {
	Spoke     string
	Kind      BoundKind
	Value     float64
	Iteration int
	When      time.Time
	Valid     bool
}

// Status is the terminal disposition of a run.
type Status int

const (
	// StatusRunning means no terminal state has been reached yet.
	StatusRunning Status = iota
	// StatusConverged means the gap test passed.
	StatusConverged
	// StatusIterationLimit means the iteration cap was reached first.
	StatusIterationLimit
	// StatusTimeLimit means the wall-clock budget was exhausted.
	StatusTimeLimit
	// StatusStalled means the proximal residual stayed below epsilon for the
	// configured number of consecutive iterations without passing the gap
	// test. Not an error: best-known bounds are still reported.
	StatusStalled
	// StatusFailed means a cylinder aborted the run.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusConverged:
		return "converged"
	case StatusIterationLimit:
		return "iteration-limit"
	case StatusTimeLimit:
		return "time-limit"
	case StatusStalled:
		return "stalled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status ends the run.
func (s Status) Terminal() bool { return s != StatusRunning }
