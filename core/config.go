// Package core implements the consensus engine: the Progressive-Hedging
// iteration state, xbar averaging, dual-weight updates, rho policies,
// scenario bundling, and convergence tracking. Cylinder loops live in
// internal/cylinders; core is the numerics they share.
package core

import (
	"fmt"
	"time"

	"github.com/decisionfoundry/hedge-engine/model"
)

// Config is the immutable run configuration. It is constructed once by the
// driver, validated before any cylinder starts, and passed by value to every
// component. There is no ambient global configuration.
type Config struct {
	// DefaultRho seeds every penalty coefficient unless the provider
	// supplies an initial rho. Must be positive.
	DefaultRho float64

	// Strategy selects the consensus algorithm: "ph" or "subgradient".
	Strategy string

	// MaxIterations caps the hub iteration count. 0 means no cap.
	MaxIterations int
	// TimeLimit caps wall-clock time for the whole run. 0 means no limit.
	TimeLimit time.Duration

	// RelGap and AbsGap are the convergence thresholds on the distance
	// between the best outer and best inner bound.
	RelGap float64
	AbsGap float64

	// StallIterations and StallEpsilon define the stalled-run test: the run
	// stops when the proximal residual stays below StallEpsilon for
	// StallIterations consecutive iterations. StallIterations 0 disables it.
	StallIterations int
	StallEpsilon    float64

	// HubWorkers is the hub group size: the number of workers the scenario
	// list is partitioned across. Each iteration's xbar computation is a
	// blocking reduction across all of them.
	HubWorkers int

	// BundleSize groups this many scenarios per combined subproblem on each
	// worker. 0 or 1 disables bundling. SurrogateBundles switches the
	// bundle-level rho/W derivation to the pluggable aggregation policy.
	BundleSize       int
	SurrogateBundles bool

	// NormRhoUpdates enables the dynamic rho policy that rescales penalties
	// from primal/dual residual norms after each iteration.
	NormRhoUpdates bool

	// Seed drives every stochastic choice in the run (model sampling, spoke
	// shuffling) so a repeated run reproduces its decisions byte for byte.
	Seed int64

	// SolutionPath, when set, receives the final first-stage snapshot.
	// WarmStartPath, when set, seeds INIT's xbar from an earlier snapshot.
	SolutionPath  string
	WarmStartPath string

	// SpokePollInterval is how long an idle spoke waits before re-reading a
	// hub window whose generation has not moved.
	SpokePollInterval time.Duration

	// LivenessTimeout is how long a cylinder's window may stay silent before
	// the orchestrator declares it dead. 0 disables the watchdog.
	LivenessTimeout time.Duration
}

// Validate reports the first invalid option combination as a ConfigError.
func (c Config) Validate() error {
	if c.DefaultRho <= 0 {
		return fmt.Errorf("%w: default rho must be positive, got %g", model.ErrConfig, c.DefaultRho)
	}
	switch c.Strategy {
	case "", "ph", "subgradient":
	default:
		return fmt.Errorf("%w: unknown strategy %q", model.ErrConfig, c.Strategy)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("%w: max iterations must be >= 0, got %d", model.ErrConfig, c.MaxIterations)
	}
	if c.MaxIterations == 0 && c.TimeLimit == 0 && c.RelGap <= 0 && c.AbsGap <= 0 && c.StallIterations == 0 {
		return fmt.Errorf("%w: no stopping criterion configured", model.ErrConfig)
	}
	if c.RelGap < 0 || c.AbsGap < 0 {
		return fmt.Errorf("%w: gap thresholds must be >= 0", model.ErrConfig)
	}
	if c.StallIterations < 0 {
		return fmt.Errorf("%w: stall iterations must be >= 0, got %d", model.ErrConfig, c.StallIterations)
	}
	if c.StallIterations > 0 && c.StallEpsilon <= 0 {
		return fmt.Errorf("%w: stall detection needs a positive epsilon", model.ErrConfig)
	}
	if c.HubWorkers < 1 {
		return fmt.Errorf("%w: hub group needs at least 1 worker, got %d", model.ErrConfig, c.HubWorkers)
	}
	if c.BundleSize < 0 {
		return fmt.Errorf("%w: bundle size must be >= 0, got %d", model.ErrConfig, c.BundleSize)
	}
	if c.SurrogateBundles && c.BundleSize <= 1 {
		return fmt.Errorf("%w: surrogate bundles require a bundle size > 1", model.ErrConfig)
	}
	if c.SpokePollInterval < 0 || c.LivenessTimeout < 0 {
		return fmt.Errorf("%w: intervals must be >= 0", model.ErrConfig)
	}
	return nil
}

// StrategyName normalizes the empty strategy to "ph".
func (c Config) StrategyName() string {
	if c.Strategy == "" {
		return "ph"
	}
	return c.Strategy
}
