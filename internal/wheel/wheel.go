// Package wheel is the orchestrator: it assigns workers to hub and spoke
// roles per the topology contract, spins every cylinder, and tears the whole
// run down on the first failure. No cylinder continues after any scenario is
// lost; a missing scenario would invalidate every bound's guarantee.
package wheel

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/decisionfoundry/hedge-engine/clock"
	"github.com/decisionfoundry/hedge-engine/core"
	"github.com/decisionfoundry/hedge-engine/internal/comm"
	"github.com/decisionfoundry/hedge-engine/internal/cylinders/hub"
	"github.com/decisionfoundry/hedge-engine/internal/cylinders/spoke"
	"github.com/decisionfoundry/hedge-engine/internal/logging"
	"github.com/decisionfoundry/hedge-engine/internal/observability"
	"github.com/decisionfoundry/hedge-engine/model"
	"github.com/decisionfoundry/hedge-engine/provider"
	"github.com/decisionfoundry/hedge-engine/solver"
)

// Spec assembles one run.
type Spec struct {
	Cfg      core.Config
	Provider provider.ModelProvider

	// NewSolver builds a solver instance per cylinder so persistent solver
	// state never crosses cylinder boundaries. Nil defaults to the
	// closed-form quadratic reference solver.
	NewSolver func(cylinder string) solver.Solver

	// SpokeKinds lists the spokes to instantiate, in topology order:
	// lagrangian, xhatlooper, slammax, slammin.
	SpokeKinds []string

	// WarmStart, when non-nil, seeds the hub's xbar_0.
	WarmStart []float64

	Log     logging.Logger
	Metrics *observability.RunCollector
	Clock   clock.Clock
}

// Topology is the fixed rank assignment decided once at startup: ranks
// [0, HubSize) form the hub group, then one contiguous rank per spoke group
// in configuration order.
type Topology struct {
	HubSize     int
	SpokeGroups []string
}

// TotalRanks returns the rank count the topology requires.
func (t Topology) TotalRanks() int { return t.HubSize + len(t.SpokeGroups) }

// RankRole names the role of a rank, for logs.
func (t Topology) RankRole(rank int) string {
	if rank < t.HubSize {
		return fmt.Sprintf("hub-%d", rank)
	}
	i := rank - t.HubSize
	if i < len(t.SpokeGroups) {
		return t.SpokeGroups[i]
	}
	return "unassigned"
}

// Spin runs the whole wheel to termination and returns the hub's terminal
// result. On any cylinder failure it cancels every other cylinder, waits for
// them to drain, and returns the originating error.
func Spin(ctx context.Context, spec Spec) (hub.Result, error) {
	if err := spec.Cfg.Validate(); err != nil {
		return hub.Result{Status: model.StatusFailed}, err
	}
	log := spec.Log
	if log == nil {
		log = logging.Noop()
	}
	newSolver := spec.NewSolver
	if newSolver == nil {
		newSolver = func(string) solver.Solver { return solver.NewQuadratic() }
	}

	topo := Topology{HubSize: spec.Cfg.HubWorkers, SpokeGroups: spec.SpokeKinds}
	runID := logging.NewRunID()
	log = log.With(logging.String("run_id", runID))
	log.Info(ctx, "spinning the wheel",
		logging.Int("total_ranks", topo.TotalRanks()),
		logging.Int("hub_size", topo.HubSize),
		logging.Any("spokes", spec.SpokeKinds),
	)

	// Hub side.
	scens, err := provider.CreateAll(spec.Provider)
	if err != nil {
		return hub.Result{Status: model.StatusFailed}, err
	}
	initialRho, setter := rhoPlan(spec.Cfg, spec.Provider)
	base, err := core.NewPHBase(spec.Cfg, spec.Provider.Tree(), scens, newSolver("hub"), initialRho, setter)
	if err != nil {
		return hub.Result{Status: model.StatusFailed}, err
	}
	if rep, ok := spec.Provider.(provider.PostSolveReporter); ok {
		base.PostSolve = rep.PostSolve
	}

	hubWin := comm.NewWindow[comm.HubUpdate]("hub")
	term := &comm.Flag{}
	red := comm.NewReducer(spec.Cfg.HubWorkers)
	tracker := core.NewTracker(spec.Cfg, spec.Clock)

	h := hub.New(spec.Cfg, base, tracker, hubWin, term, red, logging.ForCylinder(log, runID, "hub"))
	h.Metrics = spec.Metrics
	h.WarmStart = spec.WarmStart

	// Spoke side: each spoke owns independent scenario instances and its own
	// solver so nothing but windows is shared with the hub.
	var runners []*spoke.Runner
	for _, kind := range spec.SpokeKinds {
		sp, err := buildSpoke(kind, spec.Provider, newSolver(kind))
		if err != nil {
			return hub.Result{Status: model.StatusFailed}, err
		}
		win := comm.NewWindow[comm.SpokeReport](sp.Name())
		h.Spokes = append(h.Spokes, hub.SpokeHandle{Name: sp.Name(), Kind: sp.Kind(), Window: win})
		runners = append(runners, &spoke.Runner{
			Sp:      sp,
			HubWin:  hubWin,
			Win:     win,
			Term:    term,
			Poll:    spec.Cfg.SpokePollInterval,
			Log:     logging.ForCylinder(log, runID, sp.Name()),
			Metrics: spec.Metrics,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < spec.Cfg.HubWorkers; w++ {
		w := w
		g.Go(func() error { return h.RunWorker(gctx, w) })
	}
	for _, r := range runners {
		r := r
		g.Go(func() error { return r.Run(gctx) })
	}
	if spec.Cfg.LivenessTimeout > 0 {
		g.Go(func() error { return watchdog(gctx, spec.Cfg.LivenessTimeout, term, hubWin, runners) })
	}

	err = g.Wait()
	res := h.Result()
	if err != nil {
		res.Status = model.StatusFailed
		log.Error(ctx, "run failed", logging.String("error", err.Error()))
		return res, err
	}
	log.Info(ctx, "run complete",
		logging.String("status", res.Status.String()),
		logging.Int("iterations", res.Iterations),
		logging.Float("rel_gap", res.RelGap),
	)
	return res, nil
}

// rhoPlan picks the initial rho (provider hook first, config default
// otherwise) and the setter for dynamic updates.
func rhoPlan(cfg core.Config, p provider.ModelProvider) (model.Rho, core.RhoSetter) {
	var initial model.Rho
	if r, ok := p.(provider.InitialRhoer); ok {
		initial = r.InitialRho()
	}
	if cfg.NormRhoUpdates {
		return initial, core.NormRhoSetter(0)
	}
	return initial, core.FixedRho()
}

// buildSpoke maps a configured spoke kind to its implementation, giving it
// freshly created scenario instances.
func buildSpoke(kind string, p provider.ModelProvider, sv solver.Solver) (spoke.Spoke, error) {
	scens, err := provider.CreateAll(p)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "lagrangian":
		return spoke.NewLagrangian(scens, sv), nil
	case "xhatlooper":
		return spoke.NewXhatLooper(scens, sv, 3), nil
	case "slammax":
		return spoke.NewSlamMax(scens, sv), nil
	case "slammin":
		return spoke.NewSlamMin(scens, sv), nil
	default:
		return nil, fmt.Errorf("%w: unknown spoke kind %q", model.ErrConfig, kind)
	}
}

// watchdog is the orchestrator's liveness check: a cylinder window that
// stays silent past the timeout is treated as a crashed process and aborts
// the run with a CommError. It stands down once termination begins, since
// draining cylinders legitimately go quiet.
func watchdog(ctx context.Context, timeout time.Duration, term *comm.Flag, hubWin *comm.Window[comm.HubUpdate], runners []*spoke.Runner) error {
	tick := timeout / 4
	if tick <= 0 {
		tick = timeout
	}
	// Bound the tick so a clean drain is noticed promptly even under a
	// generous timeout.
	if tick > 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		if term.IsSet() {
			return nil
		}
		now := time.Now()
		if now.Sub(hubWin.LastActivity()) > timeout {
			return &model.CommError{Cylinder: "hub", Reason: fmt.Sprintf("window silent for %s", now.Sub(hubWin.LastActivity()).Round(time.Millisecond))}
		}
		for _, r := range runners {
			if now.Sub(r.Win.LastActivity()) > timeout {
				return &model.CommError{Cylinder: r.Sp.Name(), Reason: fmt.Sprintf("window silent for %s", now.Sub(r.Win.LastActivity()).Round(time.Millisecond))}
			}
		}
	}
}
