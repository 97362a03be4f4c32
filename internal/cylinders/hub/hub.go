// Package hub implements the central cylinder: the consensus algorithm's
// main loop, ownership of the global estimate and dual weights, and the
// merge point for every spoke's bound reports.
package hub

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/floats"

	"github.com/decisionfoundry/hedge-engine/core"
	"github.com/decisionfoundry/hedge-engine/internal/comm"
	"github.com/decisionfoundry/hedge-engine/internal/logging"
	"github.com/decisionfoundry/hedge-engine/internal/observability"
	"github.com/decisionfoundry/hedge-engine/model"
)

// State is the hub's lifecycle position.
type State int

const (
	StateInit State = iota
	StateIterating
	StateConverged
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SpokeHandle is the hub's view of one spoke: a name for reporting, the
// spoke's window to poll, and the bound kind it promises to deliver.
type SpokeHandle struct {
	Name   string
	Kind   model.BoundKind
	Window *comm.Window[comm.SpokeReport]
}

// Hub runs the consensus iteration across the hub group's workers. Worker 0
// additionally owns publication, spoke polling, the convergence tracker, and
// the lifecycle hooks; the other workers only solve and participate in the
// reductions.
type Hub struct {
	Cfg     core.Config
	Base    *core.PHBase
	Tracker *core.ConvergenceTracker
	Window  *comm.Window[comm.HubUpdate]
	Term    *comm.Flag
	Reducer *comm.Reducer
	Spokes  []SpokeHandle
	Log     logging.Logger
	Metrics *observability.RunCollector

	// WarmStart, when non-nil, seeds xbar_0 instead of the INIT average.
	WarmStart []float64

	state     State
	iteration int
	xbar      []float64
	prevXbar  []float64
	residual  float64
	status    model.Status
	lastSeen  map[string]uint64

	// perWorkerXbar[w] is the xbar worker w derived from the latest
	// reduction round. Each worker touches only its own slot.
	perWorkerXbar [][]float64
}

// Result is the hub's terminal report.
type Result struct {
	Status     model.Status
	Iterations int
	Xbar       []float64
	BestInner  float64
	BestOuter  float64
	RelGap     float64
}

// New wires a hub. The reducer must be sized to cfg.HubWorkers.
func New(cfg core.Config, base *core.PHBase, tracker *core.ConvergenceTracker, win *comm.Window[comm.HubUpdate], term *comm.Flag, red *comm.Reducer, log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		Cfg:           cfg,
		Base:          base,
		Tracker:       tracker,
		Window:        win,
		Term:          term,
		Reducer:       red,
		Log:           log,
		lastSeen:      make(map[string]uint64),
		perWorkerXbar: make([][]float64, base.NumWorkers()),
	}
}

// State returns the hub's current lifecycle state (owned by worker 0).
func (h *Hub) State() State { return h.state }

// Result reports the terminal outcome. Only meaningful after RunWorker(0)
// has returned.
func (h *Hub) Result() Result {
	return Result{
		Status:     h.status,
		Iterations: h.iteration,
		Xbar:       append([]float64(nil), h.xbar...),
		BestInner:  h.Tracker.BestInner(),
		BestOuter:  h.Tracker.BestOuter(),
		RelGap:     h.Tracker.RelGap(),
	}
}

// RunWorker executes the hub loop for one worker of the group. Every worker
// must run concurrently; the xbar reduction is a barrier across all of them.
func (h *Hub) RunWorker(ctx context.Context, w int) error {
	if err := h.initPhase(ctx, w); err != nil {
		h.fail(w, err)
		return err
	}
	for {
		done, err := h.iterate(ctx, w)
		if err != nil {
			h.fail(w, err)
			return err
		}
		if done {
			return nil
		}
	}
}

// fail flips the termination flag so spokes drain even when the hub aborts.
func (h *Hub) fail(w int, err error) {
	if w == 0 {
		h.state = StateTerminated
		h.status = model.StatusFailed
		h.Term.Set()
		h.Log.Error(context.Background(), "hub failed", logging.Int("iteration", h.iteration), logging.String("error", err.Error()))
	}
}

// initPhase runs the INIT state: rho setup, the no-penalty seed solves, the
// first reduction, and the publication of xbar_0.
func (h *Hub) initPhase(ctx context.Context, w int) error {
	tracer := observability.Tracer()
	ctx, span := tracer.Start(ctx, "hub.init")
	defer span.End()

	if w == 0 {
		h.state = StateInit
		hc := &core.HookContext{Iteration: 0, Base: h.Base}
		if err := h.Base.Hooks.Fire(core.PreInit, hc); err != nil {
			return err
		}
		if err := h.Base.ApplyRhoSetter(hc); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := h.Base.InitSolves(ctx, w); err != nil {
		return err
	}
	h.Metrics.TimeSolve(fmt.Sprintf("hub-%d", w), time.Since(start).Seconds())

	sum, err := h.reduceIterState(ctx, w)
	if err != nil {
		return err
	}

	// Every worker derives the same xbar_0 from the shared reduction so the
	// first augmented solves agree across the group.
	xbar := h.Base.XbarFromSum(sum[:len(sum)-1])
	if h.WarmStart != nil {
		if len(h.WarmStart) != len(xbar) {
			return fmt.Errorf("%w: warm start has %d values, model has %d nonants", model.ErrConfig, len(h.WarmStart), len(xbar))
		}
		copy(xbar, h.WarmStart)
	}

	if w != 0 {
		h.perWorkerXbar[w] = xbar
		return nil
	}

	h.xbar = xbar
	h.prevXbar = append([]float64(nil), h.xbar...)

	// The expected value of the unpenalized solves is a valid outer bound
	// for minimization: each scenario was minimized independently.
	h.Tracker.Record(model.BoundRecord{
		Spoke: "hub", Kind: model.OuterBound, Value: sum[len(sum)-1], Iteration: 0, Valid: true,
	})

	h.publish(false)
	h.state = StateIterating
	h.Log.Info(ctx, "hub initialized",
		logging.Int("scenarios", len(h.Base.Scens)),
		logging.Int("workers", h.Base.NumWorkers()),
		logging.Float("outer_bound", sum[len(sum)-1]),
	)
	return h.Base.Hooks.Fire(core.PostInit, &core.HookContext{Iteration: 0, Xbar: h.xbar, Base: h.Base})
}

// iterate runs one ITERATING step for worker w and reports whether the run
// reached a terminal state.
func (h *Hub) iterate(ctx context.Context, w int) (bool, error) {
	tracer := observability.Tracer()
	iter := h.iteration + 1
	ctx, span := tracer.Start(ctx, "hub.iteration")
	span.SetAttributes(attribute.Int("iteration", iter))
	defer span.End()

	if w == 0 {
		if err := h.Base.Hooks.Fire(core.PreIteration, &core.HookContext{Iteration: iter, Xbar: h.xbar, Base: h.Base}); err != nil {
			return false, err
		}
	}

	// (1) Augmented solves for this worker's scenarios. Workers other than 0
	// read the xbar their own reduction round produced last iteration, so
	// every worker passes its locally derived copy.
	xbar := h.workerXbar(w)
	start := time.Now()
	if err := h.Base.IterationSolves(ctx, w, xbar, iter); err != nil {
		return false, err
	}
	h.Metrics.TimeSolve(fmt.Sprintf("hub-%d", w), time.Since(start).Seconds())

	// (2) Blocking reduction: no worker proceeds until all contributed.
	sum, err := h.reduceIterState(ctx, w)
	if err != nil {
		return false, err
	}

	// The reduction guarantees every worker's solves are in, so this is the
	// point where all scenario solutions exist but xbar is not yet refreshed.
	if w == 0 {
		if err := h.Base.Hooks.Fire(core.PostSolve, &core.HookContext{Iteration: iter, Xbar: h.xbar, Base: h.Base}); err != nil {
			return false, err
		}
	}
	newXbar := h.Base.XbarFromSum(sum[:len(sum)-1])
	h.storeWorkerXbar(w, newXbar)

	// (3) Dual updates against the fresh consensus estimate.
	h.Base.UpdateDuals(w, newXbar, iter)

	// The residual reduction doubles as the barrier that guarantees every
	// worker's duals are updated before worker 0 publishes them.
	part := h.Base.PartialResidualSq(w, newXbar)
	resSq, err := h.Reducer.ReduceScalar(ctx, part)
	if err != nil {
		return false, err
	}

	var decision float64
	if w == 0 {
		h.iteration = iter
		h.xbar = newXbar
		h.residual = math.Sqrt(resSq)

		// (4) Publish, (5) poll spokes, (6) hooks, (7) stopping predicate.
		h.publish(false)
		// Give the spokes one poll period to observe the fresh generation
		// before the stopping predicate reads their windows. On realistic
		// subproblems the solve time dwarfs this; on closed-form toys it
		// keeps the hub from lapping every spoke.
		if len(h.Spokes) > 0 && h.Cfg.SpokePollInterval > 0 {
			time.Sleep(h.Cfg.SpokePollInterval)
		}
		h.pollSpokes()
		h.waitForFirstReports(ctx)

		dual := floats.Distance(h.xbar, h.prevXbar, 2)
		copy(h.prevXbar, h.xbar)
		hc := &core.HookContext{
			Iteration:      iter,
			Xbar:           h.xbar,
			PrimalResidual: h.residual,
			DualResidual:   dual,
			Base:           h.Base,
		}
		if err := h.Base.Hooks.Fire(core.PostIteration, hc); err != nil {
			return false, err
		}
		if h.Cfg.NormRhoUpdates {
			if err := h.Base.ApplyRhoSetter(hc); err != nil {
				return false, err
			}
		}

		status := h.Tracker.Check(iter, h.residual)
		h.Metrics.ObserveIteration(h.Tracker.BestInner(), h.Tracker.BestOuter(), h.Tracker.RelGap(), h.residual)
		h.Log.Debug(ctx, "iteration complete",
			logging.Int("iteration", iter),
			logging.Float("residual", h.residual),
			logging.Float("rel_gap", h.Tracker.RelGap()),
		)
		decision = float64(status)
	}

	// Broadcast worker 0's decision through the barrier so every worker
	// leaves the loop in the same iteration.
	code, err := h.Reducer.ReduceScalar(ctx, decision)
	if err != nil {
		return false, err
	}
	status := model.Status(int(code))
	if status == model.StatusRunning {
		return false, nil
	}
	if w == 0 {
		h.terminate(ctx, status)
	}
	return true, nil
}

// terminate moves the hub to its terminal state, raises the shared flag, and
// publishes the final update so spokes drain promptly.
func (h *Hub) terminate(ctx context.Context, status model.Status) {
	h.status = status
	if status == model.StatusConverged {
		h.state = StateConverged
	} else {
		h.state = StateTerminated
	}
	h.Term.Set()
	h.publish(true)
	_ = h.Base.Hooks.Fire(core.Terminating, &core.HookContext{Iteration: h.iteration, Xbar: h.xbar, Base: h.Base})
	h.Log.Info(ctx, "hub terminal",
		logging.String("status", status.String()),
		logging.Int("iterations", h.iteration),
		logging.Float("best_inner", h.Tracker.BestInner()),
		logging.Float("best_outer", h.Tracker.BestOuter()),
		logging.Float("rel_gap", h.Tracker.RelGap()),
	)
}

// publish pushes the current consensus state through the hub window.
func (h *Hub) publish(terminate bool) {
	h.Window.Publish(comm.HubUpdate{
		Iteration: h.iteration,
		Xbar:      append([]float64(nil), h.xbar...),
		Duals:     h.Base.DualsSnapshot(),
		Nonants:   h.Base.NonantsSnapshot(),
		WNorm:     h.Base.WNorm(),
		Terminate: terminate,
	})
}

// pollSpokes merges any new, higher-generation report from each spoke
// window into the tracker. A slow or silent spoke never blocks this.
func (h *Hub) pollSpokes() {
	for _, sp := range h.Spokes {
		gen, rep, ok := sp.Window.Read()
		if !ok || gen <= h.lastSeen[sp.Name] {
			continue
		}
		h.lastSeen[sp.Name] = gen
		improved := h.Tracker.Record(model.BoundRecord{
			Spoke:     sp.Name,
			Kind:      rep.Kind,
			Value:     rep.Value,
			Iteration: h.iteration,
			Valid:     true,
		})
		h.Metrics.CountBound(sp.Name, rep.Kind.String())
		if improved {
			h.Log.Debug(context.Background(), "bound improved",
				logging.String("spoke", sp.Name),
				logging.String("kind", rep.Kind.String()),
				logging.Float("value", rep.Value),
			)
		}
	}
}

// waitForFirstReports gives every registered spoke a bounded chance to
// deliver its first report before the stopping predicate can burn through
// the iteration budget. Subproblem solves on toy models finish in
// microseconds, so without this one-time grace the hub can exhaust its
// iterations before any spoke has been scheduled at all. After each spoke
// has reported once the hub never waits again.
func (h *Hub) waitForFirstReports(ctx context.Context) {
	if len(h.Spokes) == 0 {
		return
	}
	deadline := time.Now().Add(h.firstReportGrace())
	for {
		missing := false
		for _, sp := range h.Spokes {
			if h.lastSeen[sp.Name] == 0 {
				missing = true
				break
			}
		}
		if !missing || time.Now().After(deadline) || ctx.Err() != nil {
			return
		}
		time.Sleep(200 * time.Microsecond)
		h.pollSpokes()
	}
}

func (h *Hub) firstReportGrace() time.Duration {
	if h.Cfg.SpokePollInterval > 0 {
		return 100 * h.Cfg.SpokePollInterval
	}
	return 100 * time.Millisecond
}

// workerXbar returns the xbar this worker derived from the last reduction
// round; worker 0 keeps it on the hub, the others in their own slot.
func (h *Hub) workerXbar(w int) []float64 {
	if w == 0 {
		return h.xbar
	}
	return h.perWorkerXbar[w]
}

func (h *Hub) storeWorkerXbar(w int, xbar []float64) {
	if w == 0 {
		return // worker 0 installs it after the residual barrier
	}
	h.perWorkerXbar[w] = xbar
}

// reduceIterState reduces [weighted nonant sums | weighted objective] in one
// round so INIT and ITERATING share the same barrier shape.
func (h *Hub) reduceIterState(ctx context.Context, w int) ([]float64, error) {
	part := h.Base.PartialWeightedNonants(w)
	part = append(part, h.Base.PartialWeightedObj(w))
	return h.Reducer.Reduce(ctx, part)
}
