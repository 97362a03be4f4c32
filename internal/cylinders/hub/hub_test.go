package hub

import (
	"context"
	"errors"
	"testing"

	"github.com/decisionfoundry/hedge-engine/core"
	"github.com/decisionfoundry/hedge-engine/internal/comm"
	"github.com/decisionfoundry/hedge-engine/model"
	"github.com/decisionfoundry/hedge-engine/provider"
	"github.com/decisionfoundry/hedge-engine/provider/farmer"
	"github.com/decisionfoundry/hedge-engine/solver"
)

// cappedHub builds a spokeless single-worker hub over a small farmer model
// that runs exactly maxIter iterations.
func cappedHub(t *testing.T, maxIter int) *Hub {
	t.Helper()
	prov, err := farmer.New(farmer.Config{NumScens: 3, Seed: 7})
	if err != nil {
		t.Fatalf("farmer.New failed: %v", err)
	}
	scens, err := provider.CreateAll(prov)
	if err != nil {
		t.Fatalf("CreateAll failed: %v", err)
	}
	cfg := core.Config{DefaultRho: 1, HubWorkers: 1, MaxIterations: maxIter}
	base, err := core.NewPHBase(cfg, prov.Tree(), scens, solver.NewQuadratic(), nil, core.FixedRho())
	if err != nil {
		t.Fatalf("NewPHBase failed: %v", err)
	}
	return New(cfg, base, core.NewTracker(cfg, nil), comm.NewWindow[comm.HubUpdate]("hub"), &comm.Flag{}, comm.NewReducer(1), nil)
}

func TestRunWorkerFiresLifecycleEventsInOrder(t *testing.T) {
	h := cappedHub(t, 3)

	var seq []core.Event
	var preIters []int
	rec := func(ev core.Event, hc *core.HookContext) error {
		seq = append(seq, ev)
		if ev == core.PreIteration {
			preIters = append(preIters, hc.Iteration)
		}
		return nil
	}
	for _, ev := range []core.Event{core.PreInit, core.PostInit, core.PreIteration, core.PostSolve, core.PostIteration, core.Terminating} {
		h.Base.Hooks.On(ev, rec)
	}

	if err := h.RunWorker(context.Background(), 0); err != nil {
		t.Fatalf("RunWorker failed: %v", err)
	}
	if res := h.Result(); res.Status != model.StatusIterationLimit || res.Iterations != 3 {
		t.Fatalf("result = %v after %d iterations, want iteration limit after 3", res.Status, res.Iterations)
	}

	want := []core.Event{core.PreInit, core.PostInit}
	for i := 0; i < 3; i++ {
		want = append(want, core.PreIteration, core.PostSolve, core.PostIteration)
	}
	want = append(want, core.Terminating)
	if len(seq) != len(want) {
		t.Fatalf("got %d lifecycle events, want %d: %v", len(seq), len(want), seq)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("event %d = %v, want %v (full sequence %v)", i, seq[i], want[i], seq)
		}
	}
	for i, it := range preIters {
		if it != i+1 {
			t.Fatalf("pre-iteration callbacks saw iterations %v, want 1..3", preIters)
		}
	}
}

func TestRunWorkerAbortsOnIterationHookError(t *testing.T) {
	h := cappedHub(t, 10)

	boom := errors.New("boom")
	h.Base.Hooks.On(core.PreIteration, func(ev core.Event, hc *core.HookContext) error {
		if hc.Iteration == 2 {
			return boom
		}
		return nil
	})

	err := h.RunWorker(context.Background(), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("RunWorker err = %v, want the hook error", err)
	}
	if !h.Term.IsSet() {
		t.Fatal("termination flag not raised after hook failure")
	}
	if h.Result().Status != model.StatusFailed {
		t.Fatalf("status = %v, want failed", h.Result().Status)
	}
}
