package core

import (
	"math"
	"testing"
	"time"

	"github.com/decisionfoundry/hedge-engine/clock"
	"github.com/decisionfoundry/hedge-engine/model"
)

func record(kind model.BoundKind, v float64) model.BoundRecord {
	return model.BoundRecord{Spoke: "test", Kind: kind, Value: v, Valid: true}
}

func TestTrackerKeepsTightestBounds(t *testing.T) {
	tr := NewTracker(Config{DefaultRho: 1, HubWorkers: 1, MaxIterations: 10}, nil)

	if !math.IsInf(tr.BestInner(), 1) || !math.IsInf(tr.BestOuter(), -1) {
		t.Fatalf("fresh tracker bounds = (%g, %g), want open", tr.BestInner(), tr.BestOuter())
	}

	// Inner bounds tighten downward only.
	if !tr.Record(record(model.InnerBound, 100)) {
		t.Fatal("first inner bound did not improve")
	}
	if tr.Record(record(model.InnerBound, 150)) {
		t.Fatal("looser inner bound reported as an improvement")
	}
	if tr.BestInner() != 100 {
		t.Fatalf("BestInner = %g, want 100", tr.BestInner())
	}

	// Outer bounds tighten upward only.
	tr.Record(record(model.OuterBound, 80))
	tr.Record(record(model.OuterBound, 50))
	if tr.BestOuter() != 80 {
		t.Fatalf("BestOuter = %g, want 80", tr.BestOuter())
	}

	if got := tr.AbsGap(); got != 20 {
		t.Fatalf("AbsGap = %g, want 20", got)
	}
	if got := tr.RelGap(); got != 0.2 {
		t.Fatalf("RelGap = %g, want 0.2", got)
	}
	if len(tr.History()) != 4 {
		t.Fatalf("history holds %d records, want 4", len(tr.History()))
	}
}

func TestTrackerIgnoresInvalidRecords(t *testing.T) {
	tr := NewTracker(Config{DefaultRho: 1, HubWorkers: 1, MaxIterations: 10}, nil)
	tr.Record(model.BoundRecord{Kind: model.InnerBound, Value: 5, Valid: false})
	if !math.IsInf(tr.BestInner(), 1) {
		t.Fatalf("invalid record moved BestInner to %g", tr.BestInner())
	}
	if len(tr.History()) != 1 {
		t.Fatal("invalid record missing from the history")
	}
}

func TestTrackerGapIsOpenUntilBothSidesReport(t *testing.T) {
	tr := NewTracker(Config{DefaultRho: 1, HubWorkers: 1, RelGap: 0.5}, nil)
	tr.Record(record(model.InnerBound, 10))
	if !math.IsInf(tr.AbsGap(), 1) {
		t.Fatalf("AbsGap = %g with one side open, want +Inf", tr.AbsGap())
	}
	if st := tr.Check(1, 1); st != model.StatusRunning {
		t.Fatalf("Check with an open gap = %v, want running", st)
	}
}

func TestTrackerCheckStatuses(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		setup func(tr *ConvergenceTracker)
		iter  int
		res   float64
		want  model.Status
	}{
		{
			name: "relative gap converged",
			cfg:  Config{RelGap: 0.25, MaxIterations: 100},
			setup: func(tr *ConvergenceTracker) {
				tr.Record(record(model.InnerBound, 100))
				tr.Record(record(model.OuterBound, 90))
			},
			iter: 1, res: 1, want: model.StatusConverged,
		},
		{
			name: "absolute gap converged",
			cfg:  Config{AbsGap: 10, MaxIterations: 100},
			setup: func(tr *ConvergenceTracker) {
				tr.Record(record(model.InnerBound, 5))
				tr.Record(record(model.OuterBound, -4))
			},
			iter: 1, res: 1, want: model.StatusConverged,
		},
		{
			name: "iteration cap",
			cfg:  Config{RelGap: 0.001, MaxIterations: 7},
			setup: func(tr *ConvergenceTracker) {
				tr.Record(record(model.InnerBound, 100))
				tr.Record(record(model.OuterBound, 10))
			},
			iter: 7, res: 1, want: model.StatusIterationLimit,
		},
		{
			name: "gap wins over iteration cap",
			cfg:  Config{RelGap: 0.5, MaxIterations: 7},
			setup: func(tr *ConvergenceTracker) {
				tr.Record(record(model.InnerBound, 100))
				tr.Record(record(model.OuterBound, 99))
			},
			iter: 7, res: 1, want: model.StatusConverged,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTracker(tc.cfg, nil)
			tc.setup(tr)
			if got := tr.Check(tc.iter, tc.res); got != tc.want {
				t.Fatalf("Check = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTrackerStallDetection(t *testing.T) {
	cfg := Config{StallIterations: 3, StallEpsilon: 1e-4, MaxIterations: 100}
	tr := NewTracker(cfg, nil)

	// Two quiet iterations are not enough.
	for i := 1; i <= 2; i++ {
		if st := tr.Check(i, 1e-6); st != model.StatusRunning {
			t.Fatalf("iteration %d: Check = %v, want running", i, st)
		}
	}
	// A loud iteration resets the streak.
	if st := tr.Check(3, 1); st != model.StatusRunning {
		t.Fatalf("Check after reset = %v, want running", st)
	}
	if tr.StallCount() != 0 {
		t.Fatalf("stall counter = %d after a loud iteration, want 0", tr.StallCount())
	}
	// Three consecutive quiet iterations trip the detector.
	tr.Check(4, 1e-6)
	tr.Check(5, 1e-6)
	if st := tr.Check(6, 1e-6); st != model.StatusStalled {
		t.Fatalf("Check = %v, want stalled", st)
	}
}

func TestTrackerTimeLimitUsesInjectedClock(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	tr := NewTracker(Config{TimeLimit: time.Minute}, clk)

	if st := tr.Check(1, 1); st != model.StatusRunning {
		t.Fatalf("Check before the limit = %v, want running", st)
	}
	clk.Advance(time.Minute)
	if st := tr.Check(2, 1); st != model.StatusTimeLimit {
		t.Fatalf("Check after the limit = %v, want time-limit", st)
	}
}

func TestTrackerRelGapNearZeroInner(t *testing.T) {
	tr := NewTracker(Config{RelGap: 0.1}, nil)
	tr.Record(record(model.InnerBound, 0))
	tr.Record(record(model.OuterBound, -1e-12))
	// The normalizer is floored, so a tiny absolute gap around zero still
	// reads as converged instead of dividing by zero.
	if math.IsNaN(tr.RelGap()) || math.IsInf(tr.RelGap(), 0) {
		t.Fatalf("RelGap = %g near a zero inner bound", tr.RelGap())
	}
}
