package main

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/decisionfoundry/hedge-engine/internal/cylinders/hub"
	"github.com/decisionfoundry/hedge-engine/model"
)

func TestRenderReportNullsOpenBounds(t *testing.T) {
	// A run with no inner-bound spoke terminates with BestInner still at +Inf
	// and the gap open; the report must render rather than fail to marshal.
	out, err := renderReport(hub.Result{
		Status:     model.StatusIterationLimit,
		Iterations: 3,
		BestInner:  math.Inf(1),
		BestOuter:  -42,
		RelGap:     math.Inf(1),
		Xbar:       []float64{1, 2},
	})
	if err != nil {
		t.Fatalf("renderReport failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v\n%s", err, out)
	}
	if got["best_inner"] != nil || got["rel_gap"] != nil {
		t.Fatalf("open bounds not rendered as null: %s", out)
	}
	if got["best_outer"] != -42.0 {
		t.Fatalf("best_outer = %v, want -42", got["best_outer"])
	}
	if got["status"] != model.StatusIterationLimit.String() {
		t.Fatalf("status = %v", got["status"])
	}
}

func TestRenderReportKeepsFiniteBounds(t *testing.T) {
	out, err := renderReport(hub.Result{
		Status:    model.StatusConverged,
		BestInner: -100,
		BestOuter: -101,
		RelGap:    0.01,
		Xbar:      []float64{5},
	})
	if err != nil {
		t.Fatalf("renderReport failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if got["best_inner"] != -100.0 || got["best_outer"] != -101.0 || got["rel_gap"] != 0.01 {
		t.Fatalf("finite bounds mangled: %s", out)
	}
}
