package twoscen

import (
	"testing"

	"github.com/decisionfoundry/hedge-engine/provider"
)

func TestProviderContract(t *testing.T) {
	p := New(1, -2)
	scens, err := provider.CreateAll(p)
	if err != nil {
		t.Fatalf("CreateAll failed: %v", err)
	}
	if len(scens) != 2 {
		t.Fatalf("got %d scenarios, want 2", len(scens))
	}
	for _, s := range scens {
		if s.Probability != 0.5 {
			t.Fatalf("scenario %q probability = %g, want 0.5", s.Name, s.Probability)
		}
	}
	if _, err := p.Create("medium"); err == nil {
		t.Fatal("Create accepted an unknown scenario name")
	}
}

func TestExpectedOptimum(t *testing.T) {
	tests := []struct {
		c1, c2 float64
		want   float64
	}{
		{1, 2, 0},    // positive weighted cost: stay at the lower bound
		{1, -3, 1},   // negative weighted cost: go to the upper bound
		{-1, 0.5, 1}, // weighted cost -0.25
	}
	for _, tc := range tests {
		if got := New(tc.c1, tc.c2).ExpectedOptimum(); got != tc.want {
			t.Fatalf("ExpectedOptimum(%g, %g) = %g, want %g", tc.c1, tc.c2, got, tc.want)
		}
	}
}
