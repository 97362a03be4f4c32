package core

import (
	"context"
	"math"
	"testing"

	"github.com/decisionfoundry/hedge-engine/provider"
	"github.com/decisionfoundry/hedge-engine/provider/twoscen"
	"github.com/decisionfoundry/hedge-engine/solver"
)

// A large proximal penalty forces the scenario solutions together: on the
// two-scenario linear toy the duals absorb the cost disagreement after one
// update, so from the second iteration on every scenario returns xbar itself.
func TestLargeRhoForcesConsensus(t *testing.T) {
	prov := twoscen.New(1, -2)
	scens, err := provider.CreateAll(prov)
	if err != nil {
		t.Fatalf("CreateAll failed: %v", err)
	}
	cfg := validConfig()
	cfg.DefaultRho = 100
	base, err := NewPHBase(cfg, prov.Tree(), scens, solver.NewQuadratic(), nil, FixedRho())
	if err != nil {
		t.Fatalf("NewPHBase failed: %v", err)
	}

	ctx := context.Background()
	if err := base.InitSolves(ctx, 0); err != nil {
		t.Fatalf("InitSolves failed: %v", err)
	}
	xbar := base.XbarFromScratch()

	for k := 1; k <= 3; k++ {
		if err := base.IterationSolves(ctx, 0, xbar, k); err != nil {
			t.Fatalf("iteration %d failed: %v", k, err)
		}
		xbar = base.XbarFromScratch()
		base.UpdateDuals(0, xbar, k)
	}

	residual := math.Sqrt(base.PartialResidualSq(0, xbar))
	if residual > 1e-9 {
		t.Fatalf("residual = %g after the duals settled, want consensus", residual)
	}

	// The settled duals carry the cost disagreement with weighted sum zero.
	sum := 0.0
	for _, s := range base.Scens {
		sum += s.Probability * s.Duals[0]
	}
	if math.Abs(sum) > 1e-9 {
		t.Fatalf("weighted dual sum = %g, want 0", sum)
	}
}
