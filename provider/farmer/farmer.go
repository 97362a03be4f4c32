// Package farmer is a scalable crop-planting toy model in the shape of the
// classic farmer example: first-stage acreage decisions, per-scenario yields.
// Costs are quadratic in acreage so the reference solver can handle each
// subproblem in closed form, and the extensive-form optimum is analytic:
// x_i* = mean(yield_i) / cost_i, clamped to the acreage box.
package farmer

import (
	"fmt"
	"math/rand"

	"github.com/decisionfoundry/hedge-engine/model"
	"github.com/decisionfoundry/hedge-engine/solver"
)

// Config sizes the model. CropsMultiplier scales the three base crops the
// same way the classic example does.
type Config struct {
	NumScens        int
	CropsMultiplier int
	Seed            int64
}

// Provider implements provider.ModelProvider for the farmer model.
type Provider struct {
	cfg    Config
	tree   *model.Tree
	names  []string
	yields map[string][]float64
}

// Base quadratic planting costs per crop; repeated per multiplier block.
var baseCosts = []float64{1.0, 1.5, 2.0}

// Base mean yields per crop.
var baseYields = []float64{150, 230, 260}

const maxAcreage = 500

// New precomputes every scenario's yields from the seed so that Create is
// deterministic regardless of call order and repeated runs with the same
// seed reproduce identical models.
func New(cfg Config) (*Provider, error) {
	if cfg.NumScens < 1 {
		return nil, fmt.Errorf("%w: farmer model needs at least 1 scenario, got %d", model.ErrConfig, cfg.NumScens)
	}
	if cfg.CropsMultiplier < 1 {
		cfg.CropsMultiplier = 1
	}
	numCrops := len(baseCosts) * cfg.CropsMultiplier

	p := &Provider{
		cfg:    cfg,
		tree:   model.NewTwoStageTree(numCrops),
		yields: make(map[string][]float64, cfg.NumScens),
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i < cfg.NumScens; i++ {
		name := fmt.Sprintf("scen%d", i)
		p.names = append(p.names, name)
		y := make([]float64, numCrops)
		for j := range y {
			// Yield factor in [0.8, 1.2], the below/above-average spread of
			// the classic example.
			factor := 0.8 + 0.4*rng.Float64()
			y[j] = baseYields[j%len(baseYields)] * factor
		}
		p.yields[name] = y
	}
	return p, nil
}

// ScenarioNames returns scen0..scenN-1.
func (p *Provider) ScenarioNames() []string {
	return append([]string(nil), p.names...)
}

// Tree returns the shared two-stage tree.
func (p *Provider) Tree() *model.Tree { return p.tree }

// Create builds the named scenario with uniform probability. The subproblem
// minimizes sum_j 0.5*cost_j*x_j^2 - yield_j*x_j over 0 <= x_j <= 500.
func (p *Provider) Create(name string) (*model.Scenario, error) {
	y, ok := p.yields[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown farmer scenario %q", model.ErrModel, name)
	}
	n := len(y)
	prog := &solver.Program{
		Q:  make([]float64, n),
		C:  make([]float64, n),
		Lo: make([]float64, n),
		Hi: make([]float64, n),
	}
	for j := 0; j < n; j++ {
		prog.Q[j] = baseCosts[j%len(baseCosts)]
		prog.C[j] = -y[j]
		prog.Hi[j] = maxAcreage
	}
	return model.NewScenario(name, 1.0/float64(p.cfg.NumScens), p.tree, prog), nil
}

// ExpectedOptimum returns the analytic extensive-form optimal first-stage
// vector, for tests.
func (p *Provider) ExpectedOptimum() []float64 {
	n := p.tree.NumVars()
	mean := make([]float64, n)
	for _, y := range p.yields {
		for j := range y {
			mean[j] += y[j] / float64(p.cfg.NumScens)
		}
	}
	x := make([]float64, n)
	for j := range x {
		x[j] = mean[j] / baseCosts[j%len(baseCosts)]
		if x[j] > maxAcreage {
			x[j] = maxAcreage
		}
		if x[j] < 0 {
			x[j] = 0
		}
	}
	return x
}
