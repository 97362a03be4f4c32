package core

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/decisionfoundry/hedge-engine/model"
	"github.com/decisionfoundry/hedge-engine/solver"
)

// PHBase holds the scenario set and the per-iteration numerics shared by the
// hub workers: augmented solves, probability-weighted averaging, dual
// updates, and residuals. One PHBase instance serves the whole hub group;
// each worker operates only on its own partition, so no locking is needed on
// the scenario vectors. Cross-worker aggregation happens through the
// reduction barrier, not through PHBase.
type PHBase struct {
	Cfg      Config
	Tree     *model.Tree
	Scens    []*model.Scenario
	Solver   solver.Solver
	Strategy Strategy

	// Hooks holds the lifecycle callback registrations the hub fires.
	Hooks *HookRegistry

	// PostSolve, when set, is invoked after every scenario solve with the
	// raw result (the model provider's reporting hook).
	PostSolve func(scen *model.Scenario, res solver.Result)

	// BundleRho aggregates member rhos for surrogate bundles. Nil selects
	// WeightedMeanBundleRho.
	BundleRho BundleRhoPolicy

	rho       model.Rho
	rhoSetter RhoSetter

	// workers[w] is worker w's partition, expressed as solve units.
	workers [][]*bundle

	// varMass[i] is the total probability mass of scenarios whose path
	// includes the node owning flat variable i; xbar divides by it.
	varMass []float64

	// spans[name] lists the flat ranges of the nodes on that scenario's
	// path. Averaging, dual updates, and residuals touch only these
	// coordinates: a scenario never contributes to variables of nodes it
	// does not pass through.
	spans map[string][]varSpan
}

// varSpan is one contiguous flat-index range of the nonant layout.
type varSpan struct{ lo, hi int }

// NewPHBase partitions scens across cfg.HubWorkers workers, bundles each
// partition per the bundler, and seeds rho.
func NewPHBase(cfg Config, tree *model.Tree, scens []*model.Scenario, sv solver.Solver, initialRho model.Rho, setter RhoSetter) (*PHBase, error) {
	if len(scens) == 0 {
		return nil, fmt.Errorf("%w: no scenarios", model.ErrModel)
	}
	if cfg.HubWorkers > len(scens) {
		return nil, fmt.Errorf("%w: %d hub workers for %d scenarios", model.ErrConfig, cfg.HubWorkers, len(scens))
	}
	strat, err := NewStrategy(cfg.StrategyName())
	if err != nil {
		return nil, err
	}
	if initialRho == nil {
		initialRho = model.NewRho(tree.NumVars(), cfg.DefaultRho)
	}
	if err := initialRho.Validate(); err != nil {
		return nil, err
	}

	b := &PHBase{
		Cfg:       cfg,
		Tree:      tree,
		Scens:     scens,
		Solver:    sv,
		Strategy:  strat,
		Hooks:     NewHookRegistry(),
		rho:       initialRho.Clone(),
		rhoSetter: setter,
	}

	bundler := &Bundler{Size: cfg.BundleSize, Surrogate: cfg.SurrogateBundles}
	for _, part := range splitScenarios(scens, cfg.HubWorkers) {
		b.workers = append(b.workers, bundler.partition(part, tree.NumVars()))
	}

	b.varMass = make([]float64, tree.NumVars())
	b.spans = make(map[string][]varSpan, len(scens))
	for _, s := range scens {
		for _, nodeName := range s.NodePath {
			node := tree.Node(nodeName)
			if node == nil {
				return nil, fmt.Errorf("%w: scenario %q references unknown node %q", model.ErrModel, s.Name, nodeName)
			}
			off, _ := tree.Offset(nodeName)
			b.spans[s.Name] = append(b.spans[s.Name], varSpan{off, off + len(node.VarIndices)})
			for i := range node.VarIndices {
				b.varMass[off+i] += s.Probability
			}
		}
	}
	for i, m := range b.varMass {
		if m <= 0 {
			return nil, fmt.Errorf("%w: nonant variable %d is covered by no scenario", model.ErrModel, i)
		}
	}
	return b, nil
}

// splitScenarios partitions scens into n contiguous chunks whose sizes
// differ by at most one.
func splitScenarios(scens []*model.Scenario, n int) [][]*model.Scenario {
	out := make([][]*model.Scenario, 0, n)
	base := len(scens) / n
	extra := len(scens) % n
	lo := 0
	for w := 0; w < n; w++ {
		size := base
		if w < extra {
			size++
		}
		out = append(out, scens[lo:lo+size])
		lo += size
	}
	return out
}

// NumWorkers returns the hub group size.
func (b *PHBase) NumWorkers() int { return len(b.workers) }

// Rho returns the current penalty vector (shared, read-only to callers).
func (b *PHBase) Rho() model.Rho { return b.rho }

// ApplyRhoSetter runs the configured rho setter and installs the validated
// result. Called before INIT and, for dynamic policies, at PostIteration.
func (b *PHBase) ApplyRhoSetter(hc *HookContext) error {
	next, err := applyRhoSetter(b.rhoSetter, b.Scens, b.rho, hc)
	if err != nil {
		return err
	}
	b.rho = next
	return nil
}

// effectivePenalty assembles the solve augmentation for one bundle.
func (b *PHBase) effectivePenalty(bd *bundle, xbar []float64, iter int) solver.Penalty {
	duals := b.effectiveDuals(bd)
	rho := b.rho
	if b.Cfg.SurrogateBundles && len(bd.members) > 1 {
		policy := b.BundleRho
		if policy == nil {
			policy = WeightedMeanBundleRho
		}
		memberRho := make([]model.Rho, len(bd.members))
		for i := range bd.members {
			memberRho[i] = b.rho
		}
		rho = policy(memberRho, bd.condProbs())
	}
	return b.Strategy.Penalty(duals, rho, xbar, iter)
}

// effectiveDuals returns the W vector a bundle solve sees: the scenario's
// own W for singletons, the surrogate bundle W in surrogate mode, and the
// conditional-probability-weighted mean of member Ws otherwise (which is the
// exact extensive-form combination of the members' linear dual terms).
func (b *PHBase) effectiveDuals(bd *bundle) []float64 {
	if len(bd.members) == 1 {
		return bd.members[0].Duals
	}
	if b.Cfg.SurrogateBundles {
		return bd.duals
	}
	out := make([]float64, b.Tree.NumVars())
	for i, s := range bd.members {
		w := bd.condProbs()[i]
		floats.AddScaled(out, w, s.Duals)
	}
	return out
}

// solveBundle runs one solve unit and writes the result back into every
// member: the shared nonant vector and the bundle objective (conditional on
// the bundle), so that probability-weighted sums over scenarios reproduce
// the bundle-weighted totals exactly.
func (b *PHBase) solveBundle(ctx context.Context, bd *bundle, pen solver.Penalty) error {
	var res solver.Result
	var err error
	if len(bd.members) == 1 {
		res, err = b.Solver.Solve(ctx, bd.members[0], pen)
	} else {
		res, err = b.Solver.SolveBundle(ctx, bd.members, pen)
	}
	if err != nil {
		return err
	}
	if serr := solver.AsSolveError(bd.members[0].Name, res); serr != nil {
		return serr
	}
	for _, s := range bd.members {
		copy(s.Nonants, res.Nonants)
		s.Obj = res.Obj
		if b.PostSolve != nil {
			b.PostSolve(s, res)
		}
	}
	return nil
}

// InitSolves runs worker w's no-penalty seed solves.
func (b *PHBase) InitSolves(ctx context.Context, w int) error {
	for _, bd := range b.workers[w] {
		if err := b.solveBundle(ctx, bd, solver.Penalty{}); err != nil {
			return err
		}
	}
	return nil
}

// IterationSolves runs worker w's augmented solves for iteration iter.
func (b *PHBase) IterationSolves(ctx context.Context, w int, xbar []float64, iter int) error {
	for _, bd := range b.workers[w] {
		if err := b.solveBundle(ctx, bd, b.effectivePenalty(bd, xbar, iter)); err != nil {
			return err
		}
	}
	return nil
}

// PartialWeightedNonants returns worker w's contribution to the xbar
// numerator: sum over its scenarios of probability * nonant values,
// restricted to the nodes on each scenario's path.
func (b *PHBase) PartialWeightedNonants(w int) []float64 {
	out := make([]float64, b.Tree.NumVars())
	for _, bd := range b.workers[w] {
		for _, s := range bd.members {
			for _, sp := range b.spans[s.Name] {
				floats.AddScaled(out[sp.lo:sp.hi], s.Probability, s.Nonants[sp.lo:sp.hi])
			}
		}
	}
	return out
}

// XbarFromSum turns the reduced weighted-nonant sum into xbar by dividing
// each flat variable by the probability mass of the scenarios covering it.
func (b *PHBase) XbarFromSum(sum []float64) []float64 {
	out := make([]float64, len(sum))
	for i := range sum {
		out[i] = sum[i] / b.varMass[i]
	}
	return out
}

// XbarFromScratch recomputes the consensus estimate directly from the
// current per-scenario nonant values, independent of any reduction. The
// averaging-determinism tests compare this against the published value.
func (b *PHBase) XbarFromScratch() []float64 {
	sum := make([]float64, b.Tree.NumVars())
	for _, s := range b.Scens {
		for _, sp := range b.spans[s.Name] {
			floats.AddScaled(sum[sp.lo:sp.hi], s.Probability, s.Nonants[sp.lo:sp.hi])
		}
	}
	return b.XbarFromSum(sum)
}

// UpdateDuals moves worker w's dual weights for iteration iter. Surrogate
// bundles update their bundle-level W from the shared solution; everything
// else updates per-scenario W.
func (b *PHBase) UpdateDuals(w int, xbar []float64, iter int) {
	for _, bd := range b.workers[w] {
		if b.Cfg.SurrogateBundles && len(bd.members) > 1 {
			lead := bd.members[0]
			for _, sp := range b.spans[lead.Name] {
				b.Strategy.UpdateDuals(bd.duals[sp.lo:sp.hi], lead.Nonants[sp.lo:sp.hi], xbar[sp.lo:sp.hi], b.rho[sp.lo:sp.hi], iter)
			}
			continue
		}
		for _, s := range bd.members {
			for _, sp := range b.spans[s.Name] {
				b.Strategy.UpdateDuals(s.Duals[sp.lo:sp.hi], s.Nonants[sp.lo:sp.hi], xbar[sp.lo:sp.hi], b.rho[sp.lo:sp.hi], iter)
			}
		}
	}
}

// PartialResidualSq returns worker w's contribution to the squared proximal
// residual: sum of probability * ||x_s - xbar||^2 over each scenario's own
// coordinates.
func (b *PHBase) PartialResidualSq(w int, xbar []float64) float64 {
	total := 0.0
	for _, bd := range b.workers[w] {
		for _, s := range bd.members {
			sq := 0.0
			for _, sp := range b.spans[s.Name] {
				for i := sp.lo; i < sp.hi; i++ {
					d := s.Nonants[i] - xbar[i]
					sq += d * d
				}
			}
			total += s.Probability * sq
		}
	}
	return total
}

// PartialWeightedObj returns worker w's contribution to the expected
// objective of the most recent solves.
func (b *PHBase) PartialWeightedObj(w int) float64 {
	total := 0.0
	for _, bd := range b.workers[w] {
		for _, s := range bd.members {
			total += s.Probability * s.Obj
		}
	}
	return total
}

// DualsSnapshot returns fresh copies of every scenario's W, in scenario
// order, for publication through the hub window.
func (b *PHBase) DualsSnapshot() [][]float64 {
	out := make([][]float64, len(b.Scens))
	for i, s := range b.Scens {
		out[i] = append([]float64(nil), s.Duals...)
	}
	return out
}

// NonantsSnapshot returns fresh copies of every scenario's current solution,
// in scenario order, for publication through the hub window.
func (b *PHBase) NonantsSnapshot() [][]float64 {
	out := make([][]float64, len(b.Scens))
	for i, s := range b.Scens {
		out[i] = append([]float64(nil), s.Nonants...)
	}
	return out
}

// WNorm returns the 2-norm of the stacked dual weights.
func (b *PHBase) WNorm() float64 {
	sq := 0.0
	for _, s := range b.Scens {
		for _, v := range s.Duals {
			sq += v * v
		}
	}
	return math.Sqrt(sq)
}
