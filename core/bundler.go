package core

import (
	"github.com/decisionfoundry/hedge-engine/model"
)

// BundleRhoPolicy derives a bundle-level rho from the member rho vectors and
// the members' probabilities conditional on the bundle. The aggregation
// choice affects convergence in surrogate mode, so it is pluggable rather
// than fixed; WeightedMeanBundleRho is the default.
type BundleRhoPolicy func(memberRho []model.Rho, condProbs []float64) model.Rho

// WeightedMeanBundleRho averages the member rho vectors with the conditional
// probabilities as weights.
func WeightedMeanBundleRho(memberRho []model.Rho, condProbs []float64) model.Rho {
	if len(memberRho) == 0 {
		return nil
	}
	out := make(model.Rho, len(memberRho[0]))
	for i, r := range memberRho {
		for j := range r {
			out[j] += condProbs[i] * r[j]
		}
	}
	return out
}

// MaxBundleRho takes the coordinate-wise maximum, the conservative choice
// when member penalties diverge.
func MaxBundleRho(memberRho []model.Rho, condProbs []float64) model.Rho {
	if len(memberRho) == 0 {
		return nil
	}
	out := memberRho[0].Clone()
	for _, r := range memberRho[1:] {
		for j := range r {
			if r[j] > out[j] {
				out[j] = r[j]
			}
		}
	}
	return out
}

// Bundler groups the scenarios assigned to one worker into combined
// subproblems to amortize solve setup cost.
type Bundler struct {
	// Size is the number of scenarios per bundle; 0 or 1 disables grouping.
	Size int
	// Surrogate switches dual bookkeeping to the bundle level: W and rho are
	// derived from the bundle aggregate instead of per-scenario values.
	Surrogate bool
	// RhoPolicy aggregates member rhos in surrogate mode. Nil means
	// WeightedMeanBundleRho.
	RhoPolicy BundleRhoPolicy
}

// bundle is one solve unit: a singleton scenario or a proper group sharing
// its nonant vector. duals is only maintained in surrogate mode.
type bundle struct {
	members []*model.Scenario
	duals   []float64
}

// probability returns the bundle's total probability mass.
func (b *bundle) probability() float64 {
	p := 0.0
	for _, s := range b.members {
		p += s.Probability
	}
	return p
}

// condProbs returns the members' probabilities conditional on the bundle.
func (b *bundle) condProbs() []float64 {
	total := b.probability()
	out := make([]float64, len(b.members))
	for i, s := range b.members {
		out[i] = s.Probability / total
	}
	return out
}

// partition slices scens into contiguous bundles of the configured size; the
// final bundle absorbs any remainder smaller than Size.
func (bu *Bundler) partition(scens []*model.Scenario, numVars int) []*bundle {
	size := bu.Size
	if size <= 1 {
		size = 1
	}
	var out []*bundle
	for lo := 0; lo < len(scens); lo += size {
		hi := lo + size
		if hi > len(scens) {
			hi = len(scens)
		}
		b := &bundle{members: scens[lo:hi]}
		if bu.Surrogate {
			b.duals = make([]float64, numVars)
		}
		out = append(out, b)
	}
	return out
}
