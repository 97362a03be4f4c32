package spoke

import (
	"context"
	"math"

	"github.com/decisionfoundry/hedge-engine/internal/comm"
	"github.com/decisionfoundry/hedge-engine/model"
	"github.com/decisionfoundry/hedge-engine/solver"
)

// Slam is a heuristic inner-bound spoke that "slams" each first-stage
// variable to one extreme of its per-scenario spread: the coordinate-wise
// max (SlamMax) or min (SlamMin) across the hub's latest scenario
// solutions. The slammed candidate is evaluated at the true objectives and
// published when it improves the spoke's incumbent.
type Slam struct {
	Scens  []*model.Scenario
	Solver solver.Solver

	// op folds two values; math.Max for SlamMax, math.Min for SlamMin.
	op   func(a, b float64) float64
	name string

	best *improvingTracker
}

// NewSlamMax slams every variable to its maximum across scenarios.
func NewSlamMax(scens []*model.Scenario, sv solver.Solver) *Slam {
	return &Slam{Scens: scens, Solver: sv, op: math.Max, name: "slammax", best: newImprovingTracker(model.InnerBound)}
}

// NewSlamMin slams every variable to its minimum across scenarios.
func NewSlamMin(scens []*model.Scenario, sv solver.Solver) *Slam {
	return &Slam{Scens: scens, Solver: sv, op: math.Min, name: "slammin", best: newImprovingTracker(model.InnerBound)}
}

func (s *Slam) Name() string          { return s.name }
func (s *Slam) Kind() model.BoundKind { return model.InnerBound }

// Step builds and evaluates the slammed candidate.
func (s *Slam) Step(ctx context.Context, upd comm.HubUpdate) (comm.SpokeReport, bool, error) {
	if len(upd.Nonants) == 0 {
		return comm.SpokeReport{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return comm.SpokeReport{}, false, err
	}

	cand := append([]float64(nil), upd.Nonants[0]...)
	for _, x := range upd.Nonants[1:] {
		for i := range cand {
			cand[i] = s.op(cand[i], x[i])
		}
	}

	total := 0.0
	for _, scen := range s.Scens {
		val, err := s.Solver.Evaluate(scen, cand)
		if err != nil {
			return comm.SpokeReport{}, false, err
		}
		if math.IsNaN(val) || math.IsInf(val, 1) {
			return comm.SpokeReport{}, false, nil
		}
		total += scen.Probability * val
	}
	if !s.best.improves(total) {
		return comm.SpokeReport{}, false, nil
	}
	return comm.SpokeReport{Value: total}, true, nil
}
