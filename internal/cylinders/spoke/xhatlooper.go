package spoke

import (
	"context"
	"math"

	"github.com/decisionfoundry/hedge-engine/internal/comm"
	"github.com/decisionfoundry/hedge-engine/model"
	"github.com/decisionfoundry/hedge-engine/solver"
)

// XhatLooper is a heuristic inner-bound spoke: it treats the consensus
// estimate and a limited number of per-scenario solutions as candidate
// first-stage decisions, evaluates each candidate's true expected objective
// across all scenarios, and publishes the best one as a trusted inner bound.
type XhatLooper struct {
	Scens  []*model.Scenario
	Solver solver.Solver

	// ScenLimit caps how many per-scenario candidates are tried per step,
	// besides xbar itself. 0 means xbar only.
	ScenLimit int

	best *improvingTracker
}

// NewXhatLooper owns its scenario copies.
func NewXhatLooper(scens []*model.Scenario, sv solver.Solver, scenLimit int) *XhatLooper {
	return &XhatLooper{Scens: scens, Solver: sv, ScenLimit: scenLimit, best: newImprovingTracker(model.InnerBound)}
}

func (x *XhatLooper) Name() string          { return "xhatlooper" }
func (x *XhatLooper) Kind() model.BoundKind { return model.InnerBound }

// Step evaluates the candidate set against the true objectives.
func (x *XhatLooper) Step(ctx context.Context, upd comm.HubUpdate) (comm.SpokeReport, bool, error) {
	candidates := [][]float64{upd.Xbar}
	for i := 0; i < len(upd.Nonants) && i < x.ScenLimit; i++ {
		candidates = append(candidates, upd.Nonants[i])
	}

	bestVal := math.Inf(1)
	found := false
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return comm.SpokeReport{}, false, err
		}
		val, ok, err := x.evaluate(cand)
		if err != nil {
			return comm.SpokeReport{}, false, err
		}
		if ok && val < bestVal {
			bestVal = val
			found = true
		}
	}
	if !found || !x.best.improves(bestVal) {
		return comm.SpokeReport{}, false, nil
	}
	return comm.SpokeReport{Value: bestVal}, true, nil
}

// evaluate returns the expected true objective of fixing the first stage at
// cand across every scenario. ok is false when the candidate is infeasible
// for any scenario.
func (x *XhatLooper) evaluate(cand []float64) (float64, bool, error) {
	total := 0.0
	for _, s := range x.Scens {
		val, err := x.Solver.Evaluate(s, cand)
		if err != nil {
			return 0, false, err
		}
		if math.IsInf(val, 1) || math.IsNaN(val) {
			return 0, false, nil
		}
		total += s.Probability * val
	}
	return total, true, nil
}
