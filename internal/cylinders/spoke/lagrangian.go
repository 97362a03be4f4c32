package spoke

import (
	"context"
	"fmt"

	"github.com/decisionfoundry/hedge-engine/internal/comm"
	"github.com/decisionfoundry/hedge-engine/model"
	"github.com/decisionfoundry/hedge-engine/solver"
)

// Lagrangian is an outer-bound spoke: it solves every scenario with the
// hub's current dual weights as a linear perturbation and no proximal term.
// Because the probability-weighted duals sum to zero by construction of the
// dual update, the weighted sum of those relaxed optima is a valid lower
// bound on the true optimum. Nothing beyond what the relaxation guarantees
// is ever published.
type Lagrangian struct {
	Scens  []*model.Scenario
	Solver solver.Solver

	best *improvingTracker
}

// NewLagrangian owns its scenario copies; they must be in the run's
// canonical scenario order so the published dual vectors line up.
func NewLagrangian(scens []*model.Scenario, sv solver.Solver) *Lagrangian {
	return &Lagrangian{Scens: scens, Solver: sv, best: newImprovingTracker(model.OuterBound)}
}

func (l *Lagrangian) Name() string          { return "lagrangian" }
func (l *Lagrangian) Kind() model.BoundKind { return model.OuterBound }

// Step computes the dual function value at the hub's current weights.
func (l *Lagrangian) Step(ctx context.Context, upd comm.HubUpdate) (comm.SpokeReport, bool, error) {
	if len(upd.Duals) != len(l.Scens) {
		return comm.SpokeReport{}, false, fmt.Errorf("%w: hub published %d dual vectors, spoke has %d scenarios", model.ErrComm, len(upd.Duals), len(l.Scens))
	}
	bound := 0.0
	for i, s := range l.Scens {
		res, err := l.Solver.Solve(ctx, s, solver.Penalty{W: upd.Duals[i]})
		if err != nil {
			return comm.SpokeReport{}, false, err
		}
		if serr := solver.AsSolveError(s.Name, res); serr != nil {
			return comm.SpokeReport{}, false, serr
		}
		// AugObj here is f_s(x) + W_s·x, the scenario's dual term.
		bound += s.Probability * res.AugObj
	}
	if !l.best.improves(bound) {
		return comm.SpokeReport{}, false, nil
	}
	return comm.SpokeReport{Value: bound}, true, nil
}
