package solver

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/decisionfoundry/hedge-engine/model"
)

// Program is a box-constrained separable quadratic subproblem:
//
//	minimize sum_i ( 0.5*Q_i*x_i^2 + C_i*x_i ) + Constant
//	subject to Lo_i <= x_i <= Hi_i
//
// Q must be non-negative; a zero Q_i makes coordinate i linear, which is
// only bounded when the corresponding box side is finite. This is the
// subproblem shape the reference model providers emit.
type Program struct {
	Q, C     []float64
	Lo, Hi   []float64
	Constant float64
}

// Validate checks dimensions and convexity.
func (p *Program) Validate() error {
	n := len(p.Q)
	if len(p.C) != n || len(p.Lo) != n || len(p.Hi) != n {
		return fmt.Errorf("%w: program vectors have mismatched lengths", model.ErrModel)
	}
	for i := range p.Q {
		if p.Q[i] < 0 {
			return fmt.Errorf("%w: Q[%d] = %g, program must be convex", model.ErrModel, i, p.Q[i])
		}
		if p.Lo[i] > p.Hi[i] {
			return fmt.Errorf("%w: empty box [%g, %g] at coordinate %d", model.ErrModel, p.Lo[i], p.Hi[i], i)
		}
	}
	return nil
}

// Quadratic solves Programs coordinate-wise in closed form. It keeps a
// per-scenario workspace across calls so repeated solves of the same
// scenario only swap penalty coefficients, mirroring a persistent solver
// backend.
type Quadratic struct {
	mu   sync.Mutex
	work map[string]*quadWorkspace
}

type quadWorkspace struct {
	q, c []float64
}

// NewQuadratic returns an empty solver; workspaces are created lazily.
func NewQuadratic() *Quadratic {
	return &Quadratic{work: make(map[string]*quadWorkspace)}
}

func (qs *Quadratic) workspace(key string, n int) *quadWorkspace {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	ws := qs.work[key]
	if ws == nil || len(ws.q) != n {
		ws = &quadWorkspace{q: make([]float64, n), c: make([]float64, n)}
		qs.work[key] = ws
	}
	return ws
}

// Solve minimizes the scenario's program with the penalty folded in.
func (qs *Quadratic) Solve(ctx context.Context, scen *model.Scenario, pen Penalty) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Status: StatusError}, err
	}
	prog, ok := scen.Handle.(*Program)
	if !ok {
		return Result{Status: StatusError}, handleError(scen, "*solver.Program")
	}
	ws := qs.workspace(scen.Name, len(prog.Q))
	copy(ws.q, prog.Q)
	copy(ws.c, prog.C)
	return qs.minimize(prog, ws, pen, nil)
}

// SolveBundle minimizes the probability-weighted combination of the member
// programs over one shared nonant vector. Member objectives are weighted by
// probability conditional on the bundle so the bundle's own probability
// (the members' sum) carries the weighting back into xbar.
func (qs *Quadratic) SolveBundle(ctx context.Context, scens []*model.Scenario, pen Penalty) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Status: StatusError}, err
	}
	if len(scens) == 0 {
		return Result{Status: StatusError}, fmt.Errorf("%w: empty bundle", model.ErrModel)
	}
	total := 0.0
	for _, s := range scens {
		total += s.Probability
	}
	first, ok := scens[0].Handle.(*Program)
	if !ok {
		return Result{Status: StatusError}, handleError(scens[0], "*solver.Program")
	}
	n := len(first.Q)
	ws := qs.workspace("bundle:"+scens[0].Name, n)
	for i := 0; i < n; i++ {
		ws.q[i], ws.c[i] = 0, 0
	}
	constant := 0.0
	// The shared box is the intersection of the member boxes.
	lo := make([]float64, n)
	hi := make([]float64, n)
	copy(lo, first.Lo)
	copy(hi, first.Hi)
	for _, s := range scens {
		prog, ok := s.Handle.(*Program)
		if !ok {
			return Result{Status: StatusError}, handleError(s, "*solver.Program")
		}
		if len(prog.Q) != n {
			return Result{Status: StatusError}, fmt.Errorf("%w: bundle member %q has %d vars, want %d", model.ErrModel, s.Name, len(prog.Q), n)
		}
		w := s.Probability / total
		for i := 0; i < n; i++ {
			ws.q[i] += w * prog.Q[i]
			ws.c[i] += w * prog.C[i]
			lo[i] = math.Max(lo[i], prog.Lo[i])
			hi[i] = math.Min(hi[i], prog.Hi[i])
		}
		constant += w * prog.Constant
	}
	for i := 0; i < n; i++ {
		if lo[i] > hi[i] {
			res := Result{Status: StatusInfeasible}
			return res, AsSolveError(scens[0].Name, res)
		}
	}
	combined := &Program{Q: ws.q, C: ws.c, Lo: lo, Hi: hi, Constant: constant}
	// minimize mutates its workspace copy of q/c, so hand it a scratch one.
	scratch := &quadWorkspace{q: append([]float64(nil), ws.q...), c: append([]float64(nil), ws.c...)}
	return qs.minimize(combined, scratch, pen, scens)
}

// minimize folds pen into the workspace coefficients and solves coordinate
// by coordinate. evalMembers, when non-nil, recomputes Obj as the weighted
// sum of the member objectives (bundle case).
func (qs *Quadratic) minimize(prog *Program, ws *quadWorkspace, pen Penalty, evalMembers []*model.Scenario) (Result, error) {
	n := len(ws.q)
	if pen.W != nil && len(pen.W) != n {
		return Result{Status: StatusError}, fmt.Errorf("penalty W has %d entries, program has %d", len(pen.W), n)
	}
	if pen.Rho != nil && (len(pen.Rho) != n || len(pen.Xbar) != n) {
		return Result{Status: StatusError}, fmt.Errorf("penalty rho/xbar sized %d/%d, program has %d", len(pen.Rho), len(pen.Xbar), n)
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		q, c := ws.q[i], ws.c[i]
		if pen.W != nil {
			c += pen.W[i]
		}
		if pen.Rho != nil {
			q += pen.Rho[i]
			c -= pen.Rho[i] * pen.Xbar[i]
		}
		switch {
		case q > 0:
			x[i] = clamp(-c/q, prog.Lo[i], prog.Hi[i])
		case c > 0:
			if math.IsInf(prog.Lo[i], -1) {
				return Result{Status: StatusError}, fmt.Errorf("coordinate %d unbounded below", i)
			}
			x[i] = prog.Lo[i]
		case c < 0:
			if math.IsInf(prog.Hi[i], 1) {
				return Result{Status: StatusError}, fmt.Errorf("coordinate %d unbounded above", i)
			}
			x[i] = prog.Hi[i]
		default:
			// Flat coordinate: pin to the nearest finite bound to keep the
			// solve deterministic.
			x[i] = clamp(0, prog.Lo[i], prog.Hi[i])
		}
	}

	obj := objective(prog, x)
	if evalMembers != nil {
		total := 0.0
		for _, s := range evalMembers {
			total += s.Probability
		}
		obj = 0.0
		for _, s := range evalMembers {
			mp := s.Handle.(*Program)
			obj += s.Probability / total * objective(mp, x)
		}
	}
	aug := obj
	if pen.W != nil {
		for i := range x {
			aug += pen.W[i] * x[i]
		}
	}
	if pen.Rho != nil {
		for i := range x {
			d := x[i] - pen.Xbar[i]
			aug += 0.5 * pen.Rho[i] * d * d
		}
	}
	return Result{Nonants: x, Obj: obj, AugObj: aug, Status: StatusOptimal}, nil
}

// Evaluate returns the true objective at a fixed nonant vector.
func (qs *Quadratic) Evaluate(scen *model.Scenario, x []float64) (float64, error) {
	prog, ok := scen.Handle.(*Program)
	if !ok {
		return 0, handleError(scen, "*solver.Program")
	}
	if len(x) != len(prog.Q) {
		return 0, fmt.Errorf("candidate has %d entries, program has %d", len(x), len(prog.Q))
	}
	return objective(prog, x), nil
}

func objective(p *Program, x []float64) float64 {
	obj := p.Constant
	for i := range x {
		obj += 0.5*p.Q[i]*x[i]*x[i] + p.C[i]*x[i]
	}
	return obj
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
