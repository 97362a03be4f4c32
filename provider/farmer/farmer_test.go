package farmer

import (
	"math"
	"testing"

	"github.com/decisionfoundry/hedge-engine/provider"
	"github.com/decisionfoundry/hedge-engine/solver"
)

func TestNewRejectsEmptyModel(t *testing.T) {
	if _, err := New(Config{NumScens: 0}); err == nil {
		t.Fatal("New accepted zero scenarios")
	}
}

func TestScenariosAreUniformAndComplete(t *testing.T) {
	p, err := New(Config{NumScens: 4, Seed: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	scens, err := provider.CreateAll(p)
	if err != nil {
		t.Fatalf("CreateAll failed: %v", err)
	}
	if len(scens) != 4 {
		t.Fatalf("got %d scenarios, want 4", len(scens))
	}
	for _, s := range scens {
		if s.Probability != 0.25 {
			t.Fatalf("scenario %q probability = %g, want 0.25", s.Name, s.Probability)
		}
		prog, ok := s.Handle.(*solver.Program)
		if !ok {
			t.Fatalf("scenario %q handle is %T", s.Name, s.Handle)
		}
		if len(prog.Q) != p.Tree().NumVars() {
			t.Fatalf("scenario %q program sized %d, tree has %d vars", s.Name, len(prog.Q), p.Tree().NumVars())
		}
	}
}

func TestSameSeedSameModel(t *testing.T) {
	a, _ := New(Config{NumScens: 3, Seed: 99})
	b, _ := New(Config{NumScens: 3, Seed: 99})
	for _, name := range a.ScenarioNames() {
		sa, err := a.Create(name)
		if err != nil {
			t.Fatalf("Create(%q) failed: %v", name, err)
		}
		sb, _ := b.Create(name)
		pa := sa.Handle.(*solver.Program)
		pb := sb.Handle.(*solver.Program)
		for j := range pa.C {
			if pa.C[j] != pb.C[j] {
				t.Fatalf("seeded yields differ at %s[%d]: %g vs %g", name, j, pa.C[j], pb.C[j])
			}
		}
	}
}

func TestCreateIsOrderIndependent(t *testing.T) {
	p, _ := New(Config{NumScens: 3, Seed: 7})
	// Creating scen2 before scen0 must not change either.
	late, err := p.Create("scen2")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	q, _ := New(Config{NumScens: 3, Seed: 7})
	q.Create("scen0")
	q.Create("scen1")
	early, _ := q.Create("scen2")

	pl := late.Handle.(*solver.Program)
	pe := early.Handle.(*solver.Program)
	for j := range pl.C {
		if pl.C[j] != pe.C[j] {
			t.Fatalf("scenario creation order changed the model at [%d]", j)
		}
	}
}

func TestCropsMultiplierScalesTheModel(t *testing.T) {
	p, _ := New(Config{NumScens: 2, CropsMultiplier: 3, Seed: 1})
	if got := p.Tree().NumVars(); got != 9 {
		t.Fatalf("NumVars = %d with multiplier 3, want 9", got)
	}
}

func TestExpectedOptimumIsWithinBounds(t *testing.T) {
	p, _ := New(Config{NumScens: 5, Seed: 3})
	for j, x := range p.ExpectedOptimum() {
		if x < 0 || x > 500 {
			t.Fatalf("optimum[%d] = %g outside the acreage box", j, x)
		}
		if math.IsNaN(x) {
			t.Fatalf("optimum[%d] is NaN", j)
		}
	}
}
