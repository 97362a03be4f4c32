package model

import (
	"errors"
	"testing"
)

func TestTwoStageTreeLayout(t *testing.T) {
	tree := NewTwoStageTree(3)
	if got := tree.NumVars(); got != 3 {
		t.Fatalf("NumVars = %d, want 3", got)
	}
	off, ok := tree.Offset("ROOT")
	if !ok || off != 0 {
		t.Fatalf("Offset(ROOT) = (%d, %v), want (0, true)", off, ok)
	}
	if err := tree.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestMultiStageLayoutIsRootFirst(t *testing.T) {
	root := &ScenarioNode{Name: "ROOT", CondProb: 1, VarIndices: []int{0, 1}}
	left := &ScenarioNode{Name: "N1", CondProb: 0.4, VarIndices: []int{2}}
	right := &ScenarioNode{Name: "N2", CondProb: 0.6, VarIndices: []int{3}}
	root.AddChild(left)
	root.AddChild(right)
	tree := &Tree{Root: root}
	tree.BuildLayout()

	if err := tree.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got := tree.NumVars(); got != 4 {
		t.Fatalf("NumVars = %d, want 4", got)
	}
	// Root owns [0,2), then children in declaration order.
	for _, tc := range []struct {
		node string
		want int
	}{
		{"ROOT", 0}, {"N1", 2}, {"N2", 3},
	} {
		off, ok := tree.Offset(tc.node)
		if !ok || off != tc.want {
			t.Fatalf("Offset(%s) = (%d, %v), want (%d, true)", tc.node, off, ok, tc.want)
		}
	}
}

func TestTreeValidateRejectsBadProbabilityMass(t *testing.T) {
	root := &ScenarioNode{Name: "ROOT", CondProb: 1}
	root.AddChild(&ScenarioNode{Name: "A", CondProb: 0.5})
	root.AddChild(&ScenarioNode{Name: "B", CondProb: 0.6})
	tree := &Tree{Root: root}
	tree.BuildLayout()

	err := tree.Validate()
	if err == nil {
		t.Fatal("Validate accepted children summing to 1.1")
	}
	if !errors.Is(err, ErrModel) {
		t.Fatalf("error is %v, want ErrModel", err)
	}
}

func TestTreeValidateRejectsUnsortedVarIndices(t *testing.T) {
	tree := &Tree{Root: &ScenarioNode{Name: "ROOT", CondProb: 1, VarIndices: []int{1, 0}}}
	tree.BuildLayout()
	if err := tree.Validate(); err == nil {
		t.Fatal("Validate accepted descending variable indices")
	}
}

func TestTreeValidateToleratesRoundoff(t *testing.T) {
	// 0.1 * 10 does not sum to exactly 1 in floating point; the tolerance
	// must absorb that.
	root := &ScenarioNode{Name: "ROOT", CondProb: 1}
	for i := 0; i < 10; i++ {
		root.AddChild(&ScenarioNode{Name: string(rune('a' + i)), CondProb: 0.1})
	}
	tree := &Tree{Root: root}
	tree.BuildLayout()
	if err := tree.Validate(); err != nil {
		t.Fatalf("Validate rejected 10 x 0.1 children: %v", err)
	}
}

func TestScenarioValidate(t *testing.T) {
	tree := NewTwoStageTree(2)
	tests := []struct {
		name string
		scen *Scenario
		ok   bool
	}{
		{"complete", NewScenario("s1", 0.5, tree, struct{}{}), true},
		{"empty name", NewScenario("", 0.5, tree, struct{}{}), false},
		{"zero probability", NewScenario("s1", 0, tree, struct{}{}), false},
		{"probability above one", NewScenario("s1", 1.5, tree, struct{}{}), false},
		{"missing handle", NewScenario("s1", 0.5, tree, nil), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.scen.Validate()
			if tc.ok && err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("Validate accepted an incomplete scenario")
				}
				if !errors.Is(err, ErrModel) {
					t.Fatalf("error is %v, want ErrModel", err)
				}
			}
		})
	}
}

func TestScenarioValidateCatchesResizedVectors(t *testing.T) {
	tree := NewTwoStageTree(2)
	s := NewScenario("s1", 1, tree, struct{}{})
	s.Nonants = s.Nonants[:1]
	if err := s.Validate(); err == nil {
		t.Fatal("Validate accepted a truncated nonant vector")
	}
}

func TestRhoValidate(t *testing.T) {
	if err := NewRho(3, 1.5).Validate(); err != nil {
		t.Fatalf("Validate rejected a positive rho: %v", err)
	}
	bad := NewRho(3, 1.5)
	bad[1] = 0
	err := bad.Validate()
	if err == nil {
		t.Fatal("Validate accepted rho with a zero coefficient")
	}
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("error is %v, want ErrConfig", err)
	}
}

func TestRhoCloneIsIndependent(t *testing.T) {
	r := NewRho(2, 1)
	c := r.Clone()
	c[0] = 99
	if r[0] != 1 {
		t.Fatalf("mutating the clone changed the original: %v", r)
	}
}
