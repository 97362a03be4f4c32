package model

import (
	"fmt"
	"math"
)

// ProbabilityTolerance bounds how far the children of a node may drift from
// summing to exactly 1 before the tree is rejected.
const ProbabilityTolerance = 1e-9

// ScenarioNode is one node of the stage tree. Variables listed in VarIndices
// are nonanticipative at this node: every scenario passing through the node
// must agree on their values in a consensus solution.
type ScenarioNode struct {
	Name string

	// Parent is nil for the root. Children are ordered; their conditional
	// probabilities must sum to 1.
	Parent   *ScenarioNode
	Children []*ScenarioNode

	// CondProb is the probability of reaching this node given its parent.
	// The root carries 1.
	CondProb float64

	// VarIndices are the model-level indices of the variables that are
	// nonanticipative at this node, in ascending order.
	VarIndices []int
}

// AddChild appends a child node and wires its parent pointer.
func (n *ScenarioNode) AddChild(child *ScenarioNode) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Tree is a stage tree rooted at a single node named "ROOT" by convention.
type Tree struct {
	Root *ScenarioNode

	// offsets maps node name to the flat offset of its first variable in the
	// nonant layout. Built by BuildLayout.
	offsets map[string]int
	numVars int
}

// NewTwoStageTree builds the degenerate tree used by two-stage problems:
// a single ROOT node owning the first numVars variable indices.
func NewTwoStageTree(numVars int) *Tree {
	idx := make([]int, numVars)
	for i := range idx {
		idx[i] = i
	}
	t := &Tree{Root: &ScenarioNode{Name: "ROOT", CondProb: 1, VarIndices: idx}}
	t.BuildLayout()
	return t
}

// BuildLayout assigns every node a contiguous range in the flat nonant
// vector, root first, then children in order. It must be called once after
// the tree is fully constructed and before Offset or NumVars are used.
func (t *Tree) BuildLayout() {
	t.offsets = make(map[string]int)
	t.numVars = 0
	var walk func(n *ScenarioNode)
	walk = func(n *ScenarioNode) {
		t.offsets[n.Name] = t.numVars
		t.numVars += len(n.VarIndices)
		for _, c := range n.Children {
			walk(c)
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
}

// NumVars returns the total number of nonanticipative variables in the tree.
func (t *Tree) NumVars() int { return t.numVars }

// Offset returns the flat offset of the named node's first variable and
// whether the node exists in the layout.
func (t *Tree) Offset(nodeName string) (int, bool) {
	off, ok := t.offsets[nodeName]
	return off, ok
}

// Node returns the named node, or nil if absent.
func (t *Tree) Node(name string) *ScenarioNode {
	var found *ScenarioNode
	var walk func(n *ScenarioNode)
	walk = func(n *ScenarioNode) {
		if found != nil {
			return
		}
		if n.Name == name {
			found = n
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
	return found
}

// Validate checks the structural invariants of the tree: a present root with
// conditional probability 1, every interior node's children summing to 1,
// all conditional probabilities in (0, 1], and non-empty variable sets only
// on nodes that declare them in ascending order.
func (t *Tree) Validate() error {
	if t.Root == nil {
		return fmt.Errorf("%w: stage tree has no root", ErrModel)
	}
	if math.Abs(t.Root.CondProb-1) > ProbabilityTolerance {
		return fmt.Errorf("%w: root conditional probability is %g, want 1", ErrModel, t.Root.CondProb)
	}
	var walk func(n *ScenarioNode) error
	walk = func(n *ScenarioNode) error {
		if n.CondProb <= 0 || n.CondProb > 1 {
			return fmt.Errorf("%w: node %q conditional probability %g outside (0,1]", ErrModel, n.Name, n.CondProb)
		}
		for i := 1; i < len(n.VarIndices); i++ {
			if n.VarIndices[i] <= n.VarIndices[i-1] {
				return fmt.Errorf("%w: node %q variable indices not strictly ascending", ErrModel, n.Name)
			}
		}
		if len(n.Children) > 0 {
			sum := 0.0
			for _, c := range n.Children {
				sum += c.CondProb
			}
			if math.Abs(sum-1) > ProbabilityTolerance {
				return fmt.Errorf("%w: children of node %q have probability mass %g, want 1", ErrModel, n.Name, sum)
			}
		}
		for _, c := range n.Children {
			if c.Parent != n {
				return fmt.Errorf("%w: node %q has a child %q with a mismatched parent pointer", ErrModel, n.Name, c.Name)
			}
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(t.Root)
}
