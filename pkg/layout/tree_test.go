package layout

import (
	"fmt"
	"testing"

	"github.com/starchart-viz/starchart/pkg/concept"
)

func treeChild(t *testing.T, n *TreeNode, id string) *TreeNode {
	t.Helper()
	for _, child := range n.Children {
		if child.ID == id {
			return child
		}
	}
	t.Fatalf("no child %q under %q", id, n.ID)
	return nil
}

func TestBuildTreeRootFallsBackToMostConnected(t *testing.T) {
	snap := testSnapshot(
		[]*concept.Entity{
			entity("hub", concept.TierPriority, 5, 2),
			entity("spoke one", concept.TierSecondary, 3, 1),
			entity("spoke two", concept.TierSecondary, 2, 1),
		},
		[]concept.Relation{
			relation("hub", "spoke one", "contains"),
			relation("hub", "spoke two", "contains"),
		},
	)

	tree := BuildTree(snap, "")
	if tree.ID != "hub" {
		t.Errorf("root = %q, want most connected entity %q", tree.ID, "hub")
	}

	// An unresolvable root falls back the same way.
	tree = BuildTree(snap, "no such concept")
	if tree.ID != "hub" {
		t.Errorf("root = %q, want fallback to %q", tree.ID, "hub")
	}
}

func TestBuildTreeResolvesRootByVariant(t *testing.T) {
	e := entity("neural network", concept.TierPriority, 5, 2)
	e.Variants = append(e.Variants, "NN")
	snap := testSnapshot(
		[]*concept.Entity{e, entity("neuron", concept.TierSecondary, 3, 1)},
		[]concept.Relation{relation("neural network", "neuron", "consists of")},
	)

	tree := BuildTree(snap, "nn")
	if tree.ID != "neural network" {
		t.Errorf("root = %q, want variant match %q", tree.ID, "neural network")
	}
}

func TestBuildTreeMarksReversedEdges(t *testing.T) {
	snap := testSnapshot(
		[]*concept.Entity{
			entity("hub", concept.TierPriority, 5, 2),
			entity("downstream", concept.TierSecondary, 2, 1),
			entity("upstream", concept.TierSecondary, 2, 1),
		},
		[]concept.Relation{
			relation("hub", "downstream", "contains"),
			relation("upstream", "hub", "feeds"),
		},
	)

	tree := BuildTree(snap, "hub")
	down := treeChild(t, tree, "downstream")
	if down.Relation != "contains" || down.Reversed {
		t.Errorf("downstream edge = (%q, reversed=%v), want (contains, false)", down.Relation, down.Reversed)
	}
	up := treeChild(t, tree, "upstream")
	if up.Relation != "feeds" || !up.Reversed {
		t.Errorf("upstream edge = (%q, reversed=%v), want (feeds, true)", up.Relation, up.Reversed)
	}
}

func TestBuildTreeBranchLimitSetsHiddenFlags(t *testing.T) {
	entities := []*concept.Entity{entity("hub", concept.TierPriority, 10, 3)}
	var relations []concept.Relation
	for i := 1; i <= MaxTreeBranches; i++ {
		id := fmt.Sprintf("kept %02d", i)
		entities = append(entities, entity(id, concept.TierSecondary, 2, 1))
		relations = append(relations, relation("hub", id, "contains"))
	}
	// Two overflow neighbors, one per hidden tier. Their IDs sort after
	// the kept ones, so the branch cut drops exactly these.
	entities = append(entities,
		entity("zz hidden secondary", concept.TierSecondary, 1, 1),
		entity("zz hidden tertiary", concept.TierTertiary, 1, 1),
	)
	relations = append(relations,
		relation("hub", "zz hidden secondary", "contains"),
		relation("hub", "zz hidden tertiary", "contains"),
	)

	tree := BuildTree(testSnapshot(entities, relations), "hub")
	if len(tree.Children) != MaxTreeBranches {
		t.Fatalf("len(Children) = %d, want %d", len(tree.Children), MaxTreeBranches)
	}
	if !tree.HiddenSecondary || !tree.HiddenTertiary {
		t.Errorf("hidden flags = (%v, %v), want both true",
			tree.HiddenSecondary, tree.HiddenTertiary)
	}
	for _, child := range tree.Children {
		if child.HiddenSecondary || child.HiddenTertiary {
			t.Errorf("leaf %q should not report hidden neighbors", child.ID)
		}
	}
}

func TestBuildTreeDepthLimit(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	var entities []*concept.Entity
	var relations []concept.Relation
	for i, id := range ids {
		entities = append(entities, entity(id, concept.TierTertiary, 1, 1))
		if i > 0 {
			relations = append(relations, relation(ids[i-1], id, "leads to"))
		}
	}

	tree := BuildTree(testSnapshot(entities, relations), "a")

	// Root, one branch, then MaxTreeDepth levels below it.
	if got, want := tree.Size(), 2+MaxTreeDepth; got != want {
		t.Errorf("Size() = %d, want %d", got, want)
	}
	depth := 0
	for n := tree; len(n.Children) > 0; n = n.Children[0] {
		depth++
	}
	if depth != 1+MaxTreeDepth {
		t.Errorf("chain depth = %d, want %d", depth, 1+MaxTreeDepth)
	}
}

func TestBuildTreeEachEntityAppearsOnce(t *testing.T) {
	// Diamond: both paths reach "sink", which must appear only once.
	snap := testSnapshot(
		[]*concept.Entity{
			entity("root", concept.TierPriority, 5, 2),
			entity("left", concept.TierSecondary, 2, 1),
			entity("right", concept.TierSecondary, 2, 1),
			entity("sink", concept.TierTertiary, 1, 1),
		},
		[]concept.Relation{
			relation("root", "left", "contains"),
			relation("root", "right", "contains"),
			relation("left", "sink", "leads to"),
			relation("right", "sink", "leads to"),
		},
	)

	tree := BuildTree(snap, "root")
	if got := tree.Size(); got != 4 {
		t.Errorf("Size() = %d, want 4", got)
	}
	seen := make(map[string]int)
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		seen[n.ID]++
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(tree)
	for id, count := range seen {
		if count != 1 {
			t.Errorf("entity %q appears %d times", id, count)
		}
	}
}

func TestBuildTreeEmptySnapshot(t *testing.T) {
	tree := BuildTree(testSnapshot(nil, nil), "")
	if tree != nil {
		t.Errorf("expected nil tree for empty snapshot, got %+v", tree)
	}
}
