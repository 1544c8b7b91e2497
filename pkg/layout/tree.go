package layout

import (
	"sort"

	"github.com/starchart-viz/starchart/pkg/concept"
)

// =============================================================================
// Hierarchical Tree View
// =============================================================================

// Tree bounds. The tree is a focused drill-down from one root, not a full
// graph rendering, so breadth and depth are capped.
const (
	MaxTreeBranches = 8
	MaxTreeChildren = 5
	MaxTreeDepth    = 3
)

// TreeNode is one node of a hierarchical view rooted at a single concept.
// Relation names the edge type linking the node to its parent; Reversed
// marks edges that point from the node back to the parent. The hidden
// flags report neighbor tiers left out of the tree, so a renderer can
// mark the node as expandable.
type TreeNode struct {
	ID              string       `json:"id"`
	Label           string       `json:"label"`
	Tier            concept.Tier `json:"tier"`
	Relation        string       `json:"relation,omitempty"`
	Reversed        bool         `json:"reversed,omitempty"`
	HiddenSecondary bool         `json:"hidden_secondary,omitempty"`
	HiddenTertiary  bool         `json:"hidden_tertiary,omitempty"`
	Children        []*TreeNode  `json:"children,omitempty"`
}

// BuildTree builds a depth-limited tree over the concept graph, rooted at
// rootID. An empty or unresolvable root falls back to the most connected
// entity. The root takes up to MaxTreeBranches direct neighbors ordered
// by connection strength; each deeper node takes up to MaxTreeChildren,
// down to MaxTreeDepth levels below the branches. Every entity appears
// at most once. A snapshot without entities yields nil.
func BuildTree(snap *concept.Snapshot, rootID string) *TreeNode {
	if len(snap.Entities) == 0 {
		return nil
	}

	out := make(map[string][]concept.Relation)
	in := make(map[string][]concept.Relation)
	for _, r := range snap.Relations {
		out[r.Source] = append(out[r.Source], r)
		in[r.Target] = append(in[r.Target], r)
	}
	degree := func(id string) int { return len(out[id]) + len(in[id]) }

	root := snap.Entity(resolveTreeRoot(snap, rootID, degree))
	tree := &TreeNode{ID: root.ID, Label: displayLabel(root), Tier: root.Layer}
	added := map[string]bool{root.ID: true}

	type link struct {
		id       string
		relation string
		reversed bool
	}

	// neighbors lists the unvisited entities one edge away, strongest
	// connections first, ID as the tie-break.
	neighbors := func(id string) []link {
		var ls []link
		for _, r := range out[id] {
			if !added[r.Target] {
				ls = append(ls, link{r.Target, r.Type, false})
			}
		}
		for _, r := range in[id] {
			if !added[r.Source] {
				ls = append(ls, link{r.Source, r.Type, true})
			}
		}
		sort.SliceStable(ls, func(i, j int) bool {
			di, dj := degree(ls[i].id), degree(ls[j].id)
			if di != dj {
				return di > dj
			}
			return ls[i].id < ls[j].id
		})
		return ls
	}

	attach := func(parent *TreeNode, limit int) {
		for _, l := range neighbors(parent.ID) {
			if len(parent.Children) >= limit {
				break
			}
			if added[l.id] {
				continue
			}
			added[l.id] = true
			e := snap.Entity(l.id)
			parent.Children = append(parent.Children, &TreeNode{
				ID:       e.ID,
				Label:    displayLabel(e),
				Tier:     e.Layer,
				Relation: l.relation,
				Reversed: l.reversed,
			})
		}
	}

	var expand func(n *TreeNode, depth int)
	expand = func(n *TreeNode, depth int) {
		if depth >= MaxTreeDepth {
			return
		}
		attach(n, MaxTreeChildren)
		for _, child := range n.Children {
			expand(child, depth+1)
		}
	}

	attach(tree, MaxTreeBranches)
	for _, branch := range tree.Children {
		expand(branch, 0)
	}

	// Flag hidden neighbors once the member set is final, so the flags
	// reflect the finished tree rather than insertion order.
	var flag func(n *TreeNode)
	flag = func(n *TreeNode) {
		mark := func(id string) {
			if added[id] {
				return
			}
			e := snap.Entity(id)
			if e == nil {
				return
			}
			switch e.Layer {
			case concept.TierSecondary:
				n.HiddenSecondary = true
			case concept.TierTertiary:
				n.HiddenTertiary = true
			}
		}
		for _, r := range out[n.ID] {
			mark(r.Target)
		}
		for _, r := range in[n.ID] {
			mark(r.Source)
		}
		for _, child := range n.Children {
			flag(child)
		}
	}
	flag(tree)

	return tree
}

// Size reports the number of nodes in the tree.
func (n *TreeNode) Size() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, child := range n.Children {
		total += child.Size()
	}
	return total
}

// resolveTreeRoot maps the requested root onto an entity ID, matching
// case-insensitively against IDs and variants. An empty or unknown root
// falls back to the most connected entity, ID as the tie-break.
func resolveTreeRoot(snap *concept.Snapshot, rootID string, degree func(string) int) string {
	if rootID != "" {
		for _, e := range snap.Entities {
			if e.HasVariant(rootID) {
				return e.ID
			}
		}
	}
	best := ""
	bestDeg := -1
	for _, e := range snap.Entities {
		d := degree(e.ID)
		if d > bestDeg || (d == bestDeg && e.ID < best) {
			best, bestDeg = e.ID, d
		}
	}
	return best
}
