package layout

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/starchart-viz/starchart/pkg/concept"
)

// =============================================================================
// Options
// =============================================================================

// Default layout constants. Sizes are in renderer units (the drawing surface
// scales them); coordinates live on the unit circle.
const (
	DefaultCurvature    = 0.2
	DefaultCurveSamples = 20
	DefaultMinNodeSize  = 20.0
	DefaultMaxNodeSize  = 50.0
)

// Options configures the layout engine. The zero value is usable: every
// field falls back to its default.
type Options struct {
	// Curvature is the perpendicular midpoint displacement as a fraction of
	// edge length. Doubled for edges whose reverse also exists, so
	// bidirectional pairs render as two distinct arcs.
	Curvature float64 `json:"curvature,omitempty"`

	// CurveSamples is the number of points sampled along each quadratic
	// Bézier, endpoints included.
	CurveSamples int `json:"curve_samples,omitempty"`

	// MinNodeSize and MaxNodeSize bound the score-driven node size.
	MinNodeSize float64 `json:"min_node_size,omitempty"`
	MaxNodeSize float64 `json:"max_node_size,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.Curvature == 0 {
		o.Curvature = DefaultCurvature
	}
	if o.CurveSamples < 2 {
		o.CurveSamples = DefaultCurveSamples
	}
	if o.MinNodeSize == 0 {
		o.MinNodeSize = DefaultMinNodeSize
	}
	if o.MaxNodeSize == 0 {
		o.MaxNodeSize = DefaultMaxNodeSize
	}
	return o
}

// =============================================================================
// Layout Engine
// =============================================================================

// Build lays out the requested subset of a concept graph and returns a
// renderer-agnostic scene.
//
// The subset lists the active entity IDs (one constellation, a detail-level
// filter, or nil for the whole graph). Edges are restricted to relations
// with both endpoints active. Nodes reachable over one master edge from an
// active node but not themselves active are reported as hidden, and the
// active endpoint is marked expandable.
//
// An empty active subset yields an empty scene; "nothing to show" is a
// legitimate terminal state, not an error.
func Build(snap *concept.Snapshot, scores map[string]concept.Score, subset []string, opts Options) *Scene {
	opts = opts.withDefaults()

	active := activeEntities(snap, subset)
	if len(active) == 0 {
		return &Scene{}
	}

	positions := placeNodes(active, scores)

	activeIDs := make(map[string]bool, len(active))
	for _, e := range active {
		activeIDs[e.ID] = true
	}

	var edges []concept.Relation
	present := make(map[string]bool)
	for _, r := range snap.Relations {
		if activeIDs[r.Source] && activeIDs[r.Target] {
			edges = append(edges, r)
			present[r.Source+"\x1f"+r.Target] = true
		}
	}

	scene := &Scene{}
	maxScore := maxActiveScore(active, scores)
	degrees := concept.Degrees(edges)
	hidden, hasHidden := hiddenNeighbors(snap, activeIDs)

	for _, e := range active {
		pos := positions[e.ID]
		scene.Nodes = append(scene.Nodes, Node{
			ID:         e.ID,
			X:          pos.X,
			Y:          pos.Y,
			Size:       nodeSize(scores[e.ID].Value, maxScore, opts),
			ColorTier:  e.Layer,
			Label:      displayLabel(e),
			HoverText:  nodeHoverText(e, degrees[e.ID]),
			Expandable: hasHidden[e.ID],
		})
	}

	for _, r := range edges {
		curvature := opts.Curvature
		if present[r.Target+"\x1f"+r.Source] {
			curvature *= 2
		}
		from, to := positions[r.Source], positions[r.Target]
		polyline := curveEdge(from, to, curvature, opts.CurveSamples)
		scene.Edges = append(scene.Edges, Edge{
			Source:      r.Source,
			Target:      r.Target,
			Polyline:    polyline,
			Label:       r.Type,
			LabelAnchor: bezierPoint(from, controlPoint(from, to, curvature), to, 0.5),
			HoverText:   edgeHoverText(snap, r),
		})
	}

	scene.Hidden = hidden
	return scene
}

// activeEntities resolves the subset against the snapshot, preserving the
// snapshot's entity order. A nil subset selects every entity.
func activeEntities(snap *concept.Snapshot, subset []string) []*concept.Entity {
	if subset == nil {
		return snap.Entities
	}
	want := make(map[string]bool, len(subset))
	for _, id := range subset {
		want[concept.Canonicalize(id)] = true
	}
	var active []*concept.Entity
	for _, e := range snap.Entities {
		if want[e.ID] {
			active = append(active, e)
		}
	}
	return active
}

// =============================================================================
// Node Placement
// =============================================================================

// placeNodes arranges entities on the unit circle.
//
// One node sits at the origin; two nodes sit at (-1,0) and (1,0). With
// three or more, the hub (the highest-scoring priority node, or the
// highest-scoring node when no priority node is active) is pinned at the
// origin and the remaining n-1 nodes are spread evenly at angles
// 2π·i/(n-1), ordered by descending score with ties broken by ID.
func placeNodes(active []*concept.Entity, scores map[string]concept.Score) map[string]Point {
	positions := make(map[string]Point, len(active))

	switch len(active) {
	case 0:
		return positions
	case 1:
		positions[active[0].ID] = Point{0, 0}
		return positions
	case 2:
		ordered := orderByScore(active, scores)
		positions[ordered[0].ID] = Point{-1, 0}
		positions[ordered[1].ID] = Point{1, 0}
		return positions
	}

	ordered := orderByScore(active, scores)

	hub := ordered[0]
	for _, e := range ordered {
		if e.Layer == concept.TierPriority {
			hub = e
			break
		}
	}
	positions[hub.ID] = Point{0, 0}

	i := 0
	n := len(ordered) - 1
	for _, e := range ordered {
		if e.ID == hub.ID {
			continue
		}
		angle := 2 * math.Pi * float64(i) / float64(n)
		positions[e.ID] = Point{X: math.Cos(angle), Y: math.Sin(angle)}
		i++
	}
	return positions
}

// orderByScore sorts a copy of the entities by descending score, ties by ID.
func orderByScore(active []*concept.Entity, scores map[string]concept.Score) []*concept.Entity {
	ordered := make([]*concept.Entity, len(active))
	copy(ordered, active)
	sort.Slice(ordered, func(i, j int) bool {
		si, sj := scores[ordered[i].ID].Value, scores[ordered[j].ID].Value
		if si != sj {
			return si > sj
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// =============================================================================
// Edge Geometry
// =============================================================================

// controlPoint displaces the segment midpoint perpendicular to the segment
// by curvature·length, yielding the quadratic Bézier control point.
func controlPoint(from, to Point, curvature float64) Point {
	mid := Point{X: (from.X + to.X) / 2, Y: (from.Y + to.Y) / 2}

	dx, dy := to.X-from.X, to.Y-from.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return mid
	}

	// Unit perpendicular of (dx, dy).
	px, py := -dy/length, dx/length
	offset := curvature * length
	return Point{X: mid.X + offset*px, Y: mid.Y + offset*py}
}

// bezierPoint evaluates the quadratic Bézier at parameter t.
func bezierPoint(from, ctrl, to Point, t float64) Point {
	u := 1 - t
	return Point{
		X: u*u*from.X + 2*u*t*ctrl.X + t*t*to.X,
		Y: u*u*from.Y + 2*u*t*ctrl.Y + t*t*to.Y,
	}
}

// curveEdge samples the curve between two placed points at a fixed
// resolution, endpoints included.
func curveEdge(from, to Point, curvature float64, samples int) []Point {
	ctrl := controlPoint(from, to, curvature)
	polyline := make([]Point, samples)
	for i := 0; i < samples; i++ {
		t := float64(i) / float64(samples-1)
		polyline[i] = bezierPoint(from, ctrl, to, t)
	}
	return polyline
}

// =============================================================================
// Derived Attributes
// =============================================================================

func maxActiveScore(active []*concept.Entity, scores map[string]concept.Score) float64 {
	var max float64
	for _, e := range active {
		if v := scores[e.ID].Value; v > max {
			max = v
		}
	}
	return max
}

// nodeSize maps a score onto the configured size range, clamped.
func nodeSize(score, maxScore float64, opts Options) float64 {
	if maxScore <= 0 {
		return opts.MinNodeSize
	}
	size := opts.MinNodeSize + (score/maxScore)*(opts.MaxNodeSize-opts.MinNodeSize)
	return math.Min(math.Max(size, opts.MinNodeSize), opts.MaxNodeSize)
}

// displayLabel prefers the first-seen surface form over the lowercase ID.
func displayLabel(e *concept.Entity) string {
	if len(e.Variants) > 0 {
		return e.Variants[0]
	}
	return e.ID
}

func nodeHoverText(e *concept.Entity, degree int) string {
	return fmt.Sprintf("%s — frequency %d, sections %d, connections %d, layer %s",
		displayLabel(e), e.Frequency, e.SectionCount, degree, e.Layer)
}

func edgeHoverText(snap *concept.Snapshot, r concept.Relation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", entityLabel(snap, r.Source), r.Type, entityLabel(snap, r.Target))
	if r.Evidence != "" {
		fmt.Fprintf(&b, " — %s", r.Evidence)
	}
	return b.String()
}

func entityLabel(snap *concept.Snapshot, id string) string {
	if e := snap.Entity(id); e != nil {
		return displayLabel(e)
	}
	return id
}

// =============================================================================
// Progressive Disclosure
// =============================================================================

// hiddenNeighbors finds nodes reachable over one master edge from the
// active subset but not themselves active. Returns the hidden nodes in
// snapshot order and the set of active IDs that border at least one.
func hiddenNeighbors(snap *concept.Snapshot, active map[string]bool) ([]HiddenNode, map[string]bool) {
	hiddenIDs := make(map[string]bool)
	hasHidden := make(map[string]bool)

	for _, r := range snap.Relations {
		switch {
		case active[r.Source] && !active[r.Target]:
			hiddenIDs[r.Target] = true
			hasHidden[r.Source] = true
		case active[r.Target] && !active[r.Source]:
			hiddenIDs[r.Source] = true
			hasHidden[r.Target] = true
		}
	}

	var hidden []HiddenNode
	for _, e := range snap.Entities {
		if hiddenIDs[e.ID] {
			hidden = append(hidden, HiddenNode{ID: e.ID, Label: displayLabel(e), ColorTier: e.Layer})
		}
	}
	return hidden, hasHidden
}
