// Package layout computes deterministic 2-D scene descriptions for concept
// graphs: circular node placement, curved edge geometry, label anchors, and
// progressive-disclosure metadata.
//
// The engine is a pure function of its inputs. Given a fixed entity/edge
// subset and fixed constants, two invocations produce bit-identical
// coordinates, which keeps snapshots and tests reproducible. It is a fast
// O(n) heuristic, not a force-directed solver: the star topology keeps
// nodes angularly separated, so no overlap-resolution pass is needed.
//
// The output is renderer-agnostic; the interactive drawing surface binds
// it to an actual chart elsewhere.
package layout

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/starchart-viz/starchart/pkg/concept"
)

// =============================================================================
// Scene - Renderer-Agnostic Output
// =============================================================================

// Point is a 2-D coordinate. Serialized as a two-element array so polylines
// stay compact.
type Point struct {
	X float64
	Y float64
}

// MarshalJSON encodes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON decodes a two-element array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var coords [2]float64
	if err := json.Unmarshal(data, &coords); err != nil {
		return err
	}
	p.X, p.Y = coords[0], coords[1]
	return nil
}

// Node is one laid-out entity. Expandable marks an active node with at
// least one neighbor outside the active subset, so the renderer can draw
// an affordance marker without any graph knowledge of its own.
type Node struct {
	ID         string       `json:"id"`
	X          float64      `json:"x"`
	Y          float64      `json:"y"`
	Size       float64      `json:"size"`
	ColorTier  concept.Tier `json:"color_tier"`
	Label      string       `json:"label"`
	HoverText  string       `json:"hover_text,omitempty"`
	Expandable bool         `json:"expandable,omitempty"`
}

// Edge is one laid-out relation: a polyline sampled from a quadratic
// Bézier, plus a label anchored at the curve's parametric midpoint.
type Edge struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Polyline    []Point `json:"polyline"`
	Label       string  `json:"label,omitempty"`
	LabelAnchor Point   `json:"label_anchor"`
	HoverText   string  `json:"hover_text,omitempty"`
}

// HiddenNode is a node reachable over one master edge from the active
// subset but not itself active. Its existence is known; it has no
// coordinates until the consumer expands it.
type HiddenNode struct {
	ID        string       `json:"id"`
	Label     string       `json:"label"`
	ColorTier concept.Tier `json:"color_tier"`
}

// Scene is the complete layout output for one active subset.
type Scene struct {
	Nodes  []Node       `json:"nodes"`
	Edges  []Edge       `json:"edges"`
	Hidden []HiddenNode `json:"hidden,omitempty"`
}

// Empty reports whether the scene has nothing to draw.
func (s *Scene) Empty() bool {
	return len(s.Nodes) == 0
}

// =============================================================================
// Scene Serialization API
// =============================================================================

// MarshalScene serializes a scene to pretty-printed JSON bytes.
func MarshalScene(s *Scene) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalScene deserializes JSON bytes into a Scene.
func UnmarshalScene(data []byte) (*Scene, error) {
	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal scene: %w", err)
	}
	return &s, nil
}

// WriteSceneFile writes a scene to a JSON file.
func WriteSceneFile(s *Scene, path string) error {
	data, err := MarshalScene(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadSceneFile reads a scene from a JSON file.
func ReadSceneFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return UnmarshalScene(data)
}
