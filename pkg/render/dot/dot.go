// Package dot renders laid-out scenes to Graphviz DOT and SVG.
//
// Positions computed by the layout engine are pinned, so Graphviz only
// draws; it never re-arranges the scene.
package dot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/errors"
	"github.com/starchart-viz/starchart/pkg/layout"
)

// Options configures DOT rendering.
type Options struct {
	// Detailed includes hover text in node labels.
	// When false, only the display label is shown.
	Detailed bool

	// Scale multiplies scene coordinates into Graphviz points.
	// Defaults to 3 inches per unit-circle radius.
	Scale float64
}

// tierColors maps importance tiers to fill colors.
var tierColors = map[concept.Tier]string{
	concept.TierPriority:  "gold",
	concept.TierSecondary: "lightskyblue",
	concept.TierTertiary:  "lightgrey",
}

// ToDOT converts a scene to Graphviz DOT with pinned positions.
// The resulting DOT string can be rendered using [RenderSVG].
func ToDOT(scene *layout.Scene, opts Options) string {
	scale := opts.Scale
	if scale == 0 {
		scale = 3
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fontsize=12];\n")
	buf.WriteString("  edge [fontsize=9, color=grey40];\n")
	buf.WriteString("\n")

	for _, n := range scene.Nodes {
		label := n.Label
		if opts.Detailed {
			label = n.Label + "\n" + n.HoverText
		}
		attrs := []string{
			fmt.Sprintf("label=%q", label),
			fmt.Sprintf("pos=\"%.3f,%.3f!\"", n.X*scale, n.Y*scale),
			fmt.Sprintf("width=%.2f", n.Size/50),
			fmt.Sprintf("fillcolor=%s", tierColors[n.ColorTier]),
		}
		if n.Expandable {
			attrs = append(attrs, "peripheries=2")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range scene.Edges {
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.Source, e.Target, e.Label)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
