package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/errors"
	"github.com/starchart-viz/starchart/pkg/layout"
	"github.com/starchart-viz/starchart/pkg/pipeline"
	"github.com/starchart-viz/starchart/pkg/render/dot"
)

// layoutOpts holds the command-line flags for the layout command.
type layoutOpts struct {
	output   string   // output file path
	detail   string   // detail level: summary, intermediate, detailed
	subset   []string // explicit concept subset (overrides detail filtering)
	format   string   // output format: json, dot, svg
	noCache  bool     // disable caching
	detailed bool     // include hover text in dot/svg labels
}

// validLayoutFormats is the set of supported layout output formats.
var validLayoutFormats = map[string]bool{"json": true, "dot": true, "svg": true}

// layoutCommand creates the layout command for computing scene geometry.
func (c *CLI) layoutCommand() *cobra.Command {
	opts := layoutOpts{
		detail: string(pipeline.DefaultDetail),
		format: "json",
	}
	pipeOpts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "layout [snapshot.json]",
		Short: "Compute a hub-and-satellite scene from a snapshot",
		Long: `Compute a hub-and-satellite scene from a concept graph snapshot.

The layout command takes a snapshot file (produced by 'build') and places
the selected concepts on a unit-circle constellation: the most important
concept at the center, the rest spread evenly around it, with curved edges
between related concepts.

The --detail flag selects how much of the graph to show (summary shows only
priority concepts, intermediate adds secondary, detailed shows everything).
Use --subset to name an explicit set of concepts instead; neighbors that fall
outside the view are reported as hidden so a UI can offer expansion.

Output is a scene JSON by default; -f dot emits Graphviz DOT with pinned
positions, -f svg renders it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validLayoutFormats[opts.format] {
				return fmt.Errorf("invalid format: %s (must be 'json', 'dot', or 'svg')", opts.format)
			}
			return c.runLayout(cmd.Context(), args[0], pipeOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <input>.scene.<format>)")
	cmd.Flags().StringVarP(&opts.detail, "detail", "d", opts.detail, "detail level: summary, intermediate, detailed")
	cmd.Flags().StringSliceVar(&opts.subset, "subset", nil, "explicit concept subset (comma-separated labels)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: json (default), dot, svg")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include hover text in dot/svg output")
	cmd.Flags().Float64Var(&pipeOpts.Layout.Curvature, "curvature", 0, "edge curve strength (default 0.2)")

	return cmd
}

// runLayout loads the snapshot, computes the scene, and writes output.
func (c *CLI) runLayout(ctx context.Context, input string, pipeOpts pipeline.Options, opts layoutOpts) error {
	snap, err := concept.ReadSnapshotFile(input)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", input, err)
	}

	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runner, err := c.newRunner(ctx, cfg, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	pipeOpts.Detail = opts.detail
	pipeOpts.Subset = opts.subset
	pipeOpts.Logger = c.Logger
	applyConfigWeights(&pipeOpts, cfg)

	weights := pipeOpts.Weights
	if weights == (concept.Weights{}) {
		weights = concept.DefaultWeights
	}
	scores := concept.Classify(snap.Entities, weights)

	scene, cacheHit, err := runner.LayoutWithCacheInfo(ctx, snap, scores, pipeOpts)
	if err != nil {
		return fmt.Errorf("compute layout: %w", err)
	}

	outputPath := opts.output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		base = strings.TrimSuffix(base, ".snapshot")
		outputPath = base + ".scene." + opts.format
	}

	if err := writeScene(scene, opts.format, opts.detailed, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	printStats(len(scene.Nodes), len(scene.Edges), cacheHit)
	if len(scene.Hidden) > 0 {
		printDetail("%d hidden neighbors (expand with --detail or --subset)", len(scene.Hidden))
	}

	return nil
}

// writeScene writes a scene in the requested format.
func writeScene(scene *layout.Scene, format string, detailed bool, path string) error {
	switch format {
	case "json":
		return layout.WriteSceneFile(scene, path)
	case "dot":
		out, err := openOutput(path)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = out.Write([]byte(dot.ToDOT(scene, dot.Options{Detailed: detailed})))
		return err
	case "svg":
		svg, err := dot.RenderSVG(dot.ToDOT(scene, dot.Options{Detailed: detailed}))
		if err != nil {
			return err
		}
		out, err := openOutput(path)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = out.Write(svg)
		return err
	default:
		return errors.New(errors.ErrCodeUnsupported, "unsupported scene format %q", format)
	}
}
