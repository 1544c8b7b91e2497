package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/pipeline"
)

// constellationsCommand creates the constellations command for grouping concepts.
func (c *CLI) constellationsCommand() *cobra.Command {
	var (
		output  string
		noCache bool
		offline bool
		count   int
		model   string
	)

	cmd := &cobra.Command{
		Use:   "constellations [snapshot.json]",
		Short: "Group a snapshot's concepts into named constellations",
		Long: `Group a snapshot's concepts into named constellations.

The constellations command asks a language model to propose thematic groups
for the most important concepts in a snapshot. Proposals are validated
against the graph: groups whose members cannot be resolved, or with fewer
than three resolvable members, are dropped, and undersized groups are topped
up with graph neighbors.

When no OPENAI_API_KEY is set, or the model call fails, grouping falls back
to connectivity ranking: the best-connected concepts form a "Core Concepts"
group and the next tier a "Supporting Concepts" group.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConstellations(cmd.Context(), args[0], output, noCache, offline, count, model)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.constellations.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the model call and use the connectivity fallback")
	cmd.Flags().IntVar(&count, "count", 0, "requested number of groups (default 4)")
	cmd.Flags().StringVar(&model, "model", "", "chat model for grouping (default gpt-4o-mini)")

	return cmd
}

// runConstellations loads the snapshot, groups it, and writes the result.
func (c *CLI) runConstellations(ctx context.Context, input, output string, noCache, offline bool, count int, model string) error {
	snap, err := concept.ReadSnapshotFile(input)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", input, err)
	}

	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := pipeline.Options{
		ConstellationCount: count,
		ClusterModel:       model,
		Logger:             c.Logger,
		Clusterer:          newClusterer(cfg, model),
	}
	if count == 0 {
		opts.ConstellationCount = cfg.Pipeline.ConstellationCount
	}
	if offline {
		opts.Clusterer = nil
	} else if opts.Clusterer == nil {
		printWarning("No %s set, using connectivity fallback", apiKeyEnv)
	}

	spinner := newSpinnerWithContext(ctx, "Grouping concepts...")
	spinner.Start()

	groups, cacheHit, err := runner.ConstellationsWithCacheInfo(ctx, snap, opts)
	if err != nil {
		spinner.StopWithError("Grouping failed")
		return fmt.Errorf("group concepts: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	outputPath := output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		base = strings.TrimSuffix(base, ".snapshot")
		outputPath = base + ".constellations.json"
	}

	out, err := openOutput(outputPath)
	if err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}
	defer out.Close()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(groups); err != nil {
		return fmt.Errorf("encode constellations: %w", err)
	}

	printSuccess("Grouped into %d constellations", len(groups))
	printFile(outputPath)
	printStats(len(snap.Entities), 0, cacheHit)
	for _, g := range groups {
		printDetail("%s (%d concepts)", g.Name, len(g.Concepts))
	}

	return nil
}
