package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/pipeline"
)

// buildCommand creates the build command for reconciling extractions into snapshots.
func (c *CLI) buildCommand() *cobra.Command {
	var (
		output  string
		noCache bool
		refresh bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "build [extraction.json]",
		Short: "Build a concept graph snapshot from a document extraction",
		Long: `Build a concept graph snapshot from a document extraction.

The build command takes an extraction file (per-section concept mentions and
relations, as produced by an upstream document analyzer) and reconciles it
into a snapshot: variants of the same concept are merged, duplicate relations
collapse with local evidence winning over global, and every concept is scored
and assigned an importance tier.

Pass "-" to read the extraction from stdin. Results are cached locally for
faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd.Context(), args[0], opts, output, noCache, refresh)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.snapshot.json, stdout for stdin input)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even if a cached snapshot exists")
	cmd.Flags().Float64Var(&opts.Weights.Frequency, "frequency-weight", 0, "frequency weight for importance scoring (default 0.6)")
	cmd.Flags().Float64Var(&opts.Weights.SectionCount, "section-weight", 0, "section spread weight for importance scoring (default 0.4)")

	return cmd
}

// runBuild loads the extraction, reconciles it, and writes the snapshot.
func (c *CLI) runBuild(ctx context.Context, input string, opts pipeline.Options, output string, noCache, refresh bool) error {
	extraction, err := readExtraction(input)
	if err != nil {
		return fmt.Errorf("load extraction %s: %w", input, err)
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

	opts.Extraction = extraction
	opts.Refresh = refresh
	opts.Logger = c.Logger
	applyConfigWeights(&opts, cfg)

	prog := newProgress(c.Logger)
	snap, cacheHit, err := runner.BuildWithCacheInfo(ctx, opts)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}
	prog.done(fmt.Sprintf("Built %d concepts", len(snap.Entities)))

	outputPath := output
	if outputPath == "" && input != "-" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		outputPath = base + ".snapshot.json"
	}

	if outputPath == "" {
		return concept.WriteSnapshot(snap, os.Stdout)
	}
	if err := concept.WriteSnapshotFile(snap, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Snapshot complete")
	printFile(outputPath)
	printStats(len(snap.Entities), len(snap.Relations), cacheHit)
	printNewline()
	printNextStep("Layout", "starchart layout "+outputPath)

	return nil
}

// readExtraction reads an extraction from a file, or stdin when path is "-".
func readExtraction(path string) (*concept.Extraction, error) {
	if path == "-" {
		return concept.ReadExtraction(os.Stdin)
	}
	return concept.ReadExtractionFile(path)
}

// applyConfigWeights fills unset scoring weights from config.
func applyConfigWeights(opts *pipeline.Options, cfg *Config) {
	if opts.Weights.Frequency == 0 {
		opts.Weights.Frequency = cfg.Pipeline.FrequencyWeight
	}
	if opts.Weights.SectionCount == 0 {
		opts.Weights.SectionCount = cfg.Pipeline.SectionWeight
	}
}
