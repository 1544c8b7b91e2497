package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/layout"
)

// treeCommand creates the tree command for hierarchical drill-down views.
func (c *CLI) treeCommand() *cobra.Command {
	var (
		output string
		root   string
	)

	cmd := &cobra.Command{
		Use:   "tree [snapshot.json]",
		Short: "Build a hierarchical drill-down view rooted at one concept",
		Long: `Build a hierarchical drill-down view rooted at one concept.

The tree command picks a root (the most connected concept when --root is
not given), attaches its strongest neighbors as branches, and expands each
branch a few levels deep. Nodes report which neighbor tiers were left out,
so a renderer can mark them as expandable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTree(args[0], output, root)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.tree.json)")
	cmd.Flags().StringVar(&root, "root", "", "root concept (default: most connected)")

	return cmd
}

// runTree loads the snapshot, builds the tree, and writes it as JSON.
func (c *CLI) runTree(input, output, root string) error {
	snap, err := concept.ReadSnapshotFile(input)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", input, err)
	}

	tree := layout.BuildTree(snap, root)
	if tree == nil {
		printInfo("Snapshot has no concepts, nothing to show")
		return nil
	}

	outputPath := output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		base = strings.TrimSuffix(base, ".snapshot")
		outputPath = base + ".tree.json"
	}

	out, err := openOutput(outputPath)
	if err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}
	defer out.Close()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}

	printSuccess("Built tree rooted at %q", tree.Label)
	printFile(outputPath)
	printDetail("%d of %d concepts included", tree.Size(), len(snap.Entities))
	return nil
}
