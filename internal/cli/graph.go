package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/render"
	"github.com/larderlab/larder/pkg/source"
	"github.com/larderlab/larder/pkg/stage"
)

// graphCommand creates the graph command rendering ontology structure.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		sourceDir string
		output    string
		svg       bool
	)

	cmd := &cobra.Command{
		Use:   "graph [taxa|parts|stages]",
		Short: "Render the taxonomy, part hierarchy, or pipeline as a graph",
		Long: `Render the taxonomy, part hierarchy, or pipeline as a graph.

Emits Graphviz DOT by default; --svg renders through the embedded
Graphviz engine instead. Without --output the result goes to stdout.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{render.KindTaxa, render.KindParts, render.KindStages},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), args[0], sourceDir, output, svg)
		},
	}

	cmd.Flags().StringVarP(&sourceDir, "source", "s", defaultSourceDir, "ontology source directory")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&svg, "svg", false, "render SVG instead of DOT")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, kind, sourceDir, output string, svg bool) error {
	dot, err := buildDOT(kind, sourceDir)
	if err != nil {
		return err
	}

	data := []byte(dot)
	if svg {
		spinner := newSpinner(ctx, "Rendering SVG...")
		spinner.Start()
		data, err = render.RenderSVG(ctx, dot)
		if err != nil {
			spinner.StopWithError("Rendering failed")
			return fmt.Errorf("render svg: %w", err)
		}
		spinner.Stop()
	}

	if output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printFile(output)
	return nil
}

// buildDOT produces the DOT source for the requested graph kind.
func buildDOT(kind, sourceDir string) (string, error) {
	if kind == render.KindStages {
		return render.StagesDOT(stage.Stages()), nil
	}

	tree, err := source.Load(sourceDir)
	if err != nil {
		return "", fmt.Errorf("load source tree: %w", err)
	}
	switch kind {
	case render.KindTaxa:
		taxa := make([]ontology.Taxon, 0, len(tree.Taxa))
		for _, rec := range tree.Taxa {
			taxa = append(taxa, rec.Value)
		}
		return render.TaxaDOT(taxa), nil
	case render.KindParts:
		return render.PartsDOT(tree.Parts), nil
	default:
		return "", fmt.Errorf("unknown graph kind %q", kind)
	}
}
