package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/larderlab/larder/pkg/lint"
	"github.com/larderlab/larder/pkg/source"
)

// validateCommand creates the validate command linting the source tree.
func (c *CLI) validateCommand() *cobra.Command {
	var sourceDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Lint the ontology source tree without building",
		Long: `Lint the ontology source tree without building.

Runs the full schema and cross-reference validator: id grammar, rank
ladders, registry membership, dangling references, cycles, and parameter
declarations. Every finding is printed; error-severity findings make the
command fail.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(sourceDir)
		},
	}

	cmd.Flags().StringVarP(&sourceDir, "source", "s", defaultSourceDir, "ontology source directory")

	return cmd
}

func (c *CLI) runValidate(sourceDir string) error {
	tree, err := source.Load(sourceDir)
	if err != nil {
		return fmt.Errorf("load source tree: %w", err)
	}

	res := lint.Validate(tree)
	for _, f := range res.Findings {
		if f.Severity == lint.SeverityError {
			printError("%s", f.String())
		} else {
			printWarning("%s", f.String())
		}
	}

	if !res.Passed() {
		return fmt.Errorf("%d validation errors", len(res.Errors()))
	}

	printSuccess("Source tree is valid (%d taxa, %d parts, %d transforms)",
		len(tree.Taxa), len(tree.Parts), len(tree.Transforms))
	printNextStep("Compile it", "larder build")
	return nil
}
