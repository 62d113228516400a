package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/larderlab/larder/pkg/stage"
)

// cleanCommand creates the clean command removing published artifacts.
func (c *CLI) cleanCommand() *cobra.Command {
	var buildDir string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove all published build artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := stage.Clean(buildDir); err != nil {
				return fmt.Errorf("clean %s: %w", buildDir, err)
			}
			printSuccess("Removed build directory")
			printDetail("Directory: %s", buildDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&buildDir, "build", "b", defaultBuildDir, "build output directory")

	return cmd
}
