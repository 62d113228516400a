package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/larderlab/larder/pkg/lint"
	"github.com/larderlab/larder/pkg/stage"
)

// buildCommand creates the build command running the compilation pipeline.
func (c *CLI) buildCommand() *cobra.Command {
	var (
		sourceDir string
		buildDir  string
		refresh   bool
		noCache   bool
	)

	cmd := &cobra.Command{
		Use:     "build [stage]",
		Aliases: []string{"run"},
		Short:   "Compile the ontology source tree into published artifacts",
		Long: fmt.Sprintf(`Compile the ontology source tree into published artifacts.

The pipeline runs in fixed order: %s.
With a stage argument only the pipeline prefix up to that stage runs.

Stages with unchanged inputs are skipped; their previously published
artifacts are reused. Use --refresh to force re-execution.`, strings.Join(stageNames(), ", ")),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stages, err := selectStages(args)
			if err != nil {
				return err
			}
			return c.runBuild(cmd.Context(), stages, sourceDir, buildDir, noCache, refresh)
		},
	}

	cmd.Flags().StringVarP(&sourceDir, "source", "s", defaultSourceDir, "ontology source directory")
	cmd.Flags().StringVarP(&buildDir, "build", "b", defaultBuildDir, "build output directory")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-run every stage even on unchanged inputs")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the outcome cache")

	return cmd
}

// runBuild executes the selected stages and prints the per-stage summary.
func (c *CLI) runBuild(ctx context.Context, stages []stage.Descriptor, sourceDir, buildDir string, noCache, refresh bool) error {
	runner, err := c.newRunner(sourceDir, buildDir, noCache, refresh)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Cache.Close()

	p := newProgress(c.Logger)
	report, runErr := runner.Run(ctx, stages)

	printStageSummary(report)
	printReportDiagnostics(report)

	if runErr != nil {
		return runErr
	}

	records := 0
	for _, s := range report.Stages {
		records = s.Records // last stage's count is the terminal record count
	}
	p.done(fmt.Sprintf("Compiled %d records", records))

	if last := stages[len(stages)-1]; last.ID == stage.StagePack {
		printFile(filepath.Join(buildDir, stage.StagePack, stage.FileDatabase))
	}
	printFile(filepath.Join(buildDir, stage.ReportFile))
	return nil
}

// printStageSummary prints one line per stage in the report.
func printStageSummary(report *stage.Report) {
	for _, s := range report.Stages {
		switch s.Status {
		case stage.StatusSucceeded:
			printStageLine(s.ID, s.Records, s.CacheHit, s.Duration)
		case stage.StatusFailed:
			printStageFailed(s.ID, s.Error)
		default:
			printStagePending(s.ID)
		}
	}
}

// printReportDiagnostics surfaces findings, rejections, and collisions.
func printReportDiagnostics(report *stage.Report) {
	for _, f := range report.Findings {
		if f.Severity == lint.SeverityError {
			printError("%s", f.String())
		} else {
			printWarning("%s", f.String())
		}
	}
	codes := make([]string, 0, len(report.RejectionCounts))
	for code := range report.RejectionCounts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		printDetail("%d rejected with %s", report.RejectionCounts[code], code)
	}
	if len(report.Collisions) > 0 {
		printWarning("%d hash collisions flagged for review", len(report.Collisions))
	}
}
