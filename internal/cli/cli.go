// Package cli implements the larder command-line interface.
//
// This package provides commands for compiling an ontology source tree into
// published build artifacts, validating authored data, rendering ontology
// graphs, and serving the proposal validation API. The CLI is built using
// cobra and supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - build: Run the compilation pipeline (or a prefix of it)
//   - validate: Lint the source tree without building
//   - graph: Render taxa, parts, or pipeline graphs as DOT or SVG
//   - serve: Run the proposal validation HTTP API
//   - clean: Remove all published build artifacts
//   - cache: Manage the stage outcome cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The stage
// runner receives the CLI logger so per-stage progress lands on stderr.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/larderlab/larder/pkg/buildinfo"
	"github.com/larderlab/larder/pkg/cache"
	"github.com/larderlab/larder/pkg/stage"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "larder"

	// defaultSourceDir is where the ontology source tree is expected.
	defaultSourceDir = "ontology"

	// defaultBuildDir is where published stage artifacts land.
	defaultBuildDir = "build"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "larder",
		Short:        "Larder compiles food ontology sources into canonical identity records",
		Long:         `Larder is the build tool for a git-authored food ontology: it validates taxa, parts, transforms, and families, expands curated seeds into taxon-part-transform candidates, and compiles them into content-hashed canonical records packed in a relational store.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cleanCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a stage runner for CLI use.
func (c *CLI) newRunner(sourceDir, buildDir string, noCache, refresh bool) (*stage.Runner, error) {
	store, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	env := &stage.Env{SourceDir: sourceDir, BuildDir: buildDir, Logger: c.Logger}
	r := stage.NewRunner(env, store, nil)
	r.Refresh = refresh
	return r, nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/larder/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Stage Selection
// =============================================================================

// selectStages resolves the optional stage argument into the pipeline prefix
// to run. No argument (or "all") means the full pipeline.
func selectStages(args []string) ([]stage.Descriptor, error) {
	if len(args) == 0 || args[0] == "all" {
		return stage.Stages(), nil
	}
	stages, ok := stage.UpTo(args[0])
	if !ok {
		return nil, unknownStageError(args[0])
	}
	return stages, nil
}

func unknownStageError(id string) error {
	return fmt.Errorf("unknown stage %q (stages: %s)", id, strings.Join(stageNames(), ", "))
}

func stageNames() []string {
	all := stage.Stages()
	names := make([]string, 0, len(all))
	for _, d := range all {
		names = append(names, d.ID)
	}
	return names
}
