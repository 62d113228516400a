package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/larderlab/larder/pkg/cache"
	"github.com/larderlab/larder/pkg/curation"
	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/source"
	"github.com/larderlab/larder/pkg/stage"
	"github.com/larderlab/larder/pkg/substrate"
)

// serveCommand creates the serve command running the proposal validation API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		sourceDir string
		buildDir  string
		redisURL  string
		noCache   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the proposal validation HTTP API",
		Long: `Serve the proposal validation HTTP API.

Loads the registry snapshot from the source tree and the materialized
substrate set from a completed build, then validates POSTed proposals
against them. Results are cached by proposal content; point --redis at a
shared instance to share that cache across replicas.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, sourceDir, buildDir, redisURL, noCache)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "listen address")
	cmd.Flags().StringVarP(&sourceDir, "source", "s", defaultSourceDir, "ontology source directory")
	cmd.Flags().StringVarP(&buildDir, "build", "b", defaultBuildDir, "build output directory")
	cmd.Flags().StringVar(&redisURL, "redis", "", "redis URL for the shared proposal cache")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable proposal result caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr, sourceDir, buildDir, redisURL string, noCache bool) error {
	svc, err := c.newCurationService(ctx, sourceDir, buildDir, redisURL, noCache)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           curation.NewRouter(svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	c.Logger.Info("serving proposal validation API", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newCurationService loads the ontology snapshot and wires the result cache.
func (c *CLI) newCurationService(ctx context.Context, sourceDir, buildDir, redisURL string, noCache bool) (*curation.Service, error) {
	tree, err := source.Load(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("load source tree: %w", err)
	}
	subs, err := loadSubstrates(buildDir)
	if err != nil {
		return nil, err
	}
	store, err := c.newProposalCache(ctx, redisURL, noCache)
	if err != nil {
		return nil, err
	}
	return curation.NewService(tree.Registry(), subs, tree.Buckets, store), nil
}

// newProposalCache picks the proposal result cache backend.
func (c *CLI) newProposalCache(ctx context.Context, redisURL string, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if redisURL != "" {
		return cache.NewRedisCache(ctx, redisURL)
	}
	return newCache(false)
}

// loadSubstrates rebuilds the queryable substrate set from the published
// substrates artifacts of a completed build.
func loadSubstrates(buildDir string) (*substrate.Result, error) {
	dir := filepath.Join(buildDir, stage.StageSubstrates)
	pairs, err := source.ReadNDJSON[ontology.Substrate](filepath.Join(dir, stage.FileSubstrates))
	if err != nil {
		return nil, fmt.Errorf("read substrates (run `larder build substrates` first?): %w", err)
	}
	rows, err := source.ReadNDJSON[substrate.ClosureRow](filepath.Join(dir, stage.FileTaxonClosure))
	if err != nil {
		return nil, fmt.Errorf("read taxon closure: %w", err)
	}

	subs := make([]ontology.Substrate, 0, len(pairs))
	for _, rec := range pairs {
		subs = append(subs, rec.Value)
	}
	closure := make([]substrate.ClosureRow, 0, len(rows))
	for _, rec := range rows {
		closure = append(closure, rec.Value)
	}
	return substrate.FromPairs(subs, closure), nil
}
