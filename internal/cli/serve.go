package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/starchart-viz/starchart/internal/server"
	"github.com/starchart-viz/starchart/pkg/store"
)

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the concept graph API over HTTP",
		Long: `Serve the concept graph API over HTTP.

The serve command exposes the pipeline as a small JSON API: POST an
extraction to /v1/documents to build and persist a document, then fetch
scenes per detail level or subset without rebuilding the graph.

Documents are stored on disk by default; set store.backend = "mongo" in the
config file to use MongoDB instead. Set OPENAI_API_KEY to enable model-based
constellation grouping.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8470)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runServe wires the store, cache, and clusterer, then serves until ctx is
// cancelled.
func (c *CLI) runServe(ctx context.Context, addr string, noCache bool) error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	docs, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer docs.Close(context.Background())

	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := server.New(server.Config{
		Addr:               addr,
		Store:              docs,
		Runner:             runner,
		Clusterer:          newClusterer(cfg, ""),
		ClusterModel:       cfg.OpenAI.Model,
		ConstellationCount: cfg.Pipeline.ConstellationCount,
		Logger:             c.Logger,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}

// newStore builds the document store from config.
func newStore(ctx context.Context, cfg *Config) (store.Store, error) {
	if cfg.Store.Backend == storeBackendMongo {
		return store.NewMongoStore(ctx, store.MongoConfig{
			URI:        cfg.Store.Mongo.URI,
			Database:   cfg.Store.Mongo.Database,
			Collection: cfg.Store.Mongo.Collection,
		})
	}
	return store.NewFileStore(cfg.Store.Dir)
}
