package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/milhouse/contextmem/internal/config"
	"github.com/milhouse/contextmem/internal/logger"
	"github.com/milhouse/contextmem/pkg/embedding"
	"github.com/milhouse/contextmem/pkg/indexer"
	"github.com/milhouse/contextmem/pkg/store"
	"github.com/milhouse/contextmem/pkg/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the memory engine",
	Long: `Open the vector index, auto-index and watch the active project if one
is configured, and keep the engine running until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return err
	}
	defer lg.Close()
	log := lg.GetZerolog()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	engine, err := buildEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	if cfg.ActiveProject != "" {
		if res, err := engine.Indexer.IndexProject(ctx, cfg.ActiveProject, false); err != nil {
			log.Warn().Err(err).Str("project", cfg.ActiveProject).
				Msg("Startup index of active project failed")
		} else {
			log.Info().Str("project", cfg.ActiveProject).
				Int("indexed", res.Indexed).Int("skipped", res.Skipped).Int("failed", res.Failed).
				Msg("Active project indexed")
		}

		if err := engine.Indexer.StartWatching(cfg.ActiveProject); err != nil {
			log.Warn().Err(err).Str("project", cfg.ActiveProject).
				Msg("Could not watch active project")
		}

		if cfg.Indexer.ReindexSchedule != "" {
			stop, err := engine.Indexer.StartSchedule(cfg.Indexer.ReindexSchedule, cfg.ActiveProject)
			if err != nil {
				return fmt.Errorf("invalid reindex schedule: %w", err)
			}
			defer stop()
		}
	}

	log.Info().Str("version", version).Str("index", cfg.DBPath()).
		Msg("contextmem running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info().Str("signal", sig.String()).Msg("Shutting down")
	return nil
}

// Engine wires the store, indexer and operation registry together.
// Everything is constructed explicitly from config; no globals.
type Engine struct {
	Store    *store.Store
	Indexer  *indexer.Indexer
	Registry *tools.Registry
}

func buildEngine(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Engine, error) {
	var remote embedding.Provider
	if cfg.Embedding.APIKey != "" {
		remote = embedding.NewOpenAIProvider(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimension)
	}
	provider := embedding.NewFallbackProvider(remote, cfg.Embedding.Dimension, log)

	var summarizer embedding.Summarizer = embedding.NoopSummarizer{}
	if cfg.Summarizer.APIKey != "" {
		summarizer = embedding.NewAnthropicSummarizer(cfg.Summarizer.APIKey, cfg.Summarizer.Model, log)
	}

	st, err := store.New(store.Config{
		DBPath:   cfg.DBPath(),
		Provider: provider,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Initialize(ctx); err != nil {
		return nil, err
	}

	ix, err := indexer.New(indexer.Config{
		Store:      st,
		Summarizer: summarizer,
		AgentDir:   cfg.AgentDir,
		WatchDepth: cfg.Indexer.WatchDepth,
		Logger:     log,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	svc, err := tools.NewService(st, ix, log)
	if err != nil {
		st.Close()
		return nil, err
	}
	reg := tools.NewRegistry(log)
	if err := svc.RegisterAll(reg); err != nil {
		st.Close()
		return nil, err
	}

	return &Engine{Store: st, Indexer: ix, Registry: reg}, nil
}

// Close releases the engine's resources
func (e *Engine) Close() {
	e.Indexer.StopWatching()
	e.Store.Close()
}
