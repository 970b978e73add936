// Command reindex rebuilds tenant search indexes offline.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"diary-assistant/internal/config"
	"diary-assistant/internal/indexer"
	"diary-assistant/internal/llm"
	"diary-assistant/internal/storage"
	"diary-assistant/internal/vectorstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		tenantID string
		all      bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild tenant search indexes from stored notes",
		Long: `Rebuild the per-tenant vector index from every note the tenant owns.
Use --tenant to rebuild one tenant or --all to rebuild every tenant with notes.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (tenantID == "") == !all {
				return errors.New("exactly one of --tenant or --all is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

			builder, closeDB, err := newBuilder(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			var stats []*indexer.RebuildStats
			if all {
				stats, err = builder.RebuildAll(ctx)
			} else {
				var s *indexer.RebuildStats
				s, err = builder.Rebuild(ctx, tenantID)
				stats = append(stats, s)
			}
			printStats(cmd, stats, asJSON)
			return err
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id to rebuild")
	cmd.Flags().BoolVar(&all, "all", false, "rebuild every tenant that owns notes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rebuild statistics as JSON")
	return cmd
}

func newBuilder(cfg *config.Config) (*indexer.Builder, func(), error) {
	if cfg.EmbeddingBaseURL == "" {
		return nil, nil, errors.New("EMBEDDING_BASE_URL is required to rebuild indexes")
	}

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	closeDB := func() { _ = db.Close() }
	if err := storage.Migrate(db); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	chunker, err := indexer.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to create chunker: %w", err)
	}
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDimensions,
		llm.WithRateLimit(cfg.ProviderRateLimit, 5))

	builder := indexer.NewBuilder(
		storage.NewNoteRepo(db),
		chunker,
		embedder,
		vectorstore.NewCache(storage.NewIndexRepo(db)),
		vectorstore.Params{M: cfg.IndexM, EfSearch: cfg.IndexEfSearch, Seed: vectorstore.DefaultParams().Seed},
	)
	return builder, closeDB, nil
}

func printStats(cmd *cobra.Command, stats []*indexer.RebuildStats, asJSON bool) {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(stats)
		return
	}
	for _, s := range stats {
		if s == nil {
			continue
		}
		status := "indexed"
		if s.Removed {
			status = "removed"
		}
		fmt.Fprintf(out, "%s\t%s\tnotes=%d chunks=%d skipped=%d duration=%s\n",
			s.TenantID, status, s.NotesTotal, s.ChunksEmbedded, s.ChunksSkipped, s.Duration)
	}
}
