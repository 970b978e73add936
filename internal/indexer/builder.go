package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/metrics"
	"diary-assistant/internal/storage"
	"diary-assistant/internal/vectorstore"
)

// Builder performs full rebuilds of tenant indexes:
// fetch notes, chunk, embed, build the graph and its records, publish.
type Builder struct {
	notes     storage.NoteStore
	chunker   *Chunker
	embedder  Embedder
	publisher IndexPublisher
	params    vectorstore.Params
	searches  SearchInvalidator
	now       func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithSearchInvalidator drops the tenant's cached searches whenever a rebuild
// publishes or removes its index.
func WithSearchInvalidator(inv SearchInvalidator) BuilderOption {
	return func(b *Builder) {
		b.searches = inv
	}
}

// NewBuilder creates a new Builder.
func NewBuilder(
	notes storage.NoteStore,
	chunker *Chunker,
	embedder Embedder,
	publisher IndexPublisher,
	params vectorstore.Params,
	opts ...BuilderOption,
) *Builder {
	b := &Builder{
		notes:     notes,
		chunker:   chunker,
		embedder:  embedder,
		publisher: publisher,
		params:    params,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Rebuild regenerates the tenant's index from every note it owns.
// Chunks whose embedding fails are skipped. When no vector is produced the
// tenant's index is removed. A failed publish leaves the previous index in place.
func (b *Builder) Rebuild(ctx context.Context, tenantID string) (*RebuildStats, error) {
	logger := contextutil.LoggerFromContext(ctx).With("tenant_id", tenantID)
	start := b.now()
	stats := newRebuildStats(tenantID)

	stats, err := b.rebuild(ctx, tenantID, stats)
	stats.Duration = b.now().Sub(start)
	metrics.IndexRebuildDuration.Observe(stats.Duration.Seconds())

	switch {
	case err != nil:
		metrics.IndexRebuildsTotal.WithLabelValues("failed").Inc()
		logger.ErrorContext(ctx, "index rebuild failed", "error", err, "duration", stats.Duration)
		return stats, err
	case stats.Removed:
		metrics.IndexRebuildsTotal.WithLabelValues("removed").Inc()
		logger.InfoContext(ctx, "index removed, nothing to index",
			"notes", stats.NotesTotal, "chunks_skipped", stats.ChunksSkipped)
	default:
		metrics.IndexRebuildsTotal.WithLabelValues("success").Inc()
		metrics.IndexRebuildVectors.Observe(float64(stats.ChunksEmbedded))
		logger.InfoContext(ctx, "index rebuilt",
			"notes", stats.NotesTotal,
			"chunks_embedded", stats.ChunksEmbedded,
			"chunks_skipped", stats.ChunksSkipped,
			"duration", stats.Duration,
		)
	}
	return stats, nil
}

func (b *Builder) rebuild(ctx context.Context, tenantID string, stats *RebuildStats) (*RebuildStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	notes, err := b.notes.ListByTenant(ctx, tenantID)
	if err != nil {
		return stats, fmt.Errorf("failed to list notes: %w", err)
	}
	stats.NotesTotal = len(notes)

	var (
		index       *vectorstore.HNSWIndex
		records     []storage.VectorRecord
		tokenCounts []int
	)
	for _, note := range notes {
		if strings.TrimSpace(note.Content) == "" {
			continue
		}
		stats.NotesWithContent++

		chunks, err := b.chunker.Split(note.Content)
		if err != nil {
			return stats, fmt.Errorf("failed to chunk note %s: %w", note.ID, err)
		}

		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.ChunksAttempted++

			vec, err := b.embedder.Embed(ctx, chunk)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return stats, ctxErr
				}
				metrics.EmbeddingFailuresTotal.Inc()
				stats.skip(SkipReasonEmbeddingError)
				logger.WarnContext(ctx, "skipping chunk, embedding failed",
					"tenant_id", tenantID, "note_id", note.ID, "error", err)
				continue
			}

			if index == nil {
				index = vectorstore.NewHNSWIndex(len(vec), b.params)
			}
			id, err := index.Add(vec)
			if err != nil {
				stats.skip(SkipReasonInvalidVector)
				logger.WarnContext(ctx, "skipping chunk, unusable embedding",
					"tenant_id", tenantID, "note_id", note.ID, "error", err)
				continue
			}

			records = append(records, storage.VectorRecord{
				VectorID:  id,
				NoteID:    note.ID,
				UserID:    note.UserID,
				TenantID:  tenantID,
				ChunkText: chunk,
				CreatedAt: note.CreatedAt,
				Tags:      note.Tags,
			})
			tokenCounts = append(tokenCounts, estimateTokens(chunk))
		}
	}

	if len(records) == 0 {
		if err := b.publisher.Remove(ctx, tenantID); err != nil {
			return stats, err
		}
		b.invalidateSearches(ctx, tenantID)
		stats.Removed = true
		return stats, nil
	}

	tenantIndex, err := vectorstore.NewTenantIndex(tenantID, index, records, b.now().UTC())
	if err != nil {
		return stats, err
	}
	if err := b.publisher.Publish(ctx, tenantIndex); err != nil {
		return stats, err
	}
	b.invalidateSearches(ctx, tenantID)

	stats.ChunksEmbedded = len(records)
	stats.ChunkTokenStats = computeTokenStats(tokenCounts)
	return stats, nil
}

func (b *Builder) invalidateSearches(ctx context.Context, tenantID string) {
	if b.searches == nil {
		return
	}
	// Detached so a rebuild that hit its deadline right after publishing still clears stale answers.
	b.searches.InvalidateSearches(context.WithoutCancel(ctx), tenantID)
}

// RebuildAll rebuilds every tenant that owns notes, one after another.
// Failures for individual tenants are logged and do not stop the run.
func (b *Builder) RebuildAll(ctx context.Context) ([]*RebuildStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	tenants, err := b.notes.ListTenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	logger.InfoContext(ctx, "starting rebuild of all tenants", "tenants", len(tenants))

	var (
		all  []*RebuildStats
		errs []error
	)
	for _, tenantID := range tenants {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		stats, err := b.Rebuild(ctx, tenantID)
		all = append(all, stats)
		if err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
		}
	}

	logger.InfoContext(ctx, "rebuild of all tenants completed", "tenants", len(tenants), "errors", len(errs))
	if len(errs) > 0 {
		return all, fmt.Errorf("rebuild completed with %d errors: %w", len(errs), errors.Join(errs...))
	}
	return all, nil
}
