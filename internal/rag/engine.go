package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/metrics"
)

// Engine answers queries by hybrid retrieval, summarisation and task extraction.
type Engine interface {
	// Search runs the full pipeline for q.
	// Only a failed query embedding or a broken index store surface as errors.
	Search(ctx context.Context, q Query) (*Response, error)
}

// Recorder persists extracted tasks. TaskRecorder implements it.
type Recorder interface {
	Record(ctx context.Context, tenantID, userID string, results []SearchResult, candidates []ExtractedTask) (int, error)
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	retriever  *Retriever
	keyword    *KeywordSearcher
	summarizer Summarizer
	extractor  TaskExtractor
	recorder   Recorder
}

// NewEngine creates a new RAG engine. recorder may be nil to skip persisting tasks.
func NewEngine(
	retriever *Retriever,
	keyword *KeywordSearcher,
	summarizer Summarizer,
	extractor TaskExtractor,
	recorder Recorder,
) Engine {
	return &ragEngine{
		retriever:  retriever,
		keyword:    keyword,
		summarizer: summarizer,
		extractor:  extractor,
		recorder:   recorder,
	}
}

// Search answers q.
func (e *ragEngine) Search(ctx context.Context, q Query) (*Response, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()
	mode := "semantic"
	if q.CombineWithKeyword {
		mode = "hybrid"
	}
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	logger.InfoContext(ctx, "search started",
		"tenant_id", q.TenantID,
		"top_k", topK,
		"mode", mode,
		"filtered", !q.Filters.IsZero(),
	)

	var semantic, keyword []SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := e.retriever.SemanticSearch(gctx, q.TenantID, q.Text, topK, q.Filters)
		if err != nil {
			return err
		}
		semantic = res
		return nil
	})
	if q.CombineWithKeyword && e.keyword != nil {
		g.Go(func() error {
			res, err := e.keyword.Search(gctx, q.TenantID, q.Text, topK, q.Filters)
			if err != nil {
				if gctx.Err() == nil {
					logger.WarnContext(ctx, "keyword search failed, continuing without it", "error", err)
				}
				return nil
			}
			keyword = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(mode, "error").Inc()
		if errors.Is(err, ErrQueryEmbedding) {
			logger.ErrorContext(ctx, "query embedding failed", "error", err)
			return nil, err
		}
		logger.ErrorContext(ctx, "semantic search failed", "error", err)
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	chunks := Merge(semantic, keyword, topK)
	resp := &Response{
		Answer: NoResultsAnswer,
		Chunks: chunks,
		Tasks:  []ExtractedTask{},
	}
	if len(chunks) == 0 {
		metrics.SearchRequestsTotal.WithLabelValues(mode, "success").Inc()
		logger.InfoContext(ctx, "search found no chunks", "tenant_id", q.TenantID)
		return resp, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	resp.Answer = e.summarizer.Summarize(ctx, texts, q.Text)

	for _, task := range e.extractor.Extract(ctx, texts) {
		if strings.TrimSpace(task.Description) == "" {
			continue
		}
		resp.Tasks = append(resp.Tasks, task)
	}
	if e.recorder != nil && len(resp.Tasks) > 0 {
		if _, err := e.recorder.Record(ctx, q.TenantID, q.Filters.UserID, chunks, resp.Tasks); err != nil {
			logger.WarnContext(ctx, "failed to record extracted tasks", "error", err)
		}
	}

	metrics.SearchRequestsTotal.WithLabelValues(mode, "success").Inc()
	logger.InfoContext(ctx, "search completed",
		"tenant_id", q.TenantID,
		"semantic", len(semantic),
		"keyword", len(keyword),
		"chunks", len(chunks),
		"tasks", len(resp.Tasks),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}
