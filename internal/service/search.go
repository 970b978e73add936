package service

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_searcher.go -package=mocks diary-assistant/internal/service Searcher
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_search_service.go -package=mocks diary-assistant/internal/service SearchService

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"diary-assistant/internal/cache"
	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/rag"
)

// DefaultSearchTTL is how long a cached search response stays valid.
const DefaultSearchTTL = 300 * time.Second

// Searcher runs the retrieval pipeline. rag.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, q rag.Query) (*rag.Response, error)
}

// SearchRequest is a hybrid search over a tenant's notes.
type SearchRequest struct {
	TenantID           string
	Query              string
	TopK               int
	UserID             string
	StartDate          string
	EndDate            string
	Tags               []string
	CombineWithKeyword bool
}

// SearchService answers questions over a tenant's notes.
type SearchService interface {
	Search(ctx context.Context, req SearchRequest) (*rag.Response, error)
}

// searchService implements SearchService.
type searchService struct {
	searcher Searcher
	cache    ResponseCache
	ttl      time.Duration
}

// NewSearchService creates a new SearchService. A non-positive ttl uses DefaultSearchTTL.
func NewSearchService(searcher Searcher, cache ResponseCache, ttl time.Duration) SearchService {
	if ttl <= 0 {
		ttl = DefaultSearchTTL
	}
	return &searchService{
		searcher: searcher,
		cache:    cache,
		ttl:      ttl,
	}
}

// Search validates req and returns a cached or fresh response.
// Filter dates that cannot be parsed are ignored rather than rejected.
func (s *searchService) Search(ctx context.Context, req SearchRequest) (*rag.Response, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := requireTenant(req.TenantID); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		logger.WarnContext(ctx, "empty query in search request")
		return nil, &ValidationError{Field: "query", Message: "cannot be empty"}
	}
	topK := req.TopK
	if topK == 0 {
		topK = rag.DefaultTopK
	}
	if topK < 1 || topK > rag.MaxTopK {
		return nil, &ValidationError{Field: "top_k", Message: "must be between 1 and " + strconv.Itoa(rag.MaxTopK)}
	}
	tags := cleanTags(req.Tags)

	key := cache.Key(cache.PrefixSearch, req.TenantID, map[string]string{
		"query":      query,
		"top_k":      strconv.Itoa(topK),
		"user_id":    req.UserID,
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
		"tags":       strings.Join(tags, ","),
		"keyword":    strconv.FormatBool(req.CombineWithKeyword),
	})
	var cached rag.Response
	if s.cache.Get(ctx, key, &cached) {
		logger.DebugContext(ctx, "search served from cache")
		return &cached, nil
	}

	resp, err := s.searcher.Search(ctx, rag.Query{
		TenantID: req.TenantID,
		Text:     query,
		TopK:     topK,
		Filters: rag.Filters{
			UserID:    req.UserID,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Tags:      tags,
		},
		CombineWithKeyword: req.CombineWithKeyword,
	})
	if err != nil {
		if errors.Is(err, rag.ErrQueryEmbedding) {
			return nil, fmt.Errorf("%w: %w", ErrExternalService, err)
		}
		return nil, WrapError(err, "search failed")
	}

	s.cache.Set(ctx, key, resp, s.ttl)
	return resp, nil
}
