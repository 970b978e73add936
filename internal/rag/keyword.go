package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/storage"
)

// keywordNoteFactor multiplies top_k to bound how many notes are re-chunked.
const keywordNoteFactor = 2

// TextSplitter splits note content into chunks.
// indexer.Chunker implements it.
type TextSplitter interface {
	Split(text string) ([]string, error)
}

// KeywordSearcher scores note chunks by query term overlap, independent of the vector index.
type KeywordSearcher struct {
	notes    storage.NoteStore
	splitter TextSplitter
}

// NewKeywordSearcher creates a KeywordSearcher. splitter must match the one used for indexing.
func NewKeywordSearcher(notes storage.NoteStore, splitter TextSplitter) *KeywordSearcher {
	return &KeywordSearcher{
		notes:    notes,
		splitter: splitter,
	}
}

// Search returns up to topK chunks ordered by descending fraction of distinct
// query terms they contain. Equal scores keep note order.
func (k *KeywordSearcher) Search(ctx context.Context, tenantID, text string, topK int, filters Filters) ([]SearchResult, error) {
	terms := queryTerms(text)
	if len(terms) == 0 || topK <= 0 {
		return []SearchResult{}, nil
	}

	start, end := filters.dateRange()
	notes, err := k.notes.List(ctx, storage.NoteFilter{
		TenantID: tenantID,
		UserID:   filters.UserID,
		Start:    start,
		End:      end,
		Tags:     filters.Tags,
		Terms:    terms,
		Limit:    topK * keywordNoteFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	var results []SearchResult
	for _, note := range notes {
		if strings.TrimSpace(note.Content) == "" {
			continue
		}
		chunks, err := k.splitter.Split(note.Content)
		if err != nil {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to chunk note", "note_id", note.ID, "error", err)
			continue
		}
		for _, chunk := range chunks {
			results = append(results, SearchResult{
				NoteID:    note.ID,
				UserID:    note.UserID,
				TenantID:  note.TenantID,
				Text:      chunk,
				CreatedAt: note.CreatedAt,
				Tags:      note.Tags,
				Score:     termCoverage(chunk, terms),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// queryTerms returns the distinct lowercase whitespace-separated terms of text.
func queryTerms(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// termCoverage is the fraction of terms that occur in chunk, case-insensitively.
func termCoverage(chunk string, terms []string) float32 {
	lower := strings.ToLower(chunk)
	var hits int
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return float32(hits) / float32(len(terms))
}
