package indexer

import (
	"math"
	"sort"
	"time"
	"unicode/utf8"
)

const (
	// TokensPerRune is an approximation for token counting (4 chars per token).
	TokensPerRune = 4.0
)

// Skip reasons recorded in RebuildStats.ChunksSkippedReasons.
const (
	SkipReasonEmbeddingError = "embedding_error"
	SkipReasonInvalidVector  = "invalid_vector"
)

// RebuildStats describes a single tenant rebuild.
type RebuildStats struct {
	// TenantID is the rebuilt tenant.
	TenantID string `json:"tenant_id"`
	// NotesTotal is the number of notes fetched for the tenant.
	NotesTotal int `json:"notes_total"`
	// NotesWithContent is the number of notes whose content was not blank.
	NotesWithContent int `json:"notes_with_content"`
	// ChunksAttempted is the total number of chunks that were sent for embedding.
	ChunksAttempted int `json:"chunks_attempted"`
	// ChunksEmbedded is the number of chunks that made it into the index.
	ChunksEmbedded int `json:"chunks_embedded"`
	// ChunksSkipped is the number of chunks left out of the index.
	ChunksSkipped int `json:"chunks_skipped"`
	// ChunksSkippedReasons is a breakdown of why chunks were skipped.
	ChunksSkippedReasons map[string]int `json:"chunks_skipped_reasons,omitempty"`
	// ChunkTokenStats contains statistics about token counts per indexed chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	// Removed is true when the rebuild found nothing to index and deleted the tenant's index.
	Removed bool `json:"removed"`
	// Duration is the wall time of the rebuild.
	Duration time.Duration `json:"duration"`
}

func newRebuildStats(tenantID string) *RebuildStats {
	return &RebuildStats{
		TenantID:             tenantID,
		ChunksSkippedReasons: make(map[string]int),
	}
}

func (s *RebuildStats) skip(reason string) {
	s.ChunksSkipped++
	s.ChunksSkippedReasons[reason]++
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	// Min is the minimum token count across all chunks.
	Min int `json:"min"`
	// Max is the maximum token count across all chunks.
	Max int `json:"max"`
	// Mean is the mean token count across all chunks.
	Mean float64 `json:"mean"`
	// P95 is the 95th percentile token count.
	P95 int `json:"p95"`
}

// estimateTokens approximates the token count of text from its rune count.
func estimateTokens(text string) int {
	tokens := int(math.Round(float64(utf8.RuneCountInString(text)) / TokensPerRune))
	if tokens < 1 {
		return 1
	}
	return tokens
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
