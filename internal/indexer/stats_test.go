package indexer

import "testing"

func TestComputeTokenStats(t *testing.T) {
	tests := []struct {
		name        string
		tokenCounts []int
		want        ChunkTokenStats
	}{
		{
			name:        "empty",
			tokenCounts: []int{},
			want:        ChunkTokenStats{},
		},
		{
			name:        "single value",
			tokenCounts: []int{10},
			want: ChunkTokenStats{
				Min:  10,
				Max:  10,
				Mean: 10.0,
				P95:  10,
			},
		},
		{
			name:        "multiple values",
			tokenCounts: []int{5, 10, 15, 20, 25},
			want: ChunkTokenStats{
				Min:  5,
				Max:  25,
				Mean: 15.0,
				P95:  25, // 95th percentile of 5 values = index 4 (0-indexed) = 25
			},
		},
		{
			name:        "unsorted values",
			tokenCounts: []int{30, 5, 20, 10, 15},
			want: ChunkTokenStats{
				Min:  5,
				Max:  30,
				Mean: 16.0, // (30+5+20+10+15)/5 = 16
				P95:  30,
			},
		},
		{
			name:        "many values for p95",
			tokenCounts: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
			want: ChunkTokenStats{
				Min:  1,
				Max:  20,
				Mean: 10.5,
				P95:  20, // 95th percentile of 20 values = index 19 = 20
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeTokenStats(tt.tokenCounts)
			if got.Min != tt.want.Min {
				t.Errorf("Min = %d, want %d", got.Min, tt.want.Min)
			}
			if got.Max != tt.want.Max {
				t.Errorf("Max = %d, want %d", got.Max, tt.want.Max)
			}
			if got.Mean != tt.want.Mean {
				t.Errorf("Mean = %f, want %f", got.Mean, tt.want.Mean)
			}
			if got.P95 != tt.want.P95 {
				t.Errorf("P95 = %d, want %d", got.P95, tt.want.P95)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{text: "", want: 1},
		{text: "ab", want: 1},
		{text: "abcdefgh", want: 2},
		{text: "héllo wörld!", want: 3},
	}
	for _, tt := range tests {
		if got := estimateTokens(tt.text); got != tt.want {
			t.Errorf("estimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestRebuildStats_Skip(t *testing.T) {
	stats := newRebuildStats("t")
	stats.skip(SkipReasonEmbeddingError)
	stats.skip(SkipReasonEmbeddingError)
	stats.skip(SkipReasonInvalidVector)

	if stats.ChunksSkipped != 3 {
		t.Errorf("ChunksSkipped = %d, want 3", stats.ChunksSkipped)
	}
	if stats.ChunksSkippedReasons[SkipReasonEmbeddingError] != 2 || stats.ChunksSkippedReasons[SkipReasonInvalidVector] != 1 {
		t.Errorf("ChunksSkippedReasons = %v", stats.ChunksSkippedReasons)
	}
}
