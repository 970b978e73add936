package rag

type chunkKey struct {
	noteID string
	text   string
}

func keyOf(r SearchResult) chunkKey {
	return chunkKey{noteID: r.NoteID, text: r.Text}
}

// Merge combines semantic and keyword results into at most topK entries.
// Semantic results come first and keep their given positions with one exception:
// inside a run of exactly equal semantic scores, chunks also found by keyword
// search move to the front of that run. A chunk never moves past one with a
// different score. Keyword results follow, skipping any (note, chunk text)
// already emitted.
func Merge(semantic, keyword []SearchResult, topK int) []SearchResult {
	if topK <= 0 {
		return []SearchResult{}
	}
	if len(keyword) == 0 {
		if len(semantic) > topK {
			semantic = semantic[:topK]
		}
		return append([]SearchResult{}, semantic...)
	}

	inKeyword := make(map[chunkKey]struct{}, len(keyword))
	for _, r := range keyword {
		inKeyword[keyOf(r)] = struct{}{}
	}

	seen := make(map[chunkKey]struct{}, topK)
	merged := make([]SearchResult, 0, topK)
	emit := func(r SearchResult) bool {
		k := keyOf(r)
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		merged = append(merged, r)
		return len(merged) >= topK
	}

	for _, r := range promoteKeywordTies(semantic, inKeyword) {
		if emit(r) {
			return merged
		}
	}
	for _, r := range keyword {
		if emit(r) {
			return merged
		}
	}
	return merged
}

// promoteKeywordTies stably moves keyword matches to the front of each run of equal scores.
func promoteKeywordTies(results []SearchResult, inKeyword map[chunkKey]struct{}) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	for start := 0; start < len(results); {
		end := start + 1
		for end < len(results) && results[end].Score == results[start].Score {
			end++
		}
		run := results[start:end]
		for _, r := range run {
			if _, ok := inKeyword[keyOf(r)]; ok {
				out = append(out, r)
			}
		}
		for _, r := range run {
			if _, ok := inKeyword[keyOf(r)]; !ok {
				out = append(out, r)
			}
		}
		start = end
	}
	return out
}
