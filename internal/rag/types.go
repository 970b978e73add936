package rag

import (
	"strings"
	"time"
)

// DefaultTopK is used when a query does not ask for a specific result count.
const DefaultTopK = 5

// MaxTopK bounds the number of chunks a single query may request.
const MaxTopK = 50

// NoResultsAnswer is the answer returned when retrieval finds nothing.
const NoResultsAnswer = "No relevant notes found."

// Filters narrows retrieval to matching chunks. Empty fields mean "no constraint".
type Filters struct {
	// UserID restricts results to one author.
	UserID string `json:"user_id,omitempty"`
	// StartDate is an inclusive lower bound on note creation, RFC 3339 or YYYY-MM-DD.
	StartDate string `json:"start_date,omitempty"`
	// EndDate is an inclusive upper bound on note creation, RFC 3339 or YYYY-MM-DD.
	// A bare date includes the whole day.
	EndDate string `json:"end_date,omitempty"`
	// Tags matches chunks whose note carries any of the tags.
	Tags []string `json:"tags,omitempty"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.UserID == "" && f.StartDate == "" && f.EndDate == "" && len(f.Tags) == 0
}

// dateRange returns the parsed bounds. Unparseable bounds are nil.
func (f Filters) dateRange() (start, end *time.Time) {
	if t, ok := ParseDateBound(f.StartDate, false); ok {
		start = &t
	}
	if t, ok := ParseDateBound(f.EndDate, true); ok {
		end = &t
	}
	return start, end
}

// ParseDateBound parses an RFC 3339 timestamp or a YYYY-MM-DD date.
// A bare date used as an upper bound covers its whole day.
func ParseDateBound(s string, upper bool) (time.Time, bool) {
	t, ok := parseFilterDate(s)
	if !ok {
		return time.Time{}, false
	}
	if upper && isBareDate(s) {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}

// matches applies the user, date and tag constraints in that order.
func (f Filters) matches(userID string, createdAt time.Time, tags []string) bool {
	if f.UserID != "" && userID != f.UserID {
		return false
	}
	start, end := f.dateRange()
	if start != nil && createdAt.Before(*start) {
		return false
	}
	if end != nil && createdAt.After(*end) {
		return false
	}
	if len(f.Tags) > 0 && !anyTag(f.Tags, tags) {
		return false
	}
	return true
}

func anyTag(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

const bareDateLayout = "2006-01-02"

// Timestamps without a zone are taken as UTC.
var filterDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", bareDateLayout}

func isBareDate(s string) bool {
	_, err := time.Parse(bareDateLayout, strings.TrimSpace(s))
	return err == nil
}

func parseFilterDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range filterDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// SearchResult is one retrieved chunk with its relevance score.
type SearchResult struct {
	NoteID    string    `json:"note_id"`
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []string  `json:"tags"`
	// Score is cosine similarity for semantic hits and the matched term fraction for keyword hits.
	Score float32 `json:"score"`
}

// Query is a hybrid search request.
type Query struct {
	TenantID           string
	Text               string
	TopK               int
	Filters            Filters
	CombineWithKeyword bool
}

// ExtractedTask is an action item found in retrieved chunks.
type ExtractedTask struct {
	Description string `json:"description"`
	DueDate     string `json:"due_date,omitempty"`
}

// Response is the result of a hybrid search.
type Response struct {
	Answer string          `json:"answer"`
	Chunks []SearchResult  `json:"chunks"`
	Tasks  []ExtractedTask `json:"tasks"`
}
