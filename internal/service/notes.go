package service

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_rebuild_trigger.go -package=mocks diary-assistant/internal/service RebuildTrigger
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_note_service.go -package=mocks diary-assistant/internal/service NoteService

import (
	"context"
	"strconv"
	"strings"
	"time"

	"diary-assistant/internal/cache"
	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/rag"
	"diary-assistant/internal/storage"
)

const (
	// DefaultNotesTTL is how long a cached note listing stays valid.
	DefaultNotesTTL = 60 * time.Second
	// DefaultListLimit is the page size when none is requested.
	DefaultListLimit = 50
	// MaxListLimit bounds the page size.
	MaxListLimit = 500
)

// RebuildTrigger schedules an asynchronous index rebuild for a tenant.
// indexer.Scheduler implements it.
type RebuildTrigger interface {
	Trigger(tenantID string)
}

// ResponseCache stores serialized responses. cache.Cache implements it.
type ResponseCache interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	InvalidateTenant(ctx context.Context, tenantID string) int
}

// CreateNoteRequest holds the fields of a new note.
type CreateNoteRequest struct {
	TenantID string
	UserID   string
	Title    string
	Content  string
	Tags     []string
}

// UpdateNoteRequest changes the fields that are non-nil.
type UpdateNoteRequest struct {
	TenantID string
	NoteID   string
	Title    *string
	Content  *string
	Tags     *[]string
}

// ListNotesRequest narrows a note listing.
type ListNotesRequest struct {
	TenantID  string
	UserID    string
	StartDate string
	EndDate   string
	Tags      []string
	Offset    int
	Limit     int
}

// NoteService manages notes. Every mutation invalidates the tenant's cached
// responses and schedules an index rebuild before returning.
type NoteService interface {
	Create(ctx context.Context, req CreateNoteRequest) (*storage.Note, error)
	Get(ctx context.Context, tenantID, noteID string) (*storage.Note, error)
	Update(ctx context.Context, req UpdateNoteRequest) (*storage.Note, error)
	Delete(ctx context.Context, tenantID, noteID string) error
	List(ctx context.Context, req ListNotesRequest) ([]*storage.Note, error)
}

// noteService implements NoteService.
type noteService struct {
	notes    storage.NoteStore
	cache    ResponseCache
	rebuilds RebuildTrigger
	ttl      time.Duration
}

// NewNoteService creates a new NoteService. A non-positive ttl uses DefaultNotesTTL.
func NewNoteService(notes storage.NoteStore, cache ResponseCache, rebuilds RebuildTrigger, ttl time.Duration) NoteService {
	if ttl <= 0 {
		ttl = DefaultNotesTTL
	}
	return &noteService{
		notes:    notes,
		cache:    cache,
		rebuilds: rebuilds,
		ttl:      ttl,
	}
}

// Create stores a new note.
func (s *noteService) Create(ctx context.Context, req CreateNoteRequest) (*storage.Note, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := requireTenant(req.TenantID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, &ValidationError{Field: "user_id", Message: "cannot be empty"}
	}

	note := &storage.Note{
		TenantID: req.TenantID,
		UserID:   req.UserID,
		Title:    req.Title,
		Content:  req.Content,
		Tags:     cleanTags(req.Tags),
	}
	if err := s.notes.Create(ctx, note); err != nil {
		logger.ErrorContext(ctx, "failed to create note", "error", err)
		return nil, WrapError(err, "failed to create note")
	}

	s.afterMutation(ctx, req.TenantID)
	logger.InfoContext(ctx, "note created", "note_id", note.ID, "content_length", len(note.Content))
	return note, nil
}

// Get returns one note.
func (s *noteService) Get(ctx context.Context, tenantID, noteID string) (*storage.Note, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	note, err := s.notes.Get(ctx, tenantID, noteID)
	if err != nil {
		return nil, storeError(err, "failed to get note")
	}
	return note, nil
}

// Update applies the requested changes.
func (s *noteService) Update(ctx context.Context, req UpdateNoteRequest) (*storage.Note, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := requireTenant(req.TenantID); err != nil {
		return nil, err
	}
	note, err := s.notes.Get(ctx, req.TenantID, req.NoteID)
	if err != nil {
		return nil, storeError(err, "failed to get note")
	}
	if req.Title != nil {
		note.Title = *req.Title
	}
	if req.Content != nil {
		note.Content = *req.Content
	}
	if req.Tags != nil {
		note.Tags = cleanTags(*req.Tags)
	}
	if err := s.notes.Update(ctx, note); err != nil {
		logger.ErrorContext(ctx, "failed to update note", "note_id", req.NoteID, "error", err)
		return nil, storeError(err, "failed to update note")
	}

	s.afterMutation(ctx, req.TenantID)
	logger.InfoContext(ctx, "note updated", "note_id", note.ID)
	return note, nil
}

// Delete removes a note and its tasks.
func (s *noteService) Delete(ctx context.Context, tenantID, noteID string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if err := s.notes.Delete(ctx, tenantID, noteID); err != nil {
		return storeError(err, "failed to delete note")
	}

	s.afterMutation(ctx, tenantID)
	logger.InfoContext(ctx, "note deleted", "note_id", noteID)
	return nil
}

// List returns a page of notes, served from the response cache when possible.
func (s *noteService) List(ctx context.Context, req ListNotesRequest) ([]*storage.Note, error) {
	if err := requireTenant(req.TenantID); err != nil {
		return nil, err
	}
	limit, err := pageLimit(req.Limit)
	if err != nil {
		return nil, err
	}
	if req.Offset < 0 {
		return nil, &ValidationError{Field: "offset", Message: "must not be negative"}
	}

	filter := storage.NoteFilter{
		TenantID: req.TenantID,
		UserID:   req.UserID,
		Tags:     cleanTags(req.Tags),
		Offset:   req.Offset,
		Limit:    limit,
	}
	if req.StartDate != "" {
		t, ok := rag.ParseDateBound(req.StartDate, false)
		if !ok {
			return nil, &ValidationError{Field: "start_date", Message: "must be RFC 3339 or YYYY-MM-DD"}
		}
		filter.Start = &t
	}
	if req.EndDate != "" {
		t, ok := rag.ParseDateBound(req.EndDate, true)
		if !ok {
			return nil, &ValidationError{Field: "end_date", Message: "must be RFC 3339 or YYYY-MM-DD"}
		}
		filter.End = &t
	}

	key := cache.Key(cache.PrefixNotes, req.TenantID, map[string]string{
		"user_id":    req.UserID,
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
		"tags":       strings.Join(filter.Tags, ","),
		"offset":     strconv.Itoa(req.Offset),
		"limit":      strconv.Itoa(limit),
	})
	var cached []*storage.Note
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	notes, err := s.notes.List(ctx, filter)
	if err != nil {
		return nil, WrapError(err, "failed to list notes")
	}
	if notes == nil {
		notes = []*storage.Note{}
	}
	s.cache.Set(ctx, key, notes, s.ttl)
	return notes, nil
}

// afterMutation drops stale cached responses, then schedules the rebuild.
func (s *noteService) afterMutation(ctx context.Context, tenantID string) {
	s.cache.InvalidateTenant(ctx, tenantID)
	s.rebuilds.Trigger(tenantID)
}

func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return &ValidationError{Field: "tenant_id", Message: "cannot be empty"}
	}
	return nil
}

func pageLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultListLimit, nil
	case limit < 0 || limit > MaxListLimit:
		return 0, &ValidationError{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(MaxListLimit)}
	default:
		return limit, nil
	}
}

// cleanTags trims tags and drops empty ones, keeping order.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
