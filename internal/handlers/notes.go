package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"diary-assistant/internal/service"
	"diary-assistant/internal/storage"
)

// NoteHandler handles HTTP requests for a tenant's notes.
type NoteHandler struct {
	notes service.NoteService
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(notes service.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// NoteRequest is the payload for creating a note.
type NoteRequest struct {
	UserID  string   `json:"user_id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// NoteUpdateRequest is the payload for updating a note. Absent fields are left unchanged.
type NoteUpdateRequest struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

// NoteResponse represents a note in HTTP responses.
type NoteResponse struct {
	ID        string   `json:"id"`
	TenantID  string   `json:"tenant_id"`
	UserID    string   `json:"user_id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// NoteListResponse is a page of notes.
type NoteListResponse struct {
	Notes []NoteResponse `json:"notes"`
}

// Create handles POST /api/tenants/{tenantID}/notes.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req NoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	note, err := h.notes.Create(ctx, service.CreateNoteRequest{
		TenantID: chi.URLParam(r, "tenantID"),
		UserID:   req.UserID,
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to create note")
		return
	}
	writeJSON(w, ctx, http.StatusCreated, toNoteResponse(note))
}

// Get handles GET /api/tenants/{tenantID}/notes/{noteID}.
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	note, err := h.notes.Get(ctx, chi.URLParam(r, "tenantID"), chi.URLParam(r, "noteID"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get note")
		return
	}
	writeJSON(w, ctx, http.StatusOK, toNoteResponse(note))
}

// Update handles PATCH /api/tenants/{tenantID}/notes/{noteID}.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req NoteUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	note, err := h.notes.Update(ctx, service.UpdateNoteRequest{
		TenantID: chi.URLParam(r, "tenantID"),
		NoteID:   chi.URLParam(r, "noteID"),
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to update note")
		return
	}
	writeJSON(w, ctx, http.StatusOK, toNoteResponse(note))
}

// Delete handles DELETE /api/tenants/{tenantID}/notes/{noteID}.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.notes.Delete(ctx, chi.URLParam(r, "tenantID"), chi.URLParam(r, "noteID")); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/tenants/{tenantID}/notes.
// Query parameters: user_id, start_date, end_date, tags (comma separated), offset, limit.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	offset, ok := intParam(w, q.Get("offset"), "offset")
	if !ok {
		return
	}
	limit, ok := intParam(w, q.Get("limit"), "limit")
	if !ok {
		return
	}

	notes, err := h.notes.List(ctx, service.ListNotesRequest{
		TenantID:  chi.URLParam(r, "tenantID"),
		UserID:    q.Get("user_id"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Tags:      splitList(q.Get("tags")),
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list notes")
		return
	}

	resp := NoteListResponse{Notes: make([]NoteResponse, 0, len(notes))}
	for _, n := range notes {
		resp.Notes = append(resp.Notes, toNoteResponse(n))
	}
	writeJSON(w, ctx, http.StatusOK, resp)
}

func toNoteResponse(n *storage.Note) NoteResponse {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return NoteResponse{
		ID:        n.ID,
		TenantID:  n.TenantID,
		UserID:    n.UserID,
		Title:     n.Title,
		Content:   n.Content,
		Tags:      tags,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: n.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// intParam parses an optional integer query parameter; empty means zero.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return v, true
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
