package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"diary-assistant/internal/rag"
	"diary-assistant/internal/service"
	"diary-assistant/internal/service/mocks"
	"diary-assistant/internal/storage"
)

func init() {
	// Set default logger to discard output for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// testRouter mounts the handlers on their production paths so URL params resolve.
func testRouter(notes service.NoteService, search service.SearchService, tasks service.TaskService) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/tenants/{tenantID}", func(r chi.Router) {
		if notes != nil {
			h := NewNoteHandler(notes)
			r.Get("/notes", h.List)
			r.Post("/notes", h.Create)
			r.Get("/notes/{noteID}", h.Get)
			r.Patch("/notes/{noteID}", h.Update)
			r.Delete("/notes/{noteID}", h.Delete)
		}
		if search != nil {
			r.Method(http.MethodPost, "/search", NewSearchHandler(search))
		}
		if tasks != nil {
			h := NewTaskHandler(tasks)
			r.Get("/tasks", h.List)
			r.Post("/tasks/{taskID}/complete", h.Complete)
		}
	})
	return r
}

func doRequest(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "validation", err: &service.ValidationError{Field: "query", Message: "cannot be empty"}, wantStatus: http.StatusBadRequest},
		{name: "invalid input", err: fmt.Errorf("wrap: %w", service.ErrInvalidInput), wantStatus: http.StatusBadRequest},
		{name: "not found", err: fmt.Errorf("get: %w", service.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "external", err: fmt.Errorf("%w: timeout", service.ErrExternalService), wantStatus: http.StatusBadGateway},
		{name: "other", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handleServiceError(w, context.Background(), tt.err, "failed")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || resp.Error == "" {
				t.Errorf("error body not decoded: %v", err)
			}
		})
	}
}

func TestNoteHandler_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	notes := mocks.NewMockNoteService(ctrl)
	router := testRouter(notes, nil, nil)

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	notes.EXPECT().
		Create(gomock.Any(), service.CreateNoteRequest{TenantID: "acme", UserID: "u1", Title: "T", Content: "C", Tags: []string{"x"}}).
		Return(&storage.Note{ID: "n1", TenantID: "acme", UserID: "u1", Title: "T", Content: "C", Tags: []string{"x"}, CreatedAt: created, UpdatedAt: created}, nil)

	w := doRequest(router, http.MethodPost, "/api/tenants/acme/notes", NoteRequest{UserID: "u1", Title: "T", Content: "C", Tags: []string{"x"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var resp NoteResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "n1" || resp.CreatedAt != "2024-03-01T09:00:00Z" {
		t.Errorf("response = %+v", resp)
	}

	w = doRequest(router, http.MethodPost, "/api/tenants/acme/notes", "not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid body status = %d, want 400", w.Code)
	}
}

func TestNoteHandler_GetUpdateDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	notes := mocks.NewMockNoteService(ctrl)
	router := testRouter(notes, nil, nil)

	notes.EXPECT().Get(gomock.Any(), "acme", "missing").Return(nil, fmt.Errorf("get: %w", service.ErrNotFound))
	notes.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req service.UpdateNoteRequest) (*storage.Note, error) {
		if req.NoteID != "n1" || req.Title == nil || *req.Title != "New" || req.Content != nil {
			t.Errorf("Update() request = %+v", req)
		}
		return &storage.Note{ID: "n1", Title: "New"}, nil
	})
	notes.EXPECT().Delete(gomock.Any(), "acme", "n1").Return(nil)

	if w := doRequest(router, http.MethodGet, "/api/tenants/acme/notes/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("Get status = %d, want 404", w.Code)
	}
	w := doRequest(router, http.MethodPatch, "/api/tenants/acme/notes/n1", map[string]string{"title": "New"})
	if w.Code != http.StatusOK {
		t.Errorf("Update status = %d, want 200", w.Code)
	}
	var resp NoteResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.Tags == nil {
		t.Error("Update response tags should be an empty array, not null")
	}
	if w := doRequest(router, http.MethodDelete, "/api/tenants/acme/notes/n1", nil); w.Code != http.StatusNoContent {
		t.Errorf("Delete status = %d, want 204", w.Code)
	}
}

func TestNoteHandler_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	notes := mocks.NewMockNoteService(ctrl)
	router := testRouter(notes, nil, nil)

	notes.EXPECT().
		List(gomock.Any(), service.ListNotesRequest{TenantID: "acme", UserID: "u1", StartDate: "2024-01-01", Tags: []string{"a", "b"}, Offset: 10, Limit: 5}).
		Return([]*storage.Note{{ID: "n1"}, {ID: "n2"}}, nil)

	w := doRequest(router, http.MethodGet, "/api/tenants/acme/notes?user_id=u1&start_date=2024-01-01&tags=a,b&offset=10&limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp NoteListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Notes) != 2 {
		t.Errorf("notes = %d, want 2", len(resp.Notes))
	}

	if w := doRequest(router, http.MethodGet, "/api/tenants/acme/notes?limit=ten", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

func TestSearchHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		mockSetup  func(*mocks.MockSearchService)
		wantStatus int
		wantAnswer string
	}{
		{
			name: "success",
			body: SearchRequest{Query: "plans", TopK: 3, Filters: SearchFilters{UserID: "u1", Tags: []string{"work"}}, CombineWithKeyword: true},
			mockSetup: func(m *mocks.MockSearchService) {
				m.EXPECT().
					Search(gomock.Any(), service.SearchRequest{TenantID: "acme", Query: "plans", TopK: 3, UserID: "u1", Tags: []string{"work"}, CombineWithKeyword: true}).
					Return(&rag.Response{Answer: "summary", Chunks: []rag.SearchResult{{NoteID: "n1", Score: 0.9}}}, nil)
			},
			wantStatus: http.StatusOK,
			wantAnswer: "summary",
		},
		{
			name:       "invalid body",
			body:       "{",
			mockSetup:  func(*mocks.MockSearchService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "validation error",
			body: SearchRequest{},
			mockSetup: func(m *mocks.MockSearchService) {
				m.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, &service.ValidationError{Field: "query", Message: "cannot be empty"})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "embedding provider down",
			body: SearchRequest{Query: "plans"},
			mockSetup: func(m *mocks.MockSearchService) {
				m.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("%w: refused", service.ErrExternalService))
			},
			wantStatus: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			search := mocks.NewMockSearchService(ctrl)
			tt.mockSetup(search)

			w := doRequest(testRouter(nil, search, nil), http.MethodPost, "/api/tenants/acme/search", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp SearchResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Answer != tt.wantAnswer || len(resp.Chunks) != 1 || resp.Tasks == nil {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestTaskHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	tasks := mocks.NewMockTaskService(ctrl)
	router := testRouter(nil, nil, tasks)

	due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tasks.EXPECT().List(gomock.Any(), "acme", "u1", storage.TaskStatusOpen).
		Return([]*storage.Task{{ID: "t1", Description: "call", DueDate: &due, Status: storage.TaskStatusOpen}}, nil)
	tasks.EXPECT().Complete(gomock.Any(), "acme", "t1").
		Return(&storage.Task{ID: "t1", Status: storage.TaskStatusCompleted}, nil)
	tasks.EXPECT().List(gomock.Any(), "acme", "", storage.TaskStatus("bogus")).
		Return(nil, &service.ValidationError{Field: "status", Message: "must be open or completed"})

	w := doRequest(router, http.MethodGet, "/api/tenants/acme/tasks?user_id=u1&status=open", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("List status = %d, want 200", w.Code)
	}
	var list TaskListResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Tasks) != 1 || list.Tasks[0].DueDate == nil || *list.Tasks[0].DueDate != "2024-05-01T00:00:00Z" {
		t.Errorf("List response = %+v", list)
	}

	w = doRequest(router, http.MethodPost, "/api/tenants/acme/tasks/t1/complete", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Complete status = %d, want 200", w.Code)
	}

	if w := doRequest(router, http.MethodGet, "/api/tenants/acme/tasks?status=bogus", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d, want 400", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus int
		wantIssues int
	}{
		{name: "all healthy", checks: map[string]Pinger{"database": ok, "cache": ok}, wantStatus: http.StatusOK},
		{name: "cache down", checks: map[string]Pinger{"database": ok, "cache": down}, wantStatus: http.StatusServiceUnavailable, wantIssues: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks)
			w := httptest.NewRecorder()
			h.Ready(w, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(resp.Issues) != tt.wantIssues || len(resp.Checks) != len(tt.checks) {
				t.Errorf("response = %+v", resp)
			}
		})
	}

	w := httptest.NewRecorder()
	NewHealthHandler(nil).Live(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Live status = %d, want 200", w.Code)
	}
}
