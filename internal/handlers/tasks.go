package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"diary-assistant/internal/service"
	"diary-assistant/internal/storage"
)

// TaskHandler handles HTTP requests for extracted tasks.
type TaskHandler struct {
	tasks service.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// TaskResponse represents a task in HTTP responses.
type TaskResponse struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenant_id"`
	UserID      string  `json:"user_id"`
	NoteID      string  `json:"note_id"`
	Description string  `json:"description"`
	DueDate     *string `json:"due_date,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// TaskListResponse lists tasks.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

// List handles GET /api/tenants/{tenantID}/tasks?user_id=&status=.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	tasks, err := h.tasks.List(ctx, chi.URLParam(r, "tenantID"), q.Get("user_id"), storage.TaskStatus(q.Get("status")))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list tasks")
		return
	}

	resp := TaskListResponse{Tasks: make([]TaskResponse, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, toTaskResponse(t))
	}
	writeJSON(w, ctx, http.StatusOK, resp)
}

// Complete handles POST /api/tenants/{tenantID}/tasks/{taskID}/complete.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	task, err := h.tasks.Complete(ctx, chi.URLParam(r, "tenantID"), chi.URLParam(r, "taskID"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to complete task")
		return
	}
	writeJSON(w, ctx, http.StatusOK, toTaskResponse(task))
}

func toTaskResponse(t *storage.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		TenantID:    t.TenantID,
		UserID:      t.UserID,
		NoteID:      t.NoteID,
		Description: t.Description,
		DueDate:     formatOptionalTime(t.DueDate),
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		CompletedAt: formatOptionalTime(t.CompletedAt),
	}
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
