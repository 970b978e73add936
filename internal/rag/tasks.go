package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/metrics"
	"diary-assistant/internal/storage"
)

// TaskRecorder persists extracted tasks against the notes they came from.
type TaskRecorder struct {
	notes storage.NoteStore
	tasks storage.TaskStore
}

// NewTaskRecorder creates a TaskRecorder.
func NewTaskRecorder(notes storage.NoteStore, tasks storage.TaskStore) *TaskRecorder {
	return &TaskRecorder{
		notes: notes,
		tasks: tasks,
	}
}

// Record stores each candidate as an open task on the first note among results,
// unless an open task with the same description already exists there.
// The owner is userID when set, otherwise the note's author.
// It returns the number of tasks created.
func (r *TaskRecorder) Record(ctx context.Context, tenantID, userID string, results []SearchResult, candidates []ExtractedTask) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	noteID := primaryNoteID(results)
	if noteID == "" || len(candidates) == 0 {
		return 0, nil
	}

	owner := userID
	if owner == "" {
		note, err := r.notes.Get(ctx, tenantID, noteID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				logger.InfoContext(ctx, "source note gone, not recording tasks", "note_id", noteID)
				metrics.TasksRecordedTotal.WithLabelValues("skipped").Add(float64(len(candidates)))
				return 0, nil
			}
			return 0, fmt.Errorf("get note: %w", err)
		}
		owner = note.UserID
	}

	var created int
	for _, candidate := range candidates {
		desc := strings.TrimSpace(candidate.Description)
		if desc == "" {
			metrics.TasksRecordedTotal.WithLabelValues("skipped").Inc()
			continue
		}

		_, err := r.tasks.FindOpen(ctx, tenantID, noteID, desc)
		switch {
		case err == nil:
			metrics.TasksRecordedTotal.WithLabelValues("duplicate").Inc()
			continue
		case !errors.Is(err, storage.ErrNotFound):
			return created, fmt.Errorf("find open task: %w", err)
		}

		task := &storage.Task{
			TenantID:    tenantID,
			UserID:      owner,
			NoteID:      noteID,
			Description: desc,
			DueDate:     parseDueDate(candidate.DueDate),
			Status:      storage.TaskStatusOpen,
		}
		if err := r.tasks.Create(ctx, task); err != nil {
			return created, fmt.Errorf("create task: %w", err)
		}
		metrics.TasksRecordedTotal.WithLabelValues("created").Inc()
		created++
	}

	logger.DebugContext(ctx, "tasks recorded", "note_id", noteID, "candidates", len(candidates), "created", created)
	return created, nil
}

func primaryNoteID(results []SearchResult) string {
	for _, r := range results {
		if r.NoteID != "" {
			return r.NoteID
		}
	}
	return ""
}

// parseDueDate accepts RFC 3339 timestamps and bare dates. Anything else means no due date.
func parseDueDate(s string) *time.Time {
	t, ok := parseFilterDate(s)
	if !ok {
		return nil
	}
	return &t
}
