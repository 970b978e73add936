package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_task_store.go -package=mocks diary-assistant/internal/storage TaskStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const taskColumns = "id, tenant_id, user_id, note_id, description, due_date, status, created_at, completed_at"

// TaskStore defines the interface for task storage operations.
type TaskStore interface {
	// Create inserts a new open task. An empty ID is replaced with a fresh UUID.
	Create(ctx context.Context, task *Task) error
	// FindOpen returns the open task with exactly this description on the note.
	// Returns nil and ErrNotFound if there is none.
	FindOpen(ctx context.Context, tenantID, noteID, description string) (*Task, error)
	// List returns the tasks matching filter, newest first.
	List(ctx context.Context, filter TaskFilter) ([]*Task, error)
	// Complete marks a task completed and returns it.
	// Returns ErrNotFound if the task does not exist in the tenant.
	Complete(ctx context.Context, tenantID, id string) (*Task, error)
}

// TaskRepo provides methods for task operations.
// It implements the TaskStore interface.
type TaskRepo struct {
	db *sql.DB
}

// NewTaskRepo creates a new TaskRepo.
func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// Create inserts a new task.
func (r *TaskRepo) Create(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = TaskStatusOpen
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, tenant_id, user_id, note_id, description, due_date, status, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.TenantID, task.UserID, task.NoteID, task.Description,
		formatNullableTime(task.DueDate), string(task.Status), formatTime(task.CreatedAt),
		formatNullableTime(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// FindOpen returns the open task matching the dedup key.
func (r *TaskRepo) FindOpen(ctx context.Context, tenantID, noteID, description string) (*Task, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE tenant_id = ? AND note_id = ? AND description = ? AND status = ? LIMIT 1",
		tenantID, noteID, description, string(TaskStatusOpen),
	)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return task, nil
}

// List returns the tasks of a tenant, optionally narrowed by user and status.
func (r *TaskRepo) List(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	var (
		where strings.Builder
		args  []any
	)
	where.WriteString("tenant_id = ?")
	args = append(args, filter.TenantID)
	if filter.UserID != "" {
		where.WriteString(" AND user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		where.WriteString(" AND status = ?")
		args = append(args, string(filter.Status))
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE "+where.String()+" ORDER BY created_at DESC, id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tasks, nil
}

// Complete marks a task completed. Completing an already completed task keeps
// the original completion time.
func (r *TaskRepo) Complete(ctx context.Context, tenantID, id string) (*Task, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = COALESCE(completed_at, ?)
		 WHERE tenant_id = ? AND id = ?`,
		string(TaskStatusCompleted), formatTime(now), tenantID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE tenant_id = ? AND id = ?", tenantID, id)
	task, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}
	return task, nil
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		task                 Task
		status, createdAt    string
		dueDate, completedAt sql.NullString
	)
	if err := row.Scan(&task.ID, &task.TenantID, &task.UserID, &task.NoteID, &task.Description,
		&dueDate, &status, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	task.Status = TaskStatus(status)
	var err error
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.DueDate, err = parseNullableTime(dueDate); err != nil {
		return nil, err
	}
	if task.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, err
	}
	return &task, nil
}
