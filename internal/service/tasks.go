package service

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_task_service.go -package=mocks diary-assistant/internal/service TaskService

import (
	"context"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/storage"
)

// TaskService lists and completes extracted tasks.
type TaskService interface {
	List(ctx context.Context, tenantID, userID string, status storage.TaskStatus) ([]*storage.Task, error)
	Complete(ctx context.Context, tenantID, taskID string) (*storage.Task, error)
}

// taskService implements TaskService.
type taskService struct {
	tasks storage.TaskStore
}

// NewTaskService creates a new TaskService.
func NewTaskService(tasks storage.TaskStore) TaskService {
	return &taskService{tasks: tasks}
}

// List returns the tenant's tasks, newest first.
func (s *taskService) List(ctx context.Context, tenantID, userID string, status storage.TaskStatus) ([]*storage.Task, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	switch status {
	case "", storage.TaskStatusOpen, storage.TaskStatusCompleted:
	default:
		return nil, &ValidationError{Field: "status", Message: "must be open or completed"}
	}

	tasks, err := s.tasks.List(ctx, storage.TaskFilter{TenantID: tenantID, UserID: userID, Status: status})
	if err != nil {
		return nil, WrapError(err, "failed to list tasks")
	}
	if tasks == nil {
		tasks = []*storage.Task{}
	}
	return tasks, nil
}

// Complete marks a task done.
func (s *taskService) Complete(ctx context.Context, tenantID, taskID string) (*storage.Task, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	task, err := s.tasks.Complete(ctx, tenantID, taskID)
	if err != nil {
		return nil, storeError(err, "failed to complete task")
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "task completed", "task_id", taskID)
	return task, nil
}
