package input

import (
	"context"

	"browser-pilot/internal/domain/entity"
)

// TaskController drives the single active task.
type TaskController interface {
	StartTask(ctx context.Context, goal string) error
	// StartTaskAsync returns the new task id and a channel carrying the run's outcome.
	StartTaskAsync(ctx context.Context, goal string) (string, <-chan error, error)
	CancelTask() error
	PauseTask() error
	ResumeTask() error
	GetContext() entity.TaskSnapshot
}
