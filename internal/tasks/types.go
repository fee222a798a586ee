package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KatnessChen/MaraMap-Backend/internal/logging"
)

// TaskFunc is the unit of work. Output written to logger is kept with the task.
type TaskFunc func(ctx context.Context, logger logging.InternalLogger) error

type TaskStatus struct {
	Name       string    `json:"name"`
	Interval   string    `json:"interval,omitempty"`
	Running    bool      `json:"running,omitempty"`
	Runs       int       `json:"runs"`
	LastRun    time.Time `json:"last_run"`
	LastResult string    `json:"last_result,omitempty"`
	NextRun    time.Time `json:"next_run"`
}

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level,omitempty"`
	Message string    `json:"message,omitempty"`
}

type TaskNotFoundError struct {
	Name string
}

func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("task '%s' not found", e.Name)
}

// ErrManagerStopped is returned for runs requested after Stop.
var ErrManagerStopped = errors.New("task manager stopped")
