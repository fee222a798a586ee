package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/KatnessChen/MaraMap-Backend/internal/logging"
	"github.com/KatnessChen/MaraMap-Backend/internal/metrics"
)

const MaxLogsPerTask = 200

type task struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	handler  TaskFunc

	registeredAt time.Time

	mu         sync.Mutex
	running    bool
	runs       int
	lastRun    time.Time
	lastResult string
	logs       []LogEntry
}

// run executes the handler unless a previous run is still in progress.
// It reports whether the handler was executed.
func (t *task) run(ctx context.Context, zlog zerolog.Logger) bool {
	l := zlog.With().Str("task", t.name).Logger()

	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		l.Warn().Msg("task is already running, skipping execution")
		return false
	}
	t.running = true
	t.logs = t.logs[:0]
	t.mu.Unlock()

	taskLogger := logging.NewMultiLogger(logging.NewZLogger(l), &taskLog{task: t})

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	err := t.handler(runCtx, taskLogger)
	took := time.Since(start)

	t.mu.Lock()
	t.running = false
	t.runs++
	t.lastRun = start
	if err != nil {
		t.lastResult = fmt.Sprintf("failed: %v", err)
	} else {
		t.lastResult = "success"
	}
	t.mu.Unlock()

	metrics.RecordTaskRun(t.name, err)
	if err != nil {
		taskLogger.Error("task failed after %s: %v", took, err)
	} else {
		taskLogger.Debug("task completed in %s", took)
	}
	return true
}

func (t *task) status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := TaskStatus{
		Name:       t.name,
		Running:    t.running,
		Runs:       t.runs,
		LastRun:    t.lastRun,
		LastResult: t.lastResult,
	}
	if t.interval > 0 {
		s.Interval = t.interval.String()
		if t.lastRun.IsZero() {
			s.NextRun = t.registeredAt.Add(t.interval)
		} else {
			s.NextRun = t.lastRun.Add(t.interval)
		}
	}
	return s
}

func (t *task) appendLog(level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logs = append(t.logs, LogEntry{Time: time.Now(), Level: level, Message: msg})
	if len(t.logs) > MaxLogsPerTask {
		t.logs = t.logs[1:]
	}
}

func (t *task) getLogs() []LogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]LogEntry, len(t.logs))
	copy(out, t.logs)
	return out
}

// taskLog keeps the output of the latest run with the task.
type taskLog struct {
	task *task
}

func (l *taskLog) Debug(format string, args ...any) { l.task.appendLog("debug", fmt.Sprintf(format, args...)) }
func (l *taskLog) Info(format string, args ...any)  { l.task.appendLog("info", fmt.Sprintf(format, args...)) }
func (l *taskLog) Warn(format string, args ...any)  { l.task.appendLog("warn", fmt.Sprintf(format, args...)) }
func (l *taskLog) Error(format string, args ...any) { l.task.appendLog("error", fmt.Sprintf(format, args...)) }
