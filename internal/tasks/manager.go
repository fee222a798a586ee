// Package tasks runs periodic background jobs.
package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultTaskTimeout = time.Minute

type Option func(*task)

// WithTimeout bounds a single run.
func WithTimeout(d time.Duration) Option {
	return func(t *task) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// Manager owns a set of named tasks and their schedules.
type Manager struct {
	mu      sync.Mutex
	tasks   map[string]*task
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewManager creates a manager whose schedules stop when ctx is done or Stop is called.
func NewManager(ctx context.Context) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		tasks:  make(map[string]*task),
		ctx:    ctx,
		cancel: cancel,
		logger: *log.Ctx(ctx),
	}
}

// Register adds a task. With a positive interval it is scheduled right away;
// the first run happens after one interval. Tasks registered after Stop are
// listed but never scheduled.
func (m *Manager) Register(name string, interval time.Duration, fn TaskFunc, opts ...Option) {
	t := &task{
		name:         name,
		interval:     interval,
		timeout:      DefaultTaskTimeout,
		handler:      fn,
		registeredAt: time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[name] = t
	if interval > 0 && !m.stopped {
		m.wg.Add(1)
		go m.schedule(t)
	}
}

func (m *Manager) lookup(name string) (*task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[name]
	if !ok {
		return nil, TaskNotFoundError{Name: name}
	}
	return t, nil
}

// Trigger starts a run in the background. It fails with ErrManagerStopped
// once Stop has been called.
func (m *Manager) Trigger(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrManagerStopped
	}
	t, ok := m.tasks[name]
	if !ok {
		return TaskNotFoundError{Name: name}
	}
	// wg.Add under mu so Stop cannot be waiting yet
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t.run(m.ctx, m.logger)
	}()
	return nil
}

// RunNow runs the task on the calling goroutine and reports whether it ran.
func (m *Manager) RunNow(ctx context.Context, name string) (bool, error) {
	if m.isStopped() {
		return false, ErrManagerStopped
	}
	t, err := m.lookup(name)
	if err != nil {
		return false, err
	}
	return t.run(ctx, m.logger), nil
}

func (m *Manager) ListStatus() []TaskStatus {
	m.mu.Lock()
	list := make([]TaskStatus, 0, len(m.tasks))
	for _, t := range m.tasks {
		list = append(list, t.status())
	}
	m.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func (m *Manager) GetLogs(name string) ([]LogEntry, error) {
	t, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	return t.getLogs(), nil
}

// Stop cancels all schedules and waits for running tasks to return.
// It is safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Manager) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *Manager) schedule(t *task) {
	defer m.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			t.run(m.ctx, m.logger)
		}
	}
}
