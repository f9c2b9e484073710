// Package taskmgr implements the Task Manager component (spec.md §4.6):
// a bounded-concurrency pool for background graph executions with
// reference-holding task tracking and graceful shutdown.
//
// Grounded on original_source/src/api/services/task_manager.py for WHAT
// (outer per-run concurrency bound, self-cleanup on completion,
// timeout-then-cancel shutdown) and internal/agent/tool_exec.go's
// channel-as-semaphore + sync.WaitGroup idiom for HOW (see DESIGN.md on why
// this is a distinct layer from the Agent Runtime's per-turn tool
// concurrency, which reuses the same teacher file for a different bound).
package taskmgr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager bounds simultaneous LLM-bearing runs (spec.md §5 "Bounded
// parallelism", max_concurrent default 10).
type Manager struct {
	mu      sync.Mutex
	sem     chan struct{}
	tasks   map[string]context.CancelFunc
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewManager(maxConcurrent int, logger *slog.Logger) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sem:    make(chan struct{}, maxConcurrent),
		tasks:  make(map[string]context.CancelFunc),
		logger: logger.With("component", "taskmgr"),
	}
}

// Submit launches work under the semaphore, tracked by taskID so it can't
// be garbage collected and so Shutdown can cancel it. Submit itself never
// blocks on semaphore capacity — the permit wait happens inside the
// spawned goroutine, matching spec.md §4.6's "submit does not block on
// semaphore capacity from the caller's perspective."
func (m *Manager) Submit(ctx context.Context, taskID string, work func(ctx context.Context)) error {
	m.mu.Lock()
	if _, exists := m.tasks[taskID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("task %q already running", taskID)
	}
	taskCtx, cancel := context.WithCancel(ctx)
	m.tasks[taskID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.remove(taskID)
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("task panicked", "task_id", taskID, "panic", r)
			}
		}()

		select {
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
		case <-taskCtx.Done():
			return
		}

		work(taskCtx)
	}()

	return nil
}

func (m *Manager) remove(taskID string) {
	m.mu.Lock()
	delete(m.tasks, taskID)
	m.mu.Unlock()
}

// Cancel cancels one in-flight task by id, if present.
func (m *Manager) Cancel(taskID string) {
	m.mu.Lock()
	cancel, ok := m.tasks[taskID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// Shutdown waits up to timeout for all tasks to finish, then cancels the
// survivors and awaits their teardown.
func (m *Manager) Shutdown(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
	}

	m.mu.Lock()
	survivors := make([]context.CancelFunc, 0, len(m.tasks))
	for _, cancel := range m.tasks {
		survivors = append(survivors, cancel)
	}
	m.mu.Unlock()

	m.logger.Warn("shutdown grace period elapsed, cancelling remaining tasks", "count", len(survivors))
	for _, cancel := range survivors {
		cancel()
	}
	<-done
}

// ActiveCount returns the number of tracked in-flight tasks.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
