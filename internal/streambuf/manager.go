// Package streambuf implements the Stream Buffer Manager component
// (spec.md §4.5): per-run buffered event queues that decouple agent/graph
// execution from the SSE consumer.
//
// Grounded on original_source/src/api/services/stream_manager.py for the
// exact TTL/lifecycle/heartbeat semantics (no teacher Go equivalent
// implements this precise contract — internal/gateway/stream_manager.go
// solves an adjacent but different problem; only its mutex/atomic-flag
// style informed this package, see DESIGN.md).
package streambuf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/artifactflow/server/internal/metrics"
	"github.com/artifactflow/server/pkg/models"
)

type status int

const (
	statusPending status = iota
	statusStreaming
	statusClosed
)

// buffer is a single-producer-single-consumer event queue for one run.
type buffer struct {
	mu       sync.Mutex
	status   status
	events   []models.Event
	notify   chan struct{} // signaled on push/close so Consume can wake
	ttlTimer *time.Timer
}

// Manager is the process-wide map of per-run buffers (spec.md §5 "The
// stream buffer map is guarded by a short-lived mutex").
type Manager struct {
	mu      sync.Mutex
	buffers map[string]*buffer
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Manager{buffers: make(map[string]*buffer), ttl: ttl}
}

// WithMetrics attaches a metrics sink; every buffer depth change after this
// call is reflected in the artifactflow_stream_buffer_depth gauge. Optional
// — a Manager with no metrics attached behaves exactly as before.
func (m *Manager) WithMetrics(mx *metrics.Metrics) *Manager {
	m.metrics = mx
	return m
}

// Create registers a new buffer for runID and starts its TTL timer.
func (m *Manager) Create(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.buffers[runID]; exists {
		return fmt.Errorf("%w: run %q already has a stream buffer", models.ErrDuplicate, runID)
	}
	b := &buffer{notify: make(chan struct{}, 1)}
	b.ttlTimer = time.AfterFunc(m.ttl, func() { m.closeIfPending(runID) })
	m.buffers[runID] = b
	return nil
}

func (m *Manager) closeIfPending(runID string) {
	m.mu.Lock()
	b, ok := m.buffers[runID]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	b.mu.Lock()
	if b.status == statusPending {
		b.status = statusClosed
		m.signal(b)
	}
	b.mu.Unlock()
}

func (m *Manager) get(runID string) (*buffer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers[runID]
	return b, ok
}

// Push enqueues an event. Returns false if the buffer is closed, signaling
// the producer that no consumer remains — the graph must still run to
// completion (spec.md §5 "Cancellation"), it just stops pushing.
func (m *Manager) Push(runID string, ev models.Event) bool {
	b, ok := m.get(runID)
	if !ok {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == statusClosed {
		return false
	}
	b.events = append(b.events, ev)
	depth := len(b.events)
	m.signal(b)
	m.metrics.SetStreamBufferDepth(runID, depth)
	return true
}

func (m *Manager) signal(b *buffer) {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Consume is a single-consumer channel-based iterator. On first call it
// cancels the TTL timer and marks the buffer streaming. It closes the
// returned channel after delivering a terminal event (complete/error), when
// ctx is done, or when the buffer is closed out from under it — ctx should
// be the SSE request's context, so a consumer disconnect (spec.md §5
// "Cancellation") promptly transitions the buffer to closed instead of
// leaving drain() blocked forever on a full, unread channel.
func (m *Manager) Consume(ctx context.Context, runID string, heartbeatInterval time.Duration) (<-chan models.Event, error) {
	b, ok := m.get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: run %q", models.ErrNotFound, runID)
	}

	b.mu.Lock()
	if b.status == statusPending {
		if b.ttlTimer != nil {
			b.ttlTimer.Stop()
		}
		b.status = statusStreaming
	}
	b.mu.Unlock()

	out := make(chan models.Event, 16)
	go m.drain(ctx, runID, b, out, heartbeatInterval)
	return out, nil
}

func (m *Manager) drain(ctx context.Context, runID string, b *buffer, out chan<- models.Event, heartbeatInterval time.Duration) {
	defer close(out)
	cursor := 0
	if heartbeatInterval <= 0 {
		heartbeatInterval = 15 * time.Second
	}

	for {
		b.mu.Lock()
		pending := append([]models.Event(nil), b.events[cursor:]...)
		closed := b.status == statusClosed
		b.mu.Unlock()

		for _, ev := range pending {
			select {
			case out <- ev:
			case <-ctx.Done():
				m.Close(runID)
				return
			}
			cursor++
			if ev.IsTerminal() {
				m.Close(runID)
				return
			}
		}
		if closed && len(pending) == 0 {
			return
		}

		select {
		case <-ctx.Done():
			m.Close(runID)
			return
		case <-b.notify:
		case <-time.After(heartbeatInterval):
			select {
			case out <- models.Event{Type: "heartbeat"}:
			case <-ctx.Done():
				m.Close(runID)
				return
			}
		}
	}
}

// CloseAll tears down every buffer still registered, for process shutdown
// (spec.md §9 "Global state": "close remaining stream buffers").
func (m *Manager) CloseAll() {
	m.mu.Lock()
	runIDs := make([]string, 0, len(m.buffers))
	for runID := range m.buffers {
		runIDs = append(runIDs, runID)
	}
	m.mu.Unlock()
	for _, runID := range runIDs {
		m.Close(runID)
	}
}

// Close idempotently tears down a buffer's timer and removes it from the map.
func (m *Manager) Close(runID string) {
	m.mu.Lock()
	b, ok := m.buffers[runID]
	if ok {
		delete(m.buffers, runID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	b.mu.Lock()
	b.status = statusClosed
	if b.ttlTimer != nil {
		b.ttlTimer.Stop()
	}
	b.mu.Unlock()
	m.metrics.DeleteStreamBufferDepth(runID)
}
