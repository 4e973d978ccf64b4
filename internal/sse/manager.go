// ABOUTME: Session manager: mutex-guarded session table, per-session workers, idle reaper.
// ABOUTME: Each session's worker dispatches in arrival order so responses never reorder or cross sessions.

package sse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/toolgate/internal/dispatch"
	"github.com/2389/toolgate/internal/store"
)

// ErrManagerClosed is returned by Create after Close.
var ErrManagerClosed = errors.New("session manager closed")

// DefaultQueueSize is the inbound and outbound capacity per session.
const DefaultQueueSize = 64

// Invoker runs a request to completion. *dispatch.Dispatcher satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req dispatch.Request) dispatch.Response
}

// ManagerConfig contains configuration options for the Manager.
type ManagerConfig struct {
	Invoker     Invoker
	QueueSize   int
	IdleTimeout time.Duration // 0 disables the reaper
	Logger      *slog.Logger
}

// Manager owns every SSE session.
type Manager struct {
	invoker     Invoker
	queueSize   int
	idleTimeout time.Duration
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	done    chan struct{}
	workers sync.WaitGroup
}

// NewManager creates a Manager and starts the idle reaper when configured.
func NewManager(cfg ManagerConfig) *Manager {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		invoker:     cfg.Invoker,
		queueSize:   queueSize,
		idleTimeout: cfg.IdleTimeout,
		logger:      logger.With("component", "sse"),
		sessions:    make(map[string]*Session),
		done:        make(chan struct{}),
	}
	if m.idleTimeout > 0 {
		go m.reaper()
	}
	return m
}

// Create opens a new session and starts its worker.
func (m *Manager) Create() (*Session, error) {
	sess := newSession(uuid.New().String(), m.queueSize)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.sessions[sess.ID] = sess
	m.workers.Add(1)
	m.mu.Unlock()

	go m.runWorker(sess)

	m.logger.Info("session opened", "session_id", sess.ID)
	return sess, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || sess.State() != SessionOpen {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownSession, id)
	}
	return sess, nil
}

// Submit queues a request on the session's worker.
func (m *Manager) Submit(id string, req dispatch.Request) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	req.Transport = store.TransportSSE
	req.SessionID = sess.ID
	if err := sess.enqueue(req); err != nil {
		return fmt.Errorf("%w: '%s'", err, id)
	}
	return nil
}

// Remove tears the session down and releases its id. It reports whether the
// session was present.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}

	discarded := sess.close()
	m.logger.Info("session closed",
		"session_id", id,
		"discarded", discarded,
		"age", time.Since(sess.CreatedAt).Round(time.Millisecond),
	)
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close tears down every session, stops the reaper, and waits for workers.
// It is safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Remove(id)
	}
	m.workers.Wait()
	m.logger.Info("session manager closed", "sessions", len(ids))
}

// runWorker dispatches one request at a time in arrival order.
func (m *Manager) runWorker(sess *Session) {
	defer m.workers.Done()

	for {
		select {
		case <-sess.done:
			return
		case req := <-sess.inbound:
			resp := m.invoker.Invoke(sess.ctx, req)
			select {
			case sess.outbound <- resp:
			case <-sess.done:
				return
			}
		}
	}
}

// reaper closes sessions idle longer than idleTimeout.
func (m *Manager) reaper() {
	interval := m.idleTimeout / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.reapIdle(now)
		case <-m.done:
			return
		}
	}
}

// reapIdle closes every session whose last activity is older than idleTimeout.
func (m *Manager) reapIdle(now time.Time) int {
	m.mu.RLock()
	var idle []string
	for id, sess := range m.sessions {
		if now.Sub(sess.LastActive()) > m.idleTimeout {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		m.logger.Info("reaping idle session", "session_id", id, "idle_timeout", m.idleTimeout)
		m.Remove(id)
	}
	return len(idle)
}
