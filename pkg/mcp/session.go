package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nikogura/mcp-bench/pkg/metrics"
	"github.com/oklog/ulid/v2"
)

// ErrSessionNotFound is returned when a call references a session id that
// was never opened or has already been closed.
var ErrSessionNotFound = errors.New("session not found")

// Session is one logical client conversation. Many tool calls may be in
// flight on a session at once; sessions never share mutable state with each
// other.
type Session struct {
	ID        string
	CreatedAt time.Time

	events chan []byte
	done   chan struct{}

	lastActive atomic.Int64 // unix nanos
	inflight   atomic.Int64
	closeOnce  sync.Once
}

// Events returns the channel of queued outbound payloads for this session.
func (s *Session) Events() (events <-chan []byte) {
	events = s.events
	return events
}

// Done returns a channel closed when the session is terminated server-side.
func (s *Session) Done() (done <-chan struct{}) {
	done = s.done
	return done
}

// Push queues an outbound payload for the session's event stream. Payloads
// are dropped when the buffer is full rather than blocking the caller.
func (s *Session) Push(data []byte) (queued bool) {
	select {
	case s.events <- data:
		queued = true
	default:
	}

	return queued
}

// InFlight reports the number of currently-executing calls on the session.
func (s *Session) InFlight() (count int64) {
	count = s.inflight.Load()
	return count
}

// touch records activity for idle-expiry accounting.
func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// idleSince reports the last moment the session saw traffic.
func (s *Session) idleSince() (t time.Time) {
	t = time.Unix(0, s.lastActive.Load())
	return t
}

// close marks the session terminated. Safe to call more than once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// SessionManager owns the keyed collection of live sessions and routes
// tool calls through the dispatcher. All cross-session state lives here,
// behind one lock; individual calls run without it.
type SessionManager struct {
	dispatcher *Dispatcher
	logger     *slog.Logger

	idleTimeout time.Duration

	sessionsMu sync.RWMutex
	sessions   map[string]*Session

	ulidEntropy *ulid.MonotonicEntropy
	ulidMu      sync.Mutex
}

// NewSessionManager creates a session manager routing through dispatcher.
// Sessions idle longer than idleTimeout are evicted by the janitor.
func NewSessionManager(dispatcher *Dispatcher, idleTimeout time.Duration, logger *slog.Logger) (manager *SessionManager) {
	manager = &SessionManager{
		dispatcher:  dispatcher,
		logger:      logger,
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*Session),
		ulidEntropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0), //nolint:gosec // correlation ids, not secrets
	}

	return manager
}

// Open creates a new session with a server-generated identity.
func (m *SessionManager) Open() (session *Session) {
	session = &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		events:    make(chan []byte, 100),
		done:      make(chan struct{}),
	}
	session.touch()

	m.sessionsMu.Lock()
	m.sessions[session.ID] = session
	m.sessionsMu.Unlock()

	metrics.SessionsOpenedTotal.Inc()
	metrics.SessionsActive.Inc()

	m.logger.Info("session opened", slog.String("session_id", session.ID))

	return session
}

// Get resolves a live session by id.
func (m *SessionManager) Get(id string) (session *Session, found bool) {
	m.sessionsMu.RLock()
	session, found = m.sessions[id]
	m.sessionsMu.RUnlock()

	return session, found
}

// Route runs one tool call on behalf of a session. Calls on the same
// session may run concurrently; each result is returned to its own caller,
// so completion order never causes cross-talk.
func (m *SessionManager) Route(ctx context.Context, sessionID string, params MCPToolCallParams) (result *ToolCallResult, err error) {
	session, found := m.Get(sessionID)
	if !found {
		err = fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		return nil, err
	}

	callID := m.newCallID()
	session.touch()
	session.inflight.Add(1)
	defer func() {
		session.inflight.Add(-1)
		session.touch()
	}()

	m.logger.InfoContext(ctx, "routing tool call",
		slog.String("session_id", sessionID),
		slog.String("call_id", callID),
		slog.String("tool", params.Name))

	result, err = m.dispatcher.Dispatch(ctx, params)
	return result, err
}

// Close terminates one session. In-flight calls may still complete; their
// results are simply dropped if nobody is reading the event stream.
func (m *SessionManager) Close(id string) (found bool) {
	m.sessionsMu.Lock()
	session, found := m.sessions[id]
	if found {
		delete(m.sessions, id)
	}
	m.sessionsMu.Unlock()

	if found {
		session.close()
		metrics.SessionsActive.Dec()
		m.logger.Info("session closed", slog.String("session_id", id))
	}

	return found
}

// CloseAll terminates every live session, used during shutdown.
func (m *SessionManager) CloseAll() {
	m.sessionsMu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.sessionsMu.Unlock()

	for _, session := range sessions {
		session.close()
		metrics.SessionsActive.Dec()
	}
}

// Count reports the number of live sessions.
func (m *SessionManager) Count() (count int) {
	m.sessionsMu.RLock()
	count = len(m.sessions)
	m.sessionsMu.RUnlock()

	return count
}

// RunJanitor evicts idle sessions until ctx is cancelled.
func (m *SessionManager) RunJanitor(ctx context.Context) {
	interval := m.idleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			m.evictIdle()
		}
	}
}

// evictIdle closes sessions with no traffic and no in-flight calls for
// longer than the idle timeout.
func (m *SessionManager) evictIdle() {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.sessionsMu.RLock()
	var expired []string
	for id, session := range m.sessions {
		if session.InFlight() == 0 && session.idleSince().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	m.sessionsMu.RUnlock()

	for _, id := range expired {
		if m.Close(id) {
			m.logger.Info("idle session evicted", slog.String("session_id", id))
		}
	}
}

// newCallID mints a sortable correlation id for one tool call.
func (m *SessionManager) newCallID() (id string) {
	m.ulidMu.Lock()
	id = ulid.MustNew(ulid.Timestamp(time.Now()), m.ulidEntropy).String()
	m.ulidMu.Unlock()

	return id
}
