package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// newTestManager builds a session manager over the benchmark tools.
func newTestManager(t *testing.T, idleTimeout time.Duration) (manager *SessionManager) {
	t.Helper()

	dispatcher, _ := newTestDispatcher(t)
	manager = NewSessionManager(dispatcher, idleTimeout, testLogger(t))

	return manager
}

func TestSessionOpenGetClose(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Minute)

	session := manager.Open()
	require.NotNil(t, session)
	require.NotEmpty(t, session.ID)

	got, found := manager.Get(session.ID)
	require.True(t, found)
	require.Same(t, session, got)

	require.True(t, manager.Close(session.ID))

	_, found = manager.Get(session.ID)
	require.False(t, found, "closed session must be gone")

	require.False(t, manager.Close(session.ID), "double close reports not found")

	select {
	case <-session.Done():
	default:
		t.Error("Close() should signal the session's done channel")
	}
}

func TestSessionIdentitiesAreUnique(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Minute)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		session := manager.Open()
		if seen[session.ID] {
			t.Fatalf("duplicate session id %s", session.ID)
		}
		seen[session.ID] = true
	}

	require.Equal(t, 50, manager.Count())
}

func TestRouteUnknownSession(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Minute)

	_, err := manager.Route(context.Background(), "nope", MCPToolCallParams{
		Name:      "calculate_fibonacci",
		Arguments: map[string]interface{}{"n": float64(1)},
	})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRouteDelegatesToDispatcher(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Minute)
	session := manager.Open()

	result, err := manager.Route(context.Background(), session.ID, MCPToolCallParams{
		Name:      "calculate_fibonacci",
		Arguments: map[string]interface{}{"n": float64(10)},
	})
	require.NoError(t, err)

	payload := decodePayload(t, result)
	require.Equal(t, float64(55), payload["result"])
}

// TestConcurrentCallsNoCrossTalk routes N concurrent simulated queries with
// distinct delays through one session and checks that every caller gets the
// result matching its own delay, and that total wall time tracks the
// longest delay rather than the sum.
func TestConcurrentCallsNoCrossTalk(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Minute)
	session := manager.Open()

	delays := []int{50, 100, 150, 200, 250}

	var sum int
	for _, d := range delays {
		sum += d
	}

	start := time.Now()

	group, ctx := errgroup.WithContext(context.Background())
	for _, delay := range delays {
		delay := delay
		group.Go(func() error {
			result, err := manager.Route(ctx, session.ID, MCPToolCallParams{
				Name: "simulate_database_query",
				Arguments: map[string]interface{}{
					"query":    fmt.Sprintf("SELECT %d", delay),
					"delay_ms": float64(delay),
				},
			})
			if err != nil {
				return err
			}
			if result.IsError {
				return fmt.Errorf("call with delay %d failed: %+v", delay, result.Content)
			}

			var payload map[string]interface{}
			if err = json.Unmarshal([]byte(result.Content[0].Text), &payload); err != nil {
				return fmt.Errorf("call with delay %d returned invalid payload: %w", delay, err)
			}

			if payload["delay_ms"] != float64(delay) {
				return fmt.Errorf("call with delay %d got result for delay %v", delay, payload["delay_ms"])
			}
			if payload["query"] != fmt.Sprintf("SELECT %d", delay) {
				return fmt.Errorf("call with delay %d got query %v", delay, payload["query"])
			}

			return nil
		})
	}

	require.NoError(t, group.Wait())

	elapsed := time.Since(start)

	// All five ran concurrently: elapsed approximates max(delays), and must
	// be comfortably under sum(delays).
	require.Less(t, elapsed, time.Duration(sum)*time.Millisecond,
		"concurrent calls took %v, which suggests serial execution", elapsed)
	require.GreaterOrEqual(t, elapsed, 250*time.Millisecond,
		"elapsed time cannot undercut the longest requested delay")
}

func TestRouteTracksInFlightCalls(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Minute)
	session := manager.Open()

	started := make(chan struct{})
	release := make(chan error, 1)

	go func() {
		close(started)
		_, err := manager.Route(context.Background(), session.ID, MCPToolCallParams{
			Name: "simulate_database_query",
			Arguments: map[string]interface{}{
				"query":    "SELECT pg_sleep(1)",
				"delay_ms": float64(200),
			},
		})
		release <- err
	}()

	<-started

	// Give the routed call a moment to enter the handler.
	require.Eventually(t, func() bool {
		return session.InFlight() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, <-release)
	require.Equal(t, int64(0), session.InFlight())
}

func TestIdleSessionsEvicted(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, 20*time.Millisecond)

	stale := manager.Open()

	time.Sleep(50 * time.Millisecond)

	fresh := manager.Open()

	manager.evictIdle()

	_, found := manager.Get(stale.ID)
	require.False(t, found, "idle session should be evicted")

	_, found = manager.Get(fresh.ID)
	require.True(t, found, "active session must survive eviction")
}

func TestCloseAllTerminatesEverySession(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Minute)

	sessions := make([]*Session, 0, 5)
	for i := 0; i < 5; i++ {
		sessions = append(sessions, manager.Open())
	}

	manager.CloseAll()

	require.Equal(t, 0, manager.Count())

	for _, session := range sessions {
		select {
		case <-session.Done():
		default:
			t.Errorf("session %s not signalled done after CloseAll", session.ID)
		}
	}
}

func TestClosingOneSessionLeavesOthersServing(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Minute)

	victim := manager.Open()
	survivor := manager.Open()

	require.True(t, manager.Close(victim.ID))

	result, err := manager.Route(context.Background(), survivor.ID, MCPToolCallParams{
		Name:      "calculate_fibonacci",
		Arguments: map[string]interface{}{"n": float64(5)},
	})
	require.NoError(t, err)

	payload := decodePayload(t, result)
	require.Equal(t, float64(5), payload["result"])
}

func TestSessionPushAndEvents(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t, time.Minute)
	session := manager.Open()

	require.True(t, session.Push([]byte("hello")))

	select {
	case data := <-session.Events():
		require.Equal(t, "hello", string(data))
	default:
		t.Fatal("pushed event not readable")
	}
}
