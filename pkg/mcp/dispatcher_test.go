package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// testLogger returns a quiet logger in the shape the server uses.
func testLogger(t *testing.T) (logger *slog.Logger) {
	t.Helper()

	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	return logger
}

// newTestDispatcher builds a dispatcher over the benchmark tools plus two
// deliberately broken tools for fault isolation tests.
func newTestDispatcher(t *testing.T) (dispatcher *Dispatcher, registry *Registry) {
	t.Helper()

	registry = NewRegistry()
	toolset := NewToolset(nil)

	err := toolset.RegisterAll(registry)
	require.NoError(t, err)

	err = registry.Register(&Tool{
		Name:        "always_fails",
		Description: "returns an error",
		Handler: func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
			return nil, errors.New("deliberate failure")
		},
	})
	require.NoError(t, err)

	err = registry.Register(&Tool{
		Name:        "always_panics",
		Description: "panics",
		Handler: func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
			panic("deliberate panic")
		},
	})
	require.NoError(t, err)

	dispatcher = NewDispatcher(registry, testLogger(t))

	return dispatcher, registry
}

// decodePayload unwraps the JSON payload from a successful result's first
// text block.
func decodePayload(t *testing.T, result *ToolCallResult) (payload map[string]interface{}) {
	t.Helper()

	require.NotNil(t, result)
	require.False(t, result.IsError, "expected success, got failure: %+v", result.Content)
	require.NotEmpty(t, result.Content)
	require.Equal(t, "text", result.Content[0].Type)

	err := json.Unmarshal([]byte(result.Content[0].Text), &payload)
	require.NoError(t, err, "tool payload should be valid JSON")

	return payload
}

func TestDispatchSuccess(t *testing.T) {
	t.Parallel()

	dispatcher, _ := newTestDispatcher(t)

	result, err := dispatcher.Dispatch(context.Background(), MCPToolCallParams{
		Name:      "calculate_fibonacci",
		Arguments: map[string]interface{}{"n": float64(10)},
	})
	require.NoError(t, err)

	payload := decodePayload(t, result)
	require.Equal(t, float64(55), payload["result"])
	require.Equal(t, float64(10), payload["input"])
	require.Equal(t, "go", payload["server_type"])
}

func TestDispatchUnknownTool(t *testing.T) {
	t.Parallel()

	dispatcher, registry := newTestDispatcher(t)

	before := len(registry.List())

	result, err := dispatcher.Dispatch(context.Background(), MCPToolCallParams{
		Name: "no_such_tool",
	})
	require.ErrorIs(t, err, ErrUnknownTool, "unknown tool is a dispatch-level error, not a tool result")
	require.Nil(t, result)

	// The failed lookup must not disturb the registry.
	require.Len(t, registry.List(), before)

	// And a subsequent valid call still succeeds.
	result, err = dispatcher.Dispatch(context.Background(), MCPToolCallParams{
		Name:      "calculate_fibonacci",
		Arguments: map[string]interface{}{"n": float64(1)},
	})
	require.NoError(t, err)

	payload := decodePayload(t, result)
	require.Equal(t, float64(1), payload["result"])
}

func TestDispatchValidationFailure(t *testing.T) {
	t.Parallel()

	dispatcher, _ := newTestDispatcher(t)

	// Out-of-range and mistyped arguments come back as tool Failures, not
	// dispatch errors.
	cases := []map[string]interface{}{
		{"n": float64(-1)},
		{"n": float64(41)},
		{"n": "ten"},
		{},
	}

	for _, args := range cases {
		result, err := dispatcher.Dispatch(context.Background(), MCPToolCallParams{
			Name:      "calculate_fibonacci",
			Arguments: args,
		})
		require.NoError(t, err, "validation failure must not be a dispatch error (args %v)", args)
		require.NotNil(t, result)

		if !result.IsError {
			t.Errorf("Dispatch() with args %v returned success, want Failure", args)
		}
	}
}

func TestDispatchHandlerError(t *testing.T) {
	t.Parallel()

	dispatcher, _ := newTestDispatcher(t)

	result, err := dispatcher.Dispatch(context.Background(), MCPToolCallParams{
		Name: "always_fails",
	})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "deliberate failure")
}

func TestDispatchHandlerPanicIsolated(t *testing.T) {
	t.Parallel()

	dispatcher, _ := newTestDispatcher(t)

	result, err := dispatcher.Dispatch(context.Background(), MCPToolCallParams{
		Name: "always_panics",
	})
	require.NoError(t, err, "a panicking handler must not escape the dispatcher")
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "deliberate panic")

	// The dispatcher keeps serving after the panic.
	result, err = dispatcher.Dispatch(context.Background(), MCPToolCallParams{
		Name:      "calculate_fibonacci",
		Arguments: map[string]interface{}{"n": float64(0)},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestDispatchConcurrentFailuresDoNotInterfere(t *testing.T) {
	t.Parallel()

	dispatcher, _ := newTestDispatcher(t)

	done := make(chan error, 20)

	for i := 0; i < 20; i++ {
		go func(i int) {
			name := "calculate_fibonacci"
			args := map[string]interface{}{"n": float64(i % 10)}
			if i%3 == 0 {
				name = "always_fails"
				args = nil
			}

			result, err := dispatcher.Dispatch(context.Background(), MCPToolCallParams{
				Name:      name,
				Arguments: args,
			})
			if err != nil {
				done <- err
				return
			}
			if name == "always_fails" && !result.IsError {
				done <- fmt.Errorf("expected failure from always_fails")
				return
			}
			if name == "calculate_fibonacci" && result.IsError {
				done <- fmt.Errorf("unexpected failure: %+v", result.Content)
				return
			}
			done <- nil
		}(i)
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}
}
