package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikogura/mcp-bench/pkg/metrics"
)

// ErrUnknownTool is returned when a call names a tool that is not
// registered. It is a dispatch-level error: the transport reports it as a
// protocol error rather than delivering it as a tool result.
var ErrUnknownTool = errors.New("unknown tool")

// Dispatcher routes validated tool calls to their handlers and normalizes
// every outcome into a ToolCallResult envelope.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over a frozen registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) (dispatcher *Dispatcher) {
	dispatcher = &Dispatcher{
		registry: registry,
		logger:   logger,
	}
	return dispatcher
}

// Dispatch resolves, decodes, and invokes one tool call.
//
// Error contract: a non-nil error means the request itself was broken
// (unknown tool) and no tool ran. Everything else, including argument
// validation failures and handler faults, comes back as a result with
// IsError set, so one bad call never disturbs the session or its
// neighbors.
func (d *Dispatcher) Dispatch(ctx context.Context, params MCPToolCallParams) (result *ToolCallResult, err error) {
	tool, found := d.registry.Lookup(params.Name)
	if !found {
		metrics.ToolExecutionsTotal.WithLabelValues(params.Name, metrics.StatusUnknown).Inc()
		err = fmt.Errorf("%w: %s", ErrUnknownTool, params.Name)
		return nil, err
	}

	args, decodeErr := DecodeArguments(tool.Schema, params.Arguments)
	if decodeErr != nil {
		d.logger.WarnContext(ctx, "tool arguments rejected",
			slog.String("tool", params.Name),
			slog.String("error", decodeErr.Error()))
		metrics.ToolExecutionsTotal.WithLabelValues(params.Name, metrics.StatusInvalid).Inc()

		result = failureResult(decodeErr.Error())
		return result, err
	}

	start := time.Now()
	payload, handlerErr := d.invoke(ctx, tool, args)
	metrics.ToolDurationSeconds.WithLabelValues(params.Name).Observe(time.Since(start).Seconds())

	if handlerErr != nil {
		d.logger.WarnContext(ctx, "tool execution failed",
			slog.String("tool", params.Name),
			slog.String("error", handlerErr.Error()))
		metrics.ToolExecutionsTotal.WithLabelValues(params.Name, metrics.StatusError).Inc()

		result = failureResult(handlerErr.Error())
		return result, err
	}

	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		metrics.ToolExecutionsTotal.WithLabelValues(params.Name, metrics.StatusError).Inc()

		result = failureResult(fmt.Sprintf("encoding tool result: %v", marshalErr))
		return result, err
	}

	metrics.ToolExecutionsTotal.WithLabelValues(params.Name, metrics.StatusSuccess).Inc()

	result = textResult(string(data))
	return result, err
}

// invoke runs the handler with panic isolation. A panicking handler is a
// bug in the tool, not grounds to take down the session serving it.
func (d *Dispatcher) invoke(ctx context.Context, tool *Tool, args map[string]interface{}) (payload interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "tool handler panicked",
				slog.String("tool", tool.Name),
				slog.Any("panic", r))
			err = fmt.Errorf("tool %s panicked: %v", tool.Name, r)
		}
	}()

	payload, err = tool.Handler(ctx, args)
	return payload, err
}
