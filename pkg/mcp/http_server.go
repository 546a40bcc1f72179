package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nikogura/mcp-bench/pkg/mcp/auth"
	"github.com/nikogura/mcp-bench/pkg/metrics"
)

// MCP method names.
const (
	methodInitialize  = "initialize"
	methodInitialized = "notifications/initialized"
	methodPing        = "ping"
	methodToolsList   = "tools/list"
	methodToolsCall   = "tools/call"
)

// sessionHeader carries the session identity on every request after
// negotiation.
const sessionHeader = "Mcp-Session-Id"

// HTTPServer exposes the session manager over streaming HTTP. One POST
// carries one JSON-RPC request; responses are delivered inline as JSON or,
// when the client accepts it, as a flushed SSE event stream. A GET opens
// the session's server-to-client event stream.
type HTTPServer struct {
	registry   *Registry
	manager    *SessionManager
	logger     *slog.Logger
	httpServer *http.Server
	authChain  *auth.Chain
}

// NewHTTPServer creates the MCP transport bound to addr. authChain may be
// nil, which disables authentication; the benchmark default.
func NewHTTPServer(registry *Registry, manager *SessionManager, addr string, authChain *auth.Chain, logger *slog.Logger) (server *HTTPServer) {
	server = &HTTPServer{
		registry:  registry,
		manager:   manager,
		logger:    logger,
		authChain: authChain,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/health", server.handleHealth)

	router.Route("/mcp", func(r chi.Router) {
		r.Use(server.authMiddleware)
		r.Post("/", server.handlePost)
		r.Get("/", server.handleStream)
		r.Delete("/", server.handleDelete)
	})

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server
}

// Start serves until the listener fails or Shutdown is called. The session
// janitor runs for the lifetime of ctx.
func (h *HTTPServer) Start(ctx context.Context) (err error) {
	h.logger.InfoContext(ctx, "starting MCP HTTP server", slog.String("addr", h.httpServer.Addr))

	go h.manager.RunJanitor(ctx)

	err = h.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = nil
	return err
}

// Shutdown closes all sessions and drains the HTTP server.
func (h *HTTPServer) Shutdown(ctx context.Context) (err error) {
	h.logger.InfoContext(ctx, "shutting down MCP HTTP server")

	h.manager.CloseAll()

	err = h.httpServer.Shutdown(ctx)
	return err
}

// authMiddleware guards the MCP endpoint when an auth chain is configured.
func (h *HTTPServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.authChain == nil {
			next.ServeHTTP(w, r)
			return
		}

		_, err := h.authChain.Authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleHealth is the plain benchmark health probe.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","server_type":"` + serverType + `"}`))
}

// handlePost processes one JSON-RPC request.
func (h *HTTPServer) handlePost(w http.ResponseWriter, r *http.Request) {
	var request MCPRequest

	err := json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	metrics.RPCRequestsTotal.WithLabelValues(request.Method).Inc()

	h.logger.InfoContext(r.Context(), "received MCP request",
		slog.String("method", request.Method),
		slog.Any("id", request.ID))

	switch request.Method {
	case methodInitialize:
		h.handleInitialize(w, r, request)

	case methodInitialized:
		w.WriteHeader(http.StatusAccepted)

	case methodPing:
		h.respond(w, r, MCPResponse{
			JSONRPC: "2.0",
			ID:      request.ID,
			Result:  map[string]interface{}{},
		})

	case methodToolsList:
		h.respond(w, r, MCPResponse{
			JSONRPC: "2.0",
			ID:      request.ID,
			Result: map[string]interface{}{
				"tools": h.registry.Definitions(),
			},
		})

	case methodToolsCall:
		h.handleToolCall(w, r, request)

	default:
		h.respond(w, r, MCPResponse{
			JSONRPC: "2.0",
			ID:      request.ID,
			Error: &MCPError{
				Code:    codeMethodNotFound,
				Message: fmt.Sprintf("unknown method: %s", request.Method),
			},
		})
	}
}

// handleInitialize negotiates a new session and returns server info.
func (h *HTTPServer) handleInitialize(w http.ResponseWriter, r *http.Request, request MCPRequest) {
	session := h.manager.Open()

	info := MCPServerInfo{
		ProtocolVersion: protocolVersion,
		Capabilities: MCPCapabilities{
			Tools: map[string]interface{}{},
		},
		ServerInfo: ServerMetadata{
			Name:    serverName,
			Version: serverVersion,
		},
		Instructions: "Benchmark server exposing CPU-bound, I/O-bound, and mixed workload tools.",
	}

	w.Header().Set(sessionHeader, session.ID)

	h.respond(w, r, MCPResponse{
		JSONRPC: "2.0",
		ID:      request.ID,
		Result:  info,
	})
}

// handleToolCall routes one tool invocation through the session manager.
func (h *HTTPServer) handleToolCall(w http.ResponseWriter, r *http.Request, request MCPRequest) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		http.Error(w, sessionHeader+" header required", http.StatusBadRequest)
		return
	}

	var params MCPToolCallParams

	paramsJSON, _ := json.Marshal(request.Params)
	err := json.Unmarshal(paramsJSON, &params)
	if err != nil {
		h.respond(w, r, MCPResponse{
			JSONRPC: "2.0",
			ID:      request.ID,
			Error: &MCPError{
				Code:    codeInvalidParams,
				Message: fmt.Sprintf("invalid params: %v", err),
			},
		})
		return
	}

	result, err := h.manager.Route(r.Context(), sessionID, params)

	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)

	case errors.Is(err, ErrUnknownTool):
		h.respond(w, r, MCPResponse{
			JSONRPC: "2.0",
			ID:      request.ID,
			Error: &MCPError{
				Code:    codeInvalidParams,
				Message: err.Error(),
			},
		})

	case err != nil:
		h.respond(w, r, MCPResponse{
			JSONRPC: "2.0",
			ID:      request.ID,
			Error: &MCPError{
				Code:    codeInternalError,
				Message: err.Error(),
			},
		})

	default:
		h.respond(w, r, MCPResponse{
			JSONRPC: "2.0",
			ID:      request.ID,
			Result:  result,
		})
	}
}

// handleStream attaches the caller to a session's server-to-client event
// stream. Events are flushed as they are queued, never buffered into one
// body.
func (h *HTTPServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		http.Error(w, sessionHeader+" header required", http.StatusBadRequest)
		return
	}

	session, found := h.manager.Get(sessionID)
	if !found {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.InfoContext(r.Context(), "event stream attached", slog.String("session_id", sessionID))

	for {
		select {
		case <-r.Context().Done():
			h.logger.InfoContext(r.Context(), "event stream closed by client", slog.String("session_id", sessionID))
			return

		case <-session.Done():
			h.logger.InfoContext(r.Context(), "event stream closed by server", slog.String("session_id", sessionID))
			return

		case data := <-session.events:
			_, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			if err != nil {
				h.logger.WarnContext(r.Context(), "event stream write failed",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()))
				return
			}
			flusher.Flush()
		}
	}
}

// handleDelete terminates a session explicitly.
func (h *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		http.Error(w, sessionHeader+" header required", http.StatusBadRequest)
		return
	}

	if !h.manager.Close(sessionID) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respond writes one JSON-RPC response, as an SSE-framed event when the
// client negotiated streaming, otherwise as a plain JSON body. SSE
// delivery flushes the event immediately so the first byte never waits on
// the full result.
func (h *HTTPServer) respond(w http.ResponseWriter, r *http.Request, response MCPResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}

	if acceptsSSE(r) {
		flusher, ok := w.(http.Flusher)
		if ok {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// acceptsSSE reports whether the client asked for event-stream delivery.
func acceptsSSE(r *http.Request) (accepts bool) {
	accepts = strings.Contains(r.Header.Get("Accept"), "text/event-stream")
	return accepts
}
