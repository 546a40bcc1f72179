package mcp

import "github.com/google/jsonschema-go/jsonschema"

// JSON-RPC error codes used by the protocol layer.
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Protocol constants advertised during negotiation.
const (
	protocolVersion = "2024-11-05"
	serverName      = "mcp-bench"
	serverVersion   = "1.0.0"
	serverType      = "go"
)

// MCPRequest represents an incoming MCP JSON-RPC request.
type MCPRequest struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      interface{}            `json:"id"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// MCPResponse represents an MCP JSON-RPC response.
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a protocol-level error. A tool's own Failure is never
// delivered as an MCPError; see ToolCallResult.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCPServerInfo is the payload returned from the initialize request.
type MCPServerInfo struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    MCPCapabilities `json:"capabilities"`
	ServerInfo      ServerMetadata  `json:"serverInfo"`
	Instructions    string          `json:"instructions,omitempty"`
}

// MCPCapabilities describes what the server can do.
type MCPCapabilities struct {
	Tools map[string]interface{} `json:"tools"`
}

// ServerMetadata contains server identification.
type ServerMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPTool is the wire form of a tool definition as returned by tools/list.
type MCPTool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// MCPToolCallParams represents parameters for a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Content is one block of a tool result. Benchmark tools only emit text
// blocks, each carrying a JSON-encoded payload.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolCallResult is the uniform envelope for a tool invocation outcome.
// IsError marks a tool-level Failure (bad arguments, handler fault); the
// envelope itself is still a successfully-delivered protocol payload.
type ToolCallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// textResult wraps a single text block as a successful result.
func textResult(text string) (result *ToolCallResult) {
	result = &ToolCallResult{
		Content: []Content{{Type: "text", Text: text}},
	}
	return result
}

// failureResult wraps a diagnostic message as a tool-level Failure.
func failureResult(message string) (result *ToolCallResult) {
	result = &ToolCallResult{
		Content: []Content{{Type: "text", Text: message}},
		IsError: true,
	}
	return result
}
