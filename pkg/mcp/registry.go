package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolHandler executes a tool. Arguments have already been validated against
// the tool's schema by the codec. The returned value is the tool's JSON
// payload; a returned error becomes a tool-level Failure, never a protocol
// error.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (payload interface{}, err error)

// Tool binds a name and parameter schema to a handler.
type Tool struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Handler     ToolHandler
}

// Registry is the static tool catalog. It is populated once during startup
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() (registry *Registry) {
	registry = &Registry{
		tools: make(map[string]*Tool),
	}
	return registry
}

// Register adds a tool to the registry. Duplicate names are a configuration
// error; callers treat it as startup-fatal.
func (r *Registry) Register(tool *Tool) (err error) {
	if tool.Name == "" {
		err = fmt.Errorf("tool registered without a name")
		return err
	}

	if _, exists := r.tools[tool.Name]; exists {
		err = fmt.Errorf("duplicate tool name: %s", tool.Name)
		return err
	}

	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)

	return err
}

// Lookup resolves a tool by name.
func (r *Registry) Lookup(name string) (tool *Tool, found bool) {
	tool, found = r.tools[name]
	return tool, found
}

// List returns all registered tools in registration order.
func (r *Registry) List() (tools []*Tool) {
	tools = make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}

	return tools
}

// Definitions returns the wire form of every registered tool for tools/list.
func (r *Registry) Definitions() (result []MCPTool) {
	result = make([]MCPTool, 0, len(r.order))
	for _, tool := range r.List() {
		result = append(result, MCPTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Schema,
		})
	}

	return result
}
