// Package tools holds the tools the research worker can call and the
// registry that dispatches calls to them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
)

// Handler is the function signature for tool implementations.
// Handlers receive the request context and JSON-encoded arguments from the LLM.
type Handler func(ctx context.Context, args json.RawMessage) (Result, error)

// Result is the tool execution output that feeds back into the next LLM turn.
// IsError signals to the LLM that the tool invocation failed.
type Result struct {
	Content string
	IsError bool
}

type entry struct {
	tool    protocol.Tool
	handler Handler
}

// Registry maps tool names to definitions and handlers.
// Safe for concurrent registration and execution.
type Registry struct {
	entries map[string]entry
	mu      sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a new tool.
// Returns ErrAlreadyExists if a tool with the same name is already registered.
// Use Replace to update an existing tool's handler.
func (r *Registry) Register(tool protocol.Tool, handler Handler) error {
	if tool.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, tool.Name)
	}

	r.entries[tool.Name] = entry{tool: tool, handler: handler}
	return nil
}

// Replace updates an existing tool's definition and handler.
// Returns ErrNotFound if no tool with the given name is registered.
func (r *Registry) Replace(tool protocol.Tool, handler Handler) error {
	if tool.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tool.Name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, tool.Name)
	}

	r.entries[tool.Name] = entry{tool: tool, handler: handler}
	return nil
}

// Get retrieves a handler by tool name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return nil, false
	}
	return e.handler, true
}

// List returns the definitions of all registered tools sorted by name.
func (r *Registry) List() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Sorted(maps.Keys(r.entries))
	tools := make([]protocol.Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.entries[name].tool)
	}
	return tools
}

// Execute dispatches a tool call to the registered handler by name.
// Returns ErrNotFound if the tool is not registered, naming the closest
// registered tool when the worker misspelled one. Handler errors are
// returned as *ExecutionError.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		if closest := r.closest(name); closest != "" {
			return Result{}, fmt.Errorf("%w: %s (did you mean %s?)", ErrNotFound, name, closest)
		}
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if len(strings.TrimSpace(string(args))) == 0 {
		args = json.RawMessage(`{}`)
	}

	result, err := e.handler(ctx, args)
	if err != nil {
		return Result{}, &ExecutionError{Name: name, Err: err}
	}

	return result, nil
}

// maxSuggestDistance bounds the edit distance of a suggested tool name.
const maxSuggestDistance = 3

// closest returns the registered tool name nearest to name, or "" when
// none is within maxSuggestDistance edits. Ties go to the first name in
// sorted order.
func (r *Registry) closest(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best, bestDistance := "", maxSuggestDistance+1
	for _, candidate := range slices.Sorted(maps.Keys(r.entries)) {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	return best
}

// decodeArgs unmarshals raw into v, producing a user-facing message on
// failure.
func decodeArgs(raw json.RawMessage, v any) (Result, bool) {
	if err := json.Unmarshal(raw, v); err != nil {
		return Result{Content: "invalid arguments: " + err.Error(), IsError: true}, false
	}
	return Result{}, true
}
