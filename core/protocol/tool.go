// Package protocol defines the conversation and research types shared by
// the worker, the scheduler, the session store and the tools.
package protocol

// Tool describes a function the worker may request.
// Parameters uses JSON Schema format to describe the function's input.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
