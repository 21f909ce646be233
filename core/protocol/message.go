package protocol

import (
	"encoding/json"
	"slices"
)

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall represents a tool invocation in conversation history.
// Fields are flat (ID, Name, Arguments) for direct use across the runtime.
// UnmarshalJSON transparently handles the nested LLM API format
// (function.name, function.arguments) so provider responses decode correctly.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// MarshalJSON serializes to the nested LLM API format ({type, function: {name, arguments}}).
func (tc ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string           `json:"id"`
		Type     string           `json:"type"`
		Function toolCallFunction `json:"function"`
	}{
		ID:       tc.ID,
		Type:     "function",
		Function: toolCallFunction{Name: tc.Name, Arguments: tc.Arguments},
	})
}

// UnmarshalJSON handles both the nested LLM API format ({function: {name, arguments}})
// and the flat format ({name, arguments}).
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var nested struct {
		ID       string           `json:"id"`
		Function toolCallFunction `json:"function"`
	}
	if err := json.Unmarshal(data, &nested); err != nil {
		return err
	}

	if nested.Function.Name != "" {
		tc.ID = nested.ID
		tc.Name = nested.Function.Name
		tc.Arguments = nested.Function.Arguments
		return nil
	}

	type plain ToolCall
	return json.Unmarshal(data, (*plain)(tc))
}

// Message is a single immutable conversation message. Fields are read
// through accessors; modified copies are derived with WithContent and
// WithToolCalls, which never share the tool call slice with the receiver.
//
// Assistant messages may carry ToolCalls; tool result messages carry the
// ToolCallID of the call they answer.
type Message struct {
	role       Role
	content    string
	toolCallID string
	toolCalls  []ToolCall
}

// NewMessage creates a Message with the given role and content.
//
//	msg := protocol.NewMessage(protocol.RoleUser, "Research the 1965 Mustang")
func NewMessage(role Role, content string) Message {
	return Message{role: role, content: content}
}

// NewAssistantMessage creates an assistant message that may request tools.
func NewAssistantMessage(content string, calls ...ToolCall) Message {
	return Message{role: RoleAssistant, content: content, toolCalls: slices.Clone(calls)}
}

// NewToolResult creates a tool result message answering the call with callID.
func NewToolResult(callID, content string) Message {
	return Message{role: RoleTool, content: content, toolCallID: callID}
}

// InitMessages creates a single-element message slice from a role and content string.
func InitMessages(role Role, content string) []Message {
	return []Message{NewMessage(role, content)}
}

func (m Message) Role() Role         { return m.role }
func (m Message) Content() string    { return m.content }
func (m Message) ToolCallID() string { return m.toolCallID }

// ToolCalls returns a copy of the requested tool calls.
func (m Message) ToolCalls() []ToolCall {
	return slices.Clone(m.toolCalls)
}

// HasToolCalls reports whether the message requests at least one tool.
func (m Message) HasToolCalls() bool {
	return len(m.toolCalls) > 0
}

// WithContent returns a copy of m with its content replaced. Role, tool
// calls and tool call id are preserved.
func (m Message) WithContent(content string) Message {
	return Message{
		role:       m.role,
		content:    content,
		toolCallID: m.toolCallID,
		toolCalls:  slices.Clone(m.toolCalls),
	}
}

// WithToolCalls returns a copy of m carrying calls instead of its own.
func (m Message) WithToolCalls(calls []ToolCall) Message {
	return Message{
		role:       m.role,
		content:    m.content,
		toolCallID: m.toolCallID,
		toolCalls:  slices.Clone(calls),
	}
}

// Equal reports whether two messages carry identical fields.
func (m Message) Equal(other Message) bool {
	return m.role == other.role &&
		m.content == other.content &&
		m.toolCallID == other.toolCallID &&
		slices.Equal(m.toolCalls, other.toolCalls)
}

// Wire is the exported representation of a Message used by codecs that
// require exported fields (JSON, CBOR).
type Wire struct {
	Role       Role       `json:"role" cbor:"1,keyasint"`
	Content    string     `json:"content" cbor:"2,keyasint"`
	ToolCallID string     `json:"tool_call_id,omitempty" cbor:"3,keyasint,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" cbor:"4,keyasint,omitempty"`
}

// Wire converts m to its exported representation.
func (m Message) Wire() Wire {
	return Wire{
		Role:       m.role,
		Content:    m.content,
		ToolCallID: m.toolCallID,
		ToolCalls:  slices.Clone(m.toolCalls),
	}
}

// Message converts w back into an immutable Message.
func (w Wire) Message() Message {
	return Message{
		role:       w.Role,
		content:    w.Content,
		toolCallID: w.ToolCallID,
		toolCalls:  slices.Clone(w.ToolCalls),
	}
}

func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Wire())
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = w.Message()
	return nil
}
