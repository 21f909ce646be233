package worker

import "github.com/tailored-agentic-units/registry-agent/core/protocol"

// Paired returns messages with every tool call matched to a tool result.
// Calls that were never answered (dropped by admission, or whose results
// fell out of the window) are removed from their assistant message, and
// tool results whose call is no longer visible are omitted. Chat APIs
// reject either kind of orphan.
func Paired(messages []protocol.Message) []protocol.Message {
	answered := make(map[string]bool)
	for _, m := range messages {
		if m.Role() == protocol.RoleTool {
			answered[m.ToolCallID()] = true
		}
	}

	declared := make(map[string]bool)
	out := make([]protocol.Message, 0, len(messages))

	for _, m := range messages {
		switch m.Role() {
		case protocol.RoleAssistant:
			if !m.HasToolCalls() {
				out = append(out, m)
				continue
			}
			var kept []protocol.ToolCall
			for _, call := range m.ToolCalls() {
				if answered[call.ID] {
					kept = append(kept, call)
					declared[call.ID] = true
				}
			}
			if len(kept) == 0 && m.Content() == "" {
				continue
			}
			out = append(out, m.WithToolCalls(kept))

		case protocol.RoleTool:
			if declared[m.ToolCallID()] {
				out = append(out, m)
			}

		default:
			out = append(out, m)
		}
	}
	return out
}
