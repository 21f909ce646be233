package worker_test

import (
	"testing"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/worker"
)

func TestPaired(t *testing.T) {
	tests := []struct {
		name     string
		in       []protocol.Message
		wantLen  int
		wantCall int
	}{
		{
			name: "complete pairs untouched",
			in: []protocol.Message{
				protocol.NewAssistantMessage("", protocol.ToolCall{ID: "a", Name: "x"}),
				protocol.NewToolResult("a", "ok"),
			},
			wantLen:  2,
			wantCall: 1,
		},
		{
			name: "dropped calls removed",
			in: []protocol.Message{
				protocol.NewAssistantMessage("",
					protocol.ToolCall{ID: "a", Name: "x"},
					protocol.ToolCall{ID: "b", Name: "x"},
				),
				protocol.NewToolResult("a", "ok"),
			},
			wantLen:  2,
			wantCall: 1,
		},
		{
			name: "orphan result omitted",
			in: []protocol.Message{
				protocol.NewToolResult("gone", "stale"),
				protocol.NewMessage(protocol.RoleUser, "continue"),
			},
			wantLen: 1,
		},
		{
			name: "assistant with only unanswered calls omitted",
			in: []protocol.Message{
				protocol.NewMessage(protocol.RoleUser, "go"),
				protocol.NewAssistantMessage("", protocol.ToolCall{ID: "a", Name: "x"}),
			},
			wantLen: 1,
		},
		{
			name: "assistant text kept without calls",
			in: []protocol.Message{
				protocol.NewAssistantMessage("thinking", protocol.ToolCall{ID: "a", Name: "x"}),
			},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := worker.Paired(tt.in)
			if len(got) != tt.wantLen {
				t.Fatalf("got %d messages, want %d", len(got), tt.wantLen)
			}
			calls := 0
			for _, m := range got {
				calls += len(m.ToolCalls())
			}
			if calls != tt.wantCall {
				t.Errorf("got %d tool calls, want %d", calls, tt.wantCall)
			}
		})
	}
}

func TestPaired_DoesNotMutateInput(t *testing.T) {
	in := []protocol.Message{
		protocol.NewAssistantMessage("",
			protocol.ToolCall{ID: "a", Name: "x"},
			protocol.ToolCall{ID: "b", Name: "x"},
		),
		protocol.NewToolResult("a", "ok"),
	}

	worker.Paired(in)

	if len(in[0].ToolCalls()) != 2 {
		t.Error("input message modified")
	}
}
