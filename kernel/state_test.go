package kernel_test

import (
	"errors"
	"testing"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/kernel"
)

func TestNext(t *testing.T) {
	withCalls := protocol.NewAssistantMessage("", protocol.ToolCall{ID: "1", Name: "fetch_page"})
	answer := protocol.NewAssistantMessage("The Mustang shipped with a 24 inch scale.")
	result := protocol.NewToolResult("1", "page text")

	tests := []struct {
		name    string
		from    kernel.State
		last    protocol.Message
		want    kernel.State
		wantErr bool
	}{
		{"worker requests tools", kernel.StateWorker, withCalls, kernel.StateTools, false},
		{"worker answers", kernel.StateWorker, answer, kernel.StateDone, false},
		{"tools return to worker", kernel.StateTools, result, kernel.StateWorker, false},
		{"done is terminal", kernel.StateDone, answer, "", true},
		{"unknown state", kernel.State("thinking"), answer, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := kernel.Next(tt.from, tt.last)
			if tt.wantErr {
				if !errors.Is(err, kernel.ErrInvalidState) {
					t.Errorf("got %v, want ErrInvalidState", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestState_Valid(t *testing.T) {
	for _, s := range []kernel.State{kernel.StateWorker, kernel.StateTools, kernel.StateDone} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if kernel.State("paused").Valid() {
		t.Error("unknown state reported valid")
	}
}

func TestPending(t *testing.T) {
	user := protocol.NewMessage(protocol.RoleUser, "Research the Mustang")
	withCalls := protocol.NewAssistantMessage("", protocol.ToolCall{ID: "1", Name: "fetch_page"})
	result := protocol.NewToolResult("1", "page text")
	answer := protocol.NewAssistantMessage("24 inch scale")

	tests := []struct {
		name string
		log  []protocol.Message
		want kernel.State
	}{
		{"empty log", nil, kernel.StateWorker},
		{"user request", []protocol.Message{user}, kernel.StateWorker},
		{"unanswered calls", []protocol.Message{user, withCalls}, kernel.StateTools},
		{"tool result", []protocol.Message{user, withCalls, result}, kernel.StateWorker},
		{"final answer", []protocol.Message{user, withCalls, result, answer}, kernel.StateDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := kernel.Pending(tt.log); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
