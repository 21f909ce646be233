package worker_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/worker"
)

func researchLog() []protocol.Message {
	return []protocol.Message{
		protocol.NewMessage(protocol.RoleUser, "Research the Fender Stratocaster"),
		protocol.NewAssistantMessage("", protocol.ToolCall{ID: "call_1", Name: "fetch_page", Arguments: `{"url":"https://fender.com"}`}),
		protocol.NewToolResult("call_1", "Alder body, maple neck, three single-coil pickups"),
		protocol.NewMessage(protocol.RoleUser, "Also, what's for lunch?"),
	}
}

func TestRelevanceFilter(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    []int
		wantErr bool
	}{
		{"bare array", "[0, 1, 2]", []int{0, 1, 2}, false},
		{"wrapped in prose", "Relevant messages: [0,2] based on the hint.", []int{0, 2}, false},
		{"empty array", "[]", nil, false},
		{"no array", "all of them", nil, true},
		{"not integers", `["first", "second"]`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompt []protocol.Message
			w := worker.Func(func(_ context.Context, messages []protocol.Message, tools []protocol.Tool) (protocol.Message, error) {
				if len(tools) != 0 {
					t.Errorf("got %d tools, want none", len(tools))
				}
				prompt = messages
				return protocol.NewAssistantMessage(tt.reply), nil
			})

			got, err := worker.NewRelevanceFilter(w).Relevant(context.Background(), researchLog(), "guitar specifications")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("got %v, want an error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}

			if len(prompt) != 2 {
				t.Fatalf("got %d prompt messages, want 2", len(prompt))
			}
			if !strings.Contains(prompt[0].Content(), "guitar specifications") {
				t.Errorf("system prompt missing hint: %q", prompt[0].Content())
			}
			listing := prompt[1].Content()
			for _, want := range []string{"[0] user: Research the Fender", "<calls fetch_page", "[3] user: Also"} {
				if !strings.Contains(listing, want) {
					t.Errorf("listing missing %q:\n%s", want, listing)
				}
			}
		})
	}
}

func TestRelevanceFilter_WorkerError(t *testing.T) {
	boom := errors.New("model unavailable")
	w := worker.Func(func(context.Context, []protocol.Message, []protocol.Tool) (protocol.Message, error) {
		return protocol.Message{}, boom
	})

	if _, err := worker.NewRelevanceFilter(w).Relevant(context.Background(), researchLog(), ""); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}
