package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/window"
)

const relevanceInstructions = "You triage a research transcript. Each message is shown as [index] role: text. " +
	"Reply with a JSON array of the indices of the messages relevant to %s, for example [0, 3, 4]. Reply with nothing else."

// relevancePreview caps how much of each message the filter reads.
const relevancePreview = 400

// NewRelevanceFilter returns a window.Filter that asks w which messages of
// a log matter for the hint. Tool calls split from their results by the
// filter are dropped again by Paired before the next request.
func NewRelevanceFilter(w Worker) window.Filter {
	return window.FilterFunc(func(ctx context.Context, messages []protocol.Message, hint string) ([]int, error) {
		if hint == "" {
			hint = "the subject"
		}

		var b strings.Builder
		for i, msg := range messages {
			text := msg.Content()
			if len(text) > relevancePreview {
				text = text[:relevancePreview] + "..."
			}
			for _, call := range msg.ToolCalls() {
				text += fmt.Sprintf(" <calls %s %s>", call.Name, call.Arguments)
			}
			fmt.Fprintf(&b, "[%d] %s: %s\n", i, msg.Role(), text)
		}

		resp, err := w.Invoke(ctx, []protocol.Message{
			protocol.NewMessage(protocol.RoleSystem, fmt.Sprintf(relevanceInstructions, hint)),
			protocol.NewMessage(protocol.RoleUser, b.String()),
		}, nil)
		if err != nil {
			return nil, err
		}
		return parseIndices(resp.Content())
	})
}

// parseIndices decodes the first JSON array of integers in text.
func parseIndices(text string) ([]int, error) {
	start, end := strings.Index(text, "["), strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no index list in response %q", text)
	}

	var keep []int
	if err := json.Unmarshal([]byte(text[start:end+1]), &keep); err != nil {
		return nil, fmt.Errorf("malformed index list: %w", err)
	}
	return keep, nil
}
