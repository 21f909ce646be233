package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/registry-agent/compress"
	"github.com/tailored-agentic-units/registry-agent/core/protocol"
)

const extractInstructions = "You extract facts from web content. Reply with the passages and facts " +
	"relevant to %s, one per line, verbatim where possible. Reply with nothing else."

// NewExtractor returns a compress.Extractor that asks w for the passages
// of a text relevant to the hint. No tools are offered.
func NewExtractor(w Worker) compress.Extractor {
	return compress.ExtractorFunc(func(ctx context.Context, text, hint string) (string, error) {
		if hint == "" {
			hint = "the subject"
		}
		msg, err := w.Invoke(ctx, []protocol.Message{
			protocol.NewMessage(protocol.RoleSystem, fmt.Sprintf(extractInstructions, hint)),
			protocol.NewMessage(protocol.RoleUser, text),
		}, nil)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(msg.Content()), nil
	})
}
