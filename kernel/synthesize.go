package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/observability"
)

const synthesisInstructions = `Summarize the research below as a single JSON object and nothing else.
Use this shape, leaving unknown fields empty:

{
  "record": {
    "manufacturer": {"name": "", "country": "", "founded_year": 0, "website": "", "notes": ""},
    "model": {"name": "", "year": "", "body_wood": "", "neck_wood": "", "fretboard": "", "pickups": "", "scale_length": "", "finish": "", "msrp": ""},
    "item": {"serial_number": "", "condition": "", "price": "", "notes": ""},
    "sources": [{"url": "", "title": "", "claims": [""]}]
  },
  "evaluation": {"feedback": "", "success_criteria_met": false, "user_input_needed": false}
}

Guitar under research: %s %s (%s).`

var fenced = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Synthesis is the structured outcome of a research session.
type Synthesis struct {
	Record     protocol.ResearchRecord
	Evaluation *protocol.Evaluation
	Raw        string
}

// Synthesize asks the worker, without tools, to condense messages into a
// ResearchRecord and an optional Evaluation. A reply without a decodable
// JSON object is a *SynthesisError carrying the raw text.
func (k *Kernel) Synthesize(ctx context.Context, req protocol.ResearchRequest, messages []protocol.Message) (*Synthesis, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt := []protocol.Message{
		protocol.NewMessage(protocol.RoleSystem,
			fmt.Sprintf(synthesisInstructions, req.Manufacturer, req.ProductName, req.Year)),
		protocol.NewMessage(protocol.RoleUser, transcript(messages)),
	}

	resp, err := k.worker.Invoke(ctx, prompt, nil)
	if err != nil {
		k.emitError(ctx, "kernel.Synthesize", err)
		return nil, fmt.Errorf("worker call failed: %w", err)
	}

	out, err := decodeSynthesis(resp.Content())
	if err != nil {
		k.emitError(ctx, "kernel.Synthesize", err)
		return nil, err
	}

	observability.Emit(ctx, k.observer, EventSynthesize, observability.LevelInfo, "kernel.Synthesize", map[string]any{
		"manufacturer": out.Record.Manufacturer.Name,
		"model":        out.Record.Model.Name,
		"sources":      len(out.Record.Sources),
		"evaluated":    out.Evaluation != nil,
	})
	return out, nil
}

func decodeSynthesis(raw string) (*Synthesis, error) {
	body, ok := extractJSON(raw)
	if !ok {
		return nil, &SynthesisError{Raw: raw, Err: errors.New("no JSON object in response")}
	}

	var payload struct {
		Record     *protocol.ResearchRecord `json:"record"`
		Evaluation *protocol.Evaluation     `json:"evaluation"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, &SynthesisError{Raw: raw, Err: err}
	}

	out := &Synthesis{Evaluation: payload.Evaluation, Raw: raw}
	if payload.Record != nil {
		out.Record = *payload.Record
		return out, nil
	}

	// Some models return the record itself rather than the envelope.
	if err := json.Unmarshal([]byte(body), &out.Record); err != nil {
		return nil, &SynthesisError{Raw: raw, Err: err}
	}
	return out, nil
}

// extractJSON returns the first fenced JSON block in s, or the span from
// the first '{' to the last '}'.
func extractJSON(s string) (string, bool) {
	if m := fenced.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// transcript flattens the research log into plain text for synthesis.
func transcript(messages []protocol.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch {
		case m.Role() == protocol.RoleSystem:
			continue
		case m.Role() == protocol.RoleTool:
			fmt.Fprintf(&b, "[tool %s]\n%s\n\n", m.ToolCallID(), m.Content())
		case m.HasToolCalls():
			for _, c := range m.ToolCalls() {
				fmt.Fprintf(&b, "[%s calls %s %s]\n", m.Role(), c.Name, c.Arguments)
			}
			if m.Content() != "" {
				fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role(), m.Content())
			}
		default:
			fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role(), m.Content())
		}
	}
	return strings.TrimSpace(b.String())
}
