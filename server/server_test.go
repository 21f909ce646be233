package server_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/kernel"
	"github.com/tailored-agentic-units/registry-agent/normalize"
	"github.com/tailored-agentic-units/registry-agent/observability"
	"github.com/tailored-agentic-units/registry-agent/registry"
	"github.com/tailored-agentic-units/registry-agent/server"
)

// fakeResearcher implements server.Researcher for testing.
type fakeResearcher struct {
	result    *kernel.Result
	err       error
	synthesis *kernel.Synthesis
	gotReq    protocol.ResearchRequest
	gotID     string
	resumed   bool
}

func (f *fakeResearcher) Run(ctx context.Context, sessionID string, req protocol.ResearchRequest, message string) (*kernel.Result, error) {
	f.gotReq, f.gotID = req, sessionID
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return f.result, f.err
}

func (f *fakeResearcher) Resume(ctx context.Context, sessionID string) (*kernel.Result, error) {
	f.gotID, f.resumed = sessionID, true
	return f.result, f.err
}

func (f *fakeResearcher) Synthesize(ctx context.Context, req protocol.ResearchRequest, messages []protocol.Message) (*kernel.Synthesis, error) {
	return f.synthesis, nil
}

func newNames(t *testing.T) *normalize.Normalizer {
	t.Helper()
	rc := registry.WithStore(registry.StaticStore(registry.SampleManufacturers()), nil)
	if err := rc.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return normalize.New(rc, nil, nil)
}

func startServer(t *testing.T, s *server.Server) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, procedure string, payload map[string]any) (*structpb.Struct, error) {
	t.Helper()

	msg, err := structpb.NewStruct(payload)
	if err != nil {
		t.Fatalf("NewStruct failed: %v", err)
	}
	client := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+procedure)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func TestNormalize(t *testing.T) {
	srv := startServer(t, server.New(nil, newNames(t), nil))

	tests := []struct {
		input   string
		want    string
		matched bool
	}{
		{"Gibson Corp", "Gibson", true},
		{"Unknown Brand XYZ", "Unknown Brand XYZ", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			out, err := call(t, srv, server.NormalizeProcedure, map[string]any{"name": tt.input})
			if err != nil {
				t.Fatalf("call failed: %v", err)
			}

			fields := out.GetFields()
			if got := fields["name"].GetStringValue(); got != tt.want {
				t.Errorf("got name %q, want %q", got, tt.want)
			}
			if got := fields["matched"].GetBoolValue(); got != tt.matched {
				t.Errorf("got matched %v, want %v", got, tt.matched)
			}
		})
	}
}

func TestNormalize_MissingName(t *testing.T) {
	srv := startServer(t, server.New(nil, newNames(t), nil))

	_, err := call(t, srv, server.NormalizeProcedure, map[string]any{})
	if got := connect.CodeOf(err); got != connect.CodeInvalidArgument {
		t.Errorf("got code %v, want %v", got, connect.CodeInvalidArgument)
	}
}

func TestSearch(t *testing.T) {
	srv := startServer(t, server.New(nil, newNames(t), nil))

	out, err := call(t, srv, server.SearchProcedure, map[string]any{"query": "fender", "limit": 2})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	matches := out.GetFields()["matches"].GetListValue().GetValues()
	if len(matches) == 0 || len(matches) > 2 {
		t.Fatalf("got %d matches, want 1 or 2", len(matches))
	}
	first := matches[0].GetStructValue().GetFields()
	if got := first["name"].GetStringValue(); got != "Fender" {
		t.Errorf("got first match %q, want Fender", got)
	}
}

func TestSearch_NoMatches(t *testing.T) {
	srv := startServer(t, server.New(nil, newNames(t), nil))

	out, err := call(t, srv, server.SearchProcedure, map[string]any{"query": "zzzzzz"})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if n := len(out.GetFields()["matches"].GetListValue().GetValues()); n != 0 {
		t.Errorf("got %d matches, want 0", n)
	}
}

func TestResearch(t *testing.T) {
	researcher := &fakeResearcher{
		result: &kernel.Result{
			SessionID: "sess-9",
			Response:  "alder body",
			Steps:     2,
			ToolCalls: []kernel.ToolCallRecord{
				{ToolCall: protocol.ToolCall{ID: "c1", Name: "fetch_page"}, Step: 1},
			},
			Dropped: []protocol.ToolCall{{ID: "c4"}},
		},
		synthesis: &kernel.Synthesis{
			Record: protocol.ResearchRecord{Model: protocol.ModelInfo{Name: "Mustang", BodyWood: "alder"}},
		},
	}
	recorder := observability.NewRecorder()
	srv := startServer(t, server.New(researcher, nil, recorder))

	out, err := call(t, srv, server.ResearchProcedure, map[string]any{
		"manufacturer": "Fender",
		"product_name": "Mustang",
		"year":         "1965",
		"session_id":   "sess-9",
		"synthesize":   true,
	})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	if researcher.gotReq.ProductName != "Mustang" || researcher.gotID != "sess-9" {
		t.Errorf("got request %+v session %q", researcher.gotReq, researcher.gotID)
	}

	fields := out.GetFields()
	if got := fields["response"].GetStringValue(); got != "alder body" {
		t.Errorf("got response %q", got)
	}
	if got := fields["steps"].GetNumberValue(); got != 2 {
		t.Errorf("got steps %v, want 2", got)
	}
	if got := fields["dropped"].GetNumberValue(); got != 1 {
		t.Errorf("got dropped %v, want 1", got)
	}
	model := fields["record"].GetStructValue().GetFields()["model"].GetStructValue().GetFields()
	if got := model["body_wood"].GetStringValue(); got != "alder" {
		t.Errorf("got body_wood %q, want alder", got)
	}
	if n := len(recorder.OfType(server.EventRequest)); n != 1 {
		t.Errorf("got %d request events, want 1", n)
	}
}

func TestResearch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		err     error
		want    connect.Code
	}{
		{"incomplete request", map[string]any{"manufacturer": "Fender"}, nil, connect.CodeInvalidArgument},
		{"step budget", map[string]any{"manufacturer": "Fender", "product_name": "Mustang"}, kernel.ErrStepBudgetExhausted, connect.CodeResourceExhausted},
		{"resume without session", map[string]any{"resume": true}, nil, connect.CodeInvalidArgument},
		{"resume unknown session", map[string]any{"resume": true, "session_id": "x"}, kernel.ErrNoCheckpoint, connect.CodeNotFound},
		{"internal", map[string]any{"manufacturer": "Fender", "product_name": "Mustang"}, errors.New("boom"), connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			researcher := &fakeResearcher{err: tt.err}
			srv := startServer(t, server.New(researcher, nil, nil))

			_, err := call(t, srv, server.ResearchProcedure, tt.payload)
			if got := connect.CodeOf(err); got != tt.want {
				t.Errorf("got code %v, want %v (%v)", got, tt.want, err)
			}
		})
	}
}

func TestUnconfiguredProcedures(t *testing.T) {
	srv := startServer(t, server.New(nil, nil, nil))

	for _, procedure := range []string{server.NormalizeProcedure, server.SearchProcedure, server.ResearchProcedure} {
		t.Run(procedure, func(t *testing.T) {
			_, err := call(t, srv, procedure, map[string]any{"name": "x", "query": "x"})
			if got := connect.CodeOf(err); got != connect.CodeUnimplemented {
				t.Errorf("got code %v, want %v", got, connect.CodeUnimplemented)
			}
		})
	}
}

func TestServe_RequiresAddr(t *testing.T) {
	if err := server.New(nil, nil, nil).Serve(context.Background(), ""); err == nil {
		t.Error("expected error for empty addr")
	}
}
