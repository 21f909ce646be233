// Package server exposes research and manufacturer normalization over
// Connect. Payloads are google.protobuf.Struct values so any Connect,
// gRPC or gRPC-Web client can call the procedures without generated code.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/kernel"
	"github.com/tailored-agentic-units/registry-agent/normalize"
	"github.com/tailored-agentic-units/registry-agent/observability"
	"github.com/tailored-agentic-units/registry-agent/window"
)

// Procedure paths.
const (
	NormalizeProcedure = "/registry.v1.RegistryService/Normalize"
	SearchProcedure    = "/registry.v1.RegistryService/Search"
	ResearchProcedure  = "/registry.v1.ResearchService/Research"
)

// EventRequest is emitted once per handled call.
const EventRequest observability.EventType = "server.request"

const shutdownTimeout = 5 * time.Second

// Researcher runs the research loop. *kernel.Kernel implements it.
type Researcher interface {
	Run(ctx context.Context, sessionID string, req protocol.ResearchRequest, message string) (*kernel.Result, error)
	Resume(ctx context.Context, sessionID string) (*kernel.Result, error)
	Synthesize(ctx context.Context, req protocol.ResearchRequest, messages []protocol.Message) (*kernel.Synthesis, error)
}

// Names resolves manufacturer names. *normalize.Normalizer implements it.
type Names interface {
	Normalize(ctx context.Context, name string) normalize.Match
	Search(ctx context.Context, query string, limit int) []normalize.Match
}

// Server holds the Connect handlers.
type Server struct {
	research Researcher
	names    Names
	observer observability.Observer
}

// New creates a Server. A nil research or names disables the matching
// procedures: they answer CodeUnimplemented.
func New(research Researcher, names Names, observer observability.Observer) *Server {
	return &Server{research: research, names: names, observer: observability.OrNoOp(observer)}
}

// Handler returns an http.Handler routing the three procedures. HTTP/2
// without TLS is accepted so gRPC clients can connect directly.
func (s *Server) Handler(opts ...connect.HandlerOption) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(NormalizeProcedure, connect.NewUnaryHandler(NormalizeProcedure, s.normalize, opts...))
	mux.Handle(SearchProcedure, connect.NewUnaryHandler(SearchProcedure, s.search, opts...))
	mux.Handle(ResearchProcedure, connect.NewUnaryHandler(ResearchProcedure, s.researchHandler, opts...))
	return h2c.NewHandler(mux, &http2.Server{})
}

// Serve listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("server: addr is required")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) || err == nil {
			return nil
		}
		return err
	}
}

type normalizeRequest struct {
	Name string `json:"name"`
}

func (s *Server) normalize(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	if s.names == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("normalization is not configured"))
	}

	var in normalizeRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("name is required"))
	}

	match := s.names.Normalize(ctx, in.Name)
	s.emit(ctx, NormalizeProcedure, nil)
	return respond(match)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type searchResponse struct {
	Matches []normalize.Match `json:"matches"`
}

func (s *Server) search(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	if s.names == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("normalization is not configured"))
	}

	var in searchRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query is required"))
	}

	matches := s.names.Search(ctx, in.Query, in.Limit)
	if matches == nil {
		matches = []normalize.Match{}
	}
	s.emit(ctx, SearchProcedure, nil)
	return respond(searchResponse{Matches: matches})
}

type researchRequest struct {
	protocol.ResearchRequest
	SessionID  string `json:"session_id,omitempty"`
	Message    string `json:"message,omitempty"`
	Resume     bool   `json:"resume,omitempty"`
	Synthesize bool   `json:"synthesize,omitempty"`
}

type toolCallSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Step    int    `json:"step"`
	IsError bool   `json:"is_error"`
}

type researchResponse struct {
	SessionID  string                   `json:"session_id"`
	Response   string                   `json:"response"`
	Steps      int                      `json:"steps"`
	ToolCalls  []toolCallSummary        `json:"tool_calls"`
	Dropped    int                      `json:"dropped"`
	Record     *protocol.ResearchRecord `json:"record,omitempty"`
	Evaluation *protocol.Evaluation     `json:"evaluation,omitempty"`
}

func (s *Server) researchHandler(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	if s.research == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("research is not configured"))
	}

	var in researchRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}

	var (
		result *kernel.Result
		err    error
	)
	if in.Resume {
		if in.SessionID == "" {
			return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("session_id is required to resume"))
		}
		result, err = s.research.Resume(ctx, in.SessionID)
	} else {
		result, err = s.research.Run(ctx, in.SessionID, in.ResearchRequest, in.Message)
	}
	if err != nil {
		s.emit(ctx, ResearchProcedure, err)
		return nil, toConnectError(err)
	}

	out := researchResponse{
		SessionID: result.SessionID,
		Response:  result.Response,
		Steps:     result.Steps,
		ToolCalls: make([]toolCallSummary, len(result.ToolCalls)),
		Dropped:   len(result.Dropped),
	}
	for i, tc := range result.ToolCalls {
		out.ToolCalls[i] = toolCallSummary{ID: tc.ID, Name: tc.Name, Step: tc.Step, IsError: tc.IsError}
	}

	if in.Synthesize && !in.Resume {
		synth, err := s.research.Synthesize(ctx, in.ResearchRequest, result.Messages)
		if err != nil {
			s.emit(ctx, ResearchProcedure, err)
			return nil, toConnectError(err)
		}
		out.Record = &synth.Record
		out.Evaluation = synth.Evaluation
	}

	s.emit(ctx, ResearchProcedure, nil)
	return respond(out)
}

func (s *Server) emit(ctx context.Context, procedure string, err error) {
	level := observability.LevelVerbose
	data := map[string]any{"procedure": procedure}
	if err != nil {
		level = observability.LevelWarning
		data["error"] = err.Error()
	}
	observability.Emit(ctx, s.observer, EventRequest, level, "server", data)
}

// decode maps a Struct payload onto v through its JSON form.
func decode(msg *structpb.Struct, v any) error {
	data, err := protojson.Marshal(msg)
	if err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid request: %w", err))
	}
	return nil
}

// respond encodes v as a Struct through its JSON form.
func respond(v any) (*connect.Response[structpb.Struct], error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

func toConnectError(err error) *connect.Error {
	var (
		budget *window.BudgetExhaustedError
		synth  *kernel.SynthesisError
	)
	switch {
	case errors.Is(err, protocol.ErrIncompleteRequest):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, kernel.ErrNoCheckpoint):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, kernel.ErrStepBudgetExhausted), errors.As(err, &budget):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.As(err, &synth):
		return connect.NewError(connect.CodeDataLoss, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
