// Package kernel runs the guitar research loop: the worker is invoked with
// a budgeted view of the session log, the tools it requests are admitted,
// executed and answered, and the loop repeats until the worker answers
// without requesting tools.
//
// The kernel initializes from configuration via New, creating all subsystems
// internally. Functional options allow test overrides of any subsystem.
//
//	k, err := kernel.New(cfg)
//	if err := k.Start(ctx); err != nil { ... }
//	defer k.Close(ctx)
//	result, err := k.Run(ctx, "", protocol.ResearchRequest{Manufacturer: "Fender", ProductName: "Mustang", Year: "1965"}, "")
package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/registry-agent/admission"
	"github.com/tailored-agentic-units/registry-agent/compress"
	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/normalize"
	"github.com/tailored-agentic-units/registry-agent/observability"
	"github.com/tailored-agentic-units/registry-agent/prompt"
	"github.com/tailored-agentic-units/registry-agent/registry"
	"github.com/tailored-agentic-units/registry-agent/session"
	"github.com/tailored-agentic-units/registry-agent/tokens"
	"github.com/tailored-agentic-units/registry-agent/tools"
	"github.com/tailored-agentic-units/registry-agent/window"
	"github.com/tailored-agentic-units/registry-agent/worker"
)

// Result holds the outcome of a Run or Resume.
type Result struct {
	SessionID string
	Messages  []protocol.Message // Full session log.
	Response  string             // Final answer; empty if the loop did not finish.
	Steps     int                // Worker invocations so far, across resumes.
	ToolCalls []ToolCallRecord   // Tool executions performed by this call.
	Dropped   []protocol.ToolCall
}

// ToolCallRecord is one executed tool call and its outcome.
type ToolCallRecord struct {
	protocol.ToolCall
	Step     int           // Worker step that requested the call.
	Result   string        // Tool result message content.
	IsError  bool          // Whether execution failed or timed out.
	Duration time.Duration // Wall time of the execution.
}

// ToolExecutor abstracts tool listing and execution for testability.
// *tools.Registry implements it.
type ToolExecutor interface {
	List() []protocol.Tool
	Execute(ctx context.Context, name string, args json.RawMessage) (tools.Result, error)
}

// PromptRenderer renders the system prompt for a research request.
// *prompt.Templates implements it.
type PromptRenderer interface {
	System(ctx context.Context, req protocol.ResearchRequest) (string, error)
}

// Option overrides a subsystem New would otherwise build from
// configuration. Options are applied before cold start; only subsystems
// left unset are created from their config sections.
type Option func(*Kernel)

// WithWorker overrides the config-created worker.
func WithWorker(w worker.Worker) Option {
	return func(k *Kernel) { k.worker = w }
}

// WithToolExecutor overrides the config-created tool registry.
func WithToolExecutor(e ToolExecutor) Option {
	return func(k *Kernel) { k.tools = e }
}

// WithSessionStore overrides the config-created session store.
func WithSessionStore(s session.Store) Option {
	return func(k *Kernel) { k.sessions = s }
}

// WithPrompts overrides the config-created prompt templates.
func WithPrompts(p PromptRenderer) Option {
	return func(k *Kernel) { k.prompts = p }
}

// WithWindow overrides the config-created context window manager. No
// token encoding is loaded when a window is supplied.
func WithWindow(m *window.Manager) Option {
	return func(k *Kernel) { k.window = m }
}

// WithRegistry overrides the config-created manufacturer registry. The
// normalizer and registry tools are built over it.
func WithRegistry(rc *registry.Context) Option {
	return func(k *Kernel) { k.registry = rc }
}

// WithObserver overrides the configured observer.
func WithObserver(o observability.Observer) Option {
	return func(k *Kernel) { k.observer = o }
}

// Kernel is the research runtime. A Kernel serves any number of sessions;
// runs for different session ids share no mutable state.
type Kernel struct {
	worker     worker.Worker
	tools      ToolExecutor
	sessions   session.Store
	prompts    PromptRenderer
	window     *window.Manager
	limiter    *admission.Limiter
	registry   *registry.Context
	normalizer *normalize.Normalizer
	observer   observability.Observer

	maxSteps    int
	toolTimeout time.Duration
}

// New creates a Kernel from configuration. Subsystems (worker, tokens,
// window, session store, registry, tools, prompts) are initialized from
// their config sections unless an Option supplied them.
func New(cfg *Config, opts ...Option) (*Kernel, error) {
	k := &Kernel{
		maxSteps:    cfg.MaxSteps,
		toolTimeout: cfg.ToolTimeout.Std(),
	}
	for _, opt := range opts {
		opt(k)
	}

	if k.observer == nil {
		observer, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		k.observer = observer
	}

	limiter, err := admission.New(cfg.MaxToolCalls, k.observer)
	if err != nil {
		return nil, err
	}
	k.limiter = limiter

	if k.worker == nil {
		w, err := worker.New(&cfg.Worker)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker: %w", err)
		}
		k.worker = w
	}

	pattern := compress.NewPattern(cfg.Compress)

	if k.window == nil {
		counter, err := tokens.New(&cfg.Tokens)
		if err != nil {
			return nil, fmt.Errorf("failed to create token counter: %w", err)
		}
		windowOpts := []window.Option{
			window.WithObserver(k.observer),
			window.WithHint(cfg.Fetch.Hint),
		}
		if cfg.RelevanceFilter {
			windowOpts = append(windowOpts, window.WithFilter(worker.NewRelevanceFilter(k.worker), cfg.SemanticTimeout.Std()))
		}
		k.window = window.New(counter, compress.NewCached(pattern, cfg.CompressCache), cfg.Window, windowOpts...)
	}

	if k.prompts == nil {
		k.prompts = prompt.New(&cfg.Prompt)
	}

	if k.registry == nil {
		k.registry = registry.NewContextFromConfig(&cfg.Registry, registry.WithObserver(k.observer))
	}
	k.normalizer = normalize.New(k.registry, &cfg.Normalize, k.observer)

	if k.tools == nil {
		reg, err := k.buildTools(cfg, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to register tools: %w", err)
		}
		k.tools = reg
	}

	if k.sessions == nil {
		sessions, err := session.New(&cfg.Session)
		if err != nil {
			return nil, fmt.Errorf("failed to create session store: %w", err)
		}
		k.sessions = sessions
	}

	return k, nil
}

// buildTools registers the page fetcher and the registry tools. With
// semantic compression enabled, fetched pages are summarized by the
// kernel's worker and fall back to pattern extraction.
func (k *Kernel) buildTools(cfg *Config, pattern *compress.Pattern) (*tools.Registry, error) {
	var pages compress.Compressor = pattern
	if cfg.SemanticCompression {
		extractor := worker.NewExtractor(k.worker)
		pages = compress.NewSemantic(extractor, pattern, cfg.SemanticTimeout.Std(), k.observer)
	}

	reg := tools.NewRegistry()
	fetcher := tools.NewFetcher(cfg.Fetch, nil, compress.NewCached(pages, cfg.CompressCache))
	if err := fetcher.Register(reg); err != nil {
		return nil, err
	}
	if err := tools.RegisterManufacturerTools(reg, k.normalizer); err != nil {
		return nil, err
	}
	return reg, nil
}

// Start initializes the manufacturer registry and preloads its cache. A
// registry that fails to load is logged, not fatal: normalization falls
// back to live lookups and then to the input name.
func (k *Kernel) Start(ctx context.Context) error {
	if err := k.registry.Init(ctx); err != nil {
		k.emitError(ctx, "kernel.Start", err)
	}
	return nil
}

// Close tears down the registry and closes the session store.
func (k *Kernel) Close(ctx context.Context) error {
	return errors.Join(k.registry.Teardown(ctx), k.sessions.Close())
}

// Normalizer returns the manufacturer name normalizer.
func (k *Kernel) Normalizer() *normalize.Normalizer {
	return k.normalizer
}

// Registry returns the manufacturer registry context.
func (k *Kernel) Registry() *registry.Context {
	return k.registry
}

// Sessions returns the session store.
func (k *Kernel) Sessions() session.Store {
	return k.sessions
}

// Run researches req in the session sessionID (a new id when empty). A
// non-empty message is appended to the log as the user's request first.
// The loop stops when the worker answers without tools, when MaxSteps
// worker invocations are spent (ErrStepBudgetExhausted, partial result),
// or on a fatal error.
func (k *Kernel) Run(ctx context.Context, sessionID string, req protocol.ResearchRequest, message string) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sess := session.Open(k.sessions, sessionID)
	result := &Result{SessionID: sess.ID()}

	system, err := k.prompts.System(ctx, req)
	if err != nil {
		return result, err
	}

	if message != "" {
		if err := sess.AddMessage(ctx, protocol.NewMessage(protocol.RoleUser, message)); err != nil {
			return result, err
		}
	}

	observability.Emit(ctx, k.observer, EventRunStart, observability.LevelInfo, "kernel.Run", map[string]any{
		"session_id":   sess.ID(),
		"manufacturer": req.Manufacturer,
		"product":      req.ProductName,
		"year":         req.Year,
		"max_steps":    k.maxSteps,
		"tools":        len(k.tools.List()),
	})

	meta := requestMeta(req)
	if err := k.checkpoint(ctx, sess, StateWorker, 0, meta); err != nil {
		return result, err
	}

	return k.drive(ctx, sess, system, StateWorker, 0, meta, result)
}

// Resume continues a session from its last checkpoint. When the log ends
// past the checkpoint (an append landed but its checkpoint did not), the
// state is taken from the log instead, so a worker reply whose calls were
// never run goes to tools rather than back to the worker. A finished
// session returns its log without invoking the worker.
func (k *Kernel) Resume(ctx context.Context, sessionID string) (*Result, error) {
	sess := session.Open(k.sessions, sessionID)
	result := &Result{SessionID: sess.ID()}

	cp, err := sess.LastCheckpoint(ctx)
	if err != nil {
		return result, err
	}

	state := State(cp.State)
	if !state.Valid() {
		return result, fmt.Errorf("%w: checkpoint state %q", ErrInvalidState, cp.State)
	}

	log, err := sess.Messages(ctx)
	if err != nil {
		return result, err
	}
	step := cp.Step
	if pending := Pending(log); pending != state {
		// The log moved past the checkpoint: a worker reply counts as a
		// step even though its checkpoint was lost.
		if state == StateWorker {
			step++
		}
		observability.Emit(ctx, k.observer, EventCheckpointStale, observability.LevelWarning, "kernel.Resume", map[string]any{
			"session_id": sess.ID(),
			"checkpoint": string(state),
			"pending":    string(pending),
			"step":       step,
		})
		state = pending
	}

	req := requestFromMeta(cp.Meta)
	system, err := k.prompts.System(ctx, req)
	if err != nil {
		return result, err
	}

	observability.Emit(ctx, k.observer, EventRunStart, observability.LevelInfo, "kernel.Resume", map[string]any{
		"session_id": sess.ID(),
		"state":      string(state),
		"step":       step,
	})

	return k.drive(ctx, sess, system, state, step, cp.Meta, result)
}

// drive runs the state machine from state until done, the step budget or
// an error. A checkpoint is saved after every transition.
func (k *Kernel) drive(ctx context.Context, sess *session.Session, system string, state State, step int, meta map[string]string, result *Result) (*Result, error) {
	for {
		result.Steps = step

		if err := ctx.Err(); err != nil {
			return result, err
		}

		var next State
		switch state {
		case StateWorker:
			if k.maxSteps > 0 && step >= k.maxSteps {
				k.emitError(ctx, "kernel.drive", ErrStepBudgetExhausted)
				msgs, err := sess.Messages(ctx)
				if err != nil {
					return result, err
				}
				result.Messages = msgs
				return result, fmt.Errorf("%w after %d steps", ErrStepBudgetExhausted, step)
			}
			step++
			result.Steps = step

			resp, err := k.think(ctx, sess, system, step)
			if err != nil {
				k.emitError(ctx, "kernel.think", err)
				return result, err
			}
			if next, err = Next(state, resp); err != nil {
				return result, err
			}
			if next == StateDone {
				result.Response = resp.Content()
			}

		case StateTools:
			last, err := k.act(ctx, sess, step, result)
			if err != nil {
				k.emitError(ctx, "kernel.act", err)
				return result, err
			}
			if next, err = Next(state, last); err != nil {
				return result, err
			}

		case StateDone:
			msgs, err := sess.Messages(ctx)
			if err != nil {
				return result, err
			}
			result.Messages = msgs
			if result.Response == "" {
				result.Response = lastAnswer(msgs)
			}
			observability.Emit(ctx, k.observer, EventRunComplete, observability.LevelInfo, "kernel.drive", map[string]any{
				"session_id": sess.ID(),
				"steps":      step,
				"tool_calls": len(result.ToolCalls),
				"dropped":    len(result.Dropped),
			})
			return result, nil
		}

		if err := k.checkpoint(ctx, sess, next, step, meta); err != nil {
			return result, err
		}
		state = next
	}
}

// think fits the log into the window, invokes the worker and appends its
// response.
func (k *Kernel) think(ctx context.Context, sess *session.Session, system string, step int) (protocol.Message, error) {
	observability.Emit(ctx, k.observer, EventStepStart, observability.LevelVerbose, "kernel.think", map[string]any{
		"session_id": sess.ID(),
		"step":       step,
	})

	log, err := sess.Messages(ctx)
	if err != nil {
		return protocol.Message{}, err
	}
	if !hasUserMessage(log) {
		log = append([]protocol.Message{protocol.NewMessage(protocol.RoleUser, DefaultRequest)}, log...)
	}

	fitted, err := k.window.Fit(ctx, system, log)
	if err != nil {
		return protocol.Message{}, err
	}

	prompt := make([]protocol.Message, 0, len(fitted)+1)
	prompt = append(prompt, protocol.NewMessage(protocol.RoleSystem, system))
	prompt = append(prompt, fitted...)

	resp, err := k.worker.Invoke(ctx, prompt, k.tools.List())
	if err != nil {
		return protocol.Message{}, fmt.Errorf("worker call failed: %w", err)
	}
	if resp.Role() != protocol.RoleAssistant {
		resp = protocol.NewAssistantMessage(resp.Content(), resp.ToolCalls()...)
	}

	if err := sess.AddMessage(ctx, resp); err != nil {
		return protocol.Message{}, err
	}

	observability.Emit(ctx, k.observer, EventWorkerResponse, observability.LevelInfo, "kernel.think", map[string]any{
		"step":            step,
		"tool_calls":      len(resp.ToolCalls()),
		"response_length": len(resp.Content()),
		"window_messages": len(fitted),
		"log_messages":    len(log),
	})
	return resp, nil
}

// act admits the last message's tool calls, runs the admitted ones
// concurrently and appends one result per admitted call in issue order.
// It returns the last message appended.
func (k *Kernel) act(ctx context.Context, sess *session.Session, step int, result *Result) (protocol.Message, error) {
	log, err := sess.Messages(ctx)
	if err != nil {
		return protocol.Message{}, err
	}
	if len(log) == 0 {
		return protocol.Message{}, fmt.Errorf("%w: tools state with empty log", ErrInvalidState)
	}

	batch := k.limiter.Admit(ctx, log[len(log)-1].ToolCalls())
	result.Dropped = append(result.Dropped, batch.Dropped...)

	if len(batch.Admitted) == 0 {
		return log[len(log)-1], nil
	}

	records := k.execute(ctx, step, batch.Admitted)
	if err := ctx.Err(); err != nil {
		return protocol.Message{}, err
	}

	replies := make([]protocol.Message, len(records))
	for i, rec := range records {
		replies[i] = protocol.NewToolResult(rec.ID, rec.Result)
	}
	if err := sess.AddMessage(ctx, replies...); err != nil {
		return protocol.Message{}, err
	}

	result.ToolCalls = append(result.ToolCalls, records...)
	return replies[len(replies)-1], nil
}

// execute runs calls concurrently, at most Cap at a time, each under its
// own timeout. Records come back indexed by issue order. Failures never
// escape: they become error text for the worker to read.
func (k *Kernel) execute(ctx context.Context, step int, calls []protocol.ToolCall) []ToolCallRecord {
	records := make([]ToolCallRecord, len(calls))

	var g errgroup.Group
	g.SetLimit(max(k.limiter.Cap(), 1))

	for i, call := range calls {
		g.Go(func() error {
			records[i] = k.executeOne(ctx, step, call)
			return nil
		})
	}
	g.Wait()

	return records
}

func (k *Kernel) executeOne(ctx context.Context, step int, call protocol.ToolCall) ToolCallRecord {
	observability.Emit(ctx, k.observer, EventToolCall, observability.LevelVerbose, "kernel.execute", map[string]any{
		"step": step,
		"name": call.Name,
		"id":   call.ID,
	})

	callCtx := ctx
	if k.toolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, k.toolTimeout)
		defer cancel()
	}

	start := time.Now()
	record := ToolCallRecord{ToolCall: call, Step: step}

	res, err := k.tools.Execute(callCtx, call.Name, json.RawMessage(call.Arguments))
	record.Duration = time.Since(start)

	switch {
	case err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		record.Result = fmt.Sprintf("error: tool %s timed out after %s", call.Name, k.toolTimeout)
		record.IsError = true
	case err != nil:
		record.Result = fmt.Sprintf("error: %s", err)
		record.IsError = true
	default:
		record.Result = res.Content
		record.IsError = res.IsError
	}

	observability.Emit(ctx, k.observer, EventToolComplete, observability.LevelVerbose, "kernel.execute", map[string]any{
		"step":     step,
		"name":     call.Name,
		"id":       call.ID,
		"error":    record.IsError,
		"duration": record.Duration.String(),
	})
	return record
}

func (k *Kernel) checkpoint(ctx context.Context, sess *session.Session, state State, step int, meta map[string]string) error {
	if err := sess.Checkpoint(ctx, string(state), step, meta); err != nil {
		return err
	}
	observability.Emit(ctx, k.observer, EventCheckpointSave, observability.LevelVerbose, "kernel.checkpoint", map[string]any{
		"session_id": sess.ID(),
		"state":      string(state),
		"step":       step,
	})
	return nil
}

func (k *Kernel) emitError(ctx context.Context, source string, err error) {
	observability.Emit(ctx, k.observer, EventError, observability.LevelWarning, source, map[string]any{
		"error": err.Error(),
	})
}

func hasUserMessage(msgs []protocol.Message) bool {
	for _, m := range msgs {
		if m.Role() == protocol.RoleUser {
			return true
		}
	}
	return false
}

// lastAnswer returns the content of the newest assistant message without
// tool calls.
func lastAnswer(msgs []protocol.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role() == protocol.RoleAssistant && !msgs[i].HasToolCalls() {
			return msgs[i].Content()
		}
	}
	return ""
}

func requestMeta(req protocol.ResearchRequest) map[string]string {
	return map[string]string{
		"manufacturer": req.Manufacturer,
		"product_name": req.ProductName,
		"year":         req.Year,
	}
}

func requestFromMeta(meta map[string]string) protocol.ResearchRequest {
	return protocol.ResearchRequest{
		Manufacturer: meta["manufacturer"],
		ProductName:  meta["product_name"],
		Year:         meta["year"],
	}
}
