//go:build cucumber

package kernel_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/tailored-agentic-units/registry-agent/core/config"
	"github.com/tailored-agentic-units/registry-agent/core/protocol"
	"github.com/tailored-agentic-units/registry-agent/kernel"
	"github.com/tailored-agentic-units/registry-agent/normalize"
	"github.com/tailored-agentic-units/registry-agent/registry"
	"github.com/tailored-agentic-units/registry-agent/session"
	"github.com/tailored-agentic-units/registry-agent/tools"
)

// TestResearchFeatures executes the research loop scenarios via godog.
func TestResearchFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "research-loop",
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{"features"},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeScenario wires step definitions for the research loop feature.
func InitializeScenario(ctx *godog.ScenarioContext) {
	state := &researchState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})

	ctx.Step(`^a worker that answers "([^"]*)"$`, state.workerAnswers)
	ctx.Step(`^the tool cap is (\d+)$`, state.toolCap)
	ctx.Step(`^the tool timeout is (\d+) milliseconds$`, state.toolTimeout)
	ctx.Step(`^a worker that requests (\d+) tool calls and then answers "([^"]*)"$`, state.workerRequestsCalls)
	ctx.Step(`^a worker that requests the slow tool and then answers "([^"]*)"$`, state.workerRequestsSlow)
	ctx.Step(`^I research "([^"]*)" "([^"]*)" from "([^"]*)"$`, state.research)
	ctx.Step(`^the run finishes after (\d+) steps?$`, state.finishesAfter)
	ctx.Step(`^the response is "([^"]*)"$`, state.responseIs)
	ctx.Step(`^no tools were executed$`, state.noTools)
	ctx.Step(`^(\d+) tool results are logged in issue order$`, state.resultsInOrder)
	ctx.Step(`^(\d+) tool calls were dropped$`, state.droppedCount)
	ctx.Step(`^the tool result starts with "([^"]*)"$`, state.toolResultPrefix)
	ctx.Step(`^the sample manufacturer registry$`, state.sampleRegistry)
	ctx.Step(`^I normalize "([^"]*)"$`, state.normalize)
	ctx.Step(`^the normalized name is "([^"]*)"$`, state.normalizedName)
}

// researchState holds scenario state for the feature tests.
type researchState struct {
	cfg    kernel.Config
	worker *sequentialWorker
	result *kernel.Result
	match  normalize.Match
	norm   *normalize.Normalizer
}

func (s *researchState) reset() {
	s.cfg = kernel.DefaultConfig()
	s.cfg.Observer = "noop"
	s.worker = nil
	s.result = nil
	s.match = normalize.Match{}
	s.norm = nil
}

func (s *researchState) workerAnswers(answer string) error {
	s.worker = newSequentialWorker(protocol.NewAssistantMessage(answer))
	return nil
}

func (s *researchState) toolCap(n int) error {
	s.cfg.MaxToolCalls = n
	return nil
}

func (s *researchState) toolTimeout(ms int) error {
	s.cfg.ToolTimeout = config.Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

func (s *researchState) workerRequestsCalls(n int, answer string) error {
	s.worker = newSequentialWorker(
		protocol.NewAssistantMessage("", toolCalls(n, "fetch_page")...),
		protocol.NewAssistantMessage(answer),
	)
	return nil
}

func (s *researchState) workerRequestsSlow(answer string) error {
	s.worker = newSequentialWorker(
		protocol.NewAssistantMessage("", protocol.ToolCall{ID: "call_1", Name: "slow", Arguments: `{}`}),
		protocol.NewAssistantMessage(answer),
	)
	return nil
}

func (s *researchState) research(manufacturer, product, year string) error {
	executor := &mockToolExecutor{
		handler: func(ctx context.Context, name string, args json.RawMessage) (tools.Result, error) {
			if name == "slow" {
				<-ctx.Done()
				return tools.Result{}, ctx.Err()
			}
			return tools.Result{Content: "ok " + string(args)}, nil
		},
	}

	k, err := kernel.New(&s.cfg,
		kernel.WithWorker(s.worker),
		kernel.WithToolExecutor(executor),
		kernel.WithWindow(testWindow()),
		kernel.WithSessionStore(session.NewMemoryStore()),
	)
	if err != nil {
		return err
	}
	defer k.Close(context.Background())

	req := protocol.ResearchRequest{Manufacturer: manufacturer, ProductName: product, Year: year}
	s.result, err = k.Run(context.Background(), "", req, "")
	return err
}

func (s *researchState) finishesAfter(steps int) error {
	if s.result.Steps != steps {
		return fmt.Errorf("got %d steps, want %d", s.result.Steps, steps)
	}
	return nil
}

func (s *researchState) responseIs(want string) error {
	if s.result.Response != want {
		return fmt.Errorf("got response %q, want %q", s.result.Response, want)
	}
	return nil
}

func (s *researchState) noTools() error {
	if len(s.result.ToolCalls) != 0 {
		return fmt.Errorf("got %d tool calls, want 0", len(s.result.ToolCalls))
	}
	return nil
}

func (s *researchState) resultsInOrder(n int) error {
	replies := toolMessages(s.result.Messages)
	if len(replies) != n {
		return fmt.Errorf("got %d tool results, want %d", len(replies), n)
	}
	for i, m := range replies {
		if want := fmt.Sprintf("call_%d", i+1); m.ToolCallID() != want {
			return fmt.Errorf("result %d answers %s, want %s", i, m.ToolCallID(), want)
		}
	}
	return nil
}

func (s *researchState) droppedCount(n int) error {
	if len(s.result.Dropped) != n {
		return fmt.Errorf("got %d dropped, want %d", len(s.result.Dropped), n)
	}
	return nil
}

func (s *researchState) toolResultPrefix(prefix string) error {
	replies := toolMessages(s.result.Messages)
	if len(replies) == 0 {
		return fmt.Errorf("no tool results logged")
	}
	if !strings.HasPrefix(replies[0].Content(), prefix) {
		return fmt.Errorf("got %q, want prefix %q", replies[0].Content(), prefix)
	}
	return nil
}

func (s *researchState) sampleRegistry() error {
	rc := registry.WithStore(registry.StaticStore(registry.SampleManufacturers()), nil)
	if err := rc.Init(context.Background()); err != nil {
		return err
	}
	s.norm = normalize.New(rc, nil, nil)
	return nil
}

func (s *researchState) normalize(name string) error {
	s.match = s.norm.Normalize(context.Background(), name)
	return nil
}

func (s *researchState) normalizedName(want string) error {
	if s.match.Name != want {
		return fmt.Errorf("got %q, want %q", s.match.Name, want)
	}
	return nil
}
