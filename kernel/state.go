package kernel

import (
	"fmt"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
)

// State is a position in the research loop.
type State string

const (
	StateWorker State = "worker"
	StateTools  State = "tools"
	StateDone   State = "done"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateWorker, StateTools, StateDone:
		return true
	}
	return false
}

// transitionPredicate decides whether an edge is taken given the last
// message of the log.
type transitionPredicate func(last protocol.Message) bool

type edge struct {
	from, to  State
	name      string
	predicate transitionPredicate
}

// edges is the whole transition table; edges are tried in order.
var edges = []edge{
	{StateWorker, StateTools, "requestsTools", requestsTools},
	{StateWorker, StateDone, "finalAnswer", func(last protocol.Message) bool { return !requestsTools(last) }},
	{StateTools, StateWorker, "always", func(protocol.Message) bool { return true }},
}

func requestsTools(last protocol.Message) bool {
	return last.Role() == protocol.RoleAssistant && last.HasToolCalls()
}

// Next returns the state that follows from once last has been appended.
// done has no outgoing edges.
func Next(from State, last protocol.Message) (State, error) {
	for _, e := range edges {
		if e.from == from && e.predicate(last) {
			return e.to, nil
		}
	}
	return "", fmt.Errorf("%w: no transition from %q", ErrInvalidState, from)
}

// Pending returns the state a log is waiting on, read from its newest
// message: tools when it requests calls that were never answered, done
// when it is a final answer, worker otherwise. An append whose checkpoint
// was never saved shows up here first.
func Pending(log []protocol.Message) State {
	if len(log) == 0 {
		return StateWorker
	}
	last := log[len(log)-1]
	if last.Role() != protocol.RoleAssistant {
		return StateWorker
	}
	if last.HasToolCalls() {
		return StateTools
	}
	return StateDone
}
