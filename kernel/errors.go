package kernel

import (
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/registry-agent/session"
)

var (
	// ErrStepBudgetExhausted is returned by Run and Resume when the worker
	// has been invoked MaxSteps times without producing a final answer.
	// The partial result is returned alongside it.
	ErrStepBudgetExhausted = errors.New("step budget exhausted")

	// ErrNoCheckpoint is returned by Resume for a session that never ran.
	ErrNoCheckpoint = session.ErrNoCheckpoint

	// ErrInvalidState reports a checkpoint or transition outside the
	// worker/tools/done machine.
	ErrInvalidState = errors.New("invalid scheduler state")
)

// SynthesisError reports a synthesis response that could not be decoded.
// Raw holds the worker's reply.
type SynthesisError struct {
	Raw string
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("malformed synthesis response: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}
