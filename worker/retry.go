package worker

import (
	"context"
	"errors"
	"time"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
)

// RetryPolicy controls retries of failed worker calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// ShouldRetry decides whether err is transient. Nil retries every
	// error except context cancellation.
	ShouldRetry func(error) bool
}

// WithRetry wraps w so failed invocations are retried with exponential
// backoff starting at BaseDelay.
func WithRetry(w Worker, policy RetryPolicy) Worker {
	if w == nil {
		return nil
	}
	return &retrying{next: w, policy: policy}
}

type retrying struct {
	next   Worker
	policy RetryPolicy
}

func (r *retrying) Invoke(ctx context.Context, messages []protocol.Message, tools []protocol.Tool) (protocol.Message, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Message{}, err
	}

	attempts := max(r.policy.MaxAttempts, 1)
	delay := r.policy.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		msg, err := r.next.Invoke(ctx, messages, tools)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if attempt == attempts || !r.shouldRetry(ctx, err) {
			break
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return protocol.Message{}, lastErr
			case <-timer.C:
			}
			delay *= 2
		}
	}
	return protocol.Message{}, lastErr
}

func (r *retrying) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if r.policy.ShouldRetry == nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return r.policy.ShouldRetry(err)
}
