// Package retry is a bounded-retry combinator over an explicit outcome
// classification: only failures classified as retryable are attempted again,
// on an exponential backoff schedule.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Outcome classifies an operation result for retry purposes.
type Outcome int

// Classification values.
const (
	Success Outcome = iota
	RetryableFailure
	FatalFailure
)

// Classifier maps an operation error to an Outcome. Called only on non-nil
// errors.
type Classifier func(error) Outcome

// Policy bounds the retry schedule.
type Policy struct {
	MaxAttempts     int // total attempts, including the first
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy is the standard schedule for transient provider errors.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     4,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
	}
}

// Do runs op up to p.MaxAttempts times, retrying only failures the
// classifier marks retryable. The last error is returned on exhaustion;
// fatal failures propagate immediately. Waits respect ctx cancellation.
func Do[T any](ctx context.Context, p Policy, classify Classifier, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = p.InitialInterval
	schedule.MaxInterval = p.MaxInterval
	schedule.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	schedule.Reset()

	var lastErr error
	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if classify(err) != RetryableFailure {
			return zero, err
		}
		lastErr = err
		if attempt >= p.MaxAttempts {
			return zero, fmt.Errorf("giving up after %d attempts: %w", attempt, lastErr)
		}

		t := time.NewTimer(schedule.NextBackOff())
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}
