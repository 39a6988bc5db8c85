// Package generation meters text generation calls against the
// text-generation quota bucket.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/quota"
	"github.com/waypointhq/ragcore/internal/retry"
	"github.com/waypointhq/ragcore/internal/tokencount"
)

// reserver is the consumer interface for quota accounting (ISP).
type reserver interface {
	Reserve(ctx context.Context, b quota.Bucket, tokenCost int, waitForCapacity bool) (quota.Decision, error)
}

// MeteredCompleter wraps a completer with quota reservation and retry.
type MeteredCompleter struct {
	inner   domain.Completer
	quota   reserver
	counter *tokencount.Counter
	policy  retry.Policy
}

// New creates a metered completer.
func New(inner domain.Completer, q reserver, counter *tokencount.Counter, policy retry.Policy) *MeteredCompleter {
	return &MeteredCompleter{inner: inner, quota: q, counter: counter, policy: policy}
}

// Complete reserves quota for the estimated prompt cost, then delegates.
// Blocks on the per-minute window; a daily ceiling hit fails immediately
// with domain.ErrQuotaExceeded.
func (m *MeteredCompleter) Complete(ctx context.Context, system, prompt string) (domain.CompletionResult, error) {
	cost := m.counter.Count(system) + m.counter.Count(prompt)

	if _, err := m.quota.Reserve(ctx, quota.TextGeneration, cost, true); err != nil {
		return domain.CompletionResult{}, fmt.Errorf("reserve generation quota: %w", err)
	}

	result, err := retry.Do(ctx, m.policy, classify, func(ctx context.Context) (domain.CompletionResult, error) {
		return m.inner.Complete(ctx, system, prompt)
	})
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("complete: %w", err)
	}
	return result, nil
}

func classify(err error) retry.Outcome {
	if errors.Is(err, domain.ErrRateLimited) {
		return retry.RetryableFailure
	}
	return retry.FatalFailure
}
