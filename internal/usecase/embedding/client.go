// Package embedding provides the metered embedding client: cache in
// front, quota reservation and retry around every provider call.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/embcache"
	"github.com/waypointhq/ragcore/internal/quota"
	"github.com/waypointhq/ragcore/internal/retry"
	"github.com/waypointhq/ragcore/internal/tokencount"
)

// provider is the consumer interface for the upstream embedder (ISP).
type provider interface {
	domain.Embedder
	domain.BatchEmbedder
}

// reserver is the consumer interface for quota accounting (ISP).
type reserver interface {
	Reserve(ctx context.Context, b quota.Bucket, tokenCost int, waitForCapacity bool) (quota.Decision, error)
}

// Client wraps a provider with caching, quota metering and retry.
// The embedded cache is not safe for concurrent use; Client serializes
// access to it behind its own mutex, so Client itself is safe to share.
type Client struct {
	provider provider
	quota    reserver
	counter  *tokencount.Counter
	policy   retry.Policy
	logger   *zap.Logger

	mu    sync.Mutex
	cache *embcache.Cache
}

// New creates a metered embedding client. cache may be nil to disable
// caching.
func New(
	p provider,
	cache *embcache.Cache,
	q reserver,
	counter *tokencount.Counter,
	policy retry.Policy,
	logger *zap.Logger,
) *Client {
	return &Client{
		provider: p,
		cache:    cache,
		quota:    q,
		counter:  counter,
		policy:   policy,
		logger:   logger,
	}
}

// Embed returns the embedding for text.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: quota is reserved for the estimated token cost before the
// provider call; rate-limited calls are retried with backoff.
func (c *Client) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if text == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", domain.ErrEmptyQuery)
	}

	if vec, ok := c.cacheGet(text); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	if err := c.reserve(ctx, text); err != nil {
		return domain.EmbeddingResult{}, err
	}

	result, err := retry.Do(ctx, c.policy, classify, func(ctx context.Context) (domain.EmbeddingResult, error) {
		return c.provider.Embed(ctx, text)
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.cacheSet(text, result.Embedding)
	return result, nil
}

// BatchEmbed embeds texts preserving input order. Cached texts are served
// locally; only the misses go to the provider, in a single call.
func (c *Client) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, domain.ErrEmptyBatch
	}

	embeddings := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if text == "" {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed [%d]: %w", i, domain.ErrEmptyQuery)
		}
		if vec, ok := c.cacheGet(text); ok {
			embeddings[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
	}

	if err := c.reserve(ctx, missTexts...); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	batch, err := retry.Do(ctx, c.policy, classify, func(ctx context.Context) (domain.BatchEmbeddingResult, error) {
		return c.provider.BatchEmbed(ctx, missTexts)
	})
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	if len(batch.Embeddings) != len(missTexts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"batch embed: provider returned %d vectors for %d texts: %w",
			len(batch.Embeddings), len(missTexts), domain.ErrProviderError)
	}

	for j, idx := range missIdx {
		embeddings[idx] = batch.Embeddings[j]
		c.cacheSet(missTexts[j], batch.Embeddings[j])
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: batch.PromptTokens,
		TotalTokens:  batch.TotalTokens,
	}, nil
}

// CacheStats exposes hit/miss counters for telemetry.
func (c *Client) CacheStats() (hits, misses uint64) {
	if c.cache == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Stats()
}

// reserve claims quota for the estimated token cost of the given texts,
// blocking until the per-minute window has room.
func (c *Client) reserve(ctx context.Context, texts ...string) error {
	cost := 0
	for _, t := range texts {
		cost += c.counter.Count(t)
	}

	if _, err := c.quota.Reserve(ctx, quota.Embedding, cost, true); err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			c.logger.Warn("embedding denied by daily quota", zap.Int("token_cost", cost))
		}
		return fmt.Errorf("reserve embedding quota: %w", err)
	}
	return nil
}

func (c *Client) cacheGet(text string) ([]float32, bool) {
	if c.cache == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Get(text)
}

func (c *Client) cacheSet(text string, vec []float32) {
	if c.cache == nil || len(vec) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Set(text, vec)
}

// classify drives the retry loop: only provider throttling is worth
// retrying, everything else fails fast.
func classify(err error) retry.Outcome {
	if errors.Is(err, domain.ErrRateLimited) {
		return retry.RetryableFailure
	}
	return retry.FatalFailure
}
