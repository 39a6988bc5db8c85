// Package rag orchestrates retrieval into the single context value the
// agent layer consumes.
package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/domain/filter"
)

// retriever is the consumer interface for chunk retrieval (ISP).
type retriever interface {
	Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) ([]domain.RetrievalResult, error)
	RetrieveHybrid(ctx context.Context, query string, opts domain.RetrievalOptions) ([]domain.RetrievalResult, error)
}

// Config are the pipeline toggles, taken from configuration at startup.
type Config struct {
	Enabled       bool
	UseHybrid     bool
	MinSimilarity float64
}

// Pipeline is the retrieval-augmented-generation entry point.
type Pipeline struct {
	retriever retriever
	cfg       Config
	logger    *zap.Logger
}

// New creates a pipeline.
func New(r retriever, cfg Config, logger *zap.Logger) *Pipeline {
	return &Pipeline{retriever: r, cfg: cfg, logger: logger}
}

// Option overrides a per-call retrieval parameter.
type Option func(*callOptions)

type callOptions struct {
	topK          int
	minSimilarity float64
	hasMinSim     bool
	filters       filter.Filter
}

// WithTopK overrides the complexity heuristic's result count.
func WithTopK(topK int) Option {
	return func(o *callOptions) { o.topK = topK }
}

// WithMinSimilarity overrides the configured similarity floor.
func WithMinSimilarity(minSimilarity float64) Option {
	return func(o *callOptions) {
		o.minSimilarity = minSimilarity
		o.hasMinSim = true
	}
}

// WithFilter restricts retrieval to chunks matching f.
func WithFilter(f filter.Filter) Option {
	return func(o *callOptions) { o.filters = f }
}

// RetrieveContext classifies the query, retrieves matching chunks and
// formats them for the generator. Never returns an error for "nothing
// found": that is HasData=false with the NO_DATA sentinel.
func (p *Pipeline) RetrieveContext(ctx context.Context, query string, opts ...Option) (domain.RAGContext, error) {
	if !p.cfg.Enabled {
		return domain.EmptyContext(query), nil
	}

	var call callOptions
	call.minSimilarity = p.cfg.MinSimilarity
	for _, opt := range opts {
		opt(&call)
	}

	topK := call.topK
	if topK <= 0 {
		c := classify(query)
		if c == complexitySkip {
			p.logger.Debug("query classified as skip, no retrieval", zap.String("query", query))
			return domain.EmptyContext(query), nil
		}
		topK = c.topK()
	}

	ropts, err := domain.NewRetrievalOptions(topK, call.minSimilarity, call.filters)
	if err != nil {
		return domain.RAGContext{}, fmt.Errorf("retrieval options: %w", err)
	}

	var results []domain.RetrievalResult
	if p.cfg.UseHybrid {
		results, err = p.retriever.RetrieveHybrid(ctx, query, ropts)
	} else {
		results, err = p.retriever.Retrieve(ctx, query, ropts)
	}
	if err != nil {
		p.logger.Error("retrieval failed", zap.Error(err))
		return domain.RAGContext{}, fmt.Errorf("retrieve context: %w", err)
	}

	if len(results) == 0 {
		return domain.EmptyContext(query), nil
	}

	return domain.RAGContext{
		Query:            query,
		Results:          results,
		FormattedContext: formatContext(results),
		Citations:        collectCitations(results),
		HasData:          true,
	}, nil
}

// formatContext joins chunk texts verbatim with blank-line separation.
// Provenance stays out of the formatted text so the generator cannot echo
// it to end users.
func formatContext(results []domain.RetrievalResult) string {
	texts := make([]string, len(results))
	for i := range results {
		texts[i] = results[i].Text()
	}
	return strings.Join(texts, "\n\n")
}

// collectCitations dedupes source citations preserving ranking order.
func collectCitations(results []domain.RetrievalResult) []string {
	seen := make(map[string]struct{}, len(results))
	citations := make([]string, 0, len(results))
	for i := range results {
		c := results[i].SourceCitation()
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		citations = append(citations, c)
	}
	return citations
}
