// Package retrieval implements chunk retrieval: pure vector search and
// hybrid vector+keyword search fused with weighted RRF.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/metrics"
)

// keywordCandidateFactor widens the keyword candidate list before fusion
// so a chunk ranked low on relevance can still surface after RRF.
const keywordCandidateFactor = 2

// Service handles chunk retrieval.
type Service struct {
	repo          Repository
	embed         Embedder
	keywordWeight float64
	logger        *zap.Logger
}

// New creates a retrieval service. keywordWeight is the BM25 share of the
// fused score, in [0,1].
func New(repo Repository, embed Embedder, keywordWeight float64, logger *zap.Logger) *Service {
	return &Service{repo: repo, embed: embed, keywordWeight: keywordWeight, logger: logger}
}

// Retrieve runs pure vector retrieval: embed the query, KNN search, then
// drop results under the similarity floor.
func (s *Service) Retrieve(
	ctx context.Context, query string, opts domain.RetrievalOptions,
) ([]domain.RetrievalResult, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.WithLabelValues("vector").Observe(time.Since(start).Seconds())
	}()

	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	results, err := s.repo.SearchKNN(ctx, embResult.Embedding, opts.Filters(), opts.TopK())
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}

	return applyFloor(results, opts.MinSimilarity()), nil
}

// RetrieveHybrid runs vector and keyword retrieval over widened candidate
// lists and fuses them with weighted RRF. The similarity floor applies to
// the vector side before fusion; fused RRF scores are not comparable to
// cosine similarity.
func (s *Service) RetrieveHybrid(
	ctx context.Context, query string, opts domain.RetrievalOptions,
) ([]domain.RetrievalResult, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.WithLabelValues("hybrid").Observe(time.Since(start).Seconds())
	}()

	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	vectorResults, err := s.repo.SearchKNN(ctx, embResult.Embedding, opts.Filters(), opts.TopK())
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	vectorResults = applyFloor(vectorResults, opts.MinSimilarity())

	keywordResults, err := s.repo.SearchBM25(ctx, query, opts.Filters(), opts.TopK()*keywordCandidateFactor)
	if err != nil {
		// Keyword search is an enrichment; degrade to the vector ranking
		// rather than failing the whole retrieval.
		s.logger.Warn("keyword search failed, using vector results only", zap.Error(err))
		keywordResults = nil
	}

	return fuseRRF(vectorResults, keywordResults, s.keywordWeight, opts.TopK()), nil
}

func validateQuery(query string) error {
	if query == "" {
		return domain.ErrEmptyQuery
	}
	if len(query) > domain.MaxQueryLength {
		return fmt.Errorf("query exceeds %d bytes", domain.MaxQueryLength)
	}
	return nil
}

func applyFloor(results []domain.RetrievalResult, minSimilarity float64) []domain.RetrievalResult {
	if minSimilarity <= 0 {
		return results
	}
	filtered := results[:0]
	for _, r := range results {
		if r.Score() >= minSimilarity {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
