package domain

import (
	"fmt"

	"github.com/waypointhq/ragcore/internal/domain/filter"
)

// Retrieval parameter limits.
const (
	MaxQueryLength = 4096
	DefaultTopK    = 5
	MaxTopK        = 50
)

// RetrievalOptions are validated parameters for a single retrieval call.
type RetrievalOptions struct {
	topK          int
	minSimilarity float64
	filters       filter.Filter
}

// NewRetrievalOptions validates and normalizes retrieval parameters.
// topK <= 0 falls back to DefaultTopK and is clamped to MaxTopK.
func NewRetrievalOptions(topK int, minSimilarity float64, filters filter.Filter) (RetrievalOptions, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if minSimilarity < 0 || minSimilarity > 1 {
		return RetrievalOptions{}, fmt.Errorf("min_similarity must be between 0 and 1, got %g", minSimilarity)
	}
	return RetrievalOptions{topK: topK, minSimilarity: minSimilarity, filters: filters}, nil
}

// TopK returns the maximum number of results.
func (o *RetrievalOptions) TopK() int { return o.topK }

// MinSimilarity returns the cosine similarity floor for the vector path.
func (o *RetrievalOptions) MinSimilarity() float64 { return o.minSimilarity }

// Filters returns the metadata filter.
func (o *RetrievalOptions) Filters() filter.Filter { return o.filters }
