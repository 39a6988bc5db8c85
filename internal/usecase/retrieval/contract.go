package retrieval

import (
	"context"

	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/domain/filter"
)

// Repository is the chunk lookup contract the service depends on.
type Repository interface {
	SearchKNN(ctx context.Context, vector []float32, f filter.Filter, topK int) ([]domain.RetrievalResult, error)
	SearchBM25(ctx context.Context, query string, f filter.Filter, topK int) ([]domain.RetrievalResult, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
