// Package chunks persists document chunks and serves vector and keyword
// lookups over them.
package chunks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/waypointhq/ragcore/internal/db"
	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/domain/filter"
)

// deleteBatchLimit bounds how many chunk keys a single delete pass collects.
const deleteBatchLimit = 10000

// store is the consumer interface for chunk persistence (ISP).
type store interface {
	HSetMulti(ctx context.Context, items map[string]map[string]string) error
	Del(ctx context.Context, keys ...string) error
	CreateIndex(ctx context.Context, def db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q db.KNNQuery) (db.SearchResult, error)
	SearchText(ctx context.Context, q db.TextQuery) (db.SearchResult, error)
	SearchKeys(ctx context.Context, index, query string, limit int) ([]string, error)
}

// Repo implements the chunk repository over a db.Store.
type Repo struct {
	store     store
	keyPrefix string
	vectorDim int
}

// New creates a chunk repository. keyPrefix namespaces every key and the
// index name, e.g. "ragcore:".
func New(s store, keyPrefix string, vectorDim int) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, vectorDim: vectorDim}
}

func (r *Repo) indexName() string { return r.keyPrefix + "chunks:idx" }
func (r *Repo) docPrefix() string { return r.keyPrefix + "chunks:" }

// EnsureIndex creates the chunk index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	if exists {
		return nil
	}

	def := db.IndexDefinition{
		Name:     r.indexName(),
		Prefixes: []string{r.docPrefix()},
		Fields: []db.IndexField{
			{Name: domain.FieldContentPath, Type: db.FieldTypeTag},
			{Name: domain.FieldDocType, Type: db.FieldTypeTag},
			{Name: domain.FieldDestination, Type: db.FieldTypeTag},
			{Name: domain.FieldTags, Type: db.FieldTypeTag},
			{Name: domain.FieldChunkIndex, Type: db.FieldTypeNumeric},
			{Name: fieldContent, Type: db.FieldTypeText},
			{Name: fieldVector, Type: db.FieldTypeVector, VectorDim: r.vectorDim},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("ensure index: %w", err)
	}
	return nil
}

// Upsert stores chunks alongside their embeddings in one round trip.
// Chunks without an ID get one assigned; vectors must align with chunks
// by position.
func (r *Repo) Upsert(ctx context.Context, cs []domain.Chunk, vectors [][]float32) ([]domain.Chunk, error) {
	if len(cs) != len(vectors) {
		return nil, fmt.Errorf("upsert: %d chunks but %d vectors", len(cs), len(vectors))
	}
	if len(cs) == 0 {
		return nil, nil
	}

	items := make(map[string]map[string]string, len(cs))
	out := make([]domain.Chunk, len(cs))
	for i, c := range cs {
		if len(vectors[i]) != r.vectorDim {
			return nil, fmt.Errorf("upsert chunk %d: vector has %d dims, index expects %d",
				i, len(vectors[i]), r.vectorDim)
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		items[r.docPrefix()+c.ID] = buildHashFields(c, vectors[i])
		out[i] = c
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return nil, fmt.Errorf("upsert chunks: %w", err)
	}
	return out, nil
}

// DeleteByPath removes every chunk ingested from the given content path
// and returns how many were deleted.
func (r *Repo) DeleteByPath(ctx context.Context, contentPath string) (int, error) {
	query := db.TagQuery(domain.FieldContentPath, contentPath)

	keys, err := r.store.SearchKeys(ctx, r.indexName(), query, deleteBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("delete by path %s: %w", contentPath, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	if err := r.store.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("delete by path %s: %w", contentPath, err)
	}
	return len(keys), nil
}

// SearchKNN returns the topK most similar chunks by cosine similarity,
// pre-filtered by f.
func (r *Repo) SearchKNN(
	ctx context.Context, vector []float32, f filter.Filter, topK int,
) ([]domain.RetrievalResult, error) {
	sr, err := r.store.SearchKNN(ctx, db.KNNQuery{
		Index:        r.indexName(),
		Vector:       vector,
		K:            topK,
		Filter:       f,
		ReturnFields: returnFields(),
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}

	return r.parseEntries(sr), nil
}

// SearchBM25 returns the topK best keyword matches scored by BM25,
// pre-filtered by f.
func (r *Repo) SearchBM25(
	ctx context.Context, query string, f filter.Filter, topK int,
) ([]domain.RetrievalResult, error) {
	sr, err := r.store.SearchText(ctx, db.TextQuery{
		Index:        r.indexName(),
		Query:        query,
		Limit:        topK,
		Filter:       f,
		ReturnFields: returnFields(),
	})
	if err != nil {
		return nil, fmt.Errorf("search bm25: %w", err)
	}

	return r.parseEntries(sr), nil
}

func returnFields() []string {
	return []string{
		fieldContent, fieldExtra,
		domain.FieldContentPath, domain.FieldChunkIndex, domain.FieldSectionHeader,
		domain.FieldDocType, domain.FieldDestination, domain.FieldTags,
		"__vector_score",
	}
}

func (r *Repo) parseEntries(sr db.SearchResult) []domain.RetrievalResult {
	if sr.Total == 0 {
		return nil
	}

	results := make([]domain.RetrievalResult, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		chunkID := strings.TrimPrefix(entry.Key, r.docPrefix())
		text, meta := parseHashFields(entry.Fields)
		results = append(results, domain.NewRetrievalResult(chunkID, entry.Score, text, meta))
	}
	return results
}
