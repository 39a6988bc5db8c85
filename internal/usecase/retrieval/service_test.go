package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/domain/filter"
)

type mockRepo struct {
	knnResults  []domain.RetrievalResult
	knnErr      error
	knnTopK     int
	bm25Results []domain.RetrievalResult
	bm25Err     error
	bm25TopK    int
	bm25Calls   int
}

func (m *mockRepo) SearchKNN(_ context.Context, _ []float32, _ filter.Filter, topK int) ([]domain.RetrievalResult, error) {
	m.knnTopK = topK
	return m.knnResults, m.knnErr
}

func (m *mockRepo) SearchBM25(_ context.Context, _ string, _ filter.Filter, topK int) ([]domain.RetrievalResult, error) {
	m.bm25Calls++
	m.bm25TopK = topK
	return m.bm25Results, m.bm25Err
}

type mockEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vector, TotalTokens: 3}, nil
}

func scoredResult(id string, score float64) domain.RetrievalResult {
	return domain.NewRetrievalResult(id, score, "content-"+id, domain.ChunkMeta{ContentPath: "docs/" + id + ".md"})
}

func mustOptions(t *testing.T, topK int, minSim float64) domain.RetrievalOptions {
	t.Helper()
	opts, err := domain.NewRetrievalOptions(topK, minSim, filter.Filter{})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	return opts
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	svc := New(&mockRepo{}, &mockEmbedder{}, 0.3, zap.NewNop())

	_, err := svc.Retrieve(context.Background(), "", mustOptions(t, 5, 0))
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestRetrieve_QueryTooLong(t *testing.T) {
	svc := New(&mockRepo{}, &mockEmbedder{}, 0.3, zap.NewNop())

	long := strings.Repeat("x", domain.MaxQueryLength+1)
	if _, err := svc.Retrieve(context.Background(), long, mustOptions(t, 5, 0)); err == nil {
		t.Fatal("expected error for oversized query")
	}
}

func TestRetrieve_SimilarityFloor(t *testing.T) {
	repo := &mockRepo{knnResults: []domain.RetrievalResult{
		scoredResult("a", 0.9),
		scoredResult("b", 0.6),
		scoredResult("c", 0.4),
	}}
	svc := New(repo, &mockEmbedder{vector: []float32{1}}, 0.3, zap.NewNop())

	results, err := svc.Retrieve(context.Background(), "query", mustOptions(t, 5, 0.5))
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results above floor, got %d", len(results))
	}
	for _, r := range results {
		if r.Score() < 0.5 {
			t.Errorf("result %s below floor: %f", r.ChunkID(), r.Score())
		}
	}
}

func TestRetrieve_EmbedError(t *testing.T) {
	embErr := errors.New("provider down")
	svc := New(&mockRepo{}, &mockEmbedder{err: embErr}, 0.3, zap.NewNop())

	if _, err := svc.Retrieve(context.Background(), "query", mustOptions(t, 5, 0)); !errors.Is(err, embErr) {
		t.Fatalf("expected embed error, got %v", err)
	}
}

func TestRetrieveHybrid_WidensKeywordCandidates(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockEmbedder{vector: []float32{1}}, 0.3, zap.NewNop())

	if _, err := svc.RetrieveHybrid(context.Background(), "query", mustOptions(t, 5, 0)); err != nil {
		t.Fatalf("retrieve hybrid: %v", err)
	}
	if repo.knnTopK != 5 {
		t.Errorf("expected knn topK 5, got %d", repo.knnTopK)
	}
	if repo.bm25TopK != 10 {
		t.Errorf("expected bm25 limit 10, got %d", repo.bm25TopK)
	}
}

func TestRetrieveHybrid_MergesRankings(t *testing.T) {
	repo := &mockRepo{
		knnResults: []domain.RetrievalResult{
			scoredResult("x", 0.9), scoredResult("y", 0.8), scoredResult("z", 0.7),
		},
		bm25Results: []domain.RetrievalResult{
			scoredResult("y", 12.0), scoredResult("w", 3.0),
		},
	}
	svc := New(repo, &mockEmbedder{vector: []float32{1}}, 0.3, zap.NewNop())

	results, err := svc.RetrieveHybrid(context.Background(), "dive sites Tioman", mustOptions(t, 3, 0))
	if err != nil {
		t.Fatalf("retrieve hybrid: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ChunkID() != "y" {
		t.Errorf("expected 'y' first after fusion, got %s", results[0].ChunkID())
	}
}

func TestRetrieveHybrid_KeywordFailureDegrades(t *testing.T) {
	repo := &mockRepo{
		knnResults: []domain.RetrievalResult{scoredResult("a", 0.9)},
		bm25Err:    errors.New("text index offline"),
	}
	svc := New(repo, &mockEmbedder{vector: []float32{1}}, 0.3, zap.NewNop())

	results, err := svc.RetrieveHybrid(context.Background(), "query", mustOptions(t, 5, 0))
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if len(results) != 1 || results[0].ChunkID() != "a" {
		t.Fatalf("expected vector-only result 'a', got %v", results)
	}
}

func TestRetrieveHybrid_FloorAppliesBeforeFusion(t *testing.T) {
	repo := &mockRepo{
		knnResults:  []domain.RetrievalResult{scoredResult("a", 0.9), scoredResult("b", 0.2)},
		bm25Results: []domain.RetrievalResult{scoredResult("c", 5.0)},
	}
	svc := New(repo, &mockEmbedder{vector: []float32{1}}, 0.3, zap.NewNop())

	results, err := svc.RetrieveHybrid(context.Background(), "query", mustOptions(t, 5, 0.5))
	if err != nil {
		t.Fatalf("retrieve hybrid: %v", err)
	}
	for _, r := range results {
		if r.ChunkID() == "b" {
			t.Error("below-floor vector result leaked into fusion")
		}
	}
}
