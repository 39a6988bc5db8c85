package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/waypointhq/ragcore/internal/chunker"
	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/tokencount"
)

type fakeRepo struct {
	mu           sync.Mutex
	upserted     []domain.Chunk
	upsertedVecs [][]float32
	deletedPaths []string
	replaced     int
}

func (f *fakeRepo) Upsert(_ context.Context, cs []domain.Chunk, vectors [][]float32) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, cs...)
	f.upsertedVecs = append(f.upsertedVecs, vectors...)
	return cs, nil
}

func (f *fakeRepo) DeleteByPath(_ context.Context, path string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedPaths = append(f.deletedPaths, path)
	return f.replaced, nil
}

type fakeEmbedder struct {
	mu      sync.Mutex
	batches [][]string
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.mu.Lock()
	f.batches = append(f.batches, texts)
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{float32(i)}
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: 7 * len(texts)}, nil
}

func newTestService(repo *fakeRepo, emb *fakeEmbedder) *Service {
	c := chunker.New(tokencount.NewApprox(), zap.NewNop())
	return New(c, emb, repo, chunker.DefaultOptions(), zap.NewNop())
}

func TestIngestText(t *testing.T) {
	repo := &fakeRepo{replaced: 3}
	emb := &fakeEmbedder{}
	s := newTestService(repo, emb)

	doc := "---\ndoc_type: guide\n---\n\n## Sites\n\nGreat reefs here.\n\n## Season\n\nVisit in May."

	res, err := s.IngestText(context.Background(), "guides/bali.md", doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 2 || res.Replaced != 3 {
		t.Errorf("result = %+v", res)
	}
	if len(repo.upserted) != 2 {
		t.Fatalf("upserted %d chunks", len(repo.upserted))
	}
	if repo.upserted[0].Meta.DocType != "guide" {
		t.Error("frontmatter not threaded into chunk metadata")
	}
	if len(repo.deletedPaths) != 1 || repo.deletedPaths[0] != "guides/bali.md" {
		t.Errorf("old chunks not replaced: %v", repo.deletedPaths)
	}
	if len(emb.batches) != 1 || len(emb.batches[0]) != 2 {
		t.Errorf("expected one embed batch of 2, got %v", emb.batches)
	}
}

func TestIngestText_EmptyDocumentOnlyDeletes(t *testing.T) {
	repo := &fakeRepo{replaced: 2}
	s := newTestService(repo, &fakeEmbedder{})

	res, err := s.IngestText(context.Background(), "guides/gone.md", "   \n")
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 0 || res.Replaced != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(repo.upserted) != 0 {
		t.Error("empty document must not upsert")
	}
	if len(repo.deletedPaths) != 1 {
		t.Error("empty document must still clear prior chunks")
	}
}

func TestDelete(t *testing.T) {
	repo := &fakeRepo{replaced: 4}
	s := newTestService(repo, &fakeEmbedder{})

	n, err := s.Delete(context.Background(), "old.md")
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 || repo.deletedPaths[0] != "old.md" {
		t.Errorf("n=%d paths=%v", n, repo.deletedPaths)
	}
}

func TestIngestFile_RelativeContentPath(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "guides")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(sub, "bali.md")
	if err := os.WriteFile(path, []byte("Reef notes."), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := &fakeRepo{}
	s := newTestService(repo, &fakeEmbedder{})

	res, err := s.IngestFile(context.Background(), root, path)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContentPath != "guides/bali.md" {
		t.Errorf("content path = %q", res.ContentPath)
	}
}

func TestIngestDir(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"a.md":       "Alpha doc.",
		"b.markdown": "Beta doc.",
		"skip.txt":   "not markdown",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	repo := &fakeRepo{}
	s := newTestService(repo, &fakeEmbedder{})

	res, err := s.IngestDir(context.Background(), root, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Files != 2 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.Chunks != 2 {
		t.Errorf("chunks = %d", res.Chunks)
	}
}
