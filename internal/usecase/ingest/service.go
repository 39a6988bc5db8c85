// Package ingest turns markdown documents into embedded, stored chunks.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/waypointhq/ragcore/internal/chunker"
	"github.com/waypointhq/ragcore/internal/domain"
)

// repository is the consumer interface for chunk persistence (ISP).
type repository interface {
	Upsert(ctx context.Context, cs []domain.Chunk, vectors [][]float32) ([]domain.Chunk, error)
	DeleteByPath(ctx context.Context, contentPath string) (int, error)
}

// embedder is the consumer interface for vectorization (ISP).
type embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Service ingests documents: split, embed, replace-by-path, store.
type Service struct {
	chunker *chunker.Chunker
	embed   embedder
	repo    repository
	opts    chunker.Options
	logger  *zap.Logger
}

// New creates an ingest service.
func New(c *chunker.Chunker, e embedder, r repository, opts chunker.Options, logger *zap.Logger) *Service {
	return &Service{chunker: c, embed: e, repo: r, opts: opts, logger: logger}
}

// Result summarizes one document ingestion.
type Result struct {
	ContentPath string
	Chunks      int
	Replaced    int
	Tokens      int
}

// IngestText chunks and stores raw markdown under contentPath, replacing
// any chunks previously ingested from the same path.
func (s *Service) IngestText(ctx context.Context, contentPath, text string) (Result, error) {
	frontmatter, body, err := splitFrontmatter(text)
	if err != nil {
		return Result{}, fmt.Errorf("ingest %s: %w", contentPath, err)
	}

	chunks, err := s.chunker.Chunk(body, contentPath, frontmatter, s.opts)
	if err != nil {
		return Result{}, fmt.Errorf("chunk %s: %w", contentPath, err)
	}
	if len(chunks) == 0 {
		replaced, err := s.repo.DeleteByPath(ctx, contentPath)
		if err != nil {
			return Result{}, err
		}
		return Result{ContentPath: contentPath, Replaced: replaced}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	batch, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("embed %s: %w", contentPath, err)
	}

	replaced, err := s.repo.DeleteByPath(ctx, contentPath)
	if err != nil {
		return Result{}, err
	}

	if _, err := s.repo.Upsert(ctx, chunks, batch.Embeddings); err != nil {
		return Result{}, err
	}

	s.logger.Info("document ingested",
		zap.String("content_path", contentPath),
		zap.Int("chunks", len(chunks)),
		zap.Int("replaced", replaced),
		zap.Int("tokens", batch.TotalTokens),
	)

	return Result{
		ContentPath: contentPath,
		Chunks:      len(chunks),
		Replaced:    replaced,
		Tokens:      batch.TotalTokens,
	}, nil
}

// IngestFile reads path and ingests it. The content path is the file path
// relative to root, normalized to forward slashes.
func (s *Service) IngestFile(ctx context.Context, root, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}

	contentPath := path
	if root != "" {
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			contentPath = rel
		}
	}
	contentPath = filepath.ToSlash(contentPath)

	return s.IngestText(ctx, contentPath, string(data))
}

// Delete removes every chunk previously ingested from contentPath.
func (s *Service) Delete(ctx context.Context, contentPath string) (int, error) {
	return s.repo.DeleteByPath(ctx, contentPath)
}

// DirResult summarizes a directory ingestion run.
type DirResult struct {
	Files  int64
	Chunks int64
	Failed int64
}

// IngestDir walks root and ingests every markdown file using a pool of
// workers. Per-file failures are logged and counted, not fatal.
func (s *Service) IngestDir(ctx context.Context, root string, workers int) (DirResult, error) {
	if workers <= 0 {
		workers = 4
	}

	paths := make(chan string, workers*2)
	var wg sync.WaitGroup
	var files, chunks, failed atomic.Int64

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				res, err := s.IngestFile(ctx, root, path)
				if err != nil {
					s.logger.Error("ingest failed", zap.String("path", path), zap.Error(err))
					failed.Add(1)
					continue
				}
				files.Add(1)
				chunks.Add(int64(res.Chunks))
			}
		}()
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isMarkdown(path) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case paths <- path:
			return nil
		}
	})
	close(paths)
	wg.Wait()

	result := DirResult{Files: files.Load(), Chunks: chunks.Load(), Failed: failed.Load()}
	if walkErr != nil {
		return result, fmt.Errorf("walk %s: %w", root, walkErr)
	}
	return result, nil
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}
