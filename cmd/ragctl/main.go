// Command ragctl drives the RAG core: ingest documents, delete them,
// run retrieval queries and inspect quota state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/waypointhq/ragcore/internal/chunker"
	"github.com/waypointhq/ragcore/internal/config"
	dbRedis "github.com/waypointhq/ragcore/internal/db/redis"
	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/domain/filter"
	"github.com/waypointhq/ragcore/internal/embcache"
	logpkg "github.com/waypointhq/ragcore/internal/logger"
	"github.com/waypointhq/ragcore/internal/metrics"
	"github.com/waypointhq/ragcore/internal/quota"
	chunksrepo "github.com/waypointhq/ragcore/internal/repository/chunks"
	"github.com/waypointhq/ragcore/internal/retry"
	"github.com/waypointhq/ragcore/internal/telemetry"
	"github.com/waypointhq/ragcore/internal/tokencount"
	openaiTransport "github.com/waypointhq/ragcore/internal/transport/openai"
	embeddinguc "github.com/waypointhq/ragcore/internal/usecase/embedding"
	ingestuc "github.com/waypointhq/ragcore/internal/usecase/ingest"
	raguc "github.com/waypointhq/ragcore/internal/usecase/rag"
	retrievaluc "github.com/waypointhq/ragcore/internal/usecase/retrieval"
	"github.com/waypointhq/ragcore/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer app.Close()

	ctx := context.Background()

	var runErr error
	switch os.Args[1] {
	case "ingest":
		runErr = app.runIngest(ctx, os.Args[2:])
	case "delete":
		runErr = app.runDelete(ctx, os.Args[2:])
	case "search":
		runErr = app.runSearch(ctx, os.Args[2:])
	case "context":
		runErr = app.runContext(ctx, os.Args[2:])
	case "quota":
		runErr = app.runQuota(os.Args[2:])
	case "version":
		fmt.Printf("ragctl %s (%s, %s)\n", version.Version, version.Commit, version.Date)
	default:
		usage()
		os.Exit(2)
	}
	if runErr != nil {
		logger.Fatal("command failed", zap.String("command", os.Args[1]), zap.Error(runErr))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ragctl <command> [flags]

commands:
  ingest   <path>          ingest a markdown file or directory
  delete   <content-path>  delete every chunk ingested from a path
  search   <query>         run retrieval and print ranked chunks
  context  <query>         run the full pipeline and print the RAG context
  quota                    print the current quota snapshot
  version                  print build information`)
}

// app is the composition root shared by all subcommands.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *dbRedis.Store
	repo      *chunksrepo.Repo
	quota     *quota.Manager
	embed     *embeddinguc.Client
	retrieval *retrievaluc.Service
	pipeline  *raguc.Pipeline
	ingest    *ingestuc.Service
	telemetry *telemetry.Server
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.Register()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	readyCtx := context.Background()
	if err := store.WaitForReady(readyCtx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, err
	}

	repo := chunksrepo.New(store, cfg.Storage.KeyPrefix, cfg.Embedding.Dimensions)
	if err := repo.EnsureIndex(readyCtx); err != nil {
		store.Close()
		return nil, err
	}

	cache, err := embcache.New(cfg.Cache.MaxSize, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create cache: %w", err)
	}

	quotaMgr := quota.New(quota.Config{
		TextGeneration: quota.Limits{
			RequestsPerMinute: cfg.Quota.TextGeneration.RequestsPerMinute,
			TokensPerMinute:   cfg.Quota.TextGeneration.TokensPerMinute,
			RequestsPerDay:    cfg.Quota.TextGeneration.RequestsPerDay,
		},
		Embedding: quota.Limits{
			RequestsPerMinute: cfg.Quota.Embedding.RequestsPerMinute,
			TokensPerMinute:   cfg.Quota.Embedding.TokensPerMinute,
			RequestsPerDay:    cfg.Quota.Embedding.RequestsPerDay,
		},
		Enforce: cfg.QuotaEnforced(),
	}, logger)

	counter := tokencount.New(logger)

	provider := openaiTransport.NewEmbedder(openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	embedClient := embeddinguc.New(provider, cache, quotaMgr, counter, retry.DefaultPolicy(), logger)

	retrievalSvc := retrievaluc.New(repo, embedClient, cfg.RAG.KeywordWeight, logger)

	pipeline := raguc.New(retrievalSvc, raguc.Config{
		Enabled:       cfg.RAGEnabled(),
		UseHybrid:     cfg.HybridEnabled(),
		MinSimilarity: cfg.RAG.MinSimilarity,
	}, logger)

	chunkerOpts := chunker.Options{
		TargetTokens:  cfg.Chunking.TargetTokens,
		MaxTokens:     cfg.Chunking.MaxTokens,
		MinTokens:     cfg.Chunking.MinTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
	}
	ingestSvc := ingestuc.New(chunker.New(counter, logger), embedClient, repo, chunkerOpts, logger)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		repo:      repo,
		quota:     quotaMgr,
		embed:     embedClient,
		retrieval: retrievalSvc,
		pipeline:  pipeline,
		ingest:    ingestSvc,
	}

	if cfg.Telemetry.Addr != "" {
		a.telemetry = telemetry.New(cfg.Telemetry.Addr, store, quotaMgr, embedClient, logger)
		go func() {
			if err := a.telemetry.Start(); err != nil {
				logger.Error("telemetry listener failed", zap.Error(err))
			}
		}()
	}

	return a, nil
}

func (a *app) Close() {
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = a.telemetry.Shutdown(ctx)
	}
	a.store.Close()
}

func (a *app) runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	workers := fs.Int("workers", 4, "concurrent files during directory ingestion")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: ragctl ingest [-workers n] <path>")
	}
	path := fs.Arg(0)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.IsDir() {
		res, err := a.ingest.IngestDir(ctx, path, *workers)
		if err != nil {
			return err
		}
		fmt.Printf("ingested %d files (%d chunks, %d failed)\n", res.Files, res.Chunks, res.Failed)
		return nil
	}

	res, err := a.ingest.IngestFile(ctx, "", path)
	if err != nil {
		return err
	}
	fmt.Printf("ingested %s: %d chunks (%d replaced, %d tokens)\n",
		res.ContentPath, res.Chunks, res.Replaced, res.Tokens)
	return nil
}

func (a *app) runDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: ragctl delete <content-path>")
	}
	n, err := a.ingest.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d chunks\n", n)
	return nil
}

func (a *app) runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	topK := fs.Int("top-k", a.cfg.RAG.TopK, "number of results")
	minSim := fs.Float64("min-similarity", a.cfg.RAG.MinSimilarity, "similarity floor for the vector path")
	hybrid := fs.Bool("hybrid", a.cfg.HybridEnabled(), "fuse vector and keyword rankings")
	docType := fs.String("doc-type", "", "filter by document type")
	destination := fs.String("destination", "", "filter by destination")
	tags := fs.String("tags", "", "comma-separated tag filters (chunk must carry all)")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: ragctl search [flags] <query>")
	}
	query := fs.Arg(0)

	f, err := buildFilter(*docType, *destination, *tags)
	if err != nil {
		return err
	}
	opts, err := domain.NewRetrievalOptions(*topK, *minSim, f)
	if err != nil {
		return err
	}

	results, err := a.searchWith(ctx, query, opts, *hybrid)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i := range results {
		r := &results[i]
		fmt.Printf("%2d. %.4f  %s#%d\n", i+1, r.Score(), r.Meta().ContentPath, r.Meta().ChunkIndex)
		fmt.Println(indent(r.Text()))
	}
	return nil
}

func (a *app) runContext(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	topK := fs.Int("top-k", 0, "override the complexity heuristic")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: ragctl context [flags] <query>")
	}
	query := fs.Arg(0)

	var opts []raguc.Option
	if *topK > 0 {
		opts = append(opts, raguc.WithTopK(*topK))
	}

	rc, err := a.pipeline.RetrieveContext(ctx, query, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("has_data: %v\n", rc.HasData)
	if len(rc.Citations) > 0 {
		fmt.Printf("citations: %s\n", strings.Join(rc.Citations, ", "))
	}
	fmt.Println("---")
	fmt.Println(rc.FormattedContext)
	return nil
}

func (a *app) runQuota(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: ragctl quota")
	}
	out, err := json.MarshalIndent(a.quota.SnapshotAll(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (a *app) searchWith(
	ctx context.Context, query string, opts domain.RetrievalOptions, hybrid bool,
) ([]domain.RetrievalResult, error) {
	if hybrid {
		return a.retrieval.RetrieveHybrid(ctx, query, opts)
	}
	return a.retrieval.Retrieve(ctx, query, opts)
}

func buildFilter(docType, destination, tags string) (filter.Filter, error) {
	var tagList []string
	if tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tagList = append(tagList, t)
			}
		}
	}
	return filter.New(docType, destination, tagList)
}

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
