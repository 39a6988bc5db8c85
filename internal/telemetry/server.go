// Package telemetry serves the operational HTTP endpoints: liveness,
// Prometheus metrics, quota and cache snapshots.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	logctx "github.com/waypointhq/ragcore/internal/logger"
	"github.com/waypointhq/ragcore/internal/quota"
	"github.com/waypointhq/ragcore/internal/version"
)

// pinger is the consumer interface for store liveness (ISP).
type pinger interface {
	Ping(ctx context.Context) error
}

// quotaSource exposes the quota snapshot for telemetry.
type quotaSource interface {
	SnapshotAll() []quota.Snapshot
}

// cacheSource exposes embedding cache counters for telemetry.
type cacheSource interface {
	CacheStats() (hits, misses uint64)
}

// Server is the ops listener. It is not part of the library surface; it
// only exposes read-only state.
type Server struct {
	store  pinger
	quota  quotaSource
	cache  cacheSource
	logger *zap.Logger
	http   *http.Server
}

// New creates the ops listener on addr.
func New(addr string, store pinger, q quotaSource, cache cacheSource, logger *zap.Logger) *Server {
	s := &Server{store: store, quota: q, cache: cache, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(logctx.ContextWithLogger(req.Context(), s.logger)))
		})
	})
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/quota", s.handleQuota)
	r.Get("/cache", s.handleCache)
	r.Get("/version", s.handleVersion)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown. Blocks; run it in its own goroutine.
func (s *Server) Start() error {
	s.logger.Info("telemetry listener started", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		logctx.FromContext(r.Context()).Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuota(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.quota.SnapshotAll())
}

func (s *Server) handleCache(w http.ResponseWriter, _ *http.Request) {
	hits, misses := s.cache.CacheStats()
	writeJSON(w, http.StatusOK, map[string]uint64{"hits": hits, "misses": misses})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
