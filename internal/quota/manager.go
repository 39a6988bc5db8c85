// Package quota enforces process-wide sliding-window API quotas.
//
// Each bucket keeps two rolling deques: a per-minute window of
// (timestamp, token cost) events bounding request count and token sum, and a
// 24-hour deque of bare timestamps bounding the daily request ceiling (a true
// rolling window, not calendar midnight). Per-minute exhaustion blocks or
// reports a wait; the daily ceiling is a hard stop surfaced as
// domain.ErrQuotaExceeded and never retried locally.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/metrics"
)

const (
	windowDuration = time.Minute
	dailyDuration  = 24 * time.Hour
)

// utilizationThresholds are the daily-usage fractions that trigger a
// one-time warning each (reset when the daily window empties).
var utilizationThresholds = []float64{0.70, 0.85, 0.95}

// Limits are the per-bucket ceilings. 0 = unlimited.
type Limits struct {
	RequestsPerMinute int
	TokensPerMinute   int
	RequestsPerDay    int
}

// Config holds the quota ceilings for all buckets.
type Config struct {
	TextGeneration Limits
	Embedding      Limits
	// Enforce toggles enforcement; false turns every reservation into a
	// pass-through.
	Enforce bool
}

// Snapshot is a point-in-time view of one bucket, for telemetry.
type Snapshot struct {
	Bucket         string `json:"bucket"`
	WindowRequests int    `json:"window_requests"`
	WindowTokens   int    `json:"window_tokens"`
	DailyRequests  int    `json:"daily_requests"`
	Limits         Limits `json:"limits"`
}

// Decision is the outcome of a reservation attempt.
type Decision struct {
	Allowed  bool
	Wait     time.Duration // suggested wait when not allowed and not blocking
	Reason   string
	Snapshot Snapshot
}

type event struct {
	at     time.Time
	tokens int
}

type bucketState struct {
	mu           sync.Mutex
	limits       Limits
	window       []event
	windowTokens int
	daily        []time.Time
	warned       uint8 // bit per utilization threshold
}

// Manager is the process-wide quota limiter. Create one at startup and
// inject it into every client; Reset exists for test isolation.
// Each bucket has its own lock, so generation and embedding traffic never
// contend, and no lock is held while sleeping.
type Manager struct {
	enforce bool
	buckets map[Bucket]*bucketState
	logger  *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option overrides Manager internals (clock and sleep, for tests).
type Option func(*Manager)

// WithClock injects a time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSleep injects the blocking-wait primitive.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// New creates a Manager with the given ceilings.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		enforce: cfg.Enforce,
		buckets: map[Bucket]*bucketState{
			TextGeneration: {limits: cfg.TextGeneration},
			Embedding:      {limits: cfg.Embedding},
		},
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reserve claims capacity for one request of tokenCost tokens in bucket b.
//
// When the per-minute window is full: blocks until capacity frees if
// waitForCapacity is true (respecting ctx cancellation), otherwise returns
// Allowed=false with the computed wait. When the rolling 24h request count
// is at its ceiling, returns domain.ErrQuotaExceeded immediately, without
// sleeping, regardless of waitForCapacity.
func (m *Manager) Reserve(
	ctx context.Context, b Bucket, tokenCost int, waitForCapacity bool,
) (Decision, error) {
	st, ok := m.buckets[b]
	if !ok {
		return Decision{}, fmt.Errorf("unknown quota bucket %d", b)
	}
	if !m.enforce {
		return Decision{Allowed: true, Snapshot: Snapshot{Bucket: b.String()}}, nil
	}

	for {
		st.mu.Lock()
		now := m.now()
		st.prune(now)

		if st.limits.RequestsPerDay > 0 && len(st.daily) >= st.limits.RequestsPerDay {
			snap := st.snapshot(b)
			st.mu.Unlock()
			metrics.QuotaDeniedTotal.WithLabelValues(b.String()).Inc()
			return Decision{
					Allowed:  false,
					Reason:   "daily request ceiling reached",
					Snapshot: snap,
				}, fmt.Errorf(
					"bucket %s: %d requests in the last 24h: %w",
					b, len(st.daily), domain.ErrQuotaExceeded,
				)
		}

		if st.windowAllows(tokenCost) {
			st.record(now, tokenCost)
			m.warnUtilization(st, b)
			snap := st.snapshot(b)
			st.mu.Unlock()
			return Decision{Allowed: true, Snapshot: snap}, nil
		}

		wait := st.nextCapacity(tokenCost, now)
		snap := st.snapshot(b)
		st.mu.Unlock()

		if !waitForCapacity {
			return Decision{
				Allowed:  false,
				Wait:     wait,
				Reason:   "per-minute window full",
				Snapshot: snap,
			}, nil
		}

		metrics.QuotaWaitSeconds.WithLabelValues(b.String()).Observe(wait.Seconds())
		if err := m.sleep(ctx, wait); err != nil {
			return Decision{}, fmt.Errorf("quota wait canceled: %w", err)
		}
	}
}

// SnapshotAll returns a telemetry snapshot of every bucket.
func (m *Manager) SnapshotAll() []Snapshot {
	snaps := make([]Snapshot, 0, len(m.buckets))
	for _, b := range Buckets() {
		st := m.buckets[b]
		st.mu.Lock()
		st.prune(m.now())
		snaps = append(snaps, st.snapshot(b))
		st.mu.Unlock()
	}
	return snaps
}

// Reset clears all recorded usage. Test isolation hook.
func (m *Manager) Reset() {
	for _, st := range m.buckets {
		st.mu.Lock()
		st.window = nil
		st.windowTokens = 0
		st.daily = nil
		st.warned = 0
		st.mu.Unlock()
	}
}

// prune drops events that have aged out of their windows.
// Caller holds st.mu.
func (st *bucketState) prune(now time.Time) {
	cutoff := now.Add(-windowDuration)
	i := 0
	for i < len(st.window) && !st.window[i].at.After(cutoff) {
		st.windowTokens -= st.window[i].tokens
		i++
	}
	st.window = st.window[i:]

	dailyCutoff := now.Add(-dailyDuration)
	j := 0
	for j < len(st.daily) && !st.daily[j].After(dailyCutoff) {
		j++
	}
	st.daily = st.daily[j:]

	if len(st.daily) == 0 {
		st.warned = 0
	}
}

// windowAllows reports whether the per-minute window can take one more
// request of tokenCost tokens. An empty window always admits the request so
// a single call larger than the token ceiling cannot deadlock.
func (st *bucketState) windowAllows(tokenCost int) bool {
	if len(st.window) == 0 {
		return true
	}
	if st.limits.RequestsPerMinute > 0 && len(st.window) >= st.limits.RequestsPerMinute {
		return false
	}
	if st.limits.TokensPerMinute > 0 && st.windowTokens+tokenCost > st.limits.TokensPerMinute {
		return false
	}
	return true
}

// record appends the reservation to both deques. Caller holds st.mu.
func (st *bucketState) record(now time.Time, tokenCost int) {
	st.window = append(st.window, event{at: now, tokens: tokenCost})
	st.windowTokens += tokenCost
	st.daily = append(st.daily, now)
}

// nextCapacity computes the minimum wait until either the oldest window
// event ages out (freeing a request slot) or enough cumulative tokens age
// out to fit tokenCost. Caller holds st.mu; the window is known non-empty.
func (st *bucketState) nextCapacity(tokenCost int, now time.Time) time.Duration {
	var waits []time.Duration

	if st.limits.RequestsPerMinute > 0 && len(st.window) >= st.limits.RequestsPerMinute {
		waits = append(waits, st.window[0].at.Add(windowDuration).Sub(now))
	}

	if st.limits.TokensPerMinute > 0 && st.windowTokens+tokenCost > st.limits.TokensPerMinute {
		freed := 0
		for _, ev := range st.window {
			freed += ev.tokens
			if st.windowTokens-freed+tokenCost <= st.limits.TokensPerMinute {
				waits = append(waits, ev.at.Add(windowDuration).Sub(now))
				break
			}
		}
	}

	wait := windowDuration
	for _, w := range waits {
		if w < wait {
			wait = w
		}
	}
	if wait < 0 {
		wait = 0
	}
	// nudge past the boundary so the retry sees the event pruned
	return wait + time.Millisecond
}

// warnUtilization logs one warning per crossed daily-utilization threshold.
// Caller holds st.mu.
func (m *Manager) warnUtilization(st *bucketState, b Bucket) {
	if st.limits.RequestsPerDay <= 0 {
		return
	}
	used := float64(len(st.daily)) / float64(st.limits.RequestsPerDay)
	for i, threshold := range utilizationThresholds {
		bit := uint8(1) << i
		if used >= threshold && st.warned&bit == 0 {
			st.warned |= bit
			m.logger.Warn("Daily quota utilization threshold crossed",
				zap.String("bucket", b.String()),
				zap.Float64("threshold", threshold),
				zap.Int("daily_requests", len(st.daily)),
				zap.Int("daily_limit", st.limits.RequestsPerDay),
			)
		}
	}
}

func (st *bucketState) snapshot(b Bucket) Snapshot {
	return Snapshot{
		Bucket:         b.String(),
		WindowRequests: len(st.window),
		WindowTokens:   st.windowTokens,
		DailyRequests:  len(st.daily),
		Limits:         st.limits,
	}
}

// sleepCtx blocks for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
