// Package embcache is a bounded in-process embedding cache.
//
// Entries are keyed by the SHA-256 of the input text, evicted
// least-recently-used at capacity, and treated as misses once older than the
// TTL (purged lazily on access, no background sweep). The cache is NOT safe
// for concurrent use; callers synchronize externally or keep per-path
// instances.
package embcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/waypointhq/ragcore/internal/metrics"
)

type entry struct {
	vector    []float32
	createdAt time.Time
}

// Cache maps text to its embedding vector.
type Cache struct {
	lru    *lru.LRU[string, entry]
	ttl    time.Duration
	hits   uint64
	misses uint64
	now    func() time.Time
}

// New creates a Cache bounded to maxSize entries with the given TTL.
func New(maxSize int, ttl time.Duration) (*Cache, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max size must be positive, got %d", maxSize)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	l, err := lru.NewLRU[string, entry](maxSize, nil)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{lru: l, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached vector for text, or false on a miss.
// An entry past its TTL is purged and reported as a miss.
func (c *Cache) Get(text string) ([]float32, bool) {
	key := cacheKey(text)
	e, ok := c.lru.Get(key)
	if ok && c.now().Sub(e.createdAt) >= c.ttl {
		c.lru.Remove(key)
		ok = false
	}
	if !ok {
		c.misses++
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	c.hits++
	metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	return e.vector, true
}

// Set stores a vector for text, evicting the least-recently-used entry
// at capacity.
func (c *Cache) Set(text string, vector []float32) {
	c.lru.Add(cacheKey(text), entry{vector: vector, createdAt: c.now()})
}

// Stats returns the cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits, c.misses
}

// Len returns the current entry count, including not-yet-purged expired entries.
func (c *Cache) Len() int { return c.lru.Len() }

func cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
