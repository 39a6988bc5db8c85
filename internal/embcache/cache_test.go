package embcache

import (
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(0, time.Minute); err == nil {
		t.Error("zero size must be rejected")
	}
	if _, err := New(10, 0); err == nil {
		t.Error("zero ttl must be rejected")
	}
}

func TestGetSet(t *testing.T) {
	c, err := New(4, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatal("empty cache returned a hit")
	}

	c.Set("query", []float32{1, 2, 3})
	vec, ok := c.Get("query")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(vec) != 3 || vec[0] != 1 || vec[2] != 3 {
		t.Errorf("got vector %v", vec)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = (%d, %d), want (1, 1)", hits, misses)
	}
}

func TestLRUEviction(t *testing.T) {
	c, err := New(2, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	if _, ok := c.Get("a"); !ok { // touch "a" so "b" is the LRU victim
		t.Fatal("expected hit for a")
	}
	c.Set("c", []float32{3})

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("least-recently-used entry should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently touched entry must survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry must survive")
	}
}

func TestTTLExpiry(t *testing.T) {
	c, err := New(4, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }

	c.Set("q", []float32{1})

	base = base.Add(59 * time.Second)
	if _, ok := c.Get("q"); !ok {
		t.Fatal("entry inside its TTL must hit")
	}

	base = base.Add(2 * time.Second)
	if _, ok := c.Get("q"); ok {
		t.Fatal("expired entry must be a miss")
	}
	if c.Len() != 0 {
		t.Error("expired entry must be purged on access")
	}
}

func TestDistinctTextsDistinctKeys(t *testing.T) {
	c, err := New(4, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	c.Set("alpha", []float32{1})
	c.Set("beta", []float32{2})

	vec, ok := c.Get("beta")
	if !ok || vec[0] != 2 {
		t.Errorf("beta lookup = (%v, %v)", vec, ok)
	}
}
