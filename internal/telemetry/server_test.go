package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/waypointhq/ragcore/internal/quota"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeQuota struct{}

func (fakeQuota) SnapshotAll() []quota.Snapshot {
	return []quota.Snapshot{{Bucket: "embedding", WindowRequests: 2}}
}

type fakeCache struct{}

func (fakeCache) CacheStats() (uint64, uint64) { return 10, 3 }

func newTestServer(pingErr error) *httptest.Server {
	s := New("", fakePinger{err: pingErr}, fakeQuota{}, fakeCache{}, zap.NewNop())
	return httptest.NewServer(s.http.Handler)
}

func TestHealthz(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		ts := newTestServer(nil)
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		ts := newTestServer(errors.New("connection refused"))
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d", resp.StatusCode)
		}
		var body map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["status"] != "degraded" {
			t.Errorf("body = %v", body)
		}
	})
}

func TestQuotaEndpoint(t *testing.T) {
	ts := newTestServer(nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/quota")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var snaps []quota.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].Bucket != "embedding" || snaps[0].WindowRequests != 2 {
		t.Errorf("snaps = %+v", snaps)
	}
}

func TestCacheEndpoint(t *testing.T) {
	ts := newTestServer(nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/cache")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]uint64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["hits"] != 10 || body["misses"] != 3 {
		t.Errorf("body = %v", body)
	}
}
