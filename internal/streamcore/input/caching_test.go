package input

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCachingInputStreamMissThenHitServesIdenticalBytes(t *testing.T) {
	t.Parallel()
	body := []byte("the quick brown fox jumps over the lazy dog, repeated for bulk ")
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	dir := t.TempDir()
	cfg := CachingConfig{Directory: dir, MaxDiskCacheBytes: 10 << 20}
	client := NewResty(5 * time.Second)

	missDelegate := &recordingDelegate{}
	primary := NewHttpInputStream(client, server.URL, defaultHttpConfig(), missDelegate)
	cachingMiss := NewCachingInputStream(primary, server.URL, cfg, missDelegate)
	if err := cachingMiss.Open(context.Background(), nil); err != nil {
		t.Fatalf("unexpected open error on miss: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		_, ended, _ := missDelegate.snapshot()
		return ended
	})
	_ = cachingMiss.Close()

	got, _, errCount := missDelegate.snapshot()
	if errCount != 0 {
		t.Fatalf("expected no errors on miss, got %d", errCount)
	}
	if string(got) != string(body) {
		t.Fatalf("miss path mismatch: got %q want %q", got, body)
	}
	if hits != 1 {
		t.Fatalf("expected exactly one upstream request, got %d", hits)
	}

	hitDelegate := &recordingDelegate{}
	primary2 := NewHttpInputStream(client, server.URL, defaultHttpConfig(), hitDelegate)
	cachingHit := NewCachingInputStream(primary2, server.URL, cfg, hitDelegate)
	if err := cachingHit.Open(context.Background(), nil); err != nil {
		t.Fatalf("unexpected open error on hit: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		_, ended, _ := hitDelegate.snapshot()
		return ended
	})

	got2, _, errCount2 := hitDelegate.snapshot()
	if errCount2 != 0 {
		t.Fatalf("expected no errors on hit, got %d", errCount2)
	}
	if string(got2) != string(body) {
		t.Fatalf("hit path mismatch: got %q want %q", got2, body)
	}
	if hits != 1 {
		t.Fatalf("expected the cache hit to avoid a second upstream request, got %d total hits", hits)
	}
}

func TestCachingInputStreamErrorLeavesNoCompleteMarker(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	cfg := CachingConfig{Directory: dir, MaxDiskCacheBytes: 10 << 20}
	client := NewResty(5 * time.Second)

	delegate := &recordingDelegate{}
	primary := NewHttpInputStream(client, server.URL, defaultHttpConfig(), delegate)
	c := NewCachingInputStream(primary, server.URL, cfg, delegate)

	_ = c.Open(context.Background(), nil)

	key := cacheKey(server.URL)
	_, markerPath := cachePaths(dir, key)
	if _, err := os.Stat(markerPath); err == nil {
		t.Fatal("expected no complete marker after an upstream error")
	}
}

func TestCachingInputStreamEvictsOldestWhenOverBudget(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	old := filepath.Join(dir, "old.cache")
	if err := os.WriteFile(old, make([]byte, 1000), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.Chtimes(old, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	cfg := CachingConfig{Directory: dir, MaxDiskCacheBytes: 500}
	c := &CachingInputStream{cfg: cfg}
	if err := c.enforceDiskBudget(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected the oldest cache entry to have been evicted")
	}
}

func TestCacheKeyIsStableForSameURL(t *testing.T) {
	t.Parallel()
	a := cacheKey("http://example.com/stream.mp3")
	b := cacheKey("http://example.com/stream.mp3")
	c := cacheKey("http://example.com/other.mp3")
	if a != b {
		t.Fatal("expected the same URL to hash to the same key")
	}
	if a == c {
		t.Fatal("expected different URLs to hash to different keys")
	}
}
