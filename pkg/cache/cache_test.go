package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	// Miss before Set
	_, hit, err := c.Get(ctx, "scene:abc")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("expected miss before Set")
	}

	// Round trip
	if err := c.Set(ctx, "scene:abc", []byte("payload"), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "scene:abc")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !hit || string(data) != "payload" {
		t.Errorf("expected hit with payload, got hit=%v data=%q", hit, data)
	}

	// Expired entries are misses
	if err := c.Set(ctx, "stale", []byte("old"), -time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "stale"); hit {
		t.Error("expected expired entry to miss")
	}

	// Delete removes, deleting again is fine
	if err := c.Delete(ctx, "scene:abc"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "scene:abc"); hit {
		t.Error("expected miss after Delete")
	}
	if err := c.Delete(ctx, "scene:abc"); err != nil {
		t.Errorf("Delete of absent key should not error: %v", err)
	}
}

func TestFileCacheShardsByClass(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	keyer := NewDefaultKeyer()
	if err := c.Set(ctx, keyer.SnapshotKey("in"), []byte("s"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, keyer.SceneKey("in", SceneKeyOpts{Detail: "summary"}), []byte("l"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	for _, shard := range []string{"snapshot", "scene"} {
		entries, err := os.ReadDir(filepath.Join(dir, shard))
		if err != nil {
			t.Fatalf("shard %s missing: %v", shard, err)
		}
		if len(entries) != 1 {
			t.Errorf("shard %s has %d entries, want 1", shard, len(entries))
		}
	}
}

func TestFileCachePurge(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	keyer := NewDefaultKeyer()
	_ = c.Set(ctx, keyer.SnapshotKey("a"), []byte("1"), 0)
	_ = c.Set(ctx, keyer.SnapshotKey("b"), []byte("2"), 0)
	_ = c.Set(ctx, keyer.ConstellationKey("a", ConstellationKeyOpts{Count: 4}), []byte("3"), 0)

	counts, err := c.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if counts["snapshot"] != 2 || counts["constellation"] != 1 {
		t.Errorf("unexpected purge counts: %v", counts)
	}
	if _, hit, _ := c.Get(ctx, keyer.SnapshotKey("a")); hit {
		t.Error("expected miss after Purge")
	}

	// Purging an already empty cache reports nothing.
	counts, err = c.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("expected empty counts, got %v", counts)
	}
}

func TestKeyClass(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"snapshot:abc123", "snapshot"},
		{"scene:abc123", "scene"},
		{"user:42:constellation:abc123", "constellation"},
		{"noclass", "misc"},
		{":abc123", "misc"},
	}
	for _, tt := range tests {
		if got := keyClass(tt.key); got != tt.want {
			t.Errorf("keyClass(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestClassifyRedisErr(t *testing.T) {
	if classifyRedisErr(nil) != nil {
		t.Error("nil should stay nil")
	}
	if !IsRetryable(classifyRedisErr(errors.New("connection refused"))) {
		t.Error("connection errors should be retryable")
	}
	if IsRetryable(classifyRedisErr(context.Canceled)) {
		t.Error("context cancellation should not be retryable")
	}
	if IsRetryable(classifyRedisErr(context.DeadlineExceeded)) {
		t.Error("deadline exceeded should not be retryable")
	}
}

func TestHash(t *testing.T) {
	// Determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// SHA-256 produces 64 hex chars
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	// SnapshotKey is deterministic and input-sensitive
	if k.SnapshotKey("abc") != k.SnapshotKey("abc") {
		t.Error("SnapshotKey should be deterministic")
	}
	if k.SnapshotKey("abc") == k.SnapshotKey("def") {
		t.Error("Different inputs should produce different snapshot keys")
	}

	// SceneKey should include options in hash
	sk1 := k.SceneKey("hash123", SceneKeyOpts{Detail: "summary", Curvature: 0.2})
	sk2 := k.SceneKey("hash123", SceneKeyOpts{Detail: "detailed", Curvature: 0.2})
	if sk1 == sk2 {
		t.Error("Different SceneKeyOpts should produce different keys")
	}
	sk3 := k.SceneKey("hash123", SceneKeyOpts{Detail: "summary", Curvature: 0.2, Subset: []string{"a"}})
	if sk1 == sk3 {
		t.Error("Different subsets should produce different keys")
	}

	// ConstellationKey
	ck1 := k.ConstellationKey("hash123", ConstellationKeyOpts{Model: "gpt-4o-mini", Count: 4})
	ck2 := k.ConstellationKey("hash123", ConstellationKeyOpts{Model: "gpt-4o", Count: 4})
	if ck1 == ck2 {
		t.Error("Different ConstellationKeyOpts should produce different keys")
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "user:123:")

	key := scoped.SnapshotKey("abc")
	if len(key) < 9 || key[:9] != "user:123:" {
		t.Errorf("ScopedKeyer SnapshotKey should be prefixed: %s", key)
	}
	if key[9:] != inner.SnapshotKey("abc") {
		t.Error("ScopedKeyer should delegate to inner keyer")
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	// Should use DefaultKeyer when inner is nil
	scoped := NewScopedKeyer(nil, "prefix:")
	key := scoped.SnapshotKey("abc")
	if key != "prefix:"+NewDefaultKeyer().SnapshotKey("abc") {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestRetryableError(t *testing.T) {
	// Retryable(nil) returns nil
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	// Non-nil error is wrapped
	inner := errors.New("connection reset")
	err := Retryable(inner)
	if err == nil {
		t.Fatal("Retryable should return wrapped error")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}

	// Error message is preserved
	if err.Error() != inner.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}

	// Non-wrapped errors are not retryable
	if IsRetryable(errors.New("plain")) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	// Success on first try
	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should call once: %d", calls)
	}

	// Non-retryable error stops immediately
	calls = 0
	permanent := errors.New("bad key")
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return permanent
	})
	if err != permanent {
		t.Errorf("Should return non-retryable error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should not retry non-retryable error: %d", calls)
	}

	// Retryable error triggers retries
	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("Should retry once: %d", calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(errors.New("transient"))
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}
