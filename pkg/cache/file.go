package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileCache memoizes pipeline artifacts on disk, one JSON envelope per
// entry, sharded into per-class subdirectories (snapshot/, scene/,
// constellation/). The layout keeps shard directories small and lets
// Purge report what it removed per artifact class.
type FileCache struct {
	dir string
}

// NewFileCache opens a file cache rooted at dir, creating it as needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// envelope is the on-disk entry format. Class and StoredAt are
// informational; expiry is enforced on read.
type envelope struct {
	Class     string    `json:"class"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Payload   []byte    `json:"payload"`
}

// Get reads an entry. Corrupt and expired entries are removed and
// reported as misses, so a stale artifact never reaches the pipeline.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		_ = os.Remove(path)
		return nil, false, nil
	}
	if !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return e.Payload, true, nil
}

// Set writes an entry under its class shard. A zero TTL stores without
// expiration.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := envelope{Class: keyClass(key), StoredAt: time.Now(), Payload: data}
	if ttl > 0 {
		e.ExpiresAt = e.StoredAt.Add(ttl)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

// Delete removes an entry. Deleting an absent key is not an error.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Purge removes every entry and returns removal counts keyed by
// artifact class. Emptied shard directories are removed as well.
func (c *FileCache) Purge(ctx context.Context) (map[string]int, error) {
	shards, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		shardDir := filepath.Join(c.dir, shard.Name())
		entries, err := os.ReadDir(shardDir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if os.Remove(filepath.Join(shardDir, entry.Name())) == nil {
				counts[shard.Name()]++
			}
		}
		_ = os.Remove(shardDir)
	}
	return counts, nil
}

// Close does nothing for a file cache.
func (c *FileCache) Close() error { return nil }

// path maps a key to <dir>/<class>/<digest>.json. Hashing the full key
// keeps scoped prefixes collision-free within a shard.
func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, keyClass(key), Hash([]byte(key))+".json")
}

var _ Cache = (*FileCache)(nil)
