// Package cache provides pluggable byte caches and the key scheme the
// pipeline uses for snapshots, scenes, and constellation groupings.
package cache

import (
	"context"
	"time"
)

// Default TTLs per artifact class. Snapshots and scenes are deterministic
// functions of their inputs and keep for a long time; constellation
// groupings come from a model and expire sooner so regrouping picks up
// model improvements.
const (
	SnapshotTTL      = 30 * 24 * time.Hour
	SceneTTL         = 30 * 24 * time.Hour
	ConstellationTTL = 7 * 24 * time.Hour
)

// Cache stores opaque byte values under string keys with per-entry TTL.
// A zero TTL means no expiration.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key
	// was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// SceneKeyOpts captures the layout parameters that distinguish one scene
// of the same snapshot from another.
type SceneKeyOpts struct {
	Subset    []string
	Detail    string
	Curvature float64
	Samples   int
}

// ConstellationKeyOpts captures the clustering parameters baked into a
// grouping key.
type ConstellationKeyOpts struct {
	Model string
	Count int
}

// Keyer generates cache keys for the pipeline's artifact classes.
type Keyer interface {
	// SnapshotKey keys a reconciled snapshot by the hash of its raw
	// extraction input.
	SnapshotKey(inputHash string) string

	// SceneKey keys a laid-out scene by snapshot hash and layout options.
	SceneKey(snapshotHash string, opts SceneKeyOpts) string

	// ConstellationKey keys a constellation grouping by snapshot hash and
	// clustering options.
	ConstellationKey(snapshotHash string, opts ConstellationKeyOpts) string
}

// DefaultKeyer hashes key components with SHA-256 under a per-class
// prefix.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// SnapshotKey generates a key for snapshot caching.
func (k *DefaultKeyer) SnapshotKey(inputHash string) string {
	return hashKey("snapshot", inputHash)
}

// SceneKey generates a key for scene caching.
func (k *DefaultKeyer) SceneKey(snapshotHash string, opts SceneKeyOpts) string {
	return hashKey("scene", snapshotHash, opts)
}

// ConstellationKey generates a key for constellation caching.
func (k *DefaultKeyer) ConstellationKey(snapshotHash string, opts ConstellationKeyOpts) string {
	return hashKey("constellation", snapshotHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
