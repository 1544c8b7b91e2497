package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
// Useful when several users or projects share one cache backend and need
// separate namespaces.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SnapshotKey generates a prefixed key for snapshot caching.
func (k *ScopedKeyer) SnapshotKey(inputHash string) string {
	return k.prefix + k.inner.SnapshotKey(inputHash)
}

// SceneKey generates a prefixed key for scene caching.
func (k *ScopedKeyer) SceneKey(snapshotHash string, opts SceneKeyOpts) string {
	return k.prefix + k.inner.SceneKey(snapshotHash, opts)
}

// ConstellationKey generates a prefixed key for constellation caching.
func (k *ScopedKeyer) ConstellationKey(snapshotHash string, opts ConstellationKeyOpts) string {
	return k.prefix + k.inner.ConstellationKey(snapshotHash, opts)
}
