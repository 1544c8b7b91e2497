// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about pipeline execution, cache operations, and clusterer
// calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnBuildStart(ctx, title)
//	// ... build snapshot ...
//	observability.Pipeline().OnBuildComplete(ctx, title, entityCount, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the concept graph pipeline.
type PipelineHooks interface {
	// Build events
	OnBuildStart(ctx context.Context, title string)
	OnBuildComplete(ctx context.Context, title string, entityCount int, duration time.Duration, err error)

	// Layout events
	OnLayoutStart(ctx context.Context, detail string, nodeCount int)
	OnLayoutComplete(ctx context.Context, detail string, duration time.Duration, err error)

	// Group events
	OnGroupStart(ctx context.Context, title string)
	OnGroupComplete(ctx context.Context, title string, groupCount int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Cluster Hooks
// =============================================================================

// ClusterHooks receives events from clusterer calls.
type ClusterHooks interface {
	// OnClusterRequest records an outgoing clustering request.
	OnClusterRequest(ctx context.Context, model string, conceptCount int)

	// OnClusterResponse records a clustering response.
	OnClusterResponse(ctx context.Context, model string, groupCount int, duration time.Duration)

	// OnClusterFallback records a degradation to the deterministic fallback.
	OnClusterFallback(ctx context.Context, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnBuildStart(context.Context, string)                                {}
func (NoopPipelineHooks) OnBuildComplete(context.Context, string, int, time.Duration, error)  {}
func (NoopPipelineHooks) OnLayoutStart(context.Context, string, int)                          {}
func (NoopPipelineHooks) OnLayoutComplete(context.Context, string, time.Duration, error)      {}
func (NoopPipelineHooks) OnGroupStart(context.Context, string)                                {}
func (NoopPipelineHooks) OnGroupComplete(context.Context, string, int, time.Duration, error)  {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopClusterHooks is a no-op implementation of ClusterHooks.
type NoopClusterHooks struct{}

func (NoopClusterHooks) OnClusterRequest(context.Context, string, int)                 {}
func (NoopClusterHooks) OnClusterResponse(context.Context, string, int, time.Duration) {}
func (NoopClusterHooks) OnClusterFallback(context.Context, error)                      {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	clusterHooks  ClusterHooks  = NoopClusterHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any pipeline operations.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetClusterHooks registers custom clusterer hooks.
// This should be called once at application startup before any clusterer operations.
func SetClusterHooks(h ClusterHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		clusterHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Cluster returns the registered clusterer hooks.
func Cluster() ClusterHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return clusterHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	clusterHooks = NoopClusterHooks{}
}
