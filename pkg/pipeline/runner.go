package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/starchart-viz/starchart/pkg/cache"
	"github.com/starchart-viz/starchart/pkg/cluster"
	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/errors"
	"github.com/starchart-viz/starchart/pkg/layout"
	"github.com/starchart-viz/starchart/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete build → layout → group pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid options")
	}
	r.applyLogger(&opts)

	runID := uuid.NewString()
	logger := r.Logger.With("run", runID[:8])
	result := &Result{}

	// Stage 1: Build
	buildStart := time.Now()
	observability.Pipeline().OnBuildStart(ctx, opts.Extraction.Title)
	snap, buildHit, err := r.BuildWithCacheInfo(ctx, opts)
	observability.Pipeline().OnBuildComplete(ctx, opts.Extraction.Title, entityCount(snap), time.Since(buildStart), err)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "build")
	}
	result.Snapshot = snap
	result.Scores = concept.Classify(snap.Entities, opts.Weights)
	result.Stats.BuildTime = time.Since(buildStart)
	result.Stats.EntityCount = len(snap.Entities)
	result.Stats.RelationCount = len(snap.Relations)
	result.CacheInfo.BuildHit = buildHit

	if data, err := concept.MarshalSnapshot(snap); err == nil {
		result.SnapshotHash = cache.Hash(data)
	}

	logger.Info("built concept graph",
		"entities", len(snap.Entities),
		"relations", len(snap.Relations),
		"duration", result.Stats.BuildTime)

	// Stage 2: Layout
	layoutStart := time.Now()
	observability.Pipeline().OnLayoutStart(ctx, opts.Detail, len(snap.Entities))
	scene, layoutHit, err := r.LayoutWithCacheInfo(ctx, snap, result.Scores, opts)
	observability.Pipeline().OnLayoutComplete(ctx, opts.Detail, time.Since(layoutStart), err)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "layout")
	}
	result.Scene = scene
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = layoutHit

	logger.Info("computed scene",
		"nodes", len(scene.Nodes),
		"edges", len(scene.Edges),
		"duration", result.Stats.LayoutTime)

	// Stage 3: Group
	groupStart := time.Now()
	observability.Pipeline().OnGroupStart(ctx, snap.Title)
	groups, groupHit, err := r.ConstellationsWithCacheInfo(ctx, snap, opts)
	observability.Pipeline().OnGroupComplete(ctx, snap.Title, len(groups), time.Since(groupStart), err)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "group")
	}
	result.Constellations = groups
	result.Stats.GroupTime = time.Since(groupStart)
	result.CacheInfo.GroupHit = groupHit

	logger.Info("grouped constellations",
		"constellations", len(groups),
		"duration", result.Stats.GroupTime)

	return result, nil
}

// BuildWithCacheInfo reconciles an extraction with caching and returns cache hit info.
func (r *Runner) BuildWithCacheInfo(ctx context.Context, opts Options) (*concept.Snapshot, bool, error) {
	if err := opts.ValidateForBuild(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	inputData, err := json.Marshal(opts.Extraction)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidInput, err, "serialize extraction")
	}
	cacheKey := r.Keyer.SnapshotKey(cache.Hash(inputData))

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			snap, err := concept.ReadSnapshot(bytes.NewReader(data))
			if err == nil {
				observability.Cache().OnCacheHit(ctx, "snapshot")
				return snap, true, nil // Cache hit
			}
		}
	}
	observability.Cache().OnCacheMiss(ctx, "snapshot")

	snap := buildSnapshot(opts)

	// Cache the result
	if data, err := concept.MarshalSnapshot(snap); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.SnapshotTTL)
		observability.Cache().OnCacheSet(ctx, "snapshot", len(data))
	}

	return snap, false, nil // Cache miss
}

// Build is a convenience wrapper that calls BuildWithCacheInfo and discards the cache hit info.
func (r *Runner) Build(ctx context.Context, opts Options) (*concept.Snapshot, error) {
	snap, _, err := r.BuildWithCacheInfo(ctx, opts)
	return snap, err
}

// buildSnapshot runs reconciliation, aggregation, and classification.
func buildSnapshot(opts Options) *concept.Snapshot {
	ext := opts.Extraction
	entities := concept.Reconcile(ext.Mentions(), opts.Logger)
	relations := concept.Aggregate(entities, ext.LocalRelations(), ext.GlobalRelations, opts.Logger)
	concept.Classify(entities, opts.Weights)

	return &concept.Snapshot{
		Title:     ext.Title,
		Category:  ext.Category,
		Entities:  entities,
		Relations: relations,
	}
}

// LayoutWithCacheInfo computes a scene with caching and returns cache hit info.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, snap *concept.Snapshot, scores map[string]concept.Score, opts Options) (*layout.Scene, bool, error) {
	if err := opts.ValidateForLayout(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	snapData, err := concept.MarshalSnapshot(snap)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "serialize snapshot for cache key")
	}
	cacheKey := r.Keyer.SceneKey(cache.Hash(snapData), opts.SceneKeyOpts())

	// Try cache first
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			cached, err := layout.UnmarshalScene(data)
			if err == nil {
				observability.Cache().OnCacheHit(ctx, "scene")
				return cached, true, nil // Cache hit
			}
			// If deserialization fails, fall through to recompute
		}
	}
	observability.Cache().OnCacheMiss(ctx, "scene")

	subset := opts.Subset
	if subset == nil {
		level, err := layout.ParseDetailLevel(opts.Detail)
		if err != nil {
			return nil, false, err
		}
		subset = layout.FilterByDetail(snap, level)
	}
	scene := layout.Build(snap, scores, subset, opts.Layout)
	if len(scene.Nodes) == 0 {
		r.Logger.Warn("layout produced an empty scene",
			"err", errors.New(errors.ErrCodeEmptyGraph, "no active entities after filtering"),
			"detail", opts.Detail, "subset", len(opts.Subset))
	}

	// Cache the result
	if data, err := layout.MarshalScene(scene); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.SceneTTL)
		observability.Cache().OnCacheSet(ctx, "scene", len(data))
	}

	return scene, false, nil // Cache miss
}

// Layout is a convenience wrapper that calls LayoutWithCacheInfo and discards the cache hit info.
func (r *Runner) Layout(ctx context.Context, snap *concept.Snapshot, scores map[string]concept.Score, opts Options) (*layout.Scene, error) {
	scene, _, err := r.LayoutWithCacheInfo(ctx, snap, scores, opts)
	return scene, err
}

// ConstellationsWithCacheInfo groups concepts with caching and returns cache hit info.
func (r *Runner) ConstellationsWithCacheInfo(ctx context.Context, snap *concept.Snapshot, opts Options) ([]cluster.Constellation, bool, error) {
	opts.SetGroupDefaults()
	r.applyLogger(&opts)

	snapData, err := concept.MarshalSnapshot(snap)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "serialize snapshot for cache key")
	}
	cacheKey := r.Keyer.ConstellationKey(cache.Hash(snapData), opts.ConstellationKeyOpts())

	// Try cache first
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var cached []cluster.Constellation
			if json.Unmarshal(data, &cached) == nil {
				observability.Cache().OnCacheHit(ctx, "constellation")
				return cached, true, nil // Cache hit
			}
		}
	}
	observability.Cache().OnCacheMiss(ctx, "constellation")

	grouper := cluster.NewGrouper(opts.Clusterer, opts.Logger)
	grouper.Model = opts.ClusterModel
	grouper.Count = opts.ConstellationCount
	groups := grouper.Group(ctx, snap)

	// Cache the result
	if data, err := json.Marshal(groups); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.ConstellationTTL)
		observability.Cache().OnCacheSet(ctx, "constellation", len(data))
	}

	return groups, false, nil // Cache miss
}

// Constellations is a convenience wrapper that calls ConstellationsWithCacheInfo and discards the cache hit info.
func (r *Runner) Constellations(ctx context.Context, snap *concept.Snapshot, opts Options) ([]cluster.Constellation, error) {
	groups, _, err := r.ConstellationsWithCacheInfo(ctx, snap, opts)
	return groups, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func entityCount(snap *concept.Snapshot) int {
	if snap == nil {
		return 0
	}
	return len(snap.Entities)
}
