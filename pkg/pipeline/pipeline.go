// Package pipeline provides the core concept graph pipeline for Starchart.
//
// This package implements the complete build → layout → group pipeline that
// can be used by CLI, API, and worker components. By centralizing this logic,
// we ensure consistent behavior across all entry points and avoid code duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Build: Reconcile extracted mentions into entities, merge relations,
//     and classify importance, producing a snapshot
//  2. Layout: Compute a deterministic circular scene for the snapshot
//  3. Group: Cluster concepts into named constellations
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Extraction: extraction,
//	    Detail:     "intermediate",
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	scene := result.Scene
//
// Run individual stages:
//
//	// Build only
//	snap, err := runner.Build(ctx, opts)
//
//	// Layout with an existing snapshot
//	scene, err := runner.Layout(ctx, snap, opts)
//
//	// Group with an existing snapshot
//	groups, err := runner.Constellations(ctx, snap, opts)
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/starchart-viz/starchart/pkg/cache"
	"github.com/starchart-viz/starchart/pkg/cluster"
	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/errors"
	"github.com/starchart-viz/starchart/pkg/layout"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, API, and Worker
// =============================================================================

const (
	// DefaultDetail is the detail level used when none is requested.
	DefaultDetail = layout.DetailDetailed

	// DefaultConstellationCount is the number of groups requested from
	// the clusterer.
	DefaultConstellationCount = cluster.DefaultGroupCount
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the concept graph pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Build options
	Extraction *concept.Extraction `json:"extraction,omitempty"`
	Weights    concept.Weights     `json:"weights,omitempty"`
	Refresh    bool                `json:"refresh,omitempty"`

	// Layout options
	Detail string         `json:"detail,omitempty"`
	Subset []string       `json:"subset,omitempty"`
	Layout layout.Options `json:"layout,omitempty"`

	// Group options
	ConstellationCount int    `json:"constellation_count,omitempty"`
	ClusterModel       string `json:"cluster_model,omitempty"`

	// Runtime options (not serialized)
	Logger    *log.Logger       `json:"-"`
	Clusterer cluster.Clusterer `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Snapshot is the reconciled concept graph.
	Snapshot *concept.Snapshot

	// SnapshotHash is the content hash of the snapshot.
	SnapshotHash string

	// Scores holds the importance score per entity ID.
	Scores map[string]concept.Score

	// Scene is the laid-out graph.
	Scene *layout.Scene

	// Constellations groups the snapshot's concepts thematically.
	Constellations []cluster.Constellation

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	EntityCount   int
	RelationCount int
	BuildTime     time.Duration
	LayoutTime    time.Duration
	GroupTime     time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	BuildHit  bool // Whether the snapshot came from cache
	LayoutHit bool // Whether the scene came from cache
	GroupHit  bool // Whether the constellations came from cache
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the full pipeline.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForBuild(); err != nil {
		return err
	}
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	o.SetGroupDefaults()
	o.validated = true
	return nil
}

// ValidateForBuild checks required fields for the build stage.
func (o *Options) ValidateForBuild() error {
	if o.Extraction == nil {
		return errors.New(errors.ErrCodeInvalidInput, "extraction is required")
	}
	if o.Weights == (concept.Weights{}) {
		o.Weights = concept.DefaultWeights
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// ValidateForLayout validates and sets defaults for layout computation.
func (o *Options) ValidateForLayout() error {
	if o.Detail == "" {
		o.Detail = string(DefaultDetail)
	}
	if _, err := layout.ParseDetailLevel(o.Detail); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// SetGroupDefaults sets default values for constellation grouping.
func (o *Options) SetGroupDefaults() {
	if o.ConstellationCount == 0 {
		o.ConstellationCount = DefaultConstellationCount
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// SceneKeyOpts returns cache key options for scene computation.
func (o *Options) SceneKeyOpts() cache.SceneKeyOpts {
	return cache.SceneKeyOpts{
		Subset:    o.Subset,
		Detail:    o.Detail,
		Curvature: o.Layout.Curvature,
		Samples:   o.Layout.CurveSamples,
	}
}

// ConstellationKeyOpts returns cache key options for constellation grouping.
func (o *Options) ConstellationKeyOpts() cache.ConstellationKeyOpts {
	return cache.ConstellationKeyOpts{
		Model: o.ClusterModel,
		Count: o.ConstellationCount,
	}
}
