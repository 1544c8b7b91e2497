package pipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/starchart-viz/starchart/pkg/cache"
	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/errors"
)

func testExtraction() *concept.Extraction {
	return &concept.Extraction{
		Title:    "Neural Networks",
		Category: "machine learning",
		Sections: []concept.Section{
			{
				Name:  "Introduction",
				Index: 0,
				Mentions: []concept.Mention{
					{Label: "Neural Network", Variants: []string{"NN"}},
					{Label: "neuron"},
				},
				Relations: []concept.RawRelation{
					{Source: "neural network", Target: "neuron", Type: "consists of", Evidence: "intro"},
				},
			},
			{
				Name:  "Training",
				Index: 1,
				Mentions: []concept.Mention{
					{Label: "neural network"},
					{Label: "Backpropagation"},
					{Label: "gradient"},
				},
				Relations: []concept.RawRelation{
					{Source: "NN", Target: "backpropagation", Type: "trained with"},
					{Source: "backpropagation", Target: "gradient", Type: "computes"},
				},
			},
		},
		GlobalRelations: []concept.RawRelation{
			{Source: "neural network", Target: "gradient", Type: "optimized by"},
		},
	}
}

func TestExecute(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	defer runner.Close()

	result, err := runner.Execute(context.Background(), Options{Extraction: testExtraction()})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Snapshot == nil || len(result.Snapshot.Entities) != 4 {
		t.Fatalf("expected 4 entities, got %+v", result.Snapshot)
	}
	if result.Stats.EntityCount != 4 {
		t.Errorf("expected entity count 4, got %d", result.Stats.EntityCount)
	}
	if len(result.Snapshot.Relations) != 4 {
		t.Errorf("expected 4 relations, got %d", len(result.Snapshot.Relations))
	}
	if result.Scene == nil || len(result.Scene.Nodes) != 4 {
		t.Errorf("expected a scene with 4 nodes, got %+v", result.Scene)
	}
	if len(result.Constellations) == 0 {
		t.Error("expected at least one constellation")
	}
	if result.SnapshotHash == "" {
		t.Error("expected a snapshot hash")
	}
	if result.CacheInfo.BuildHit || result.CacheInfo.LayoutHit || result.CacheInfo.GroupHit {
		t.Error("first run with a null cache should not report cache hits")
	}
	if err := result.Snapshot.Validate(); err != nil {
		t.Errorf("snapshot should validate: %v", err)
	}
}

func TestExecuteRequiresExtraction(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	if _, err := runner.Execute(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without extraction")
	} else if errors.GetCode(err) != errors.ErrCodeInvalidInput {
		t.Errorf("expected invalid input code, got %v", errors.GetCode(err))
	}
}

func TestExecuteRejectsBadDetail(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	_, err := runner.Execute(context.Background(), Options{
		Extraction: testExtraction(),
		Detail:     "everything",
	})
	if err == nil {
		t.Fatal("expected error for unknown detail level")
	}
}

func TestExecuteCaching(t *testing.T) {
	fileCache, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	runner := NewRunner(fileCache, nil, nil)
	defer runner.Close()

	opts := Options{Extraction: testExtraction()}

	first, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if first.CacheInfo.BuildHit {
		t.Error("first run should miss the cache")
	}

	second, err := runner.Execute(context.Background(), Options{Extraction: testExtraction()})
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !second.CacheInfo.BuildHit || !second.CacheInfo.LayoutHit || !second.CacheInfo.GroupHit {
		t.Errorf("second run should hit all stages, got %+v", second.CacheInfo)
	}
	if second.SnapshotHash != first.SnapshotHash {
		t.Error("cached snapshot should hash identically")
	}

	// Refresh bypasses the cache
	third, err := runner.Execute(context.Background(), Options{Extraction: testExtraction(), Refresh: true})
	if err != nil {
		t.Fatalf("third Execute: %v", err)
	}
	if third.CacheInfo.BuildHit {
		t.Error("refresh should bypass the cache")
	}
}

func TestBuildStageAlone(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	snap, err := runner.Build(context.Background(), Options{Extraction: testExtraction()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Variant-based resolution: "NN" resolves to "neural network"
	found := false
	for _, r := range snap.Relations {
		if r.Source == "neural network" && r.Target == "backpropagation" {
			found = true
		}
	}
	if !found {
		t.Error("expected variant endpoint resolved onto canonical ID")
	}

	// Global relation carries the global marker
	for _, r := range snap.Relations {
		if r.Scope == concept.ScopeGlobal && r.SectionIndex != concept.GlobalSection {
			t.Errorf("global relation should carry section index %d, got %d",
				concept.GlobalSection, r.SectionIndex)
		}
	}
}

func TestLayoutStageAlone(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	ctx := context.Background()

	opts := Options{Extraction: testExtraction()}
	snap, err := runner.Build(ctx, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	scores := concept.Classify(snap.Entities, concept.DefaultWeights)

	scene, err := runner.Layout(ctx, snap, scores, Options{Detail: "summary"})
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	for _, n := range scene.Nodes {
		if snap.Entity(n.ID).Layer != concept.TierPriority {
			t.Errorf("summary scene should only contain priority nodes, got %q", n.ID)
		}
	}
}

func TestLayoutEmptySubsetReportsEmptyGraph(t *testing.T) {
	var buf bytes.Buffer
	runner := NewRunner(cache.NewNullCache(), nil, log.New(&buf))
	ctx := context.Background()

	snap, err := runner.Build(ctx, Options{Extraction: testExtraction()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	scores := concept.Classify(snap.Entities, concept.DefaultWeights)

	scene, err := runner.Layout(ctx, snap, scores, Options{Subset: []string{"no such concept"}})
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if len(scene.Nodes) != 0 || len(scene.Edges) != 0 {
		t.Errorf("expected empty scene, got %d nodes and %d edges", len(scene.Nodes), len(scene.Edges))
	}
	if !strings.Contains(buf.String(), string(errors.ErrCodeEmptyGraph)) {
		t.Errorf("expected %s diagnostic in log, got %q", errors.ErrCodeEmptyGraph, buf.String())
	}
}

func TestOptionsValidateIdempotent(t *testing.T) {
	opts := Options{Extraction: testExtraction()}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("first validate: %v", err)
	}
	detail := opts.Detail
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("second validate: %v", err)
	}
	if opts.Detail != detail {
		t.Error("validation should be idempotent")
	}
	if opts.Weights != concept.DefaultWeights {
		t.Errorf("expected default weights, got %+v", opts.Weights)
	}
	if opts.ConstellationCount != DefaultConstellationCount {
		t.Errorf("expected default constellation count, got %d", opts.ConstellationCount)
	}
}
