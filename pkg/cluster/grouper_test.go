package cluster

import (
	"context"
	"testing"

	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/errors"
)

// fakeClusterer returns a canned response or error.
type fakeClusterer struct {
	resp *Response
	err  error
	req  *Request
}

func (f *fakeClusterer) Cluster(_ context.Context, req Request) (*Response, error) {
	f.req = &req
	return f.resp, f.err
}

func entity(id string, layer concept.Tier, freq int) *concept.Entity {
	return &concept.Entity{
		ID:           id,
		Layer:        layer,
		Frequency:    freq,
		SectionCount: 1,
		Variants:     []string{id},
	}
}

func relation(source, target string) concept.Relation {
	return concept.Relation{Source: source, Target: target, Type: "relates to", Scope: concept.ScopeLocal}
}

func testSnapshot() *concept.Snapshot {
	return &concept.Snapshot{
		Title:    "neural networks",
		Category: "ml",
		Entities: []*concept.Entity{
			entity("neuron", concept.TierPriority, 9),
			entity("synapse", concept.TierSecondary, 7),
			entity("weight", concept.TierSecondary, 6),
			entity("bias", concept.TierTertiary, 4),
			entity("gradient", concept.TierTertiary, 3),
			entity("loss", concept.TierTertiary, 2),
		},
		Relations: []concept.Relation{
			relation("neuron", "synapse"),
			relation("synapse", "weight"),
			relation("weight", "gradient"),
			relation("gradient", "loss"),
			relation("neuron", "bias"),
		},
	}
}

func TestGroup(t *testing.T) {
	tests := []struct {
		name      string
		clusterer Clusterer
		check     func(t *testing.T, got []Constellation)
	}{
		{
			name: "ValidProposalAccepted",
			clusterer: &fakeClusterer{resp: &Response{Constellations: []Constellation{
				{Name: "Structure", Description: "parts", Concepts: []string{"neuron", "synapse", "weight", "bias"}},
				{Name: "Training", Description: "learning", Concepts: []string{"gradient", "loss", "weight"}},
			}}},
			check: func(t *testing.T, got []Constellation) {
				if len(got) != 2 {
					t.Fatalf("expected 2 constellations, got %d", len(got))
				}
				if got[0].Name != "Structure" {
					t.Errorf("expected proposal name kept, got %q", got[0].Name)
				}
			},
		},
		{
			name:      "UnavailableBackendFallsBack",
			clusterer: &fakeClusterer{err: errors.New(errors.ErrCodeClusteringUnavailable, "connection refused")},
			check:     checkFallbackShape,
		},
		{
			name:      "MalformedResponseFallsBack",
			clusterer: &fakeClusterer{err: errors.New(errors.ErrCodeMalformedClustering, "not json")},
			check:     checkFallbackShape,
		},
		{
			name: "AllGroupsUndersizedFallsBack",
			clusterer: &fakeClusterer{resp: &Response{Constellations: []Constellation{
				{Name: "Tiny", Concepts: []string{"neuron", "synapse"}},
				{Name: "Ghost", Concepts: []string{"does not exist", "nor this"}},
			}}},
			check: checkFallbackShape,
		},
		{
			name:      "NilClustererFallsBack",
			clusterer: nil,
			check:     checkFallbackShape,
		},
		{
			name: "UnresolvableMembersDropped",
			clusterer: &fakeClusterer{resp: &Response{Constellations: []Constellation{
				{Name: "Mixed", Concepts: []string{"Neuron", "SYNAPSE", "weight", "phlogiston"}},
			}}},
			check: func(t *testing.T, got []Constellation) {
				if len(got) != 1 {
					t.Fatalf("expected 1 constellation, got %d", len(got))
				}
				for _, id := range got[0].Concepts {
					if id == "phlogiston" {
						t.Error("unresolvable member should be dropped")
					}
				}
				if got[0].Concepts[0] != "neuron" {
					t.Errorf("member names should resolve case-insensitively, got %v", got[0].Concepts)
				}
			},
		},
		{
			name: "UndersizedGroupToppedUpFromNeighbors",
			clusterer: &fakeClusterer{resp: &Response{Constellations: []Constellation{
				{Name: "Core", Concepts: []string{"neuron", "synapse", "weight"}},
			}}},
			check: func(t *testing.T, got []Constellation) {
				if len(got) != 1 {
					t.Fatalf("expected 1 constellation, got %d", len(got))
				}
				if len(got[0].Concepts) < targetGroupSize {
					t.Errorf("expected group topped up to %d, got %v", targetGroupSize, got[0].Concepts)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGrouper(tt.clusterer, nil)
			tt.check(t, g.Group(context.Background(), testSnapshot()))
		})
	}
}

// checkFallbackShape asserts the degree-based grouping was used.
func checkFallbackShape(t *testing.T, got []Constellation) {
	t.Helper()
	if len(got) == 0 {
		t.Fatal("fallback must always produce at least one constellation")
	}
	if got[0].Name != "Core Concepts" {
		t.Errorf("expected fallback core group, got %q", got[0].Name)
	}
}

func TestGroupEmptySnapshot(t *testing.T) {
	g := NewGrouper(&fakeClusterer{}, nil)
	if got := g.Group(context.Background(), &concept.Snapshot{}); got != nil {
		t.Errorf("expected nil for empty snapshot, got %v", got)
	}
}

func TestBuildRequestBounded(t *testing.T) {
	snap := &concept.Snapshot{Title: "big", Category: "test"}
	for i := 0; i < 40; i++ {
		id := string(rune('a'+i%26)) + string(rune('a'+i/26))
		snap.Entities = append(snap.Entities, entity(id, concept.TierTertiary, 40-i))
	}
	for i := 0; i < 39; i++ {
		snap.Relations = append(snap.Relations, relation(snap.Entities[i].ID, snap.Entities[i+1].ID))
	}

	req := buildRequest(snap, 0)
	if req.RequestedCount != DefaultGroupCount {
		t.Errorf("RequestedCount = %d, want %d", req.RequestedCount, DefaultGroupCount)
	}
	if len(req.TopConcepts) > maxContextConcepts {
		t.Errorf("expected at most %d concepts, got %d", maxContextConcepts, len(req.TopConcepts))
	}
	if len(req.SampleRelations) > maxContextRelations {
		t.Errorf("expected at most %d relations, got %d", maxContextRelations, len(req.SampleRelations))
	}
}

func TestBuildRequestIncludesAllPriorityConcepts(t *testing.T) {
	snap := &concept.Snapshot{Title: "t", Category: "c"}
	for i := 0; i < 20; i++ {
		snap.Entities = append(snap.Entities, entity(string(rune('a'+i)), concept.TierTertiary, 100-i))
	}
	snap.Entities = append(snap.Entities, entity("rare but key", concept.TierPriority, 1))

	req := buildRequest(snap, 0)
	found := false
	for _, c := range req.TopConcepts {
		if c.ID == "rare but key" {
			found = true
		}
	}
	if !found {
		t.Error("priority concepts must be included regardless of frequency")
	}
}

func TestBuildRequestCapHoldsWithManyPriorityConcepts(t *testing.T) {
	snap := &concept.Snapshot{Title: "t", Category: "c"}
	for i := 0; i < 25; i++ {
		snap.Entities = append(snap.Entities, entity(string(rune('a'+i)), concept.TierPriority, 25-i))
	}

	req := buildRequest(snap, 0)
	if len(req.TopConcepts) != maxContextConcepts {
		t.Errorf("len(TopConcepts) = %d, want %d", len(req.TopConcepts), maxContextConcepts)
	}
	for _, c := range req.TopConcepts {
		if c.Layer != concept.TierPriority {
			t.Errorf("concept %q has layer %q, want priority filling the cap first", c.ID, c.Layer)
		}
	}
}

func TestFallbackConstellations(t *testing.T) {
	snap := testSnapshot()
	got := FallbackConstellations(snap)
	if len(got) == 0 {
		t.Fatal("expected at least one constellation")
	}
	if got[0].Concepts[0] != "neuron" && got[0].Concepts[0] != "synapse" && got[0].Concepts[0] != "weight" {
		t.Errorf("core group should lead with the best connected concept, got %v", got[0].Concepts)
	}
	for _, c := range got {
		if len(c.Concepts) == 0 {
			t.Errorf("constellation %q has no members", c.Name)
		}
	}
	if FallbackConstellations(&concept.Snapshot{}) != nil {
		t.Error("empty snapshot should yield no constellations")
	}
}
