package cluster

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/errors"
	"github.com/starchart-viz/starchart/pkg/observability"
)

// Context bounds for clusterer requests and validation thresholds for the
// proposals that come back.
const (
	maxContextConcepts  = 15
	maxContextRelations = 20
	minGroupSize        = 3
	targetGroupSize     = 4

	DefaultClusterTimeout = 45 * time.Second
	DefaultGroupCount     = 4
)

// Grouper turns clusterer proposals into validated constellations, falling
// back to the degree-based grouping when no usable proposal arrives.
type Grouper struct {
	Clusterer Clusterer
	Timeout   time.Duration
	Logger    *log.Logger

	// Count is the requested group count (default DefaultGroupCount).
	Count int

	// Model names the backing model for instrumentation only.
	Model string
}

// NewGrouper wires a grouper with defaults. A nil clusterer skips straight
// to the fallback grouping.
func NewGrouper(clusterer Clusterer, logger *log.Logger) *Grouper {
	if logger == nil {
		logger = log.Default()
	}
	return &Grouper{Clusterer: clusterer, Timeout: DefaultClusterTimeout, Logger: logger}
}

// Group produces constellations for a snapshot. Clusterer failures are
// never fatal: unavailable backends and malformed proposals both degrade
// to FallbackConstellations.
func (g *Grouper) Group(ctx context.Context, snap *concept.Snapshot) []Constellation {
	if len(snap.Entities) == 0 {
		return nil
	}
	if g.Clusterer == nil {
		return FallbackConstellations(snap)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	req := buildRequest(snap, g.Count)
	start := time.Now()
	observability.Cluster().OnClusterRequest(ctx, g.Model, len(req.TopConcepts))
	resp, err := g.Clusterer.Cluster(ctx, req)
	if err != nil {
		g.Logger.Warn("clustering failed, using fallback grouping", "err", err)
		observability.Cluster().OnClusterFallback(ctx, err)
		return FallbackConstellations(snap)
	}
	observability.Cluster().OnClusterResponse(ctx, g.Model, len(resp.Constellations), time.Since(start))

	constellations := g.validate(snap, resp)
	if len(constellations) == 0 {
		err := errors.New(errors.ErrCodeMalformedClustering, "all proposed groups rejected")
		g.Logger.Warn("no usable constellation in proposal, using fallback grouping", "err", err)
		observability.Cluster().OnClusterFallback(ctx, err)
		return FallbackConstellations(snap)
	}
	return constellations
}

func (g *Grouper) timeout() time.Duration {
	if g.Timeout > 0 {
		return g.Timeout
	}
	return DefaultClusterTimeout
}

// =============================================================================
// Request Construction
// =============================================================================

// buildRequest packs priority concepts first, then the most frequent,
// capped at maxContextConcepts total, plus a sample of relations among
// them. A non-positive count falls back to DefaultGroupCount.
func buildRequest(snap *concept.Snapshot, count int) Request {
	if count <= 0 {
		count = DefaultGroupCount
	}
	ranked := make([]*concept.Entity, len(snap.Entities))
	copy(ranked, snap.Entities)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Frequency > ranked[j].Frequency
	})

	included := make(map[string]bool)
	var top []ConceptSummary
	add := func(e *concept.Entity) {
		if included[e.ID] {
			return
		}
		included[e.ID] = true
		label := e.ID
		if len(e.Variants) > 0 {
			label = e.Variants[0]
		}
		top = append(top, ConceptSummary{ID: e.ID, Label: label, Layer: e.Layer, Frequency: e.Frequency})
	}
	for _, e := range snap.Entities {
		if len(top) >= maxContextConcepts {
			break
		}
		if e.Layer == concept.TierPriority {
			add(e)
		}
	}
	for _, e := range ranked {
		if len(top) >= maxContextConcepts {
			break
		}
		add(e)
	}

	var sample []RelationSummary
	for _, r := range snap.Relations {
		if len(sample) >= maxContextRelations {
			break
		}
		if included[r.Source] && included[r.Target] {
			sample = append(sample, RelationSummary{Source: r.Source, Target: r.Target, Type: r.Type})
		}
	}

	return Request{
		Title:           snap.Title,
		Category:        snap.Category,
		TopConcepts:     top,
		SampleRelations: sample,
		RequestedCount:  count,
	}
}

// =============================================================================
// Proposal Validation
// =============================================================================

// validate resolves each proposed group against the snapshot and drops
// groups with fewer than three resolvable members. Surviving undersized
// groups are topped up from graph neighbors, then by frequency.
func (g *Grouper) validate(snap *concept.Snapshot, resp *Response) []Constellation {
	if resp == nil {
		return nil
	}

	var out []Constellation
	for _, proposed := range resp.Constellations {
		members, seen := resolveMembers(snap, proposed.Concepts)
		if len(members) < minGroupSize {
			g.Logger.Debug("dropping undersized constellation",
				"name", proposed.Name, "resolved", len(members))
			continue
		}
		if len(members) < targetGroupSize {
			members = topUp(snap, members, seen)
		}
		out = append(out, Constellation{
			Name:        proposed.Name,
			Description: proposed.Description,
			Concepts:    members,
		})
	}
	return out
}

// resolveMembers maps proposed concept names onto snapshot entity IDs,
// matching case-insensitively against IDs and variants. Unresolvable
// names are dropped, duplicates collapse.
func resolveMembers(snap *concept.Snapshot, proposed []string) ([]string, map[string]bool) {
	seen := make(map[string]bool)
	var members []string
	for _, name := range proposed {
		for _, e := range snap.Entities {
			if !e.HasVariant(name) {
				continue
			}
			if !seen[e.ID] {
				seen[e.ID] = true
				members = append(members, e.ID)
			}
			break
		}
	}
	return members, seen
}

// topUp grows an undersized group to the target size, preferring direct
// graph neighbors of current members (highest degree first), then the
// most frequent unused concepts.
func topUp(snap *concept.Snapshot, members []string, seen map[string]bool) []string {
	degrees := concept.Degrees(snap.Relations)

	var neighbors []string
	neighborSeen := make(map[string]bool)
	for _, r := range snap.Relations {
		if seen[r.Source] && !seen[r.Target] && !neighborSeen[r.Target] {
			neighborSeen[r.Target] = true
			neighbors = append(neighbors, r.Target)
		}
		if seen[r.Target] && !seen[r.Source] && !neighborSeen[r.Source] {
			neighborSeen[r.Source] = true
			neighbors = append(neighbors, r.Source)
		}
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		return degrees[neighbors[i]] > degrees[neighbors[j]]
	})
	for _, id := range neighbors {
		if len(members) >= targetGroupSize {
			return members
		}
		seen[id] = true
		members = append(members, id)
	}

	byFrequency := make([]*concept.Entity, len(snap.Entities))
	copy(byFrequency, snap.Entities)
	sort.SliceStable(byFrequency, func(i, j int) bool {
		return byFrequency[i].Frequency > byFrequency[j].Frequency
	})
	for _, e := range byFrequency {
		if len(members) >= targetGroupSize {
			break
		}
		if !seen[e.ID] {
			seen[e.ID] = true
			members = append(members, e.ID)
		}
	}
	return members
}
