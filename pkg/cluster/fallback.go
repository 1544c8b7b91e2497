package cluster

import (
	"sort"

	"github.com/starchart-viz/starchart/pkg/concept"
)

// Fallback group shape: the most connected concepts form the core group,
// the next tier forms a second group when enough remain.
const (
	fallbackCoreSize   = 8
	fallbackSecondSize = 6
)

// FallbackConstellations derives constellations from connectivity alone.
// It is total: any non-empty snapshot yields at least one constellation.
// Concepts are ranked by degree (frequency breaks ties, then ID), the top
// slice becomes the core group and the next slice a second group when at
// least three concepts remain.
func FallbackConstellations(snap *concept.Snapshot) []Constellation {
	if len(snap.Entities) == 0 {
		return nil
	}

	degrees := concept.Degrees(snap.Relations)
	ranked := make([]*concept.Entity, len(snap.Entities))
	copy(ranked, snap.Entities)
	sort.SliceStable(ranked, func(i, j int) bool {
		di, dj := degrees[ranked[i].ID], degrees[ranked[j].ID]
		if di != dj {
			return di > dj
		}
		if ranked[i].Frequency != ranked[j].Frequency {
			return ranked[i].Frequency > ranked[j].Frequency
		}
		return ranked[i].ID < ranked[j].ID
	})

	core := ranked
	if len(core) > fallbackCoreSize {
		core = core[:fallbackCoreSize]
	}
	constellations := []Constellation{{
		Name:        "Core Concepts",
		Description: "The most connected concepts in the document.",
		Concepts:    entityIDs(core),
	}}

	rest := ranked[len(core):]
	if len(rest) >= 3 {
		if len(rest) > fallbackSecondSize {
			rest = rest[:fallbackSecondSize]
		}
		constellations = append(constellations, Constellation{
			Name:        "Supporting Concepts",
			Description: "Concepts that elaborate on the core ideas.",
			Concepts:    entityIDs(rest),
		})
	}
	return constellations
}

func entityIDs(entities []*concept.Entity) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}
