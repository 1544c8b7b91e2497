package layout

import (
	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/errors"
)

// DetailLevel selects how much of the graph a scene shows.
type DetailLevel string

const (
	// DetailSummary shows priority concepts only.
	DetailSummary DetailLevel = "summary"
	// DetailIntermediate shows priority and secondary concepts.
	DetailIntermediate DetailLevel = "intermediate"
	// DetailDetailed shows every concept.
	DetailDetailed DetailLevel = "detailed"
)

// ParseDetailLevel validates a user-supplied detail level string.
func ParseDetailLevel(s string) (DetailLevel, error) {
	switch DetailLevel(s) {
	case DetailSummary, DetailIntermediate, DetailDetailed:
		return DetailLevel(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidDetailLevel, "unknown detail level: %q", s)
}

// includes reports whether the level admits a given tier.
func (d DetailLevel) includes(tier concept.Tier) bool {
	switch d {
	case DetailSummary:
		return tier == concept.TierPriority
	case DetailIntermediate:
		return tier == concept.TierPriority || tier == concept.TierSecondary
	default:
		return true
	}
}

// FilterByDetail returns the active entity IDs for a detail level, in
// snapshot order. Detailed returns nil, which Build reads as "everything".
func FilterByDetail(snap *concept.Snapshot, level DetailLevel) []string {
	if level == DetailDetailed {
		return nil
	}
	var ids []string
	for _, e := range snap.Entities {
		if level.includes(e.Layer) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
