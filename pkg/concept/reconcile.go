package concept

import (
	"strings"

	"github.com/charmbracelet/log"

	"github.com/starchart-viz/starchart/pkg/errors"
)

// reconciled accumulates mentions sharing a merge key before they are
// frozen into an Entity.
type reconciled struct {
	entity       *Entity
	variantKeys  map[string]bool
	sectionsSeen map[int]bool
	layerRank    int
}

// addVariant records a surface form, deduplicating case-insensitively and
// keeping the first-seen spelling. Empty strings are ignored.
func (r *reconciled) addVariant(surface string) {
	key := strings.ToLower(strings.TrimSpace(surface))
	if key == "" || r.variantKeys[key] {
		return
	}
	r.variantKeys[key] = true
	r.entity.Variants = append(r.entity.Variants, surface)
}

// Reconcile merges raw per-section mentions into canonical entities.
//
// All mentions whose labels share a canonical form (see [Canonicalize])
// accumulate into one entity: variants in order of first appearance,
// deduplicated case-insensitively; frequency as total mention count;
// section count as the number of distinct section indexes; appearances
// concatenated in document order. The entity ID is the canonical form of
// the first-seen variant.
//
// Labels that are empty or whitespace-only are dropped with a diagnostic
// and never abort the run. Entities are returned in first-appearance order.
//
// Layer hints carried on mentions are merged by precedence (priority >
// secondary > tertiary); the classifier later recomputes the layer from
// aggregate statistics, so hints only matter for snapshots taken before
// classification.
func Reconcile(mentions []Mention, logger *log.Logger) []*Entity {
	if logger == nil {
		logger = log.Default()
	}

	byKey := make(map[string]*reconciled)
	var order []string

	for _, m := range mentions {
		key := Canonicalize(m.Label)
		if key == "" {
			err := errors.New(errors.ErrCodeInvalidEntityLabel,
				"empty label in section %q (index %d)", m.SectionName, m.SectionIndex)
			logger.Warn("dropping mention", "err", err)
			continue
		}

		rec, ok := byKey[key]
		if !ok {
			rec = &reconciled{
				entity: &Entity{
					ID:    key,
					Layer: TierTertiary,
				},
				variantKeys:  make(map[string]bool),
				sectionsSeen: make(map[int]bool),
			}
			byKey[key] = rec
			order = append(order, key)
		}

		rec.addVariant(m.Label)
		for _, v := range m.Variants {
			rec.addVariant(v)
		}

		rec.entity.Frequency++
		if !rec.sectionsSeen[m.SectionIndex] {
			rec.sectionsSeen[m.SectionIndex] = true
			rec.entity.SectionCount++
		}

		rec.entity.Appearances = append(rec.entity.Appearances, Appearance{
			SectionName:  m.SectionName,
			SectionIndex: m.SectionIndex,
			Variant:      m.Label,
			Evidence:     m.Evidence,
		})

		if tier, ok := ParseTier(m.Layer); ok && tier.Rank() > rec.layerRank {
			rec.layerRank = tier.Rank()
			rec.entity.Layer = tier
		}
	}

	entities := make([]*Entity, 0, len(order))
	for _, key := range order {
		entities = append(entities, byKey[key].entity)
	}

	logger.Debug("reconciled entities", "mentions", len(mentions), "entities", len(entities))
	return entities
}
