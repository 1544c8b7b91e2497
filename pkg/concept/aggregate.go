package concept

import (
	"github.com/charmbracelet/log"

	"github.com/starchart-viz/starchart/pkg/errors"
)

// Resolver maps surface labels to canonical entity IDs. Matching is exact
// on canonical form (case-insensitive, whitespace-normalized); there is no
// fuzzy matching, so a label the reconciler never saw stays unresolved.
type Resolver struct {
	byKey map[string]string
}

// NewResolver builds a resolver over the canonical entity set. Entity IDs
// take precedence over variants; when two entities claim the same variant
// form, the earlier entity wins.
func NewResolver(entities []*Entity) *Resolver {
	byKey := make(map[string]string, len(entities))
	for _, e := range entities {
		if _, ok := byKey[e.ID]; !ok {
			byKey[e.ID] = e.ID
		}
	}
	for _, e := range entities {
		for _, v := range e.Variants {
			key := Canonicalize(v)
			if _, ok := byKey[key]; !ok {
				byKey[key] = e.ID
			}
		}
	}
	return &Resolver{byKey: byKey}
}

// Resolve returns the canonical entity ID for a surface label.
func (r *Resolver) Resolve(label string) (string, bool) {
	id, ok := r.byKey[Canonicalize(label)]
	return id, ok
}

// Aggregate merges local (per-section) and global (document-wide) relation
// streams into one deduplicated master edge set.
//
// Endpoints are resolved against the canonical entity set; a relation whose
// source or target cannot be resolved is discarded with a diagnostic rather
// than fabricated into a new entity, since an edge to a non-existent node
// corrupts downstream layout. Local relations are merged first in document
// order, then global ones; the first occurrence of a (source, target, type)
// key wins verbatim, so section-grounded evidence is preferred over
// document-wide paraphrase of the same fact.
//
// The returned slice preserves merge-insertion order so downstream degree
// computations reproduce across runs on identical input.
func Aggregate(entities []*Entity, local, global []RawRelation, logger *log.Logger) []Relation {
	if logger == nil {
		logger = log.Default()
	}

	resolver := NewResolver(entities)
	seen := make(map[string]bool)
	var master []Relation

	add := func(raw RawRelation, scope Scope) {
		source, ok := resolver.Resolve(raw.Source)
		if !ok {
			logger.Warn("dropping relation",
				"err", errors.New(errors.ErrCodeUnresolvedEndpoint, "no entity for source %q", raw.Source))
			return
		}
		target, ok := resolver.Resolve(raw.Target)
		if !ok {
			logger.Warn("dropping relation",
				"err", errors.New(errors.ErrCodeUnresolvedEndpoint, "no entity for target %q", raw.Target))
			return
		}

		rel := Relation{
			Source:       source,
			Target:       target,
			Type:         raw.Type,
			Evidence:     string(raw.Evidence),
			Scope:        scope,
			SectionIndex: raw.SectionIndex,
		}
		if scope == ScopeGlobal {
			rel.SectionIndex = GlobalSection
		}

		if key := rel.Key(); !seen[key] {
			seen[key] = true
			master = append(master, rel)
		}
	}

	for _, raw := range local {
		add(raw, ScopeLocal)
	}
	for _, raw := range global {
		add(raw, ScopeGlobal)
	}

	logger.Debug("aggregated relations",
		"local", len(local), "global", len(global), "master", len(master))
	return master
}

// Degrees counts, for each entity ID, the number of master edges touching
// it (an edge contributes to both endpoints; a self-loop counts twice).
func Degrees(relations []Relation) map[string]int {
	degrees := make(map[string]int)
	for _, r := range relations {
		degrees[r.Source]++
		degrees[r.Target]++
	}
	return degrees
}
