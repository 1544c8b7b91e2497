// Package concept implements the concept graph data model and the three
// aggregation stages that build it: entity reconciliation, relation
// aggregation, and importance classification.
//
// The package consumes the structured output of an external extraction
// collaborator (per-section concept mentions and typed relations) and
// produces a deduplicated canonical graph. It never re-derives extraction
// results and treats its input as an untrusted stream: malformed records
// are dropped with a diagnostic, not fatal to the run.
package concept

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// Constants
// =============================================================================

// GlobalSection is the section index used for document-wide relation
// observations, as opposed to relations tied to a single section.
const GlobalSection = -1

// Tier is a discrete visual-importance bucket driving node emphasis.
type Tier string

// Importance tiers, ordered from most to least prominent.
const (
	TierPriority  Tier = "priority"
	TierSecondary Tier = "secondary"
	TierTertiary  Tier = "tertiary"
)

// Rank returns the numeric precedence of a tier (higher = more important).
// Unknown tiers rank below tertiary.
func (t Tier) Rank() int {
	switch t {
	case TierPriority:
		return 3
	case TierSecondary:
		return 2
	case TierTertiary:
		return 1
	default:
		return 0
	}
}

// ParseTier normalizes a free-text layer hint into a Tier.
// Returns false for anything that is not one of the three known tiers.
func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierPriority:
		return TierPriority, true
	case TierSecondary:
		return TierSecondary, true
	case TierTertiary:
		return TierTertiary, true
	}
	return "", false
}

// Scope records whether a relation was observed within a single section
// or asserted document-wide.
type Scope string

const (
	ScopeLocal  Scope = "local"
	ScopeGlobal Scope = "global"
)

// =============================================================================
// Canonical Keys
// =============================================================================

// Canonicalize derives the merge key for an entity label: trimmed,
// lowercased, with internal whitespace collapsed to single spaces.
// Labels differing only in case or incidental whitespace share a key;
// lexically distinct labels never merge, even when semantically related.
func Canonicalize(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// =============================================================================
// Entity - Canonical Concept Node
// =============================================================================

// Appearance records one observation of an entity in the source document.
type Appearance struct {
	SectionName  string `json:"section_name" bson:"section_name"`
	SectionIndex int    `json:"section_index" bson:"section_index"`
	Variant      string `json:"variant" bson:"variant"`
	Evidence     string `json:"evidence,omitempty" bson:"evidence,omitempty"`
}

// Entity is a canonical concept node, reconciled from one or more lexical
// variants. Entities are immutable after reconciliation except for Layer,
// which the classifier rewrites; layout attributes live in side tables
// keyed by ID and are never written back.
type Entity struct {
	ID           string       `json:"id" bson:"id"`
	Layer        Tier         `json:"layer" bson:"layer"`
	Frequency    int          `json:"frequency" bson:"frequency"`
	SectionCount int          `json:"section_count" bson:"section_count"`
	Variants     []string     `json:"variants" bson:"variants"`
	Appearances  []Appearance `json:"appearances,omitempty" bson:"appearances,omitempty"`
}

// HasVariant reports whether label matches the entity's ID or one of its
// surface forms, compared case-insensitively on canonical form.
func (e *Entity) HasVariant(label string) bool {
	key := Canonicalize(label)
	if key == e.ID {
		return true
	}
	for _, v := range e.Variants {
		if Canonicalize(v) == key {
			return true
		}
	}
	return false
}

// =============================================================================
// Relations
// =============================================================================

// Evidence is a supporting quote for a relation. The extraction collaborator
// emits either a single string or a list of strings; on decode a list is
// normalized to its first non-empty element.
type Evidence string

// UnmarshalJSON accepts both a JSON string and a JSON array of strings.
func (ev *Evidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*ev = Evidence(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	for _, s := range list {
		if s != "" {
			*ev = Evidence(s)
			return nil
		}
	}
	*ev = ""
	return nil
}

// RawRelation is a relation observation as produced by the extraction
// collaborator. Source and Target are surface labels, not yet resolved
// against the canonical entity set.
type RawRelation struct {
	Source       string   `json:"source" bson:"source"`
	Target       string   `json:"target" bson:"target"`
	Type         string   `json:"relation_type" bson:"relation_type"`
	Evidence     Evidence `json:"evidence,omitempty" bson:"evidence,omitempty"`
	SectionName  string   `json:"section_name,omitempty" bson:"section_name,omitempty"`
	SectionIndex int      `json:"section_index" bson:"section_index"`
}

// Relation is a directed, typed, evidence-backed edge between two canonical
// entities. Source and Target are entity IDs.
type Relation struct {
	Source       string `json:"source" bson:"source"`
	Target       string `json:"target" bson:"target"`
	Type         string `json:"relation_type" bson:"relation_type"`
	Evidence     string `json:"evidence,omitempty" bson:"evidence,omitempty"`
	Scope        Scope  `json:"scope" bson:"scope"`
	SectionIndex int    `json:"section_index" bson:"section_index"`
}

// Key returns the dedup key for the relation: directionality is preserved
// (a→b and b→a are distinct) and the predicate is compared case-insensitively.
func (r Relation) Key() string {
	return r.Source + "\x1f" + r.Target + "\x1f" + strings.ToLower(r.Type)
}

// =============================================================================
// Extraction Input
// =============================================================================

// Mention is one raw concept observation inside a section. Variants lists
// alternate surface forms supplied by the extractor (abbreviations,
// alternate spellings); they widen endpoint resolution but never merge two
// lexically distinct entities.
type Mention struct {
	Label        string   `json:"label" bson:"label"`
	Variants     []string `json:"variants,omitempty" bson:"variants,omitempty"`
	Layer        string   `json:"layer,omitempty" bson:"layer,omitempty"`
	Evidence     string   `json:"evidence,omitempty" bson:"evidence,omitempty"`
	SectionName  string   `json:"section_name" bson:"section_name"`
	SectionIndex int      `json:"section_index" bson:"section_index"`
}

// Section groups the extraction output for one document section.
type Section struct {
	Name      string        `json:"name" bson:"name"`
	Index     int           `json:"index" bson:"index"`
	Mentions  []Mention     `json:"mentions" bson:"mentions"`
	Relations []RawRelation `json:"relations,omitempty" bson:"relations,omitempty"`
}

// Extraction is the complete extraction collaborator output for one document.
type Extraction struct {
	Title           string        `json:"title,omitempty" bson:"title,omitempty"`
	Category        string        `json:"category,omitempty" bson:"category,omitempty"`
	Sections        []Section     `json:"sections" bson:"sections"`
	GlobalRelations []RawRelation `json:"global_relations,omitempty" bson:"global_relations,omitempty"`
}

// LocalRelations flattens the per-section relation streams in document order.
// Each record is stamped with its section's name and index; whatever the
// extraction collaborator put there is overwritten, since a record inside a
// section is by definition tied to that section.
func (x *Extraction) LocalRelations() []RawRelation {
	var out []RawRelation
	for _, s := range x.Sections {
		for _, r := range s.Relations {
			r.SectionName = s.Name
			r.SectionIndex = s.Index
			out = append(out, r)
		}
	}
	return out
}

// Mentions flattens the per-section mention streams in document order,
// stamping each with its section's name and index.
func (x *Extraction) Mentions() []Mention {
	var out []Mention
	for _, s := range x.Sections {
		for _, m := range s.Mentions {
			m.SectionName = s.Name
			m.SectionIndex = s.Index
			out = append(out, m)
		}
	}
	return out
}
