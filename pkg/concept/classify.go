package concept

import "sort"

// Weights control the importance score blend. Frequency rewards raw mention
// count; SectionCount rewards cross-section persistence.
type Weights struct {
	Frequency    float64 `json:"frequency"`
	SectionCount float64 `json:"section_count"`
}

// DefaultWeights favor frequency but keep cross-section spread significant.
var DefaultWeights = Weights{Frequency: 0.6, SectionCount: 0.4}

// Score is the derived importance of one entity: a continuous value in
// [0, w_f + w_s] and its discrete tier. Scores live in a side table keyed
// by entity ID; only the tier is written back to the entity's Layer field.
type Score struct {
	Value float64 `json:"value"`
	Tier  Tier    `json:"tier"`
}

// Classify computes importance scores and tiers for the entity set.
//
// Each component is normalized to its fraction of the maximum observed
// value in the document, then blended by the weights. The normalized blend
// is cut into thirds: top third priority, middle secondary, bottom
// tertiary. Entities appearing in two or more sections are floored at
// secondary regardless of raw score, since persistence across sections is
// stronger evidence of centrality than raw count.
//
// Layer is rewritten on each entity as a convenience for serialization; the
// returned side table is the authoritative view.
func Classify(entities []*Entity, w Weights) map[string]Score {
	scores := make(map[string]Score, len(entities))
	if len(entities) == 0 {
		return scores
	}

	var maxFreq, maxSections int
	for _, e := range entities {
		if e.Frequency > maxFreq {
			maxFreq = e.Frequency
		}
		if e.SectionCount > maxSections {
			maxSections = e.SectionCount
		}
	}

	total := w.Frequency + w.SectionCount
	for _, e := range entities {
		var value float64
		if maxFreq > 0 {
			value += w.Frequency * float64(e.Frequency) / float64(maxFreq)
		}
		if maxSections > 0 {
			value += w.SectionCount * float64(e.SectionCount) / float64(maxSections)
		}

		tier := TierTertiary
		if total > 0 {
			switch normalized := value / total; {
			case normalized > 2.0/3.0:
				tier = TierPriority
			case normalized > 1.0/3.0:
				tier = TierSecondary
			}
		}
		if e.SectionCount >= 2 && tier == TierTertiary {
			tier = TierSecondary
		}

		e.Layer = tier
		scores[e.ID] = Score{Value: value, Tier: tier}
	}

	return scores
}

// SortByScore orders entities by descending score, breaking ties by
// descending frequency and then by first-appearance order (the order of
// the input slice). The input is not modified.
func SortByScore(entities []*Entity, scores map[string]Score) []*Entity {
	sorted := make([]*Entity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := scores[sorted[i].ID].Value, scores[sorted[j].ID].Value
		if si != sj {
			return si > sj
		}
		return sorted[i].Frequency > sorted[j].Frequency
	})
	return sorted
}

// MaxScore returns the largest score value in the side table, or zero for
// an empty table.
func MaxScore(scores map[string]Score) float64 {
	var max float64
	for _, s := range scores {
		if s.Value > max {
			max = s.Value
		}
	}
	return max
}
