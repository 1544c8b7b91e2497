// Package cluster groups the concepts of a document into named
// constellations. Grouping proposals come from a pluggable Clusterer
// (normally a language model); a deterministic degree-based fallback
// guarantees a usable grouping when the clusterer is unavailable or
// returns garbage.
package cluster

import (
	"context"

	"github.com/starchart-viz/starchart/pkg/concept"
)

// Constellation is a named thematic group of concept IDs.
type Constellation struct {
	Name        string   `json:"name" bson:"name"`
	Description string   `json:"description" bson:"description"`
	Concepts    []string `json:"concepts" bson:"concepts"`
}

// Request carries the bounded document context handed to a clusterer.
// TopConcepts and SampleRelations are already trimmed; a clusterer never
// sees the full graph.
type Request struct {
	Title           string            `json:"title"`
	Category        string            `json:"category"`
	TopConcepts     []ConceptSummary  `json:"top_concepts"`
	SampleRelations []RelationSummary `json:"sample_relations"`
	RequestedCount  int               `json:"requested_count"`
}

// ConceptSummary is the per-concept slice of a Request.
type ConceptSummary struct {
	ID        string       `json:"id"`
	Label     string       `json:"label"`
	Layer     concept.Tier `json:"layer"`
	Frequency int          `json:"frequency"`
}

// RelationSummary is the per-relation slice of a Request.
type RelationSummary struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Response is a clusterer's raw proposal, before validation.
type Response struct {
	Constellations []Constellation `json:"constellations"`
}

// Clusterer proposes constellations for a document. Implementations
// return ErrCodeClusteringUnavailable when the backing service cannot be
// reached and ErrCodeMalformedClustering when its output cannot be
// parsed; the grouper absorbs both into the fallback path.
type Clusterer interface {
	Cluster(ctx context.Context, req Request) (*Response, error)
}
