// Package store provides document persistence for processed concept graphs.
//
// A Document bundles the reconciled snapshot of one source document with
// its constellation grouping, under a stable ID. Two backends exist:
//   - file: JSON files in a local directory, for CLI usage
//   - mongo: MongoDB, for server deployments
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/starchart-viz/starchart/pkg/cluster"
	"github.com/starchart-viz/starchart/pkg/concept"
)

// Document is a persisted concept graph with its grouping.
type Document struct {
	ID             string                  `json:"id" bson:"_id"`
	Title          string                  `json:"title" bson:"title"`
	Category       string                  `json:"category,omitempty" bson:"category,omitempty"`
	Snapshot       *concept.Snapshot       `json:"snapshot" bson:"snapshot"`
	Constellations []cluster.Constellation `json:"constellations,omitempty" bson:"constellations,omitempty"`
	CreatedAt      time.Time               `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at" bson:"updated_at"`
}

// DocumentSummary is the listing projection of a Document.
type DocumentSummary struct {
	ID        string    `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	Category  string    `json:"category,omitempty" bson:"category,omitempty"`
	Entities  int       `json:"entities" bson:"entities"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Store is the interface for document storage backends.
type Store interface {
	// Get retrieves a document by ID.
	// Returns an error carrying ErrCodeDocumentNotFound when absent.
	Get(ctx context.Context, id string) (*Document, error)

	// Put stores a document, assigning an ID and timestamps as needed.
	Put(ctx context.Context, doc *Document) error

	// Delete removes a document. Deleting an absent document is an error.
	Delete(ctx context.Context, id string) error

	// List returns summaries of all documents, most recently updated first.
	List(ctx context.Context) ([]DocumentSummary, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// New creates a document around a snapshot with a fresh ID.
func New(snap *concept.Snapshot, groups []cluster.Constellation) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:             uuid.NewString(),
		Title:          snap.Title,
		Category:       snap.Category,
		Snapshot:       snap,
		Constellations: groups,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// prepare fills in missing ID and timestamps before a write.
func prepare(doc *Document) {
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
}

// summarize projects a document onto its listing form.
func summarize(doc *Document) DocumentSummary {
	entities := 0
	if doc.Snapshot != nil {
		entities = len(doc.Snapshot.Entities)
	}
	return DocumentSummary{
		ID:        doc.ID,
		Title:     doc.Title,
		Category:  doc.Category,
		Entities:  entities,
		UpdatedAt: doc.UpdatedAt,
	}
}
