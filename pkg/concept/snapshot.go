package concept

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/starchart-viz/starchart/pkg/errors"
)

// =============================================================================
// Snapshot - Durable Graph Serialization
// =============================================================================

// Snapshot is the canonical serialization format for a document's concept
// graph after reconciliation, aggregation, and classification. It is the
// durable contract between pipeline runs: re-running layout against a saved
// snapshot must be reproducible, so entities keep first-appearance order and
// relations keep merge-insertion order.
type Snapshot struct {
	Title     string     `json:"title,omitempty" bson:"title,omitempty"`
	Category  string     `json:"category,omitempty" bson:"category,omitempty"`
	Entities  []*Entity  `json:"entities" bson:"entities"`
	Relations []Relation `json:"relations" bson:"relations"`
}

// Validate checks the snapshot's structural invariants: every entity has a
// non-empty ID and at least one variant, frequency ≥ section_count ≥ 1, and
// every relation endpoint names a known entity.
func (s *Snapshot) Validate() error {
	ids := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		if e.ID == "" {
			return errors.New(errors.ErrCodeInvalidSnapshot, "entity with empty id")
		}
		if ids[e.ID] {
			return errors.New(errors.ErrCodeInvalidSnapshot, "duplicate entity id %q", e.ID)
		}
		ids[e.ID] = true
		if len(e.Variants) == 0 {
			return errors.New(errors.ErrCodeInvalidSnapshot, "entity %q has no variants", e.ID)
		}
		if e.SectionCount < 1 || e.Frequency < e.SectionCount {
			return errors.New(errors.ErrCodeInvalidSnapshot,
				"entity %q violates frequency ≥ section_count ≥ 1 (%d, %d)",
				e.ID, e.Frequency, e.SectionCount)
		}
	}
	for _, r := range s.Relations {
		if !ids[r.Source] || !ids[r.Target] {
			return errors.New(errors.ErrCodeInvalidSnapshot,
				"relation %s→%s references unknown entity", r.Source, r.Target)
		}
	}
	return nil
}

// Entity returns the entity with the given ID, or nil.
func (s *Snapshot) Entity(id string) *Entity {
	for _, e := range s.Entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// =============================================================================
// Snapshot Serialization API
// =============================================================================

// MarshalSnapshot converts a snapshot to pretty-printed JSON bytes.
// Output is deterministic for a given snapshot.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeSnapshotTo(s, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSnapshotFile writes a snapshot to a JSON file.
// The file is created with 0644 permissions.
func WriteSnapshotFile(s *Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeSnapshotTo(s, f)
}

// WriteSnapshot writes a snapshot as JSON to an io.Writer.
func WriteSnapshot(s *Snapshot, w io.Writer) error {
	return writeSnapshotTo(s, w)
}

// ReadSnapshotFile reads a JSON file and returns the decoded snapshot.
// Returns a validation error for structurally invalid graphs.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readSnapshotFrom(f)
}

// ReadSnapshot decodes a JSON snapshot from an io.Reader.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	return readSnapshotFrom(r)
}

// =============================================================================
// Extraction Input
// =============================================================================

// ReadExtractionFile reads a JSON extraction file produced by an upstream
// document analyzer.
func ReadExtractionFile(path string) (*Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadExtraction(f)
}

// ReadExtraction decodes a JSON extraction from an io.Reader.
func ReadExtraction(r io.Reader) (*Extraction, error) {
	var x Extraction
	if err := json.NewDecoder(r).Decode(&x); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode extraction")
	}
	return &x, nil
}

// =============================================================================
// Internal Implementation
// =============================================================================

func writeSnapshotTo(s *Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func readSnapshotFrom(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "decode snapshot")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
