package model

import "time"

// RevisionKind identifies the type of change a revision records.
type RevisionKind string

const (
	RevisionCreate RevisionKind = "CREATE"
	RevisionPatch  RevisionKind = "PATCH"
	RevisionDelete RevisionKind = "DELETE"
)

// Valid reports whether k is one of the three persisted revision kinds.
func (k RevisionKind) Valid() bool {
	switch k {
	case RevisionCreate, RevisionPatch, RevisionDelete:
		return true
	}
	return false
}

// Dataset is a named collection of examples.
type Dataset struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DatasetVersion is an immutable snapshot marker scoping one batch of
// revisions. Exactly one is written per mutating operation that touches
// examples; it is never updated or individually deleted.
type DatasetVersion struct {
	ID          int64          `json:"id"`
	DatasetID   int64          `json:"dataset_id"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

// DatasetExample is a logical row whose current content is never stored
// directly; only its revision history is. It belongs to exactly one dataset
// for its entire lifetime.
type DatasetExample struct {
	ID        int64     `json:"id"`
	DatasetID int64     `json:"dataset_id"`
	SpanID    *int64    `json:"span_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ExampleRevision is the unit of change. Revision IDs are assigned by the
// store in insertion order and form the sole total order over an example's
// history; the max-ID revision is authoritative for current state.
type ExampleRevision struct {
	ID        int64          `json:"id"`
	ExampleID int64          `json:"example_id"`
	VersionID int64          `json:"version_id"`
	Input     map[string]any `json:"input"`
	Output    map[string]any `json:"output"`
	Metadata  map[string]any `json:"metadata"`
	Kind      RevisionKind   `json:"revision_kind"`
	CreatedAt time.Time      `json:"created_at"`
}
