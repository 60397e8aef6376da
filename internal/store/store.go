package store

import (
	"context"

	"github.com/tracelight/dataset-cli/internal/dataset"
	"github.com/tracelight/dataset-cli/internal/model"
)

// CreateDatasetParams holds the fields for a new dataset row.
type CreateDatasetParams struct {
	Name        string
	Description *string
	Metadata    map[string]any
}

// PatchDatasetParams is a partial last-write-wins update of a dataset row.
// Nil fields are left unchanged.
type PatchDatasetParams struct {
	DatasetID   int64
	Name        *string
	Description *string
	Metadata    map[string]any
}

// VersionParams describes the version row written by a mutation batch.
type VersionParams struct {
	Description *string
	Metadata    map[string]any
}

// NewExample is one example to create, with its CREATE revision payloads
// already derived.
type NewExample struct {
	SpanID   *int64
	Input    map[string]any
	Output   map[string]any
	Metadata map[string]any
}

// SpanRecord bundles a span with its annotations (author identity joined).
type SpanRecord struct {
	Span        model.Span
	Annotations []model.SpanAnnotation
}

// ExampleState is the latest qualifying revision of one example, the output
// of the latest-state resolver.
type ExampleState struct {
	ExampleID int64
	SpanID    *int64
	Revision  model.ExampleRevision
}

// CascadeTargets lists the resources synthesized for evaluating a dataset,
// collected before the dataset row is deleted so they can be cleaned up
// best-effort after commit.
type CascadeTargets struct {
	ProjectIDs []int64
	TraceIDs   []int64
}

// Store is the persistence engine for the dataset revision log. Every
// mutating method runs as one transaction: precondition violations and
// storage errors abort it with no persisted side effects. Revision ids are
// assigned by the store in insertion order and are the sole total order over
// an example's history.
type Store interface {
	// Dataset CRUD
	CreateDataset(ctx context.Context, p CreateDatasetParams) (*model.Dataset, error)
	PatchDataset(ctx context.Context, p PatchDatasetParams) (*model.Dataset, error)
	GetDataset(ctx context.Context, id int64) (*model.Dataset, error)
	// DeleteDataset removes the dataset (versions, examples and revisions
	// cascade) and returns the deleted row plus the eval resources to clean
	// up outside the transaction.
	DeleteDataset(ctx context.Context, id int64) (*model.Dataset, *CascadeTargets, error)

	// CreateExamples writes one version plus one example and CREATE revision
	// per entry, atomically. The returned dataset is the mutation's
	// projection target.
	CreateExamples(ctx context.Context, datasetID int64, version VersionParams, examples []NewExample) (*model.Dataset, error)

	// PatchExamples writes one version plus one PATCH revision per patch.
	// Patches must arrive validated and in canonical order (ascending
	// example id); the store enforces single-dataset origin and rejects
	// targets whose latest revision is missing or a DELETE.
	PatchExamples(ctx context.Context, patches []dataset.ExamplePatch, version VersionParams) (*model.Dataset, error)

	// DeleteExamples writes one version plus one DELETE tombstone per
	// example, all sharing one timestamp. The whole call aborts if any
	// target already carries a DELETE revision.
	DeleteExamples(ctx context.Context, exampleIDs []int64, version VersionParams) (*model.Dataset, error)

	// FetchSpans loads the requested source spans with their annotations,
	// ordered by span id. Missing ids are simply absent from the result.
	FetchSpans(ctx context.Context, spanIDs []int64) ([]SpanRecord, error)
	// ListExamples resolves the latest non-deleted state of every example in
	// the dataset; asOfVersionID > 0 restricts candidate revisions to those
	// written in or before that version.
	ListExamples(ctx context.Context, datasetID int64, asOfVersionID int64) ([]ExampleState, error)
	ListVersions(ctx context.Context, datasetID int64, limit int) ([]model.DatasetVersion, error)

	// Best-effort cascade targets, called after DeleteDataset commits.
	DeleteEvalProjects(ctx context.Context, ids []int64) error
	DeleteEvalTraces(ctx context.Context, ids []int64) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
