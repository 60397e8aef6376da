// Package service orchestrates dataset mutations: it resolves opaque
// handles, runs the structural validations, drives the transactional store,
// and emits change events after commit.
package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tracelight/dataset-cli/internal/dataset"
	"github.com/tracelight/dataset-cli/internal/handle"
	"github.com/tracelight/dataset-cli/internal/model"
	"github.com/tracelight/dataset-cli/internal/notify"
	"github.com/tracelight/dataset-cli/internal/store"
)

// Service exposes the mutation and read surface over the revision engine.
type Service struct {
	store    store.Store
	notifier notify.Notifier
	extract  dataset.ExtractorFunc
	vocab    dataset.Vocabulary
}

// Option customizes a Service.
type Option func(*Service)

// WithExtractor overrides the span input/output derivation.
func WithExtractor(fn dataset.ExtractorFunc) Option {
	return func(s *Service) { s.extract = fn }
}

// WithVocabulary overrides the recognized attribute key set.
func WithVocabulary(v dataset.Vocabulary) Option {
	return func(s *Service) { s.vocab = v }
}

// New builds a Service with the default extractor and base vocabulary.
func New(st store.Store, n notify.Notifier, opts ...Option) *Service {
	s := &Service{
		store:    st,
		notifier: n,
		extract:  dataset.DefaultExtractor,
		vocab:    dataset.NewVocabulary(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExampleInput is one explicit example payload for AddExamples.
type ExampleInput struct {
	Input      map[string]any
	Output     map[string]any
	Metadata   map[string]any
	SpanHandle *string
}

// PatchInput is one example patch addressed by opaque handle.
type PatchInput struct {
	ExampleHandle string
	Input         map[string]any
	Output        map[string]any
	Metadata      map[string]any
}

func (s *Service) CreateDataset(ctx context.Context, name string, description *string, metadata map[string]any) (*model.Dataset, error) {
	ds, err := s.store.CreateDataset(ctx, store.CreateDatasetParams{
		Name:        name,
		Description: description,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(notify.NewEvent(notify.KindDatasetInserted, ds.ID))
	return ds, nil
}

func (s *Service) PatchDataset(ctx context.Context, datasetHandle string, name, description *string, metadata map[string]any) (*model.Dataset, error) {
	id, err := handle.Resolve(datasetHandle, handle.KindDataset)
	if err != nil {
		return nil, dataset.BadRequestf("invalid dataset id: %v", err)
	}
	ds, err := s.store.PatchDataset(ctx, store.PatchDatasetParams{
		DatasetID:   id,
		Name:        name,
		Description: description,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(notify.NewEvent(notify.KindDatasetInserted, ds.ID))
	return ds, nil
}

func (s *Service) GetDataset(ctx context.Context, datasetHandle string) (*model.Dataset, error) {
	id, err := handle.Resolve(datasetHandle, handle.KindDataset)
	if err != nil {
		return nil, dataset.NotFoundf("unknown dataset: %s", datasetHandle)
	}
	return s.store.GetDataset(ctx, id)
}

// AddSpans creates one example plus CREATE revision per referenced span,
// deriving payloads from the span's attributes and annotations.
func (s *Service) AddSpans(ctx context.Context, datasetHandle string, spanHandles []string, version store.VersionParams) (*model.Dataset, error) {
	datasetID, err := handle.Resolve(datasetHandle, handle.KindDataset)
	if err != nil {
		return nil, dataset.BadRequestf("invalid dataset id: %v", err)
	}
	spanIDs, err := handle.ResolveAll(spanHandles, handle.KindSpan)
	if err != nil {
		return nil, dataset.BadRequestf("invalid span id: %v", err)
	}
	spanIDs = dataset.DedupeIDs(spanIDs)

	records, err := s.store.FetchSpans(ctx, spanIDs)
	if err != nil {
		return nil, err
	}
	if len(records) < len(spanIDs) {
		return nil, dataset.NotFoundf("some spans could not be found")
	}

	examples := make([]store.NewExample, len(records))
	for i, rec := range records {
		spanID := rec.Span.ID
		input, output := s.extract(rec.Span)
		examples[i] = store.NewExample{
			SpanID:   &spanID,
			Input:    input,
			Output:   output,
			Metadata: dataset.HarvestMetadata(rec.Span, s.vocab, rec.Annotations),
		}
	}

	ds, err := s.store.CreateExamples(ctx, datasetID, version, examples)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(notify.NewEvent(notify.KindDatasetInserted, ds.ID))
	return ds, nil
}

// AddExamples creates one example plus CREATE revision per explicit payload.
// A payload referencing a span gets that span's grouped annotations merged
// into its metadata under the reserved "annotations" key.
func (s *Service) AddExamples(ctx context.Context, datasetHandle string, inputs []ExampleInput, version store.VersionParams) (*model.Dataset, error) {
	datasetID, err := handle.Resolve(datasetHandle, handle.KindDataset)
	if err != nil {
		return nil, dataset.BadRequestf("invalid dataset id: %v", err)
	}
	if len(inputs) == 0 {
		return nil, dataset.BadRequestf("must provide examples to add")
	}

	spanIDByHandle := map[string]int64{}
	for _, in := range inputs {
		if in.SpanHandle == nil {
			continue
		}
		id, err := handle.Resolve(*in.SpanHandle, handle.KindSpan)
		if err != nil {
			return nil, dataset.BadRequestf("invalid span id: %v", err)
		}
		spanIDByHandle[*in.SpanHandle] = id
	}

	annsBySpan := map[int64][]model.SpanAnnotation{}
	if len(spanIDByHandle) > 0 {
		ids := make([]int64, 0, len(spanIDByHandle))
		for _, id := range spanIDByHandle {
			ids = append(ids, id)
		}
		records, err := s.store.FetchSpans(ctx, dataset.DedupeIDs(ids))
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			annsBySpan[rec.Span.ID] = rec.Annotations
		}
	}

	examples := make([]store.NewExample, len(inputs))
	for i, in := range inputs {
		meta := make(map[string]any, len(in.Metadata)+1)
		for k, v := range in.Metadata {
			meta[k] = v
		}
		var spanID *int64
		var anns []model.SpanAnnotation
		if in.SpanHandle != nil {
			id := spanIDByHandle[*in.SpanHandle]
			spanID = &id
			anns = annsBySpan[id]
		}
		meta["annotations"] = dataset.GroupAnnotations(anns)
		examples[i] = store.NewExample{
			SpanID:   spanID,
			Input:    in.Input,
			Output:   in.Output,
			Metadata: meta,
		}
	}

	ds, err := s.store.CreateExamples(ctx, datasetID, version, examples)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(notify.NewEvent(notify.KindDatasetInserted, ds.ID))
	return ds, nil
}

// PatchExamples applies partial updates to existing examples as one atomic
// batch.
func (s *Service) PatchExamples(ctx context.Context, inputs []PatchInput, version store.VersionParams) (*model.Dataset, error) {
	patches := make([]dataset.ExamplePatch, len(inputs))
	for i, in := range inputs {
		id, err := handle.Resolve(in.ExampleHandle, handle.KindDatasetExample)
		if err != nil {
			return nil, dataset.BadRequestf("invalid example id: %v", err)
		}
		patches[i] = dataset.ExamplePatch{
			ExampleID: id,
			Input:     in.Input,
			Output:    in.Output,
			Metadata:  in.Metadata,
		}
	}
	sorted, err := dataset.ValidatePatches(patches)
	if err != nil {
		return nil, err
	}

	ds, err := s.store.PatchExamples(ctx, sorted, version)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(notify.NewEvent(notify.KindDatasetInserted, ds.ID))
	return ds, nil
}

// DeleteExamples tombstones the targeted examples as one atomic batch.
func (s *Service) DeleteExamples(ctx context.Context, exampleHandles []string, version store.VersionParams) (*model.Dataset, error) {
	if len(exampleHandles) == 0 {
		return nil, dataset.BadRequestf("must provide examples to delete")
	}
	ids, err := handle.ResolveAll(exampleHandles, handle.KindDatasetExample)
	if err != nil {
		return nil, dataset.BadRequestf("invalid example id: %v", err)
	}

	ds, err := s.store.DeleteExamples(ctx, dataset.DedupeIDs(ids), version)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(notify.NewEvent(notify.KindDatasetInserted, ds.ID))
	return ds, nil
}

// DeleteDataset removes the dataset and then best-effort cleans up the eval
// resources synthesized for it. Cleanup runs after commit; each task's
// failure is logged and discarded so one failing cascade cannot fail the
// others or the already-committed delete.
func (s *Service) DeleteDataset(ctx context.Context, datasetHandle string) (*model.Dataset, error) {
	id, err := handle.Resolve(datasetHandle, handle.KindDataset)
	if err != nil {
		return nil, dataset.NotFoundf("unknown dataset: %s", datasetHandle)
	}

	ds, targets, err := s.store.DeleteDataset(ctx, id)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.store.DeleteEvalProjects(gctx, targets.ProjectIDs); err != nil {
			zap.L().Warn("dataset delete: eval project cleanup failed",
				zap.Int64("dataset_id", ds.ID),
				zap.Error(err),
			)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.store.DeleteEvalTraces(gctx, targets.TraceIDs); err != nil {
			zap.L().Warn("dataset delete: eval trace cleanup failed",
				zap.Int64("dataset_id", ds.ID),
				zap.Error(err),
			)
		}
		return nil
	})
	_ = g.Wait()

	s.notifier.Publish(notify.NewEvent(notify.KindDatasetDeleted, ds.ID))
	return ds, nil
}

// ListExamples resolves the latest non-deleted state of the dataset's
// examples, optionally as of a version.
func (s *Service) ListExamples(ctx context.Context, datasetHandle string, versionHandle *string) ([]store.ExampleState, error) {
	datasetID, err := handle.Resolve(datasetHandle, handle.KindDataset)
	if err != nil {
		return nil, dataset.NotFoundf("unknown dataset: %s", datasetHandle)
	}
	var asOf int64
	if versionHandle != nil {
		if asOf, err = handle.Resolve(*versionHandle, handle.KindDatasetVersion); err != nil {
			return nil, dataset.BadRequestf("invalid version id: %v", err)
		}
	}
	if _, err := s.store.GetDataset(ctx, datasetID); err != nil {
		return nil, err
	}
	return s.store.ListExamples(ctx, datasetID, asOf)
}

// ListVersions returns the dataset's versions, newest first.
func (s *Service) ListVersions(ctx context.Context, datasetHandle string, limit int) ([]model.DatasetVersion, error) {
	datasetID, err := handle.Resolve(datasetHandle, handle.KindDataset)
	if err != nil {
		return nil, dataset.NotFoundf("unknown dataset: %s", datasetHandle)
	}
	if _, err := s.store.GetDataset(ctx, datasetID); err != nil {
		return nil, err
	}
	return s.store.ListVersions(ctx, datasetID, limit)
}
