package dataset

import (
	"sort"

	"github.com/tracelight/dataset-cli/internal/model"
)

// ExamplePatch is a partial update targeting one resolved example. A nil
// field is "unset" and carries forward unchanged from the example's latest
// qualifying revision; a set Metadata replaces the prior map wholesale.
type ExamplePatch struct {
	ExampleID int64
	Input     map[string]any
	Output    map[string]any
	Metadata  map[string]any
}

// Empty reports whether the patch carries no fields to update.
func (p ExamplePatch) Empty() bool {
	return p.Input == nil && p.Output == nil && p.Metadata == nil
}

// ValidatePatches enforces the structural preconditions of a patch batch and
// returns the patches in canonical order (ascending resolved example id).
// Duplicates are detected after handle resolution, via adjacency in the
// sorted order, so equivalent handles for one example cannot slip through.
func ValidatePatches(patches []ExamplePatch) ([]ExamplePatch, error) {
	if len(patches) == 0 {
		return nil, BadRequestf("must provide examples to patch")
	}
	sorted := make([]ExamplePatch, len(patches))
	copy(sorted, patches)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ExampleID < sorted[j].ExampleID })
	for i, p := range sorted {
		if i > 0 && p.ExampleID == sorted[i-1].ExampleID {
			return nil, BadRequestf("cannot patch the same example more than once per call")
		}
		if p.Empty() {
			return nil, BadRequestf("received one or more empty patches that contain no fields to update")
		}
	}
	return sorted, nil
}

// Overlay merges a patch over the example's latest qualifying revision:
// set fields replace, unset fields carry forward.
func Overlay(prior model.ExampleRevision, p ExamplePatch) (input, output, metadata map[string]any) {
	input, output, metadata = prior.Input, prior.Output, prior.Metadata
	if p.Input != nil {
		input = p.Input
	}
	if p.Output != nil {
		output = p.Output
	}
	if p.Metadata != nil {
		metadata = p.Metadata
	}
	return input, output, metadata
}

// DedupeIDs returns the ids sorted ascending with duplicates removed. Used
// to canonicalize deletion targets.
func DedupeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
