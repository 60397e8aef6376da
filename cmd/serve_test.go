package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracelight/dataset-cli/internal/dataset"
	"github.com/tracelight/dataset-cli/internal/handle"
	"github.com/tracelight/dataset-cli/internal/model"
	"github.com/tracelight/dataset-cli/internal/service"
	"github.com/tracelight/dataset-cli/internal/store"
)

type fakeAPI struct {
	dataset  *model.Dataset
	states   []store.ExampleState
	versions []model.DatasetVersion
	err      error

	lastSpanHandles    []string
	lastExampleInputs  []service.ExampleInput
	lastPatchInputs    []service.PatchInput
	lastExampleHandles []string
}

func (f *fakeAPI) CreateDataset(_ context.Context, name string, _ *string, _ map[string]any) (*model.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dataset, nil
}

func (f *fakeAPI) PatchDataset(_ context.Context, _ string, _, _ *string, _ map[string]any) (*model.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dataset, nil
}

func (f *fakeAPI) DeleteDataset(_ context.Context, _ string) (*model.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dataset, nil
}

func (f *fakeAPI) AddSpans(_ context.Context, _ string, spans []string, _ store.VersionParams) (*model.Dataset, error) {
	f.lastSpanHandles = spans
	if f.err != nil {
		return nil, f.err
	}
	return f.dataset, nil
}

func (f *fakeAPI) AddExamples(_ context.Context, _ string, inputs []service.ExampleInput, _ store.VersionParams) (*model.Dataset, error) {
	f.lastExampleInputs = inputs
	if f.err != nil {
		return nil, f.err
	}
	return f.dataset, nil
}

func (f *fakeAPI) PatchExamples(_ context.Context, inputs []service.PatchInput, _ store.VersionParams) (*model.Dataset, error) {
	f.lastPatchInputs = inputs
	if f.err != nil {
		return nil, f.err
	}
	return f.dataset, nil
}

func (f *fakeAPI) DeleteExamples(_ context.Context, handles []string, _ store.VersionParams) (*model.Dataset, error) {
	f.lastExampleHandles = handles
	if f.err != nil {
		return nil, f.err
	}
	return f.dataset, nil
}

func (f *fakeAPI) GetDataset(_ context.Context, _ string) (*model.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dataset, nil
}

func (f *fakeAPI) ListExamples(_ context.Context, _ string, _ *string) ([]store.ExampleState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.states, nil
}

func (f *fakeAPI) ListVersions(_ context.Context, _ string, _ int) ([]model.DatasetVersion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.versions, nil
}

func newTestAPI() *fakeAPI {
	return &fakeAPI{
		dataset: &model.Dataset{
			ID:        7,
			Name:      "golden",
			Metadata:  map[string]any{},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
	}
}

func doRequest(t *testing.T, api datasetAPI, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	newRouter(api, []string{"*"}).ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	rr := doRequest(t, newTestAPI(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_CreateDataset(t *testing.T) {
	rr := doRequest(t, newTestAPI(), http.MethodPost, "/v1/datasets", map[string]any{"name": "golden"})

	assert.Equal(t, http.StatusCreated, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, handle.Encode(handle.KindDataset, 7), body["id"])
	assert.Equal(t, "golden", body["name"])
}

func TestRouter_CreateDataset_MissingName(t *testing.T) {
	rr := doRequest(t, newTestAPI(), http.MethodPost, "/v1/datasets", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "name is required")
}

func TestRouter_CreateDataset_InvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	newRouter(newTestAPI(), []string{"*"}).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_NotFoundMapsTo404(t *testing.T) {
	api := newTestAPI()
	api.err = dataset.NotFoundf("unknown dataset")

	rr := doRequest(t, api, http.MethodGet, "/v1/datasets/abc", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown dataset")
}

func TestRouter_BadRequestMapsTo400(t *testing.T) {
	api := newTestAPI()
	api.err = dataset.BadRequestf("examples must be from the same dataset")

	rr := doRequest(t, api, http.MethodPatch, "/v1/dataset-examples", map[string]any{
		"patches": []map[string]any{{"example_id": "x", "input": map[string]any{"a": 1}}},
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "same dataset")
}

func TestRouter_StorageFaultMapsTo500(t *testing.T) {
	api := newTestAPI()
	api.err = assert.AnError

	rr := doRequest(t, api, http.MethodGet, "/v1/datasets/abc", nil)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRouter_AddSpans(t *testing.T) {
	api := newTestAPI()
	span := handle.Encode(handle.KindSpan, 31)

	rr := doRequest(t, api, http.MethodPost, "/v1/datasets/abc/spans", map[string]any{
		"span_ids": []string{span},
		"version":  map[string]any{"description": "from spans"},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{span}, api.lastSpanHandles)
}

func TestRouter_AddExamples(t *testing.T) {
	api := newTestAPI()

	rr := doRequest(t, api, http.MethodPost, "/v1/datasets/abc/examples", map[string]any{
		"examples": []map[string]any{
			{"input": map[string]any{"q": "2+2"}, "output": map[string]any{"a": "4"}},
		},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, api.lastExampleInputs, 1)
	assert.Equal(t, map[string]any{"q": "2+2"}, api.lastExampleInputs[0].Input)
}

func TestRouter_PatchExamples(t *testing.T) {
	api := newTestAPI()
	ex := handle.Encode(handle.KindDatasetExample, 5)

	rr := doRequest(t, api, http.MethodPatch, "/v1/dataset-examples", map[string]any{
		"patches": []map[string]any{{"example_id": ex, "input": map[string]any{"q": "new"}}},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, api.lastPatchInputs, 1)
	assert.Equal(t, ex, api.lastPatchInputs[0].ExampleHandle)
}

func TestRouter_DeleteExamples(t *testing.T) {
	api := newTestAPI()
	ex := handle.Encode(handle.KindDatasetExample, 5)

	rr := doRequest(t, api, http.MethodDelete, "/v1/dataset-examples", map[string]any{
		"example_ids": []string{ex},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{ex}, api.lastExampleHandles)
}

func TestRouter_ListExamples(t *testing.T) {
	api := newTestAPI()
	spanID := int64(31)
	api.states = []store.ExampleState{
		{
			ExampleID: 5,
			SpanID:    &spanID,
			Revision: model.ExampleRevision{
				Input: map[string]any{"q": "2+2"},
				Kind:  model.RevisionCreate,
			},
		},
	}

	rr := doRequest(t, api, http.MethodGet, "/v1/datasets/abc/examples", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Examples []map[string]any `json:"examples"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Examples, 1)
	assert.Equal(t, handle.Encode(handle.KindDatasetExample, 5), body.Examples[0]["id"])
	assert.Equal(t, handle.Encode(handle.KindSpan, 31), body.Examples[0]["span_id"])
}

func TestRouter_ListVersions(t *testing.T) {
	api := newTestAPI()
	api.versions = []model.DatasetVersion{{ID: 9, DatasetID: 7, CreatedAt: time.Now()}}

	rr := doRequest(t, api, http.MethodGet, "/v1/datasets/abc/versions", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Versions []map[string]any `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Versions, 1)
	assert.Equal(t, handle.Encode(handle.KindDatasetVersion, 9), body.Versions[0]["id"])
}

func TestRouter_ListVersions_InvalidLimit(t *testing.T) {
	rr := doRequest(t, newTestAPI(), http.MethodGet, "/v1/datasets/abc/versions?limit=banana", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid limit")
}

func TestRouter_ExportCSV(t *testing.T) {
	api := newTestAPI()
	api.states = []store.ExampleState{
		{ExampleID: 5, Revision: model.ExampleRevision{Input: map[string]any{"q": "2+2"}}},
	}

	rr := doRequest(t, api, http.MethodGet, "/v1/datasets/abc/examples/export?format=csv", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rr.Body.String(), "example_id")
}

func TestRouter_ExportUnsupportedFormat(t *testing.T) {
	rr := doRequest(t, newTestAPI(), http.MethodGet, "/v1/datasets/abc/examples/export?format=pdf", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unsupported export format")
}
