package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tracelight/dataset-cli/internal/dataset"
	"github.com/tracelight/dataset-cli/internal/export"
	"github.com/tracelight/dataset-cli/internal/handle"
	"github.com/tracelight/dataset-cli/internal/model"
	"github.com/tracelight/dataset-cli/internal/service"
	"github.com/tracelight/dataset-cli/internal/store"
)

var servePort int

// datasetAPI is the slice of the service the HTTP layer needs.
type datasetAPI interface {
	CreateDataset(ctx context.Context, name string, description *string, metadata map[string]any) (*model.Dataset, error)
	PatchDataset(ctx context.Context, datasetHandle string, name, description *string, metadata map[string]any) (*model.Dataset, error)
	DeleteDataset(ctx context.Context, datasetHandle string) (*model.Dataset, error)
	AddSpans(ctx context.Context, datasetHandle string, spanHandles []string, version store.VersionParams) (*model.Dataset, error)
	AddExamples(ctx context.Context, datasetHandle string, inputs []service.ExampleInput, version store.VersionParams) (*model.Dataset, error)
	PatchExamples(ctx context.Context, inputs []service.PatchInput, version store.VersionParams) (*model.Dataset, error)
	DeleteExamples(ctx context.Context, exampleHandles []string, version store.VersionParams) (*model.Dataset, error)
	GetDataset(ctx context.Context, datasetHandle string) (*model.Dataset, error)
	ListExamples(ctx context.Context, datasetHandle string, versionHandle *string) ([]store.ExampleState, error)
	ListVersions(ctx context.Context, datasetHandle string, limit int) ([]model.DatasetVersion, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dataset HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, st, cleanup, err := initService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(svc, cfg.Server.CORSOrigins),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(api datasetAPI, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/datasets", handleCreateDataset(api))
		r.Route("/datasets/{datasetID}", func(r chi.Router) {
			r.Get("/", handleGetDataset(api))
			r.Patch("/", handlePatchDataset(api))
			r.Delete("/", handleDeleteDataset(api))
			r.Post("/spans", handleAddSpans(api))
			r.Post("/examples", handleAddExamples(api))
			r.Get("/examples", handleListExamples(api))
			r.Get("/examples/export", handleExportExamples(api))
			r.Get("/versions", handleListVersions(api))
		})
		r.Patch("/dataset-examples", handlePatchExamples(api))
		r.Delete("/dataset-examples", handleDeleteExamples(api))
	})

	return r
}

type versionBody struct {
	Description *string        `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

func (v versionBody) params() store.VersionParams {
	return store.VersionParams{Description: v.Description, Metadata: v.Metadata}
}

func handleCreateDataset(api datasetAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        string         `json:"name"`
			Description *string        `json:"description"`
			Metadata    map[string]any `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, dataset.BadRequestf("invalid request body: %v", err))
			return
		}
		if req.Name == "" {
			writeError(w, dataset.BadRequestf("name is required"))
			return
		}
		ds, err := api.CreateDataset(r.Context(), req.Name, req.Description, req.Metadata)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, renderDataset(ds))
	}
}

func handleGetDataset(api datasetAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := api.GetDataset(r.Context(), chi.URLParam(r, "datasetID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderDataset(ds))
	}
}

func handlePatchDataset(api datasetAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        *string        `json:"name"`
			Description *string        `json:"description"`
			Metadata    map[string]any `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, dataset.BadRequestf("invalid request body: %v", err))
			return
		}
		ds, err := api.PatchDataset(r.Context(), chi.URLParam(r, "datasetID"), req.Name, req.Description, req.Metadata)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderDataset(ds))
	}
}

func handleDeleteDataset(api datasetAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := api.DeleteDataset(r.Context(), chi.URLParam(r, "datasetID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderDataset(ds))
	}
}

func handleAddSpans(api datasetAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SpanIDs []string    `json:"span_ids"`
			Version versionBody `json:"version"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, dataset.BadRequestf("invalid request body: %v", err))
			return
		}
		ds, err := api.AddSpans(r.Context(), chi.URLParam(r, "datasetID"), req.SpanIDs, req.Version.params())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderDataset(ds))
	}
}

func handleAddExamples(api datasetAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Examples []struct {
				Input    map[string]any `json:"input"`
				Output   map[string]any `json:"output"`
				Metadata map[string]any `json:"metadata"`
				SpanID   *string        `json:"span_id"`
			} `json:"examples"`
			Version versionBody `json:"version"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, dataset.BadRequestf("invalid request body: %v", err))
			return
		}
		inputs := make([]service.ExampleInput, len(req.Examples))
		for i, ex := range req.Examples {
			inputs[i] = service.ExampleInput{
				Input:      ex.Input,
				Output:     ex.Output,
				Metadata:   ex.Metadata,
				SpanHandle: ex.SpanID,
			}
		}
		ds, err := api.AddExamples(r.Context(), chi.URLParam(r, "datasetID"), inputs, req.Version.params())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderDataset(ds))
	}
}

func handlePatchExamples(api datasetAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Patches []struct {
				ExampleID string         `json:"example_id"`
				Input     map[string]any `json:"input"`
				Output    map[string]any `json:"output"`
				Metadata  map[string]any `json:"metadata"`
			} `json:"patches"`
			Version versionBody `json:"version"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, dataset.BadRequestf("invalid request body: %v", err))
			return
		}
		inputs := make([]service.PatchInput, len(req.Patches))
		for i, p := range req.Patches {
			inputs[i] = service.PatchInput{
				ExampleHandle: p.ExampleID,
				Input:         p.Input,
				Output:        p.Output,
				Metadata:      p.Metadata,
			}
		}
		ds, err := api.PatchExamples(r.Context(), inputs, req.Version.params())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderDataset(ds))
	}
}

func handleDeleteExamples(api datasetAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExampleIDs []string    `json:"example_ids"`
			Version    versionBody `json:"version"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, dataset.BadRequestf("invalid request body: %v", err))
			return
		}
		ds, err := api.DeleteExamples(r.Context(), req.ExampleIDs, req.Version.params())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderDataset(ds))
	}
}

func handleListExamples(api datasetAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states, err := api.ListExamples(r.Context(), chi.URLParam(r, "datasetID"), versionQuery(r))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]map[string]any, len(states))
		for i, st := range states {
			out[i] = renderExample(st)
		}
		writeJSON(w, http.StatusOK, map[string]any{"examples": out})
	}
}

func handleExportExamples(api datasetAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dsHandle := chi.URLParam(r, "datasetID")
		ds, err := api.GetDataset(r.Context(), dsHandle)
		if err != nil {
			writeError(w, err)
			return
		}
		states, err := api.ListExamples(r.Context(), dsHandle, versionQuery(r))
		if err != nil {
			writeError(w, err)
			return
		}

		switch format := r.URL.Query().Get("format"); format {
		case "", "csv":
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ds.Name+".csv"))
			err = export.WriteCSV(w, states)
		case "xlsx":
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ds.Name+".xlsx"))
			err = export.WriteXLSX(w, ds.Name, states)
		default:
			writeError(w, dataset.BadRequestf("unsupported export format: %s", format))
			return
		}
		if err != nil {
			zap.L().Error("export failed", zap.String("dataset", dsHandle), zap.Error(err))
		}
	}
}

func handleListVersions(api datasetAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, dataset.BadRequestf("invalid limit: %s", raw))
				return
			}
			limit = n
		}
		versions, err := api.ListVersions(r.Context(), chi.URLParam(r, "datasetID"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]map[string]any, len(versions))
		for i, v := range versions {
			out[i] = renderVersion(v)
		}
		writeJSON(w, http.StatusOK, map[string]any{"versions": out})
	}
}

func versionQuery(r *http.Request) *string {
	if v := r.URL.Query().Get("version"); v != "" {
		return &v
	}
	return nil
}

func renderDataset(ds *model.Dataset) map[string]any {
	return map[string]any{
		"id":          handle.Encode(handle.KindDataset, ds.ID),
		"name":        ds.Name,
		"description": ds.Description,
		"metadata":    ds.Metadata,
		"created_at":  ds.CreatedAt,
		"updated_at":  ds.UpdatedAt,
	}
}

func renderVersion(v model.DatasetVersion) map[string]any {
	return map[string]any{
		"id":          handle.Encode(handle.KindDatasetVersion, v.ID),
		"description": v.Description,
		"metadata":    v.Metadata,
		"created_at":  v.CreatedAt,
	}
}

func renderExample(st store.ExampleState) map[string]any {
	out := map[string]any{
		"id":         handle.Encode(handle.KindDatasetExample, st.ExampleID),
		"input":      st.Revision.Input,
		"output":     st.Revision.Output,
		"metadata":   st.Revision.Metadata,
		"created_at": st.Revision.CreatedAt,
	}
	if st.SpanID != nil {
		out["span_id"] = handle.Encode(handle.KindSpan, *st.SpanID)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case dataset.IsNotFound(err):
		status = http.StatusNotFound
	case dataset.IsBadRequest(err):
		status = http.StatusBadRequest
	default:
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
