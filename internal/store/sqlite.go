package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tracelight/dataset-cli/internal/dataset"
	"github.com/tracelight/dataset-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	email    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS spans (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	span_kind  TEXT NOT NULL,
	attributes TEXT NOT NULL DEFAULT '{}',
	start_time DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS span_annotations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	span_id        INTEGER NOT NULL REFERENCES spans(id) ON DELETE CASCADE,
	name           TEXT NOT NULL,
	label          TEXT,
	score          REAL,
	explanation    TEXT,
	metadata       TEXT NOT NULL DEFAULT '{}',
	annotator_kind TEXT NOT NULL DEFAULT 'HUMAN',
	user_id        INTEGER REFERENCES users(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS datasets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	description TEXT,
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dataset_versions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset_id  INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	description TEXT,
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dataset_examples (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset_id INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	span_id    INTEGER REFERENCES spans(id) ON DELETE SET NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dataset_example_revisions (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset_example_id INTEGER NOT NULL REFERENCES dataset_examples(id) ON DELETE CASCADE,
	dataset_version_id INTEGER NOT NULL REFERENCES dataset_versions(id) ON DELETE CASCADE,
	input              TEXT NOT NULL DEFAULT '{}',
	output             TEXT NOT NULL DEFAULT '{}',
	metadata           TEXT NOT NULL DEFAULT '{}',
	revision_kind      TEXT NOT NULL CHECK (revision_kind IN ('CREATE', 'PATCH', 'DELETE')),
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS eval_projects (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset_id INTEGER NOT NULL,
	name       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS eval_traces (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset_id INTEGER NOT NULL,
	trace_id   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_span_annotations_span_id ON span_annotations(span_id);
CREATE INDEX IF NOT EXISTS idx_dataset_versions_dataset_id ON dataset_versions(dataset_id);
CREATE INDEX IF NOT EXISTS idx_dataset_examples_dataset_id ON dataset_examples(dataset_id);
CREATE INDEX IF NOT EXISTS idx_revisions_example_id ON dataset_example_revisions(dataset_example_id);
CREATE INDEX IF NOT EXISTS idx_revisions_version_id ON dataset_example_revisions(dataset_version_id);
CREATE INDEX IF NOT EXISTS idx_eval_projects_dataset_id ON eval_projects(dataset_id);
CREATE INDEX IF NOT EXISTS idx_eval_traces_dataset_id ON eval_traces(dataset_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const liteDatasetColumns = `id, name, description, metadata, created_at, updated_at`

func (s *SQLiteStore) CreateDataset(ctx context.Context, p CreateDatasetParams) (*model.Dataset, error) {
	metaJSON, err := marshalMap(p.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal metadata")
	}
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO datasets (name, description, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 RETURNING `+liteDatasetColumns,
		p.Name, p.Description, string(metaJSON), now, now,
	)
	return scanLiteDataset(row)
}

func (s *SQLiteStore) PatchDataset(ctx context.Context, p PatchDatasetParams) (*model.Dataset, error) {
	query := `UPDATE datasets SET updated_at = ?`
	args := []any{time.Now().UTC()}

	if p.Name != nil {
		query += `, name = ?`
		args = append(args, *p.Name)
	}
	if p.Description != nil {
		query += `, description = ?`
		args = append(args, *p.Description)
	}
	if p.Metadata != nil {
		metaJSON, err := marshalMap(p.Metadata)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal metadata")
		}
		query += `, metadata = ?`
		args = append(args, string(metaJSON))
	}
	query += ` WHERE id = ? RETURNING ` + liteDatasetColumns
	args = append(args, p.DatasetID)

	ds, err := scanLiteDataset(s.db.QueryRowContext(ctx, query, args...))
	if err != nil && dataset.IsNotFound(err) {
		return nil, dataset.NotFoundf("unknown dataset: %d", p.DatasetID)
	}
	return ds, err
}

func (s *SQLiteStore) GetDataset(ctx context.Context, id int64) (*model.Dataset, error) {
	ds, err := scanLiteDataset(s.db.QueryRowContext(ctx,
		`SELECT `+liteDatasetColumns+` FROM datasets WHERE id = ?`, id))
	if err != nil && dataset.IsNotFound(err) {
		return nil, dataset.NotFoundf("unknown dataset: %d", id)
	}
	return ds, err
}

func (s *SQLiteStore) DeleteDataset(ctx context.Context, id int64) (*model.Dataset, *CascadeTargets, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	targets := &CascadeTargets{}
	if targets.ProjectIDs, err = collectLiteIDs(tx.QueryContext(ctx,
		`SELECT id FROM eval_projects WHERE dataset_id = ?`, id)); err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: collect eval projects")
	}
	if targets.TraceIDs, err = collectLiteIDs(tx.QueryContext(ctx,
		`SELECT id FROM eval_traces WHERE dataset_id = ?`, id)); err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: collect eval traces")
	}

	ds, err := scanLiteDataset(tx.QueryRowContext(ctx,
		`DELETE FROM datasets WHERE id = ? RETURNING `+liteDatasetColumns, id))
	if err != nil {
		if dataset.IsNotFound(err) {
			return nil, nil, dataset.NotFoundf("unknown dataset: %d", id)
		}
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: commit")
	}
	return ds, targets, nil
}

func (s *SQLiteStore) CreateExamples(ctx context.Context, datasetID int64, version VersionParams, examples []NewExample) (*model.Dataset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	ds, err := scanLiteDataset(tx.QueryRowContext(ctx,
		`SELECT `+liteDatasetColumns+` FROM datasets WHERE id = ?`, datasetID))
	if err != nil {
		if dataset.IsNotFound(err) {
			return nil, dataset.NotFoundf("unknown dataset: %d", datasetID)
		}
		return nil, err
	}

	now := time.Now().UTC()
	versionID, err := insertLiteVersion(ctx, tx, datasetID, version, now)
	if err != nil {
		return nil, err
	}

	// Row-at-a-time inserts keep each generated example id correlated with
	// its input; no positional zip over a bulk statement.
	for _, ex := range examples {
		var exampleID int64
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO dataset_examples (dataset_id, span_id, created_at) VALUES (?, ?, ?) RETURNING id`,
			datasetID, ex.SpanID, now,
		).Scan(&exampleID); err != nil {
			return nil, eris.Wrap(err, "sqlite: insert example")
		}
		if err := insertLiteRevision(ctx, tx, exampleID, versionID, ex.Input, ex.Output, ex.Metadata, model.RevisionCreate, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return ds, nil
}

func (s *SQLiteStore) PatchExamples(ctx context.Context, patches []dataset.ExamplePatch, version VersionParams) (*model.Dataset, error) {
	exampleIDs := make([]int64, len(patches))
	for i, p := range patches {
		exampleIDs[i] = p.ExampleID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	ds, err := singleLiteDataset(ctx, tx, exampleIDs)
	if err != nil {
		return nil, err
	}

	revisions, err := latestLiteRevisions(ctx, tx, exampleIDs)
	if err != nil {
		return nil, err
	}
	if missing := len(patches) - len(revisions); missing > 0 {
		return nil, dataset.NotFoundf("%d example(s) could not be found", missing)
	}

	now := time.Now().UTC()
	versionID, err := insertLiteVersion(ctx, tx, ds.ID, version, now)
	if err != nil {
		return nil, err
	}

	for i, p := range patches {
		if revisions[i].ExampleID != p.ExampleID {
			return nil, eris.Errorf("sqlite: revision/patch pairing mismatch at %d", p.ExampleID)
		}
		input, output, metadata := dataset.Overlay(revisions[i], p)
		if err := insertLiteRevision(ctx, tx, p.ExampleID, versionID, input, output, metadata, model.RevisionPatch, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return ds, nil
}

func (s *SQLiteStore) DeleteExamples(ctx context.Context, exampleIDs []int64, version VersionParams) (*model.Dataset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	ds, err := singleLiteDataset(ctx, tx, exampleIDs)
	if err != nil {
		return nil, err
	}

	var deleted int
	query := `SELECT COUNT(*) FROM dataset_example_revisions
	          WHERE dataset_example_id IN (` + placeholders(len(exampleIDs)) + `) AND revision_kind = 'DELETE'`
	if err := tx.QueryRowContext(ctx, query, int64Args(exampleIDs)...).Scan(&deleted); err != nil {
		return nil, eris.Wrap(err, "sqlite: check delete revisions")
	}
	if deleted > 0 {
		return nil, dataset.BadRequestf("provided examples contain already deleted examples; delete aborted")
	}

	now := time.Now().UTC()
	versionID, err := insertLiteVersion(ctx, tx, ds.ID, version, now)
	if err != nil {
		return nil, err
	}

	for _, id := range exampleIDs {
		if err := insertLiteRevision(ctx, tx, id, versionID, nil, nil, nil, model.RevisionDelete, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return ds, nil
}

func (s *SQLiteStore) FetchSpans(ctx context.Context, spanIDs []int64) ([]SpanRecord, error) {
	if len(spanIDs) == 0 {
		return nil, nil
	}
	args := int64Args(spanIDs)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, span_kind, attributes, start_time FROM spans
		 WHERE id IN (`+placeholders(len(spanIDs))+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch spans")
	}
	defer rows.Close()

	var records []SpanRecord
	byID := map[int64]int{}
	for rows.Next() {
		var sp model.Span
		var attrsJSON string
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.SpanKind, &attrsJSON, &sp.StartTime); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan span")
		}
		if err := json.Unmarshal([]byte(attrsJSON), &sp.Attributes); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal span attributes")
		}
		byID[sp.ID] = len(records)
		records = append(records, SpanRecord{Span: sp})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch spans iterate")
	}
	if len(records) == 0 {
		return records, nil
	}

	annRows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.span_id, a.name, a.label, a.score, a.explanation, a.metadata, a.annotator_kind,
		        a.user_id, u.username, u.email
		 FROM span_annotations a
		 LEFT JOIN users u ON u.id = a.user_id
		 WHERE a.span_id IN (`+placeholders(len(spanIDs))+`)
		 ORDER BY a.span_id, a.name, u.username`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch span annotations")
	}
	defer annRows.Close()

	for annRows.Next() {
		var a model.SpanAnnotation
		var metaJSON string
		if err := annRows.Scan(&a.ID, &a.SpanID, &a.Name, &a.Label, &a.Score, &a.Explanation,
			&metaJSON, &a.AnnotatorKind, &a.UserID, &a.Username, &a.Email); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan span annotation")
		}
		if err := json.Unmarshal([]byte(metaJSON), &a.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal annotation metadata")
		}
		if i, ok := byID[a.SpanID]; ok {
			records[i].Annotations = append(records[i].Annotations, a)
		}
	}
	return records, eris.Wrap(annRows.Err(), "sqlite: fetch span annotations iterate")
}

func (s *SQLiteStore) ListExamples(ctx context.Context, datasetID int64, asOfVersionID int64) ([]ExampleState, error) {
	query := `SELECT e.id, e.span_id, r.id, r.dataset_version_id, r.input, r.output, r.metadata, r.revision_kind, r.created_at
	          FROM dataset_examples e
	          JOIN dataset_example_revisions r ON r.id = (
	              SELECT max(r2.id) FROM dataset_example_revisions r2
	              WHERE r2.dataset_example_id = e.id`
	args := []any{}
	if asOfVersionID > 0 {
		query += ` AND r2.dataset_version_id <= ?`
		args = append(args, asOfVersionID)
	}
	query += `)
	          WHERE e.dataset_id = ? AND r.revision_kind <> 'DELETE'
	          ORDER BY e.id`
	args = append(args, datasetID)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list examples")
	}
	defer rows.Close()

	var states []ExampleState
	for rows.Next() {
		var st ExampleState
		var inputJSON, outputJSON, metaJSON string
		if err := rows.Scan(&st.ExampleID, &st.SpanID, &st.Revision.ID, &st.Revision.VersionID,
			&inputJSON, &outputJSON, &metaJSON, &st.Revision.Kind, &st.Revision.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan example state")
		}
		st.Revision.ExampleID = st.ExampleID
		if err := unmarshalRevisionPayloads(&st.Revision, []byte(inputJSON), []byte(outputJSON), []byte(metaJSON)); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, eris.Wrap(rows.Err(), "sqlite: list examples iterate")
}

func (s *SQLiteStore) ListVersions(ctx context.Context, datasetID int64, limit int) ([]model.DatasetVersion, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_id, description, metadata, created_at FROM dataset_versions
		 WHERE dataset_id = ? ORDER BY id DESC LIMIT ?`,
		datasetID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list versions")
	}
	defer rows.Close()

	var versions []model.DatasetVersion
	for rows.Next() {
		var v model.DatasetVersion
		var metaJSON string
		if err := rows.Scan(&v.ID, &v.DatasetID, &v.Description, &metaJSON, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan version")
		}
		if err := json.Unmarshal([]byte(metaJSON), &v.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal version metadata")
		}
		versions = append(versions, v)
	}
	return versions, eris.Wrap(rows.Err(), "sqlite: list versions iterate")
}

func (s *SQLiteStore) DeleteEvalProjects(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM eval_projects WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	return eris.Wrap(err, "sqlite: delete eval projects")
}

func (s *SQLiteStore) DeleteEvalTraces(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM eval_traces WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	return eris.Wrap(err, "sqlite: delete eval traces")
}

// helpers

func singleLiteDataset(ctx context.Context, tx *sql.Tx, exampleIDs []int64) (*model.Dataset, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+liteDatasetColumns+` FROM datasets WHERE id IN (
		     SELECT DISTINCT dataset_id FROM dataset_examples WHERE id IN (`+placeholders(len(exampleIDs))+`)
		 ) LIMIT 2`,
		int64Args(exampleIDs)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: resolve example datasets")
	}
	defer rows.Close()

	var datasets []*model.Dataset
	for rows.Next() {
		ds, err := scanLiteDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: resolve example datasets iterate")
	}
	switch {
	case len(datasets) == 0:
		return nil, dataset.NotFoundf("no examples found")
	case len(datasets) > 1:
		return nil, dataset.BadRequestf("examples must be from the same dataset")
	}
	return datasets[0], nil
}

func latestLiteRevisions(ctx context.Context, tx *sql.Tx, exampleIDs []int64) ([]model.ExampleRevision, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT r.id, r.dataset_example_id, r.dataset_version_id, r.input, r.output, r.metadata, r.revision_kind, r.created_at
		 FROM dataset_example_revisions r
		 WHERE r.id IN (
		     SELECT max(id) FROM dataset_example_revisions
		     WHERE dataset_example_id IN (`+placeholders(len(exampleIDs))+`)
		     GROUP BY dataset_example_id
		 ) AND r.revision_kind <> 'DELETE'
		 ORDER BY r.dataset_example_id`,
		int64Args(exampleIDs)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest revisions")
	}
	defer rows.Close()

	var revisions []model.ExampleRevision
	for rows.Next() {
		var r model.ExampleRevision
		var inputJSON, outputJSON, metaJSON string
		if err := rows.Scan(&r.ID, &r.ExampleID, &r.VersionID, &inputJSON, &outputJSON, &metaJSON, &r.Kind, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan revision")
		}
		if err := unmarshalRevisionPayloads(&r, []byte(inputJSON), []byte(outputJSON), []byte(metaJSON)); err != nil {
			return nil, err
		}
		revisions = append(revisions, r)
	}
	return revisions, eris.Wrap(rows.Err(), "sqlite: latest revisions iterate")
}

func insertLiteVersion(ctx context.Context, tx *sql.Tx, datasetID int64, version VersionParams, at time.Time) (int64, error) {
	metaJSON, err := marshalMap(version.Metadata)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal version metadata")
	}
	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO dataset_versions (dataset_id, description, metadata, created_at)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		datasetID, version.Description, string(metaJSON), at,
	).Scan(&id)
	return id, eris.Wrap(err, "sqlite: insert version")
}

func insertLiteRevision(ctx context.Context, tx *sql.Tx, exampleID, versionID int64, input, output, metadata map[string]any, kind model.RevisionKind, at time.Time) error {
	inputJSON, err := marshalMap(input)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal input")
	}
	outputJSON, err := marshalMap(output)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal output")
	}
	metaJSON, err := marshalMap(metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metadata")
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO dataset_example_revisions
		 (dataset_example_id, dataset_version_id, input, output, metadata, revision_kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exampleID, versionID, string(inputJSON), string(outputJSON), string(metaJSON), string(kind), at,
	)
	return eris.Wrap(err, "sqlite: insert revision")
}

func collectLiteIDs(rows *sql.Rows, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLiteDataset(row scannable) (*model.Dataset, error) {
	var ds model.Dataset
	var metaJSON string
	err := row.Scan(&ds.ID, &ds.Name, &ds.Description, &metaJSON, &ds.CreatedAt, &ds.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dataset.NotFoundf("dataset not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan dataset")
	}
	if err := json.Unmarshal([]byte(metaJSON), &ds.Metadata); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal dataset metadata")
	}
	return &ds, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
