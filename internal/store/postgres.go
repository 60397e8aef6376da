package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tracelight/dataset-cli/internal/dataset"
	"github.com/tracelight/dataset-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id       BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL,
	email    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS spans (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	span_kind  TEXT NOT NULL,
	attributes JSONB NOT NULL DEFAULT '{}',
	start_time TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS span_annotations (
	id             BIGSERIAL PRIMARY KEY,
	span_id        BIGINT NOT NULL REFERENCES spans(id) ON DELETE CASCADE,
	name           TEXT NOT NULL,
	label          TEXT,
	score          DOUBLE PRECISION,
	explanation    TEXT,
	metadata       JSONB NOT NULL DEFAULT '{}',
	annotator_kind TEXT NOT NULL DEFAULT 'HUMAN',
	user_id        BIGINT REFERENCES users(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS datasets (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT,
	metadata    JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dataset_versions (
	id          BIGSERIAL PRIMARY KEY,
	dataset_id  BIGINT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	description TEXT,
	metadata    JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dataset_examples (
	id         BIGSERIAL PRIMARY KEY,
	dataset_id BIGINT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	span_id    BIGINT REFERENCES spans(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dataset_example_revisions (
	id                 BIGSERIAL PRIMARY KEY,
	dataset_example_id BIGINT NOT NULL REFERENCES dataset_examples(id) ON DELETE CASCADE,
	dataset_version_id BIGINT NOT NULL REFERENCES dataset_versions(id) ON DELETE CASCADE,
	input              JSONB NOT NULL DEFAULT '{}',
	output             JSONB NOT NULL DEFAULT '{}',
	metadata           JSONB NOT NULL DEFAULT '{}',
	revision_kind      TEXT NOT NULL CHECK (revision_kind IN ('CREATE', 'PATCH', 'DELETE')),
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS eval_projects (
	id         BIGSERIAL PRIMARY KEY,
	dataset_id BIGINT NOT NULL,
	name       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS eval_traces (
	id         BIGSERIAL PRIMARY KEY,
	dataset_id BIGINT NOT NULL,
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const pgDatasetColumns = `id, name, description, metadata, created_at, updated_at`

func (s *PostgresStore) CreateDataset(ctx context.Context, p CreateDatasetParams) (*model.Dataset, error) {
	metaJSON, err := marshalMap(p.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal metadata")
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO datasets (name, description, metadata) VALUES ($1, $2, $3)
		 RETURNING `+pgDatasetColumns,
		p.Name, p.Description, metaJSON,
	)
	return scanPgDataset(row)
}

func (s *PostgresStore) PatchDataset(ctx context.Context, p PatchDatasetParams) (*model.Dataset, error) {
	sql := `UPDATE datasets SET updated_at = now()`
	args := []any{}
	argIdx := 1

	if p.Name != nil {
		sql += fmt.Sprintf(`, name = $%d`, argIdx)
		args = append(args, *p.Name)
		argIdx++
	}
	if p.Description != nil {
		sql += fmt.Sprintf(`, description = $%d`, argIdx)
		args = append(args, *p.Description)
		argIdx++
	}
	if p.Metadata != nil {
		metaJSON, err := marshalMap(p.Metadata)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal metadata")
		}
		sql += fmt.Sprintf(`, metadata = $%d`, argIdx)
		args = append(args, metaJSON)
		argIdx++
	}
	sql += fmt.Sprintf(` WHERE id = $%d RETURNING `+pgDatasetColumns, argIdx)
	args = append(args, p.DatasetID)

	ds, err := scanPgDataset(s.pool.QueryRow(ctx, sql, args...))
	if err != nil && dataset.IsNotFound(err) {
		return nil, dataset.NotFoundf("unknown dataset: %d", p.DatasetID)
	}
	return ds, err
}

func (s *PostgresStore) GetDataset(ctx context.Context, id int64) (*model.Dataset, error) {
	ds, err := scanPgDataset(s.pool.QueryRow(ctx,
		`SELECT `+pgDatasetColumns+` FROM datasets WHERE id = $1`, id))
	if err != nil && dataset.IsNotFound(err) {
		return nil, dataset.NotFoundf("unknown dataset: %d", id)
	}
	return ds, err
}

func (s *PostgresStore) DeleteDataset(ctx context.Context, id int64) (*model.Dataset, *CascadeTargets, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx)

	targets := &CascadeTargets{}
	if targets.ProjectIDs, err = collectIDs(tx.Query(ctx,
		`SELECT id FROM eval_projects WHERE dataset_id = $1`, id)); err != nil {
		return nil, nil, eris.Wrap(err, "postgres: collect eval projects")
	}
	if targets.TraceIDs, err = collectIDs(tx.Query(ctx,
		`SELECT id FROM eval_traces WHERE dataset_id = $1`, id)); err != nil {
		return nil, nil, eris.Wrap(err, "postgres: collect eval traces")
	}

	ds, err := scanPgDataset(tx.QueryRow(ctx,
		`DELETE FROM datasets WHERE id = $1 RETURNING `+pgDatasetColumns, id))
	if err != nil {
		if dataset.IsNotFound(err) {
			return nil, nil, dataset.NotFoundf("unknown dataset: %d", id)
		}
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, eris.Wrap(err, "postgres: commit")
	}
	return ds, targets, nil
}

func (s *PostgresStore) CreateExamples(ctx context.Context, datasetID int64, version VersionParams, examples []NewExample) (*model.Dataset, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx)

	ds, err := scanPgDataset(tx.QueryRow(ctx,
		`SELECT `+pgDatasetColumns+` FROM datasets WHERE id = $1`, datasetID))
	if err != nil {
		if dataset.IsNotFound(err) {
			return nil, dataset.NotFoundf("unknown dataset: %d", datasetID)
		}
		return nil, err
	}

	versionID, err := insertPgVersion(ctx, tx, datasetID, version, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	// Each example insert returns its own id, so the CREATE revision pairs
	// with its input row by construction rather than by positional zip over
	// a multi-row insert.
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, ex := range examples {
		batch.Queue(
			`INSERT INTO dataset_examples (dataset_id, span_id, created_at) VALUES ($1, $2, $3) RETURNING id`,
			datasetID, ex.SpanID, now,
		)
	}
	br := tx.SendBatch(ctx, batch)
	exampleIDs := make([]int64, len(examples))
	for i := range examples {
		if err := br.QueryRow().Scan(&exampleIDs[i]); err != nil {
			br.Close()
			return nil, eris.Wrap(err, "postgres: insert example")
		}
	}
	if err := br.Close(); err != nil {
		return nil, eris.Wrap(err, "postgres: close example batch")
	}

	revBatch := &pgx.Batch{}
	for i, ex := range examples {
		if err := queuePgRevision(revBatch, exampleIDs[i], versionID, ex.Input, ex.Output, ex.Metadata, model.RevisionCreate, now); err != nil {
			return nil, err
		}
	}
	if err := sendPgBatch(ctx, tx, revBatch); err != nil {
		return nil, eris.Wrap(err, "postgres: insert create revisions")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit")
	}
	return ds, nil
}

func (s *PostgresStore) PatchExamples(ctx context.Context, patches []dataset.ExamplePatch, version VersionParams) (*model.Dataset, error) {
	exampleIDs := make([]int64, len(patches))
	for i, p := range patches {
		exampleIDs[i] = p.ExampleID
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx)

	ds, err := singlePgDataset(ctx, tx, exampleIDs)
	if err != nil {
		return nil, err
	}

	revisions, err := latestPgRevisions(ctx, tx, exampleIDs)
	if err != nil {
		return nil, err
	}
	if missing := len(patches) - len(revisions); missing > 0 {
		return nil, dataset.NotFoundf("%d example(s) could not be found", missing)
	}

	now := time.Now().UTC()
	versionID, err := insertPgVersion(ctx, tx, ds.ID, version, now)
	if err != nil {
		return nil, err
	}

	// Both slices are ordered by example id and equal in length, so they
	// pair positionally; the id check guards the zip.
	batch := &pgx.Batch{}
	for i, p := range patches {
		if revisions[i].ExampleID != p.ExampleID {
			return nil, eris.Errorf("postgres: revision/patch pairing mismatch at %d", p.ExampleID)
		}
		input, output, metadata := dataset.Overlay(revisions[i], p)
		if err := queuePgRevision(batch, p.ExampleID, versionID, input, output, metadata, model.RevisionPatch, now); err != nil {
			return nil, err
		}
	}
	if err := sendPgBatch(ctx, tx, batch); err != nil {
		return nil, eris.Wrap(err, "postgres: insert patch revisions")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit")
	}
	return ds, nil
}

func (s *PostgresStore) DeleteExamples(ctx context.Context, exampleIDs []int64, version VersionParams) (*model.Dataset, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx)

	ds, err := singlePgDataset(ctx, tx, exampleIDs)
	if err != nil {
		return nil, err
	}

	var deleted int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM dataset_example_revisions
		 WHERE dataset_example_id = ANY($1) AND revision_kind = 'DELETE'`,
		exampleIDs,
	).Scan(&deleted); err != nil {
		return nil, eris.Wrap(err, "postgres: check delete revisions")
	}
	if deleted > 0 {
		return nil, dataset.BadRequestf("provided examples contain already deleted examples; delete aborted")
	}

	now := time.Now().UTC()
	versionID, err := insertPgVersion(ctx, tx, ds.ID, version, now)
	if err != nil {
		return nil, err
	}

	batch := &pgx.Batch{}
	for _, id := range exampleIDs {
		if err := queuePgRevision(batch, id, versionID, nil, nil, nil, model.RevisionDelete, now); err != nil {
			return nil, err
		}
	}
	if err := sendPgBatch(ctx, tx, batch); err != nil {
		return nil, eris.Wrap(err, "postgres: insert delete revisions")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit")
	}
	return ds, nil
}

func (s *PostgresStore) FetchSpans(ctx context.Context, spanIDs []int64) ([]SpanRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, span_kind, attributes, start_time FROM spans WHERE id = ANY($1) ORDER BY id`,
		spanIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch spans")
	}
	defer rows.Close()

	var records []SpanRecord
	byID := map[int64]int{}
	for rows.Next() {
		var sp model.Span
		var attrsJSON []byte
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.SpanKind, &attrsJSON, &sp.StartTime); err != nil {
			return nil, eris.Wrap(err, "postgres: scan span")
		}
		if err := json.Unmarshal(attrsJSON, &sp.Attributes); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal span attributes")
		}
		byID[sp.ID] = len(records)
		records = append(records, SpanRecord{Span: sp})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: fetch spans iterate")
	}
	if len(records) == 0 {
		return records, nil
	}

	annRows, err := s.pool.Query(ctx,
		`SELECT a.id, a.span_id, a.name, a.label, a.score, a.explanation, a.metadata, a.annotator_kind,
		        a.user_id, u.username, u.email
		 FROM span_annotations a
		 LEFT JOIN users u ON u.id = a.user_id
		 WHERE a.span_id = ANY($1)
		 ORDER BY a.span_id, a.name, u.username`,
		spanIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch span annotations")
	}
	defer annRows.Close()

	for annRows.Next() {
		var a model.SpanAnnotation
		var metaJSON []byte
		if err := annRows.Scan(&a.ID, &a.SpanID, &a.Name, &a.Label, &a.Score, &a.Explanation,
			&metaJSON, &a.AnnotatorKind, &a.UserID, &a.Username, &a.Email); err != nil {
			return nil, eris.Wrap(err, "postgres: scan span annotation")
		}
		if err := json.Unmarshal(metaJSON, &a.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal annotation metadata")
		}
		if i, ok := byID[a.SpanID]; ok {
			records[i].Annotations = append(records[i].Annotations, a)
		}
	}
	return records, eris.Wrap(annRows.Err(), "postgres: fetch span annotations iterate")
}

func (s *PostgresStore) ListExamples(ctx context.Context, datasetID int64, asOfVersionID int64) ([]ExampleState, error) {
	sql := `SELECT e.id, e.span_id, r.id, r.dataset_version_id, r.input, r.output, r.metadata, r.revision_kind, r.created_at
	        FROM dataset_examples e
	        JOIN dataset_example_revisions r ON r.id = (
	            SELECT max(r2.id) FROM dataset_example_revisions r2
	            WHERE r2.dataset_example_id = e.id`
	args := []any{datasetID}
	if asOfVersionID > 0 {
		sql += ` AND r2.dataset_version_id <= $2`
		args = append(args, asOfVersionID)
	}
	sql += `)
	        WHERE e.dataset_id = $1 AND r.revision_kind <> 'DELETE'
	        ORDER BY e.id`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list examples")
	}
	defer rows.Close()

	var states []ExampleState
	for rows.Next() {
		var st ExampleState
		var inputJSON, outputJSON, metaJSON []byte
		if err := rows.Scan(&st.ExampleID, &st.SpanID, &st.Revision.ID, &st.Revision.VersionID,
			&inputJSON, &outputJSON, &metaJSON, &st.Revision.Kind, &st.Revision.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan example state")
		}
		st.Revision.ExampleID = st.ExampleID
		if err := unmarshalRevisionPayloads(&st.Revision, inputJSON, outputJSON, metaJSON); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, eris.Wrap(rows.Err(), "postgres: list examples iterate")
}

func (s *PostgresStore) ListVersions(ctx context.Context, datasetID int64, limit int) ([]model.DatasetVersion, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, dataset_id, description, metadata, created_at FROM dataset_versions
		 WHERE dataset_id = $1 ORDER BY id DESC LIMIT $2`,
		datasetID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list versions")
	}
	defer rows.Close()

	var versions []model.DatasetVersion
	for rows.Next() {
		var v model.DatasetVersion
		var metaJSON []byte
		if err := rows.Scan(&v.ID, &v.DatasetID, &v.Description, &metaJSON, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan version")
		}
		if err := json.Unmarshal(metaJSON, &v.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal version metadata")
		}
		versions = append(versions, v)
	}
	return versions, eris.Wrap(rows.Err(), "postgres: list versions iterate")
}

func (s *PostgresStore) DeleteEvalProjects(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM eval_projects WHERE id = ANY($1)`, ids)
	return eris.Wrap(err, "postgres: delete eval projects")
}

func (s *PostgresStore) DeleteEvalTraces(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM eval_traces WHERE id = ANY($1)`, ids)
	return eris.Wrap(err, "postgres: delete eval traces")
}

// helpers

// singlePgDataset loads the dataset owning the given examples, enforcing the
// single-dataset-origin invariant.
func singlePgDataset(ctx context.Context, tx pgx.Tx, exampleIDs []int64) (*model.Dataset, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+pgDatasetColumns+` FROM datasets WHERE id IN (
		     SELECT DISTINCT dataset_id FROM dataset_examples WHERE id = ANY($1)
		 ) LIMIT 2`,
		exampleIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: resolve example datasets")
	}
	defer rows.Close()

	var datasets []*model.Dataset
	for rows.Next() {
		ds, err := scanPgDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: resolve example datasets iterate")
	}
	switch {
	case len(datasets) == 0:
		return nil, dataset.NotFoundf("no examples found")
	case len(datasets) > 1:
		return nil, dataset.BadRequestf("examples must be from the same dataset")
	}
	return datasets[0], nil
}

// latestPgRevisions returns the latest non-DELETE revision per example,
// ordered by example id. Examples whose latest revision is a DELETE are
// absent from the result: a tombstoned example is unresolvable for further
// mutation.
func latestPgRevisions(ctx context.Context, tx pgx.Tx, exampleIDs []int64) ([]model.ExampleRevision, error) {
	rows, err := tx.Query(ctx,
		`SELECT r.id, r.dataset_example_id, r.dataset_version_id, r.input, r.output, r.metadata, r.revision_kind, r.created_at
		 FROM dataset_example_revisions r
		 WHERE r.id IN (
		     SELECT max(id) FROM dataset_example_revisions
		     WHERE dataset_example_id = ANY($1)
		     GROUP BY dataset_example_id
		 ) AND r.revision_kind <> 'DELETE'
		 ORDER BY r.dataset_example_id`,
		exampleIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest revisions")
	}
	defer rows.Close()

	var revisions []model.ExampleRevision
	for rows.Next() {
		var r model.ExampleRevision
		var inputJSON, outputJSON, metaJSON []byte
		if err := rows.Scan(&r.ID, &r.ExampleID, &r.VersionID, &inputJSON, &outputJSON, &metaJSON, &r.Kind, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan revision")
		}
		if err := unmarshalRevisionPayloads(&r, inputJSON, outputJSON, metaJSON); err != nil {
			return nil, err
		}
		revisions = append(revisions, r)
	}
	return revisions, eris.Wrap(rows.Err(), "postgres: latest revisions iterate")
}

func insertPgVersion(ctx context.Context, tx pgx.Tx, datasetID int64, version VersionParams, at time.Time) (int64, error) {
	metaJSON, err := marshalMap(version.Metadata)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal version metadata")
	}
	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO dataset_versions (dataset_id, description, metadata, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		datasetID, version.Description, metaJSON, at,
	).Scan(&id)
	return id, eris.Wrap(err, "postgres: insert version")
}

func queuePgRevision(batch *pgx.Batch, exampleID, versionID int64, input, output, metadata map[string]any, kind model.RevisionKind, at time.Time) error {
	inputJSON, err := marshalMap(input)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal input")
	}
	outputJSON, err := marshalMap(output)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal output")
	}
	metaJSON, err := marshalMap(metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metadata")
	}
	batch.Queue(
		`INSERT INTO dataset_example_revisions
		 (dataset_example_id, dataset_version_id, input, output, metadata, revision_kind, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		exampleID, versionID, inputJSON, outputJSON, metaJSON, string(kind), at,
	)
	return nil
}

func sendPgBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}

func collectIDs(rows pgx.Rows, err error) ([]int64, error) {
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

func scanPgDataset(row pgx.Row) (*model.Dataset, error) {
	var ds model.Dataset
	var metaJSON []byte
	err := row.Scan(&ds.ID, &ds.Name, &ds.Description, &metaJSON, &ds.CreatedAt, &ds.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, dataset.NotFoundf("dataset not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan dataset")
	}
	if err := json.Unmarshal(metaJSON, &ds.Metadata); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal dataset metadata")
	}
	return &ds, nil
}

func unmarshalRevisionPayloads(r *model.ExampleRevision, input, output, metadata []byte) error {
	if err := json.Unmarshal(input, &r.Input); err != nil {
		return eris.Wrap(err, "store: unmarshal revision input")
	}
	if err := json.Unmarshal(output, &r.Output); err != nil {
		return eris.Wrap(err, "store: unmarshal revision output")
	}
	if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
		return eris.Wrap(err, "store: unmarshal revision metadata")
	}
	return nil
}

// marshalMap serializes a metadata/payload map, defaulting nil to an empty
// JSON object so tombstones and unset maps persist uniformly.
func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
