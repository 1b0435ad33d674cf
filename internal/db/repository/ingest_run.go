// Package repository implements the persistence ports against the SQLite
// run-history store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"air2graph/internal/domain"
)

// Timestamps are stored as RFC 3339 text; SQLite lexicographic order matches
// chronological order for this format.
const timeLayout = time.RFC3339Nano

// IngestRunRepo persists ingestion run bookkeeping rows.
type IngestRunRepo struct {
	db *sql.DB
}

// NewIngestRunRepo creates a repository over the given pool.
func NewIngestRunRepo(db *sql.DB) *IngestRunRepo {
	return &IngestRunRepo{db: db}
}

// Create inserts the initial row for a run that just started.
func (r *IngestRunRepo) Create(ctx context.Context, run *domain.IngestRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, status, wipe, started_at)
		VALUES (?, ?, ?, ?)`,
		run.ID, run.Status, run.Wipe, run.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return domain.ErrStore("create ingest run", err)
	}
	return nil
}

// Finish writes the terminal status and all counters for a run.
func (r *IngestRunRepo) Finish(ctx context.Context, run *domain.IngestRun) error {
	var finishedAt any
	if run.FinishedAt != nil {
		finishedAt = run.FinishedAt.UTC().Format(timeLayout)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE ingest_runs SET
			status = ?,
			finished_at = ?,
			labels = ?,
			nodes = ?,
			edge_batches = ?,
			edge_total = ?,
			edge_errors = ?,
			edge_failed_batches = ?,
			edges_created = ?,
			edges_skipped = ?,
			edge_sources_not_found = ?,
			edge_targets_not_found = ?,
			error = ?
		WHERE id = ?`,
		run.Status, finishedAt, run.Labels, run.Nodes,
		run.Edges.Batches, run.Edges.Total, run.Edges.Errors, run.Edges.FailedBatches,
		run.Edges.Created, run.Edges.Skipped, run.Edges.SourcesNotFound, run.Edges.TargetsNotFound,
		run.Error, run.ID,
	)
	if err != nil {
		return domain.ErrStore("finish ingest run", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.ErrStore("finish ingest run", err)
	}
	if affected == 0 {
		return domain.ErrNotFound("ingest run %q not found", run.ID)
	}
	return nil
}

// GetByID fetches one run.
func (r *IngestRunRepo) GetByID(ctx context.Context, id string) (*domain.IngestRun, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("ingest run %q not found", id)
	}
	if err != nil {
		return nil, domain.ErrStore("get ingest run", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (r *IngestRunRepo) List(ctx context.Context, limit int) ([]domain.IngestRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, domain.ErrStore("list ingest runs", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []domain.IngestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, domain.ErrStore("scan ingest run", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrStore("list ingest runs", err)
	}
	return runs, nil
}

const selectColumns = `
	SELECT id, status, wipe, started_at, finished_at, labels, nodes,
		edge_batches, edge_total, edge_errors, edge_failed_batches,
		edges_created, edges_skipped, edge_sources_not_found, edge_targets_not_found,
		error
	FROM ingest_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.IngestRun, error) {
	var (
		run        domain.IngestRun
		startedAt  string
		finishedAt sql.NullString
		runErr     sql.NullString
	)
	err := row.Scan(
		&run.ID, &run.Status, &run.Wipe, &startedAt, &finishedAt, &run.Labels, &run.Nodes,
		&run.Edges.Batches, &run.Edges.Total, &run.Edges.Errors, &run.Edges.FailedBatches,
		&run.Edges.Created, &run.Edges.Skipped, &run.Edges.SourcesNotFound, &run.Edges.TargetsNotFound,
		&runErr,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = &t
	}
	if runErr.Valid {
		run.Error = &runErr.String
	}
	return &run, nil
}

// Compile-time check that IngestRunRepo implements the repository port.
var _ domain.IngestRunRepository = (*IngestRunRepo)(nil)
