package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"mlhmc/domain/core"
	"mlhmc/domain/run"
	apperrors "mlhmc/internal/errors"
	"mlhmc/ports"
)

// pq unique_violation
const uniqueViolation = "23505"

// RunRepositoryImpl implements RunRegistry for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run registry
func NewRunRepository(db *sqlx.DB) ports.RunRegistry {
	return &RunRepositoryImpl{db: db}
}

// SaveRun stores a run record; saving an existing run ID is an error
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, rec *run.Record) error {
	if rec == nil {
		return apperrors.InvalidInput("run record cannot be nil")
	}
	if err := rec.Manifest.Validate(); err != nil {
		return err
	}

	manifestJSON, _ := json.Marshal(rec.Manifest)
	ratesJSON, _ := json.Marshal(rec.Rates)
	summariesJSON, _ := json.Marshal(rec.Summaries)

	var sweepID *string
	if rec.SweepID != "" {
		s := string(rec.SweepID)
		sweepID = &s
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, sweep_id, status, fingerprint, manifest, rates, summaries,
			error_message, runtime_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(rec.Manifest.RunID), sweepID, string(rec.Status),
		string(rec.Manifest.Fingerprint.Hash), manifestJSON, ratesJSON,
		summariesJSON, rec.Error, rec.RuntimeMs, rec.CreatedAt.Time())

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperrors.Conflict(fmt.Sprintf("run %s", rec.Manifest.RunID))
		}
		return apperrors.StorageError("postgres", err)
	}

	return nil
}

// GetRun loads one run record by ID
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*run.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT sweep_id, status, manifest, rates, summaries,
		       error_message, runtime_ms, created_at
		FROM runs
		WHERE id = $1
	`, string(id))

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(fmt.Sprintf("run %s", id))
	}
	if err != nil {
		return nil, apperrors.StorageError("postgres", err)
	}
	return rec, nil
}

// ListRuns returns run records matching the filters, newest first
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, filters ports.RunFilters) ([]*run.Record, error) {
	query := `
		SELECT sweep_id, status, manifest, rates, summaries,
		       error_message, runtime_ms, created_at
		FROM runs
	`
	var conditions []string
	var args []interface{}

	if filters.SweepID != nil {
		args = append(args, string(*filters.SweepID))
		conditions = append(conditions, fmt.Sprintf("sweep_id = $%d", len(args)))
	}
	if filters.Status != nil {
		args = append(args, string(*filters.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.StorageError("postgres", err)
	}
	defer rows.Close()

	var records []*run.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, apperrors.StorageError("postgres", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError("postgres", err)
	}

	return records, nil
}

// scanRecord rebuilds a Record from one row of the runs table. The scan
// argument order must match the SELECT column order used by the callers.
func scanRecord(scan func(dest ...any) error) (*run.Record, error) {
	var (
		sweepID       sql.NullString
		status        string
		manifestJSON  []byte
		ratesJSON     []byte
		summariesJSON []byte
		errorMessage  string
		runtimeMs     int64
		createdAt     time.Time
	)

	err := scan(&sweepID, &status, &manifestJSON, &ratesJSON, &summariesJSON,
		&errorMessage, &runtimeMs, &createdAt)
	if err != nil {
		return nil, err
	}

	rec := &run.Record{
		Status:    run.Status(status),
		Error:     errorMessage,
		RuntimeMs: runtimeMs,
		CreatedAt: core.NewTimestamp(createdAt),
	}
	if sweepID.Valid {
		rec.SweepID = core.SweepID(sweepID.String)
	}
	if err := json.Unmarshal(manifestJSON, &rec.Manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	if err := json.Unmarshal(ratesJSON, &rec.Rates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rates: %w", err)
	}
	if err := json.Unmarshal(summariesJSON, &rec.Summaries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summaries: %w", err)
	}

	return rec, nil
}
