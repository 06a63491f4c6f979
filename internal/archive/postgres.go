package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/genqueue/pkg/models"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// PostgresArchive implements Archive using pgx/v5.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive creates a new PostgresArchive.
func NewPostgresArchive(pool *pgxpool.Pool) *PostgresArchive {
	return &PostgresArchive{pool: pool}
}

// Ping checks database connectivity.
func (a *PostgresArchive) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Record stores a terminal job. Recording the same job twice is a no-op.
func (a *PostgresArchive) Record(ctx context.Context, job *models.Job) error {
	if !job.IsTerminal() {
		return fmt.Errorf("archive job %s: %w: status %s is not terminal", job.ID, models.ErrInvalidTransition, job.Status)
	}

	_, err := a.pool.Exec(ctx,
		`INSERT INTO generation_jobs (id, prompt, model, status, result, error, created_at, started_at, completed_at, failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		job.ID, job.Prompt, job.Model, job.Status, job.Result, job.Error,
		job.CreatedAt, job.StartedAt, job.CompletedAt, job.FailedAt)
	if err != nil {
		return fmt.Errorf("archive job: %w", err)
	}
	return nil
}

// Recent returns up to limit archived jobs, most recently finished first.
// Limit is clamped to [1, 100]; zero selects the default of 20.
func (a *PostgresArchive) Recent(ctx context.Context, limit int) ([]*models.Job, error) {
	limit = clampLimit(limit)

	rows, err := a.pool.Query(ctx,
		`SELECT id, prompt, model, status, result, error, created_at, started_at, completed_at, failed_at
		 FROM generation_jobs
		 ORDER BY COALESCE(completed_at, failed_at) DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list archived jobs: %w", err)
	}

	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Job, error) {
		var j models.Job
		err := row.Scan(&j.ID, &j.Prompt, &j.Model, &j.Status, &j.Result, &j.Error,
			&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.FailedAt)
		return &j, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan archived job: %w", err)
	}
	return jobs, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultRecentLimit
	case limit > maxRecentLimit:
		return maxRecentLimit
	default:
		return limit
	}
}

var _ Archive = (*PostgresArchive)(nil)
