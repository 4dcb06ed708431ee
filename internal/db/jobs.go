package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bobarin/montage/internal/models"
	"github.com/google/uuid"
)

var ErrJobNotFound = errors.New("job not found")

const jobColumns = `
	id, status, stage, request, output_path, output_url, error_message,
	attempts, started_at, finished_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.RenderJob, error) {
	job := &models.RenderJob{}
	err := row.Scan(
		&job.ID, &job.Status, &job.Stage, &job.Request, &job.OutputPath, &job.OutputURL,
		&job.ErrorMessage, &job.Attempts, &job.StartedAt, &job.FinishedAt,
		&job.CreatedAt, &job.UpdatedAt,
	)
	return job, err
}

func (db *DB) CreateJob(ctx context.Context, job *models.RenderJob) error {
	query := `
		INSERT INTO render_jobs (id, status, stage, request)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.Status, job.Stage, job.Request,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error) {
	query := `SELECT ` + jobColumns + ` FROM render_jobs WHERE id = $1`

	job, err := scanJob(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

func (db *DB) ListJobs(ctx context.Context, limit, offset int) ([]models.RenderJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM render_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.RenderJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

// UpdateJobStatus records a status/stage transition. Entering processing
// stamps started_at once and counts an attempt; terminal statuses stamp
// finished_at.
func (db *DB) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, stage models.Stage) error {
	now := time.Now()
	query := `UPDATE render_jobs SET status = $1, stage = $2, updated_at = $3 WHERE id = $4`

	switch {
	case status == models.JobStatusProcessing && stage == models.StagePlanning:
		query = `UPDATE render_jobs
			SET status = $1, stage = $2, updated_at = $3,
				started_at = COALESCE(started_at, $3), attempts = attempts + 1
			WHERE id = $4`
	case status.Terminal():
		query = `UPDATE render_jobs SET status = $1, stage = $2, updated_at = $3, finished_at = $3 WHERE id = $4`
	}

	return db.exec(ctx, query, status, stage, now, id)
}

// UpdateJobError marks the job failed. The stage is closed out the same
// way a completed job's is.
func (db *DB) UpdateJobError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE render_jobs
		SET status = $1, stage = $2, error_message = $3, finished_at = $4, updated_at = $4
		WHERE id = $5
	`
	return db.exec(ctx, query, models.JobStatusFailed, models.StageDone, errorMessage, time.Now(), id)
}

// SetOutput stores where the finished video lives. url may be empty.
func (db *DB) SetOutput(ctx context.Context, id uuid.UUID, path, url string) error {
	query := `
		UPDATE render_jobs
		SET output_path = $1, output_url = NULLIF($2, ''), updated_at = $3
		WHERE id = $4
	`
	return db.exec(ctx, query, path, url, time.Now(), id)
}

func (db *DB) exec(ctx context.Context, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrJobNotFound
	}
	return nil
}
