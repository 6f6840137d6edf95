package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobarin/scenecut/internal/models"
)

// ErrJobNotFound is returned when no render job has the requested id.
var ErrJobNotFound = errors.New("job not found")

func (db *DB) CreateRenderJob(ctx context.Context, job *models.RenderJob) error {
	query := `
		INSERT INTO render_jobs (
			id, status, scene_count, resolution, output_format
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.Status, job.SceneCount, job.Resolution, job.OutputFormat,
	).Scan(&job.CreatedAt)
}

func (db *DB) MarkRenderJobRunning(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE render_jobs
		SET status = $2, started_at = NOW()
		WHERE id = $1
	`

	_, err := db.ExecContext(ctx, query, id, models.JobStatusRunning)
	return err
}

// CompleteRenderJob records a finished job. A result carrying an error (such as
// the oversized advisory) is stored as failed, with its size metadata kept.
func (db *DB) CompleteRenderJob(ctx context.Context, id uuid.UUID, result *models.RenderResult) error {
	query := `
		UPDATE render_jobs
		SET status = $2, duration_sec = $3, size_mb = $4, result_meta = $5,
			error_message = $6, finished_at = NOW()
		WHERE id = $1
	`

	status := models.JobStatusSucceeded
	var errMsg *string
	if !result.Success {
		status = models.JobStatusFailed
		errMsg = &result.Error
	}

	_, err := db.ExecContext(
		ctx, query,
		id, status, result.Duration, result.SizeMB, resultMeta(result), errMsg,
	)
	return err
}

func (db *DB) FailRenderJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE render_jobs
		SET status = $2, error_message = $3, finished_at = NOW()
		WHERE id = $1
	`

	_, err := db.ExecContext(ctx, query, id, models.JobStatusFailed, errMsg)
	return err
}

func (db *DB) GetRenderJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error) {
	query := `
		SELECT
			id, status, scene_count, resolution, output_format, duration_sec,
			size_mb, result_meta, error_message, started_at, finished_at, created_at
		FROM render_jobs
		WHERE id = $1
	`

	job := &models.RenderJob{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.Status, &job.SceneCount, &job.Resolution, &job.OutputFormat,
		&job.DurationSec, &job.SizeMB, &job.ResultMeta, &job.ErrorMessage,
		&job.StartedAt, &job.FinishedAt, &job.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// resultMeta keeps the timing and storage reference of a result, never the
// inline video bytes.
func resultMeta(result *models.RenderResult) models.JSONB {
	meta := models.JSONB{
		"actual_segment_durations": result.ActualSegmentDurations,
	}
	if result.ActualGapDuration != nil {
		meta["actual_gap_duration"] = *result.ActualGapDuration
	}
	if result.DriveFileID != "" {
		meta["drive_file_id"] = result.DriveFileID
		meta["web_view_link"] = result.WebViewLink
		meta["web_content_link"] = result.WebContentLink
	}
	return meta
}
