package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"image-vault/internal/collection"
)

// Job groups a batch of dispatched artifact-generation work under one
// observable unit of progress.
type Job struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Total       int       `json:"total"`
	Completed   int       `json:"completed"`
	Failed      int       `json:"failed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Job statuses.
const (
	JobStatusRunning  = "running"
	JobStatusComplete = "complete"
)

// CreateJob records a new tracked job and returns its id.
func (d *Database) CreateJob(ctx context.Context, jobType, description string) (string, error) {
	start := time.Now()
	var err error
	defer func() { observe("create_job", start, err) }()

	id := uuid.NewString()
	now := time.Now().Unix()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, jobType, description, JobStatusRunning, now, now)
	if err != nil {
		err = fmt.Errorf("failed to create job: %w", err)
		return "", err
	}
	return id, nil
}

// SetJobTotal records how many work items the job covers.
func (d *Database) SetJobTotal(ctx context.Context, id string, total int) error {
	start := time.Now()
	var err error
	defer func() { observe("set_job_total", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx,
		`UPDATE jobs SET total = ?, updated_at = ? WHERE id = ?`,
		total, time.Now().Unix(), id)
	if err != nil {
		err = fmt.Errorf("failed to set job total %s: %w", id, err)
	}
	return err
}

// RecordJobProgress adds completed/failed counts and flips the job to
// complete once every item is accounted for.
func (d *Database) RecordJobProgress(ctx context.Context, id string, completed, failed int) error {
	start := time.Now()
	var err error
	defer func() { observe("record_job_progress", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		UPDATE jobs SET
			completed = completed + ?,
			failed = failed + ?,
			status = CASE WHEN total > 0 AND completed + failed + ? + ? >= total THEN ? ELSE status END,
			updated_at = ?
		WHERE id = ?`,
		completed, failed, completed, failed, JobStatusComplete, time.Now().Unix(), id)
	if err != nil {
		err = fmt.Errorf("failed to record job progress %s: %w", id, err)
	}
	return err
}

// GetJob loads one job by id.
func (d *Database) GetJob(ctx context.Context, id string) (*Job, error) {
	start := time.Now()
	var err error
	defer func() { observe("get_job", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var job Job
	var createdAt, updatedAt int64
	scanErr := d.db.QueryRowContext(ctx, `
		SELECT id, type, description, status, total, completed, failed, created_at, updated_at
		FROM jobs WHERE id = ?`, id).Scan(
		&job.ID, &job.Type, &job.Description, &job.Status,
		&job.Total, &job.Completed, &job.Failed, &createdAt, &updatedAt,
	)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: job %s", collection.ErrNotFound, id)
			return nil, err
		}
		err = fmt.Errorf("failed to load job %s: %w", id, scanErr)
		return nil, err
	}
	job.CreatedAt = time.Unix(createdAt, 0)
	job.UpdatedAt = time.Unix(updatedAt, 0)
	return &job, nil
}
