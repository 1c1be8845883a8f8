package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aaron777collins/smartbudget-sub003/internal/models"
)

// Status transitions are enforced with compare-and-set UPDATEs keyed by
// (id, expected status), so a worker's completion write and a user's
// cancel cannot both win a race on the same job.

// CreateJob validates the job type, marshals the payload and inserts a
// pending job owned by userID.
func (db *DB) CreateJob(userID int64, jobType models.JobType, payload any, total int) (*models.Job, error) {
	if !models.ValidJobType(jobType) {
		return nil, fmt.Errorf("unrecognized job type %q", jobType)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	job := &models.Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      jobType,
		Status:    models.JobPending,
		Total:     total,
		Payload:   string(payloadJSON),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err = db.Exec(`
		INSERT INTO jobs (id, user_id, job_type, status, total, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.UserID, job.Type, job.Status, job.Total, job.Payload, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

const jobColumns = `id, user_id, job_type, status, progress, total, payload, result, error, created_at, updated_at, started_at, completed_at`

func scanJob(row interface{ Scan(...any) error }) (*models.Job, error) {
	var job models.Job
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&job.ID, &job.UserID, &job.Type, &job.Status, &job.Progress, &job.Total,
		&job.Payload, &job.Result, &job.Error, &job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}

// GetJob returns the job only when it exists and is owned by userID.
// Absent and not-owned both return (nil, nil) so callers cannot probe
// for other users' job IDs.
func (db *DB) GetJob(id string, userID int64) (*models.Job, error) {
	row := db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ? AND user_id = ?`, id, userID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

// ListJobs returns the caller's jobs, newest first, with ANDed filters
// and offset pagination. The second return is the total matching count
// before pagination.
func (db *DB) ListJobs(userID int64, filter models.JobFilter) ([]models.Job, int, error) {
	where := `WHERE user_id = ?`
	args := []any{userID}
	if filter.Status != "" {
		where += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		where += ` AND job_type = ?`
		args = append(args, filter.Type)
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM jobs `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.Query(`SELECT `+jobColumns+` FROM jobs `+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, total, rows.Err()
}

// CancelJob transitions a pending or running job owned by userID to
// cancelled. Returns false when the job is absent, not owned, or
// already terminal.
func (db *DB) CancelJob(id string, userID int64) (bool, error) {
	res, err := db.Exec(`
		UPDATE jobs
		SET status = ?, updated_at = CURRENT_TIMESTAMP, completed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ? AND status IN (?, ?)
	`, models.JobCancelled, id, userID, models.JobPending, models.JobRunning)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	return n > 0, nil
}

// ClaimNextJob atomically claims the oldest pending job for the worker.
// Returns (nil, nil) when the queue is empty.
func (db *DB) ClaimNextJob() (*models.Job, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT ` + jobColumns + ` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC LIMIT 1`)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}

	now := time.Now()
	res, err := tx.Exec(`
		UPDATE jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?
	`, models.JobRunning, now, now, job.ID, models.JobPending)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the claim race, likely to a concurrent cancel.
		return nil, tx.Commit()
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	job.Status = models.JobRunning
	job.StartedAt = &now
	job.UpdatedAt = now
	return job, nil
}

// JobStatus returns only the status, for cheap cancellation polls.
func (db *DB) JobStatus(id string) (models.JobStatus, error) {
	var status models.JobStatus
	err := db.QueryRow(`SELECT status FROM jobs WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query job status: %w", err)
	}
	return status, nil
}

// UpdateJobProgress advances the progress counter of a running job.
func (db *DB) UpdateJobProgress(id string, progress, total int) error {
	_, err := db.Exec(`
		UPDATE jobs SET progress = ?, total = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'running'
	`, progress, total, id)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// CompleteJob marks a running job completed with a result document.
// The transition is rejected when the job is no longer running (for
// example, cancelled mid-flight).
func (db *DB) CompleteJob(id string, result string) error {
	return db.finishJob(id, models.JobCompleted, result, "")
}

// FailJob marks a running job failed with an error message, under the
// same compare-and-set rule as CompleteJob.
func (db *DB) FailJob(id string, errMsg string) error {
	return db.finishJob(id, models.JobFailed, "", errMsg)
}

func (db *DB) finishJob(id string, status models.JobStatus, result, errMsg string) error {
	res, err := db.Exec(`
		UPDATE jobs
		SET status = ?, result = ?, error = ?, updated_at = CURRENT_TIMESTAMP, completed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, status, result, errMsg, id, models.JobRunning)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s not running: %w", id, ErrInvalidTransition)
	}
	return nil
}
