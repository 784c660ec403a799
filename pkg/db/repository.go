package db

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/webbboot/companion/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository provides database operations for job history
type Repository struct {
	db *sql.DB
}

// NewRepository opens the database and applies pending migrations
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	slog.Info("database_migrate", "db_path", dbPath)
	if err := migrateUp(db); err != nil {
		db.Close()
		slog.Error("database_migrate_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to migrate schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new job record
func (r *Repository) Create(rec *JobRecord) error {
	slog.Info("database_create_job", "job_id", rec.ID, "device", rec.Device, "status", rec.Status)

	query := `
		INSERT INTO jobs (id, action, device, image, filesystem, scheme, status, progress, current_operation, image_sha256, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		rec.ID, rec.Action, rec.Device, rec.Image, rec.Filesystem, rec.Scheme,
		rec.Status, rec.Progress, rec.Operation, rec.ImageSHA256, rec.ErrorMessage)
	if err != nil {
		slog.Error("database_insert_failed", "job_id", rec.ID, "error", err)
		return errors.Wrap(err, "failed to insert job")
	}
	return nil
}

// Get retrieves a job by ID. It returns nil, nil when the job is unknown.
func (r *Repository) Get(id string) (*JobRecord, error) {
	query := `
		SELECT id, action, device, image, filesystem, scheme, status, progress,
		       current_operation, image_sha256, error_message, created_at, updated_at
		FROM jobs WHERE id = ?
	`
	rec, err := scanJob(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		slog.Info("database_job_not_found", "job_id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "job_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query job")
	}
	return rec, nil
}

// UpdateProgress records the latest stage a job reached
func (r *Repository) UpdateProgress(id string, progress int, operation string) error {
	query := `UPDATE jobs SET progress = ?, current_operation = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := r.db.Exec(query, progress, operation, id); err != nil {
		slog.Error("database_progress_update_failed", "job_id", id, "progress", progress, "error", err)
		return errors.Wrap(err, "failed to update progress")
	}
	return nil
}

// UpdateImageSHA256 records the checksum of the image written by a job
func (r *Repository) UpdateImageSHA256(id, sha256 string) error {
	query := `UPDATE jobs SET image_sha256 = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := r.db.Exec(query, sha256, id); err != nil {
		slog.Error("database_sha_update_failed", "job_id", id, "error", err)
		return errors.Wrap(err, "failed to update image checksum")
	}
	return nil
}

// UpdateStatus sets the job status and error message
func (r *Repository) UpdateStatus(id, status, errorMessage string) error {
	slog.Info("database_update_status", "job_id", id, "status", status)

	query := `UPDATE jobs SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := r.db.Exec(query, status, errorMessage, id)
	if err != nil {
		slog.Error("database_status_update_failed", "job_id", id, "status", status, "error", err)
		return errors.Wrap(err, "failed to update status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		slog.Error("database_job_not_found_for_update", "job_id", id)
		return fmt.Errorf("job not found: id=%s", id)
	}
	return nil
}

// List retrieves the most recent jobs, newest first. A non-positive limit
// returns every job.
func (r *Repository) List(limit int) ([]*JobRecord, error) {
	slog.Info("database_list_jobs", "limit", limit)

	query := `
		SELECT id, action, device, image, filesystem, scheme, status, progress,
		       current_operation, image_sha256, error_message, created_at, updated_at
		FROM jobs ORDER BY created_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []*JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		jobs = append(jobs, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Info("database_list_complete", "job_count", len(jobs))
	return jobs, nil
}

// FailRunning marks jobs left running by a previous process as failed.
// Interrupted jobs are never resumed: the device state is unknown.
func (r *Repository) FailRunning(reason string) (int64, error) {
	query := `UPDATE jobs SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE status = ?`
	result, err := r.db.Exec(query, StatusFailed, reason, StatusRunning)
	if err != nil {
		slog.Error("database_fail_running_failed", "error", err)
		return 0, errors.Wrap(err, "failed to mark interrupted jobs")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	if n > 0 {
		slog.Warn("database_interrupted_jobs_failed", "count", n)
	}
	return n, nil
}

// DeleteFinished removes every job that is no longer running
func (r *Repository) DeleteFinished() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM jobs WHERE status != ?`, StatusRunning)
	if err != nil {
		slog.Error("database_delete_failed", "error", err)
		return 0, errors.Wrap(err, "failed to delete jobs")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	slog.Info("database_jobs_deleted", "count", n)
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*JobRecord, error) {
	var rec JobRecord
	var image, filesystem, scheme, operation, sha, errorMessage sql.NullString

	err := row.Scan(
		&rec.ID, &rec.Action, &rec.Device, &image, &filesystem, &scheme,
		&rec.Status, &rec.Progress, &operation, &sha, &errorMessage,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	// Handle nullable fields
	rec.Image = image.String
	rec.Filesystem = filesystem.String
	rec.Scheme = scheme.String
	rec.Operation = operation.String
	rec.ImageSHA256 = sha.String
	rec.ErrorMessage = errorMessage.String
	return &rec, nil
}
