package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ibras0696/m-django-work/internal/notify"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/store"
)

// PostgresJobStore implements notify.JobStore on notification_jobs. Rows
// are mapped onto notify.Job through their db tags.
type PostgresJobStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresJobStore creates a job store. db must use the pgx driver.
func NewPostgresJobStore(db *sqlx.DB, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
		now:    time.Now,
	}
}

var _ notify.JobStore = (*PostgresJobStore)(nil)

const jobColumns = `id, task_id, payload, fire_at, status, attempts, last_error, created_at, updated_at`

// CreateJob implements notify.JobStore.CreateJob
func (s *PostgresJobStore) CreateJob(ctx context.Context, job *notify.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_jobs (id, task_id, payload, fire_at, status, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		job.ID,
		job.TaskID.Int64(),
		job.Payload,
		job.FireAt,
		string(job.Status),
		job.Attempts,
		job.LastError,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to save notification job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID),
			slog.String("task_id", job.TaskID.String()))
		return MapError(err)
	}
	return nil
}

// CancelJob implements notify.JobStore.CancelJob
func (s *PostgresJobStore) CancelJob(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, s.now().UTC())
	if err != nil {
		return false, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ClaimDueJobs implements notify.JobStore.ClaimDueJobs
func (s *PostgresJobStore) ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]*notify.Job, error) {
	var jobs []*notify.Job
	err := s.db.SelectContext(ctx, &jobs, `
		UPDATE notification_jobs
		SET status = 'processing', attempts = attempts + 1, updated_at = $2
		WHERE id IN (
			SELECT id FROM notification_jobs
			WHERE status = 'pending' AND fire_at <= $1
			ORDER BY fire_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, now, s.now().UTC(), limit)
	if err != nil {
		return nil, MapError(err)
	}
	return jobs, nil
}

// GetJob loads one job. It is used by the operator commands.
func (s *PostgresJobStore) GetJob(ctx context.Context, id string) (*notify.Job, error) {
	var job notify.Job
	err := s.db.GetContext(ctx, &job, `SELECT `+jobColumns+` FROM notification_jobs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}
	return &job, nil
}

// CompleteJob implements notify.JobStore.CompleteJob
func (s *PostgresJobStore) CompleteJob(ctx context.Context, id string, note string) error {
	return s.setStatus(ctx, id, notify.JobStatusCompleted, note)
}

// FailJob implements notify.JobStore.FailJob
func (s *PostgresJobStore) FailJob(ctx context.Context, id string, lastErr string) error {
	return s.setStatus(ctx, id, notify.JobStatusFailed, lastErr)
}

func (s *PostgresJobStore) setStatus(ctx context.Context, id string, status notify.JobStatus, lastErr string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = $2, last_error = $3, updated_at = $4
		WHERE id = $1
	`, id, string(status), lastErr, s.now().UTC())
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrJobNotFound)
}

// RetryJob implements notify.JobStore.RetryJob
func (s *PostgresJobStore) RetryJob(ctx context.Context, id string, fireAt time.Time, lastErr string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'pending', fire_at = $2, last_error = $3, updated_at = $4
		WHERE id = $1
	`, id, fireAt, lastErr, s.now().UTC())
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrJobNotFound)
}

// ReleaseJob implements notify.JobStore.ReleaseJob
func (s *PostgresJobStore) ReleaseJob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'pending', attempts = GREATEST(attempts - 1, 0), updated_at = $2
		WHERE id = $1 AND status = 'processing'
	`, id, s.now().UTC())
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrJobNotFound)
}

// ResetStuckJobs implements notify.JobStore.ResetStuckJobs
func (s *PostgresJobStore) ResetStuckJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'pending', updated_at = $2
		WHERE status = 'processing' AND updated_at <= $1
	`, olderThan, s.now().UTC())
	if err != nil {
		return 0, MapError(err)
	}
	return result.RowsAffected()
}

// CountByStatus returns the number of jobs per status.
func (s *PostgresJobStore) CountByStatus(ctx context.Context) (map[notify.JobStatus]int, error) {
	var rows []struct {
		Status notify.JobStatus `db:"status"`
		Count  int              `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM notification_jobs GROUP BY status`); err != nil {
		return nil, MapError(err)
	}
	out := make(map[notify.JobStatus]int, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
