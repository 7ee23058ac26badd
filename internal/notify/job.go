package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/schedule"
)

// JobStatus is the lifecycle state of a notification job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Job is one row of notification_jobs. ID doubles as the schedule.JobHandle.
type Job struct {
	ID        string    `db:"id"`
	TaskID    idgen.ID  `db:"task_id"`
	Payload   []byte    `db:"payload"`
	FireAt    time.Time `db:"fire_at"`
	Status    JobStatus `db:"status"`
	Attempts  int       `db:"attempts"`
	LastError string    `db:"last_error"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DecodePayload unmarshals the stored notification body.
func (j *Job) DecodePayload() (schedule.Payload, error) {
	var p schedule.Payload
	err := json.Unmarshal(j.Payload, &p)
	return p, err
}

// JobStore persists notification jobs.
type JobStore interface {
	// CreateJob inserts a pending job.
	CreateJob(ctx context.Context, job *Job) error

	// CancelJob moves a pending job to cancelled. It reports false, without
	// error, when no pending job has that id.
	CancelJob(ctx context.Context, id string) (bool, error)

	// ClaimDueJobs marks up to limit pending jobs with fire_at <= now as
	// processing, increments their attempts and returns them. Rows locked by
	// another claimer are skipped.
	ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	// CompleteJob marks a job completed. note is stored in last_error and is
	// empty for a delivered notification.
	CompleteJob(ctx context.Context, id string, note string) error

	// RetryJob moves a job back to pending with a later fire_at.
	RetryJob(ctx context.Context, id string, fireAt time.Time, lastErr string) error

	// FailJob marks a job permanently failed.
	FailJob(ctx context.Context, id string, lastErr string) error

	// ReleaseJob returns a claimed job to pending without counting the attempt.
	ReleaseJob(ctx context.Context, id string) error

	// ResetStuckJobs moves processing jobs last updated before olderThan back to
	// pending and returns how many were reset.
	ResetStuckJobs(ctx context.Context, olderThan time.Time) (int64, error)
}

// TaskLookup reads the current state of a task without row locks.
type TaskLookup interface {
	GetTask(ctx context.Context, id idgen.ID) (*domain.Task, error)
}

// Deliverer sends one notification to the chat front end.
type Deliverer interface {
	Deliver(ctx context.Context, jobID string, payload schedule.Payload) error
}

// Recorder receives executor metrics. *metrics.Collector satisfies it.
type Recorder interface {
	RecordJob(outcome string)
	ObserveDelivery(d time.Duration)
	JobStarted()
	JobFinished()
}

type nopRecorder struct{}

func (nopRecorder) RecordJob(string)              {}
func (nopRecorder) ObserveDelivery(time.Duration) {}
func (nopRecorder) JobStarted()                   {}
func (nopRecorder) JobFinished()                  {}

// Job outcomes passed to Recorder.RecordJob.
const (
	OutcomeDelivered = "delivered"
	OutcomeSkipped   = "skipped"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)
