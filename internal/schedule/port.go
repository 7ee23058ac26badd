package schedule

import (
	"context"
	"time"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
)

// JobHandle identifies a submitted notification job. Only equality and
// emptiness are meaningful; the empty handle means no job.
type JobHandle string

// Payload is the body delivered when a due notification fires.
type Payload struct {
	UserID idgen.ID   `json:"user_id"`
	TaskID idgen.ID   `json:"task_id"`
	Title  string     `json:"title"`
	DueAt  *time.Time `json:"due_at"`
}

// NewPayload builds the notification body for task.
func NewPayload(task *domain.Task) Payload {
	return Payload{
		UserID: task.UserID,
		TaskID: task.ID,
		Title:  task.Title,
		DueAt:  task.DueAt,
	}
}

// JobPort submits and cancels deferred notification jobs.
//
// Submit schedules payload for delivery at eta; a nil or past eta fires as
// soon as possible. Each call creates an independent job with its own handle.
//
// Cancel must return nil for handles that are unknown, already fired or
// already cancelled. A non-nil error only means the executor could not be
// reached, and callers do nothing with it beyond reporting.
type JobPort interface {
	Submit(ctx context.Context, taskID idgen.ID, payload Payload, eta *time.Time) (JobHandle, error)
	Cancel(ctx context.Context, handle JobHandle) error
}

// Recorder receives reconciliation counters. *metrics.Collector satisfies it.
type Recorder interface {
	RecordReconcile(action string)
	RecordPortError(op string)
	RecordHandlePersistError()
	RecordInvariantViolation(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordReconcile(string)          {}
func (nopRecorder) RecordPortError(string)          {}
func (nopRecorder) RecordHandlePersistError()       {}
func (nopRecorder) RecordInvariantViolation(string) {}
