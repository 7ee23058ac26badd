package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ibras0696/m-django-work/internal/idgen"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Task status values.
const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// Field limits shared by validation and the schema.
const (
	MaxTaskTitleLength    = 200
	MaxNotifyJobIDLength  = 64
	MaxCategoryNameLength = 64
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

// Task is a unit of work owned by one user, optionally with a deadline.
//
// NotifyJobID is the handle of the pending due notification, or "" when none
// is scheduled. It is owned by the schedule package and is never accepted
// from or shown to clients.
type Task struct {
	ID          idgen.ID   `json:"id"`
	UserID      idgen.ID   `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	CategoryIDs []idgen.ID `json:"category_ids"`
	CreatedAt   time.Time  `json:"created_at"`
	DueAt       *time.Time `json:"due_at"`
	NotifyJobID string     `json:"-"`
}

// NewTask returns a todo task for userID. The ID is left zero; it is
// assigned on the write path.
func NewTask(userID idgen.ID, title, description string, dueAt *time.Time) (*Task, error) {
	task := &Task{
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      TaskStatusTodo,
		CreatedAt:   time.Now().UTC(),
		DueAt:       normalizeTime(dueAt),
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// Validate checks the user-controlled fields of the task.
func (t *Task) Validate() error {
	if t.UserID == 0 {
		return NewValidationError("user_id", "cannot be empty", ErrInvalidID)
	}
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return NewValidationError("title", "cannot be empty", nil)
	}
	if utf8.RuneCountInString(t.Title) > MaxTaskTitleLength {
		return NewValidationError("title", "must be at most 200 characters", nil)
	}
	if !t.Status.Valid() {
		return NewValidationError("status", "must be one of todo, in_progress, done", ErrInvalidTaskStatus)
	}
	if len(t.NotifyJobID) > MaxNotifyJobIDLength {
		return NewValidationError("notify_job_id", "must be at most 64 characters", nil)
	}
	return nil
}

// IsDone reports whether the task is finished.
func (t *Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

// SetDueAt replaces the deadline; nil clears it.
func (t *Task) SetDueAt(dueAt *time.Time) {
	t.DueAt = normalizeTime(dueAt)
}

// SameDueAt reports whether two optional deadlines denote the same instant.
func SameDueAt(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// normalizeTime copies t in UTC truncated to the microsecond, the precision
// Postgres stores, so values compare equal after a round trip.
func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Microsecond)
	return &v
}
