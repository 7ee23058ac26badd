package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
)

// TaskFilter narrows a task listing. Zero fields do not filter. Deadline
// bounds are inclusive.
type TaskFilter struct {
	UserID     idgen.ID
	Status     domain.TaskStatus
	CategoryID idgen.ID
	DueBefore  *time.Time
	DueAfter   *time.Time
	Page       Page
}

// HandleSwap is a compare-and-set of a task's notification handle. It
// applies only while the row still holds Old and the deadline and done-ness
// that New was scheduled for.
type HandleSwap struct {
	TaskID idgen.ID
	Old    string
	New    string
	DueAt  *time.Time
	Done   bool
}

// TaskStore defines the interface for task persistence.
//
// Methods taking a userID only see that user's tasks; other users' tasks are
// reported as ErrTaskNotFound. The unscoped methods serve the notification
// machinery.
type TaskStore interface {
	// Create inserts a task and its category links. The ID must be set.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID returns the user's task with its category ids.
	GetByID(ctx context.Context, userID, id idgen.ID) (*domain.Task, error)

	// List returns one page of tasks, newest first, and the total.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, int, error)

	// Update writes the user-editable fields and replaces the category links.
	// notify_job_id is not written.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes the user's task.
	Delete(ctx context.Context, userID, id idgen.ID) error

	// GetTaskForUpdate loads any task and locks its row for the rest of the
	// transaction.
	GetTaskForUpdate(ctx context.Context, id idgen.ID) (*domain.Task, error)

	// GetTask loads any task without locking.
	GetTask(ctx context.Context, id idgen.ID) (*domain.Task, error)

	// SwapNotifyJobID writes only the notification handle, and only when the
	// row matches swap. It reports whether the row was updated; a missing task
	// is reported as false.
	SwapNotifyJobID(ctx context.Context, swap HandleSwap) (bool, error)

	// ListUnscheduledTasks returns open tasks due after now without a handle.
	ListUnscheduledTasks(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error)

	// ListTasksWithStaleHandles returns tasks holding a handle while done or
	// without a deadline.
	ListTasksWithStaleHandles(ctx context.Context, limit int) ([]*domain.Task, error)

	// WithTx returns a TaskStore bound to tx.
	WithTx(tx *sql.Tx) TaskStore
}
