package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/store"
)

// ErrInvariantViolation is reported when a task holds a notification handle
// it must not hold.
var ErrInvariantViolation = errors.New("notification invariant violated")

// Invariant violation kinds, used as metric labels.
const (
	ViolationDoneWithHandle  = "done_with_handle"
	ViolationNoDueWithHandle = "no_due_with_handle"
)

// IDSource allocates ids. *idgen.Allocator satisfies it.
type IDSource interface {
	Next() idgen.ID
}

// StateReader loads a task before it is mutated, regardless of owner.
// A missing task is reported with an error wrapping store.ErrNotFound.
type StateReader interface {
	GetTaskForUpdate(ctx context.Context, taskID idgen.ID) (*domain.Task, error)
}

// HandleWriter persists the notification handle of a task with a
// compare-and-set and reloads the committed task when the swap loses.
type HandleWriter interface {
	GetTask(ctx context.Context, taskID idgen.ID) (*domain.Task, error)
	SwapNotifyJobID(ctx context.Context, swap store.HandleSwap) (bool, error)
}

// maxSwapAttempts bounds the retries of a handle write-back that keeps
// losing to concurrent writers of the same state.
const maxSwapAttempts = 3

var errSwapContended = errors.New("notification handle write-back kept losing to concurrent writers")

// Gate brackets every task write. Services call BeginMutation and AssignID
// inside their transaction and CompleteMutation or CompleteDeletion after it
// commits.
type Gate struct {
	ids        IDSource
	reconciler *Reconciler
	recorder   Recorder
	logger     *slog.Logger
}

// NewGate returns a Gate. recorder may be nil.
func NewGate(ids IDSource, reconciler *Reconciler, recorder Recorder, log *slog.Logger) (*Gate, error) {
	if ids == nil {
		return nil, domain.NewValidationError("ids", "cannot be nil", nil)
	}
	if reconciler == nil {
		return nil, domain.NewValidationError("reconciler", "cannot be nil", nil)
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		ids:        ids,
		reconciler: reconciler,
		recorder:   recorder,
		logger:     log.With("component", "task_write_gate"),
	}, nil
}

// BeginMutation snapshots the task about to be written. A zero id, or a task
// that no longer exists, yields the zero state and the write is treated as a
// creation.
func (g *Gate) BeginMutation(ctx context.Context, reader StateReader, taskID idgen.ID) (PreviousState, error) {
	if taskID == 0 {
		return PreviousState{}, nil
	}
	task, err := reader.GetTaskForUpdate(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return PreviousState{}, nil
		}
		return PreviousState{}, fmt.Errorf("failed to read task %s before write: %w", taskID, err)
	}
	return PreviousStateOf(task), nil
}

// AssignID gives task a fresh id if it has none. Ids only come from the
// allocator.
func (g *Gate) AssignID(task *domain.Task) {
	if task.ID == 0 {
		task.ID = g.ids.Next()
	}
}

// CompleteMutation reconciles the committed task against prev and writes the
// resulting handle back when it changed. It never fails the caller: every
// error is logged, counted and returned only inside the Result. On return
// task.NotifyJobID holds the handle the row is meant to hold.
//
// The write-back is a compare-and-set on the previous handle and on the
// deadline the new job serves. When another writer or the sweeper got there
// first, the committed row decides: a row in a different state belongs to a
// later write, which reconciles it, and a row already scheduled for this state
// keeps its job. Either way the job submitted here is cancelled, so a task
// never holds more than one live job.
func (g *Gate) CompleteMutation(ctx context.Context, writer HandleWriter, prev PreviousState, task *domain.Task) Result {
	res := g.reconciler.Reconcile(ctx, task.ID, NewPayload(task), prev, CurrentStateOf(task))
	task.NotifyJobID = string(res.Handle)
	if !res.Changed {
		return res
	}

	ctx = context.WithoutCancel(ctx)
	log := logger.FromContextOrDefault(ctx, g.logger).With("task_id", task.ID.String())
	swap := store.HandleSwap{
		TaskID: task.ID,
		Old:    string(prev.NotifyJobID),
		New:    string(res.Handle),
		DueAt:  task.DueAt,
		Done:   task.IsDone(),
	}

	for attempt := 1; ; attempt++ {
		swapped, err := writer.SwapNotifyJobID(ctx, swap)
		if err != nil {
			return g.persistFailed(log, res, err)
		}
		if swapped {
			if swap.Old != string(prev.NotifyJobID) {
				// The displaced handle was written concurrently and is not
				// valid for this state.
				_ = g.reconciler.ReconcileDeletion(ctx, task.ID, JobHandle(swap.Old))
			}
			return res
		}

		cur, err := writer.GetTask(ctx, task.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return g.yield(ctx, log, res, task, "", "task deleted")
		case err != nil:
			return g.persistFailed(log, res, err)
		case cur.IsDone() != swap.Done || !domain.SameDueAt(cur.DueAt, swap.DueAt):
			return g.yield(ctx, log, res, task, JobHandle(cur.NotifyJobID), "superseded by a later write")
		case cur.NotifyJobID == swap.New:
			return res
		case cur.NotifyJobID != "" && swap.New != "":
			return g.yield(ctx, log, res, task, JobHandle(cur.NotifyJobID), "already scheduled")
		case attempt == maxSwapAttempts:
			return g.persistFailed(log, res, errSwapContended)
		}
		swap.Old = cur.NotifyJobID
	}
}

// yield gives up the handle produced by res in favour of the handle the row
// already holds.
func (g *Gate) yield(
	ctx context.Context,
	log *slog.Logger,
	res Result,
	task *domain.Task,
	held JobHandle,
	reason string,
) Result {
	if res.Handle != held {
		_ = g.reconciler.ReconcileDeletion(ctx, task.ID, res.Handle)
	}
	log.Info("notification handle write-back lost",
		"reason", reason,
		"discarded", res.Handle,
		"held", held)

	res.Raced = true
	res.Handle = held
	task.NotifyJobID = string(held)
	return res
}

func (g *Gate) persistFailed(log *slog.Logger, res Result, err error) Result {
	res.PersistErr = err
	g.recorder.RecordHandlePersistError()
	log.Error("failed to persist notification handle",
		"handle", res.Handle,
		"error", err)
	return res
}

// CompleteDeletion cancels the job of a task that has been deleted.
func (g *Gate) CompleteDeletion(ctx context.Context, taskID idgen.ID, prev PreviousState) error {
	return g.reconciler.ReconcileDeletion(ctx, taskID, prev.NotifyJobID)
}

// CheckInvariant reports a task that holds a handle while done or without a
// deadline. Nothing is repaired.
func (g *Gate) CheckInvariant(ctx context.Context, task *domain.Task) error {
	if task.NotifyJobID == "" {
		return nil
	}

	var kind string
	switch {
	case task.IsDone():
		kind = ViolationDoneWithHandle
	case task.DueAt == nil:
		kind = ViolationNoDueWithHandle
	default:
		return nil
	}

	g.recorder.RecordInvariantViolation(kind)
	logger.FromContextOrDefault(ctx, g.logger).Error("task holds a notification handle it must not hold",
		"task_id", task.ID.String(),
		"kind", kind,
		"handle", task.NotifyJobID)
	return fmt.Errorf("%w: task %s: %s", ErrInvariantViolation, task.ID, kind)
}
