package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
)

// PreviousState is the part of a task read before a mutation. The zero value
// stands for a task that did not exist.
type PreviousState struct {
	DueAt       *time.Time
	NotifyJobID JobHandle
	Status      domain.TaskStatus
}

// PreviousStateOf snapshots task. A nil task yields the zero state.
func PreviousStateOf(task *domain.Task) PreviousState {
	if task == nil {
		return PreviousState{}
	}
	return PreviousState{
		DueAt:       task.DueAt,
		NotifyJobID: JobHandle(task.NotifyJobID),
		Status:      task.Status,
	}
}

// CurrentState is the part of a task written by a mutation.
type CurrentState struct {
	DueAt  *time.Time
	Status domain.TaskStatus
}

// CurrentStateOf extracts the reconciled fields of task.
func CurrentStateOf(task *domain.Task) CurrentState {
	return CurrentState{DueAt: task.DueAt, Status: task.Status}
}

// Action is the outcome class of a reconciliation.
type Action string

// Reconciliation actions.
const (
	// ActionClear leaves the task with no job, cancelling any previous one.
	ActionClear Action = "clear"
	// ActionKeep leaves the previous job untouched.
	ActionKeep Action = "keep"
	// ActionSchedule cancels any previous job and submits a new one.
	ActionSchedule Action = "schedule"
)

// Plan is the decision for one task mutation.
type Plan struct {
	Action Action
	// Cancel is the handle to cancel, or empty.
	Cancel JobHandle
	// Keep is the handle retained by ActionKeep.
	Keep JobHandle
	// ETA is the submit time for ActionSchedule; nil fires immediately.
	ETA *time.Time
}

// Decide maps a previous and current task state to a plan. Rules are checked
// in order and the first match wins:
//
//  1. status is done: clear
//  2. no deadline: clear
//  3. deadline unchanged and a job exists: keep
//  4. otherwise: schedule at the deadline, or immediately if it has passed
//
// A deadline that is unchanged while the previous handle is empty falls
// through to rule 4, which re-submits; this is how a failed submit is healed.
func Decide(prev PreviousState, cur CurrentState, now time.Time) Plan {
	switch {
	case cur.Status == domain.TaskStatusDone:
		return Plan{Action: ActionClear, Cancel: prev.NotifyJobID}
	case cur.DueAt == nil:
		return Plan{Action: ActionClear, Cancel: prev.NotifyJobID}
	case domain.SameDueAt(cur.DueAt, prev.DueAt) && prev.NotifyJobID != "":
		return Plan{Action: ActionKeep, Keep: prev.NotifyJobID}
	}

	plan := Plan{Action: ActionSchedule, Cancel: prev.NotifyJobID}
	if cur.DueAt.After(now) {
		eta := *cur.DueAt
		plan.ETA = &eta
	}
	return plan
}

// Result reports what a reconciliation did.
type Result struct {
	Action Action
	// Handle is the value to persist as the task's notify_job_id.
	Handle JobHandle
	// Changed is true when Handle differs from the previous handle.
	Changed bool
	// CancelErr and SubmitErr hold port failures. A cancel failure does not
	// stop the submit.
	CancelErr error
	SubmitErr error
	// PersistErr is set by the Gate when writing Handle back failed.
	PersistErr error
	// Raced is set by the Gate when a concurrent writer held the row first
	// and the job submitted for this result was cancelled.
	Raced bool
}

// Err joins every failure of the result.
func (r Result) Err() error {
	return errors.Join(r.CancelErr, r.SubmitErr, r.PersistErr)
}

// Reconciler executes plans against a JobPort.
type Reconciler struct {
	port     JobPort
	logger   *slog.Logger
	recorder Recorder
	timeout  time.Duration
	now      func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) ReconcilerOption {
	return func(rc *Reconciler) {
		if r != nil {
			rc.recorder = r
		}
	}
}

// WithPortTimeout bounds every Submit and Cancel call. Zero disables the
// bound.
func WithPortTimeout(d time.Duration) ReconcilerOption {
	return func(rc *Reconciler) {
		rc.timeout = d
	}
}

// WithNow replaces the clock used to decide whether a deadline has passed.
func WithNow(now func() time.Time) ReconcilerOption {
	return func(rc *Reconciler) {
		rc.now = now
	}
}

// NewReconciler returns a Reconciler for port.
func NewReconciler(port JobPort, log *slog.Logger, opts ...ReconcilerOption) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	r := &Reconciler{
		port:     port,
		logger:   log.With("component", "reconciler"),
		recorder: nopRecorder{},
		timeout:  3 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile brings the job for taskID in line with cur. The clock is read
// here, not by the caller, so the decision uses the time of the commit that
// triggered it.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	taskID idgen.ID,
	payload Payload,
	prev PreviousState,
	cur CurrentState,
) Result {
	plan := Decide(prev, cur, r.now())
	log := logger.FromContextOrDefault(ctx, r.logger).With("task_id", taskID.String())

	res := Result{Action: plan.Action}
	switch plan.Action {
	case ActionKeep:
		res.Handle = plan.Keep
	case ActionClear:
		res.CancelErr = r.cancel(ctx, log, plan.Cancel)
	case ActionSchedule:
		res.CancelErr = r.cancel(ctx, log, plan.Cancel)
		res.Handle, res.SubmitErr = r.submit(ctx, log, taskID, payload, plan.ETA)
	}
	res.Changed = res.Handle != prev.NotifyJobID

	r.recorder.RecordReconcile(string(plan.Action))
	log.Debug("reconciled due notification",
		"action", plan.Action,
		"previous_handle", prev.NotifyJobID,
		"handle", res.Handle)
	return res
}

// ReconcileDeletion cancels the job of a deleted task, if it had one.
func (r *Reconciler) ReconcileDeletion(ctx context.Context, taskID idgen.ID, handle JobHandle) error {
	log := logger.FromContextOrDefault(ctx, r.logger).With("task_id", taskID.String())
	return r.cancel(ctx, log, handle)
}

func (r *Reconciler) cancel(ctx context.Context, log *slog.Logger, handle JobHandle) error {
	if handle == "" {
		return nil
	}
	ctx, cancel := r.portContext(ctx)
	defer cancel()

	if err := r.port.Cancel(ctx, handle); err != nil {
		r.recorder.RecordPortError("cancel")
		log.Error("failed to cancel due notification",
			"handle", handle,
			"error", err)
		return err
	}
	return nil
}

func (r *Reconciler) submit(
	ctx context.Context,
	log *slog.Logger,
	taskID idgen.ID,
	payload Payload,
	eta *time.Time,
) (JobHandle, error) {
	ctx, cancel := r.portContext(ctx)
	defer cancel()

	handle, err := r.port.Submit(ctx, taskID, payload, eta)
	if err != nil {
		r.recorder.RecordPortError("submit")
		log.Error("failed to submit due notification",
			"eta", eta,
			"error", err)
		return "", err
	}
	return handle, nil
}

// portContext detaches ctx from the caller's cancellation and applies the
// port timeout. Reconciliation runs after the commit and has to finish even
// when the client has gone away.
func (r *Reconciler) portContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
