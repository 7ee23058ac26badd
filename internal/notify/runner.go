package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ibras0696/m-django-work/internal/config"
	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/schedule"
	"github.com/ibras0696/m-django-work/internal/store"
)

// RunnerConfig holds configuration for the notification runner
type RunnerConfig struct {
	// PollInterval is how often the store is asked for due jobs
	PollInterval time.Duration

	// BatchSize caps the number of jobs claimed per poll
	BatchSize int

	// WorkerCount determines how many deliveries run concurrently
	WorkerCount int

	// QueueSize is the buffer between the poll loop and the workers
	QueueSize int

	// MaxAttempts is the number of deliveries tried before a job fails
	MaxAttempts int

	// RetryDelay is added to the current time when a failed job is re-pended
	RetryDelay time.Duration

	// DeliveryTimeout bounds a single Deliver call
	DeliveryTimeout time.Duration

	// StuckTimeout defines how long a job can be processing before it is
	// considered abandoned and reset
	StuckTimeout time.Duration

	// StuckCheckInterval defines how often to check for stuck jobs
	StuckCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		PollInterval:       time.Second,
		BatchSize:          50,
		WorkerCount:        4,
		QueueSize:          100,
		MaxAttempts:        3,
		RetryDelay:         30 * time.Second,
		DeliveryTimeout:    5 * time.Second,
		StuckTimeout:       5 * time.Minute,
		StuckCheckInterval: time.Minute,
	}
}

// RunnerConfigFrom maps the notify configuration section onto a RunnerConfig.
func RunnerConfigFrom(cfg config.NotifyConfig) RunnerConfig {
	rc := DefaultRunnerConfig()
	rc.PollInterval = cfg.PollInterval
	rc.BatchSize = cfg.BatchSize
	rc.WorkerCount = cfg.WorkerCount
	rc.QueueSize = cfg.QueueSize
	rc.MaxAttempts = cfg.MaxAttempts
	rc.RetryDelay = cfg.RetryDelay
	rc.DeliveryTimeout = cfg.DeliveryTimeout
	rc.StuckTimeout = cfg.StuckTimeout
	return rc
}

func (c *RunnerConfig) applyDefaults() {
	d := DefaultRunnerConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = d.DeliveryTimeout
	}
	if c.StuckTimeout <= 0 {
		c.StuckTimeout = d.StuckTimeout
	}
	// A live delivery must never look abandoned.
	if c.StuckTimeout <= c.DeliveryTimeout {
		c.StuckTimeout = 2 * c.DeliveryTimeout
	}
	if c.StuckCheckInterval <= 0 {
		c.StuckCheckInterval = d.StuckCheckInterval
	}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerRecorder sets the metrics sink.
func WithRunnerRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithRunnerClock replaces time.Now.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithHandleGenerator replaces the UUID generator used for job ids.
func WithHandleGenerator(gen func() string) RunnerOption {
	return func(r *Runner) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// Runner is a Postgres-backed delayed job executor. It satisfies
// schedule.JobPort; Submit and Cancel work whether or not the runner has
// been started.
type Runner struct {
	store     JobStore
	tasks     TaskLookup
	deliverer Deliverer
	config    RunnerConfig
	logger    *slog.Logger
	recorder  Recorder
	now       func() time.Time
	newID     func() string

	queue *jobQueue
	wake  chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

var _ schedule.JobPort = (*Runner)(nil)

// NewRunner creates a new Runner
func NewRunner(
	jobs JobStore,
	tasks TaskLookup,
	deliverer Deliverer,
	cfg RunnerConfig,
	logger *slog.Logger,
	opts ...RunnerOption,
) (*Runner, error) {
	if jobs == nil {
		return nil, domain.NewValidationError("jobs", "cannot be nil", nil)
	}
	if tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", nil)
	}
	if deliverer == nil {
		return nil, domain.NewValidationError("deliverer", "cannot be nil", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	logger = logger.With("component", "notify_runner")

	r := &Runner{
		store:     jobs,
		tasks:     tasks,
		deliverer: deliverer,
		config:    cfg,
		logger:    logger,
		recorder:  nopRecorder{},
		now:       time.Now,
		newID:     uuid.NewString,
		queue:     newJobQueue(cfg.QueueSize, logger),
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Submit persists a pending job that fires at eta, or immediately when eta
// is nil or already past.
func (r *Runner) Submit(
	ctx context.Context,
	taskID idgen.ID,
	payload schedule.Payload,
	eta *time.Time,
) (schedule.JobHandle, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode notification payload: %w", err)
	}

	now := r.now().UTC()
	fireAt := now
	if eta != nil && eta.After(now) {
		fireAt = eta.UTC()
	}

	job := &Job{
		ID:        r.newID(),
		TaskID:    taskID,
		Payload:   body,
		FireAt:    fireAt,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to save notification job: %w", err)
	}

	r.logger.DebugContext(ctx, "notification job submitted",
		"job_id", job.ID,
		"task_id", taskID,
		"fire_at", fireAt)

	if !fireAt.After(now) {
		r.nudge()
	}
	return schedule.JobHandle(job.ID), nil
}

// Cancel withdraws a pending job. Unknown, delivered and already cancelled
// handles are not errors.
func (r *Runner) Cancel(ctx context.Context, handle schedule.JobHandle) error {
	if handle == "" {
		return nil
	}
	cancelled, err := r.store.CancelJob(ctx, string(handle))
	if err != nil {
		return fmt.Errorf("failed to cancel notification job: %w", err)
	}
	if !cancelled {
		r.logger.DebugContext(ctx, "no pending notification job to cancel", "job_id", handle)
	}
	return nil
}

// Start recovers jobs left processing by a previous process and launches the
// poll loop, the stuck job monitor and the workers. They run until ctx is
// cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("notification runner already started")
	}

	if err := r.recoverInterrupted(ctx); err != nil {
		return fmt.Errorf("failed to recover notification jobs: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.started = true

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(runCtx, i)
	}

	r.wg.Add(2)
	go r.pollLoop(runCtx)
	go r.stuckJobMonitor(runCtx)

	r.logger.InfoContext(ctx, "notification runner started",
		"workers", r.config.WorkerCount,
		"poll_interval", r.config.PollInterval)
	return nil
}

// Stop signals the loops to exit, waits for in-flight deliveries, and
// returns buffered but unprocessed jobs to pending.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()

	ctx := context.Background()
	for _, job := range r.queue.Close(ctx) {
		if err := r.store.ReleaseJob(ctx, job.ID); err != nil {
			r.logger.ErrorContext(ctx, "failed to release unprocessed job",
				"job_id", job.ID,
				"error", err)
		}
	}
	r.logger.InfoContext(ctx, "notification runner stopped")
}

// recoverInterrupted resets processing jobs older than StuckTimeout before
// any worker starts. Other replicas share the table, so a recent claim may
// belong to a delivery still in flight elsewhere and is left alone; the stuck
// job monitor picks it up once it ages out.
func (r *Runner) recoverInterrupted(ctx context.Context) error {
	n, err := r.resetStuck(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "recovered interrupted notification jobs", "count", n)
	}
	return nil
}

func (r *Runner) resetStuck(ctx context.Context) (int64, error) {
	return r.store.ResetStuckJobs(ctx, r.now().UTC().Add(-r.config.StuckTimeout))
}

func (r *Runner) nudge() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) pollLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		r.poll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

// poll claims as many due jobs as the queue can take and hands them over.
func (r *Runner) poll(ctx context.Context) {
	limit := min(r.config.BatchSize, r.queue.Free())
	if limit <= 0 {
		return
	}

	jobs, err := r.store.ClaimDueJobs(ctx, r.now().UTC(), limit)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "failed to claim due notification jobs", "error", err)
		}
		return
	}

	for _, job := range jobs {
		if err := r.queue.TryEnqueue(job); err != nil {
			r.logger.WarnContext(ctx, "could not enqueue claimed job, releasing it",
				"job_id", job.ID,
				"error", err)
			if relErr := r.store.ReleaseJob(context.WithoutCancel(ctx), job.ID); relErr != nil {
				r.logger.ErrorContext(ctx, "failed to release claimed job",
					"job_id", job.ID,
					"error", relErr)
			}
		}
	}
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return
		case job, ok := <-r.queue.Channel():
			if !ok {
				return
			}
			// In-flight work finishes even when shutdown starts.
			r.process(context.WithoutCancel(ctx), job, id)
		}
	}
}

// process checks that the task still wants this notification, delivers it
// and records the outcome.
func (r *Runner) process(ctx context.Context, job *Job, workerID int) {
	r.recorder.JobStarted()
	defer r.recorder.JobFinished()

	log := r.logger.With(
		"job_id", job.ID,
		"task_id", job.TaskID,
		"attempt", job.Attempts,
		"worker_id", workerID,
	)

	payload, err := job.DecodePayload()
	if err != nil {
		log.ErrorContext(ctx, "undecodable notification payload", "error", err)
		r.finish(ctx, log, job, OutcomeFailed, func() error {
			return r.store.FailJob(ctx, job.ID, "invalid payload: "+err.Error())
		})
		return
	}

	reason, err := r.staleReason(ctx, job, payload)
	if err != nil {
		r.retryOrFail(ctx, log, job, fmt.Errorf("task lookup failed: %w", err))
		return
	}
	if reason != "" {
		log.InfoContext(ctx, "skipping stale notification", "reason", reason)
		r.finish(ctx, log, job, OutcomeSkipped, func() error {
			return r.store.CompleteJob(ctx, job.ID, "skipped: "+reason)
		})
		return
	}

	deliverCtx, cancel := context.WithTimeout(ctx, r.config.DeliveryTimeout)
	start := time.Now()
	err = r.deliverer.Deliver(deliverCtx, job.ID, payload)
	cancel()
	r.recorder.ObserveDelivery(time.Since(start))

	if err != nil {
		r.retryOrFail(ctx, log, job, err)
		return
	}

	log.InfoContext(ctx, "notification delivered")
	r.finish(ctx, log, job, OutcomeDelivered, func() error {
		return r.store.CompleteJob(ctx, job.ID, "")
	})
}

// staleReason returns a non-empty reason when the task no longer wants the
// notification carried by job.
func (r *Runner) staleReason(ctx context.Context, job *Job, payload schedule.Payload) (string, error) {
	task, err := r.tasks.GetTask(ctx, job.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "task deleted", nil
		}
		return "", err
	}

	switch {
	case task.NotifyJobID != "" && task.NotifyJobID != job.ID:
		return "superseded by " + task.NotifyJobID, nil
	case task.IsDone():
		return "task done", nil
	case task.DueAt == nil:
		return "deadline cleared", nil
	case task.DueAt.After(r.now()):
		return "deadline moved later", nil
	case !domain.SameDueAt(task.DueAt, payload.DueAt):
		return "deadline changed", nil
	}
	return "", nil
}

func (r *Runner) retryOrFail(ctx context.Context, log *slog.Logger, job *Job, cause error) {
	if job.Attempts >= r.config.MaxAttempts {
		log.ErrorContext(ctx, "notification failed permanently", "error", cause)
		r.finish(ctx, log, job, OutcomeFailed, func() error {
			return r.store.FailJob(ctx, job.ID, cause.Error())
		})
		return
	}

	fireAt := r.now().UTC().Add(r.config.RetryDelay)
	log.WarnContext(ctx, "notification delivery failed, will retry",
		"error", cause,
		"retry_at", fireAt)
	r.finish(ctx, log, job, OutcomeRetried, func() error {
		return r.store.RetryJob(ctx, job.ID, fireAt, cause.Error())
	})
}

func (r *Runner) finish(ctx context.Context, log *slog.Logger, job *Job, outcome string, update func() error) {
	r.recorder.RecordJob(outcome)
	if err := update(); err != nil {
		log.ErrorContext(ctx, "failed to update notification job",
			"outcome", outcome,
			"error", err)
	}
}

// stuckJobMonitor periodically resets jobs that have been processing for
// longer than StuckTimeout, for example after another replica crashed.
func (r *Runner) stuckJobMonitor(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.resetStuck(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.ErrorContext(ctx, "failed to reset stuck jobs", "error", err)
				}
				continue
			}
			if n > 0 {
				r.logger.InfoContext(ctx, "reset stuck notification jobs", "count", n)
				r.nudge()
			}
		}
	}
}
