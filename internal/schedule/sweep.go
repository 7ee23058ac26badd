package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ibras0696/m-django-work/internal/domain"
)

// SweepStore lists tasks whose notification state needs attention.
type SweepStore interface {
	// ListUnscheduledTasks returns tasks that are not done, have a deadline
	// after now and hold no handle.
	ListUnscheduledTasks(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error)
	// ListTasksWithStaleHandles returns tasks holding a handle while done or
	// without a deadline.
	ListTasksWithStaleHandles(ctx context.Context, limit int) ([]*domain.Task, error)
	HandleWriter
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Scanned     int `json:"scanned" yaml:"scanned"`
	Rescheduled int `json:"rescheduled" yaml:"rescheduled"`
	Raced       int `json:"raced" yaml:"raced"`
	Failed      int `json:"failed" yaml:"failed"`
	Violations  int `json:"violations" yaml:"violations"`
}

// Sweeper re-submits notifications lost to job port failures and reports
// tasks that break the handle invariants.
type Sweeper struct {
	gate      *Gate
	store     SweepStore
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// NewSweeper returns a Sweeper that handles up to batchSize tasks of each
// kind per sweep.
func NewSweeper(gate *Gate, st SweepStore, batchSize int, log *slog.Logger) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		gate:      gate,
		store:     st,
		batchSize: batchSize,
		now:       time.Now,
		logger:    log.With("component", "sweeper"),
	}
}

// Sweep runs one pass. Failures on single tasks are counted in the report;
// the error is non-nil only when listing failed.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	tasks, err := s.store.ListUnscheduledTasks(ctx, s.now(), s.batchSize)
	if err != nil {
		return report, fmt.Errorf("failed to list unscheduled tasks: %w", err)
	}
	for _, task := range tasks {
		report.Scanned++
		s.reschedule(ctx, task, &report)
	}

	stale, err := s.store.ListTasksWithStaleHandles(ctx, s.batchSize)
	if err != nil {
		return report, fmt.Errorf("failed to list tasks with stale handles: %w", err)
	}
	for _, task := range stale {
		report.Scanned++
		if s.gate.CheckInvariant(ctx, task) != nil {
			report.Violations++
		}
	}

	if report.Scanned > 0 {
		s.logger.Info("sweep finished",
			"scanned", report.Scanned,
			"rescheduled", report.Rescheduled,
			"raced", report.Raced,
			"failed", report.Failed,
			"violations", report.Violations)
	}
	return report, nil
}

// reschedule submits a job for a task found without one. It goes through the
// same guarded write-back as the write path, so a writer that commits in the
// meantime keeps the task to a single job.
func (s *Sweeper) reschedule(ctx context.Context, task *domain.Task, report *SweepReport) {
	res := s.gate.CompleteMutation(ctx, s.store, PreviousStateOf(task), task)
	switch {
	case res.SubmitErr != nil, res.PersistErr != nil:
		report.Failed++
	case res.Raced:
		report.Raced++
	case res.Handle == "":
		report.Failed++
	default:
		report.Rescheduled++
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}
