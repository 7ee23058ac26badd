package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the job queue
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// jobQueue is the bounded hand-off between the poll loop and the workers.
type jobQueue struct {
	mu     sync.Mutex
	jobs   chan *Job
	logger *slog.Logger
	closed bool
}

func newJobQueue(size int, logger *slog.Logger) *jobQueue {
	return &jobQueue{
		jobs:   make(chan *Job, size),
		logger: logger,
	}
}

// Free reports how many more jobs fit without blocking.
func (q *jobQueue) Free() int {
	return cap(q.jobs) - len(q.jobs)
}

// TryEnqueue adds a job without blocking.
func (q *jobQueue) TryEnqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		q.logger.Debug("job enqueued",
			"job_id", job.ID,
			"task_id", job.TaskID,
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Channel returns the receive side for workers.
func (q *jobQueue) Channel() <-chan *Job {
	return q.jobs
}

// Close stops further submission and returns the jobs still buffered.
func (q *jobQueue) Close(ctx context.Context) []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.jobs)

	var left []*Job
	for job := range q.jobs {
		left = append(left, job)
	}
	q.logger.InfoContext(ctx, "job queue closed", "unprocessed", len(left))
	return left
}
