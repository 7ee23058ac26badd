package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ibras0696/m-django-work/internal/notify"
	"github.com/ibras0696/m-django-work/internal/store"
)

// MockJobStore is an in-memory notify.JobStore.
type MockJobStore struct {
	mu   sync.Mutex
	jobs map[string]*notify.Job

	CreateErr error
	CancelErr error
	ClaimErr  error
	UpdateErr error

	// Now stamps updated_at; defaults to time.Now.
	Now func() time.Time
}

var _ notify.JobStore = (*MockJobStore)(nil)

// NewMockJobStore returns an empty store.
func NewMockJobStore() *MockJobStore {
	return &MockJobStore{jobs: make(map[string]*notify.Job)}
}

func (m *MockJobStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Job returns a copy of the stored job, or nil.
func (m *MockJobStore) Job(id string) *notify.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

// Put stores job as is, for seeding.
func (m *MockJobStore) Put(job *notify.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
}

// CountByStatus reports how many jobs have status.
func (m *MockJobStore) CountByStatus(status notify.JobStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.Status == status {
			n++
		}
	}
	return n
}

func (m *MockJobStore) CreateJob(_ context.Context, job *notify.Job) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Put(job)
	return nil
}

func (m *MockJobStore) CancelJob(_ context.Context, id string) (bool, error) {
	if m.CancelErr != nil {
		return false, m.CancelErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != notify.JobStatusPending {
		return false, nil
	}
	j.Status = notify.JobStatusCancelled
	j.UpdatedAt = m.now()
	return true, nil
}

func (m *MockJobStore) ClaimDueJobs(_ context.Context, now time.Time, limit int) ([]*notify.Job, error) {
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*notify.Job
	for _, j := range m.jobs {
		if j.Status == notify.JobStatusPending && !j.FireAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool { return due[a].FireAt.Before(due[b].FireAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*notify.Job, 0, len(due))
	for _, j := range due {
		j.Status = notify.JobStatusProcessing
		j.Attempts++
		j.UpdatedAt = m.now()
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockJobStore) update(id string, fn func(j *notify.Job)) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	fn(j)
	j.UpdatedAt = m.now()
	return nil
}

func (m *MockJobStore) CompleteJob(_ context.Context, id string, note string) error {
	return m.update(id, func(j *notify.Job) {
		j.Status = notify.JobStatusCompleted
		j.LastError = note
	})
}

func (m *MockJobStore) RetryJob(_ context.Context, id string, fireAt time.Time, lastErr string) error {
	return m.update(id, func(j *notify.Job) {
		j.Status = notify.JobStatusPending
		j.FireAt = fireAt
		j.LastError = lastErr
	})
}

func (m *MockJobStore) FailJob(_ context.Context, id string, lastErr string) error {
	return m.update(id, func(j *notify.Job) {
		j.Status = notify.JobStatusFailed
		j.LastError = lastErr
	})
}

func (m *MockJobStore) ReleaseJob(_ context.Context, id string) error {
	return m.update(id, func(j *notify.Job) {
		j.Status = notify.JobStatusPending
		if j.Attempts > 0 {
			j.Attempts--
		}
	})
}

func (m *MockJobStore) ResetStuckJobs(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, j := range m.jobs {
		if j.Status == notify.JobStatusProcessing && !j.UpdatedAt.After(olderThan) {
			j.Status = notify.JobStatusPending
			j.UpdatedAt = m.now()
			n++
		}
	}
	return n, nil
}
