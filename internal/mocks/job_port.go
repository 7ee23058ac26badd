package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/schedule"
)

// SubmitCall records one Submit.
type SubmitCall struct {
	TaskID  idgen.ID
	Payload schedule.Payload
	ETA     *time.Time
	Handle  schedule.JobHandle
}

// MockJobPort implements schedule.JobPort, recording every call.
type MockJobPort struct {
	SubmitFn func(ctx context.Context, taskID idgen.ID, payload schedule.Payload, eta *time.Time) (schedule.JobHandle, error)
	CancelFn func(ctx context.Context, handle schedule.JobHandle) error

	// SubmitErr and CancelErr make every call fail when set.
	SubmitErr error
	CancelErr error

	mu        sync.Mutex
	next      int
	submits   []SubmitCall
	cancels   []schedule.JobHandle
	cancelled map[schedule.JobHandle]bool
}

// NewMockJobPort returns a port issuing handles job-1, job-2, ...
func NewMockJobPort() *MockJobPort {
	return &MockJobPort{cancelled: make(map[schedule.JobHandle]bool)}
}

// Submit implements schedule.JobPort.
func (m *MockJobPort) Submit(ctx context.Context, taskID idgen.ID, payload schedule.Payload, eta *time.Time) (schedule.JobHandle, error) {
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, taskID, payload, eta)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitErr != nil {
		m.submits = append(m.submits, SubmitCall{TaskID: taskID, Payload: payload, ETA: eta})
		return "", m.SubmitErr
	}
	m.next++
	h := schedule.JobHandle(fmt.Sprintf("job-%d", m.next))
	m.submits = append(m.submits, SubmitCall{TaskID: taskID, Payload: payload, ETA: eta, Handle: h})
	return h, nil
}

// Cancel implements schedule.JobPort. Unknown handles succeed.
func (m *MockJobPort) Cancel(ctx context.Context, handle schedule.JobHandle) error {
	if m.CancelFn != nil {
		return m.CancelFn(ctx, handle)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels = append(m.cancels, handle)
	if m.CancelErr != nil {
		return m.CancelErr
	}
	m.cancelled[handle] = true
	return nil
}

// Submits returns a copy of the recorded Submit calls.
func (m *MockJobPort) Submits() []SubmitCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SubmitCall(nil), m.submits...)
}

// Cancels returns a copy of the handles passed to Cancel.
func (m *MockJobPort) Cancels() []schedule.JobHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schedule.JobHandle(nil), m.cancels...)
}

// Live returns submitted handles that were not cancelled.
func (m *MockJobPort) Live() []schedule.JobHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	var live []schedule.JobHandle
	for _, s := range m.submits {
		if s.Handle != "" && !m.cancelled[s.Handle] {
			live = append(live, s.Handle)
		}
	}
	return live
}

// SequenceIDs implements schedule.IDSource with consecutive ids after Last.
type SequenceIDs struct {
	mu   sync.Mutex
	Last idgen.ID
}

// Next returns the next id.
func (s *SequenceIDs) Next() idgen.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Last++
	return s.Last
}
