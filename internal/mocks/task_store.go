package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/store"
)

// MockTaskStore is an in-memory store.TaskStore.
type MockTaskStore struct {
	CreateFn func(ctx context.Context, task *domain.Task) error
	UpdateFn func(ctx context.Context, task *domain.Task) error

	// Error injection.
	CreateErr          error
	UpdateErr          error
	GetForUpdateErr    error
	SwapErr            error
	ListUnscheduledErr error
	SwapCalls          int

	// BeforeSwapFn runs before every SwapNotifyJobID, outside the lock, so a
	// test can interleave another writer.
	BeforeSwapFn func(ctx context.Context, swap store.HandleSwap)

	mu    sync.Mutex
	tasks map[idgen.ID]*domain.Task
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore returns an empty store.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[idgen.ID]*domain.Task)}
}

func copyTask(t *domain.Task) *domain.Task {
	c := *t
	c.CategoryIDs = append([]idgen.ID(nil), t.CategoryIDs...)
	if t.DueAt != nil {
		d := *t.DueAt
		c.DueAt = &d
	}
	return &c
}

// Put stores task as is, bypassing validation. Used to seed tests.
func (m *MockTaskStore) Put(task *domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = copyTask(task)
}

// Stored returns a copy of the stored task, or nil.
func (m *MockTaskStore) Stored(id idgen.ID) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil
	}
	return copyTask(t)
}

func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if task.ID == 0 {
		return store.ErrInvalidEntity
	}
	m.Put(task)
	return nil
}

func (m *MockTaskStore) GetByID(_ context.Context, userID, id idgen.ID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return nil, store.ErrTaskNotFound
	}
	return copyTask(t), nil
}

func (m *MockTaskStore) List(_ context.Context, f store.TaskFilter) ([]*domain.Task, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Task
	for _, t := range m.tasks {
		if f.UserID != 0 && t.UserID != f.UserID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.CategoryID != 0 && !containsID(t.CategoryIDs, f.CategoryID) {
			continue
		}
		if f.DueBefore != nil && (t.DueAt == nil || t.DueAt.After(*f.DueBefore)) {
			continue
		}
		if f.DueAfter != nil && (t.DueAt == nil || t.DueAt.Before(*f.DueAfter)) {
			continue
		}
		matched = append(matched, copyTask(t))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := min(f.Page.Offset, total)
	end := total
	if f.Page.Limit > 0 {
		end = min(start+f.Page.Limit, total)
	}
	return matched[start:end], total, nil
}

func (m *MockTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, task)
	}
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return store.ErrTaskNotFound
	}
	c := copyTask(task)
	c.NotifyJobID = existing.NotifyJobID
	m.tasks[task.ID] = c
	return nil
}

func (m *MockTaskStore) Delete(_ context.Context, userID, id idgen.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return store.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *MockTaskStore) GetTaskForUpdate(ctx context.Context, id idgen.ID) (*domain.Task, error) {
	if m.GetForUpdateErr != nil {
		return nil, m.GetForUpdateErr
	}
	return m.GetTask(ctx, id)
}

func (m *MockTaskStore) GetTask(_ context.Context, id idgen.ID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return copyTask(t), nil
}

func (m *MockTaskStore) SwapNotifyJobID(ctx context.Context, swap store.HandleSwap) (bool, error) {
	if m.BeforeSwapFn != nil {
		m.BeforeSwapFn(ctx, swap)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SwapCalls++
	if m.SwapErr != nil {
		return false, m.SwapErr
	}
	t, ok := m.tasks[swap.TaskID]
	if !ok || t.NotifyJobID != swap.Old || t.IsDone() != swap.Done || !domain.SameDueAt(t.DueAt, swap.DueAt) {
		return false, nil
	}
	t.NotifyJobID = swap.New
	return true, nil
}

func (m *MockTaskStore) ListUnscheduledTasks(_ context.Context, now time.Time, limit int) ([]*domain.Task, error) {
	if m.ListUnscheduledErr != nil {
		return nil, m.ListUnscheduledErr
	}
	return m.collect(limit, func(t *domain.Task) bool {
		return !t.IsDone() && t.DueAt != nil && t.DueAt.After(now) && t.NotifyJobID == ""
	}), nil
}

func (m *MockTaskStore) ListTasksWithStaleHandles(_ context.Context, limit int) ([]*domain.Task, error) {
	return m.collect(limit, func(t *domain.Task) bool {
		return t.NotifyJobID != "" && (t.IsDone() || t.DueAt == nil)
	}), nil
}

func (m *MockTaskStore) collect(limit int, keep func(*domain.Task) bool) []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, t := range m.tasks {
		if keep(t) {
			out = append(out, copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// WithTx returns the same store; tests run transactions against sqlmock.
func (m *MockTaskStore) WithTx(_ *sql.Tx) store.TaskStore {
	return m
}

func containsID(ids []idgen.ID, id idgen.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
