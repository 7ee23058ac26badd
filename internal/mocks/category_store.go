package mocks

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/store"
)

// MockCategoryStore is an in-memory store.CategoryStore.
type MockCategoryStore struct {
	mu         sync.Mutex
	categories map[idgen.ID]*domain.Category
}

var _ store.CategoryStore = (*MockCategoryStore)(nil)

// NewMockCategoryStore returns a store seeded with categories.
func NewMockCategoryStore(categories ...*domain.Category) *MockCategoryStore {
	m := &MockCategoryStore{categories: make(map[idgen.ID]*domain.Category)}
	for _, c := range categories {
		cc := *c
		m.categories[c.ID] = &cc
	}
	return m
}

func (m *MockCategoryStore) Create(_ context.Context, c *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return store.ErrCategoryNameExists
		}
	}
	cc := *c
	m.categories[c.ID] = &cc
	return nil
}

func (m *MockCategoryStore) GetByID(_ context.Context, id idgen.ID) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, store.ErrCategoryNotFound
	}
	cc := *c
	return &cc, nil
}

func (m *MockCategoryStore) List(_ context.Context, page store.Page) ([]*domain.Category, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		cc := *c
		all = append(all, &cc)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	start := min(page.Offset, total)
	end := total
	if page.Limit > 0 {
		end = min(start+page.Limit, total)
	}
	return all[start:end], total, nil
}

func (m *MockCategoryStore) Update(_ context.Context, c *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[c.ID]; !ok {
		return store.ErrCategoryNotFound
	}
	for id, existing := range m.categories {
		if id != c.ID && strings.EqualFold(existing.Name, c.Name) {
			return store.ErrCategoryNameExists
		}
	}
	cc := *c
	m.categories[c.ID] = &cc
	return nil
}

func (m *MockCategoryStore) Delete(_ context.Context, id idgen.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return store.ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *MockCategoryStore) ExistingIDs(_ context.Context, ids []idgen.ID) ([]idgen.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []idgen.ID
	seen := make(map[idgen.ID]bool)
	for _, id := range ids {
		if _, ok := m.categories[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *MockCategoryStore) WithTx(_ *sql.Tx) store.CategoryStore {
	return m
}
