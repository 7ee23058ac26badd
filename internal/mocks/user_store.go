package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/store"
)

// MockUserStore implements store.UserStore for testing
type MockUserStore struct {
	CreateFn  func(ctx context.Context, user *domain.User) error
	GetByIDFn func(ctx context.Context, id idgen.ID) (*domain.User, error)

	CreateError error

	mu    sync.Mutex
	Users map[string]*domain.User
}

var _ store.UserStore = (*MockUserStore)(nil)

// NewMockUserStore creates a new mock store with initialized defaults
func NewMockUserStore(users ...*domain.User) *MockUserStore {
	m := &MockUserStore{Users: make(map[string]*domain.User)}
	for _, u := range users {
		m.Users[u.Username] = u
	}
	return m
}

func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, user)
	}
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Users[user.Username]; exists {
		return store.ErrUsernameExists
	}
	u := *user
	u.Password = ""
	m.Users[user.Username] = &u
	return nil
}

func (m *MockUserStore) GetByID(ctx context.Context, id idgen.ID) (*domain.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (m *MockUserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[username]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *MockUserStore) WithTx(_ *sql.Tx) store.UserStore {
	return m
}

// MockBotProfileStore is an in-memory store.BotProfileStore.
type MockBotProfileStore struct {
	mu       sync.Mutex
	Profiles map[int64]*domain.BotProfile
}

var _ store.BotProfileStore = (*MockBotProfileStore)(nil)

// NewMockBotProfileStore returns an empty store.
func NewMockBotProfileStore() *MockBotProfileStore {
	return &MockBotProfileStore{Profiles: make(map[int64]*domain.BotProfile)}
}

func (m *MockBotProfileStore) GetByTelegramUserID(_ context.Context, telegramUserID int64) (*domain.BotProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Profiles[telegramUserID]
	if !ok {
		return nil, store.ErrBotProfileNotFound
	}
	c := *p
	return &c, nil
}

func (m *MockBotProfileStore) Create(_ context.Context, profile *domain.BotProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Profiles {
		if p.TelegramUserID == profile.TelegramUserID || p.ChatID == profile.ChatID || p.UserID == profile.UserID {
			return store.ErrBotProfileExists
		}
	}
	c := *profile
	m.Profiles[profile.TelegramUserID] = &c
	return nil
}

func (m *MockBotProfileStore) UpdateChatID(_ context.Context, userID idgen.ID, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Profiles {
		if p.UserID == userID {
			p.ChatID = chatID
			return nil
		}
	}
	return store.ErrBotProfileNotFound
}

func (m *MockBotProfileStore) WithTx(_ *sql.Tx) store.BotProfileStore {
	return m
}
