package store

import (
	"context"
	"database/sql"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user. The caller assigns the ID and hashes the
	// password. Returns ErrUsernameExists if the username is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id idgen.ID) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	// Returns ErrUserNotFound if the user does not exist.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// WithTx returns a UserStore bound to tx.
	WithTx(tx *sql.Tx) UserStore
}

// BotProfileStore persists the link between users and bot chats.
type BotProfileStore interface {
	// GetByTelegramUserID returns the profile of a chat account.
	// Returns ErrBotProfileNotFound when the account is not linked.
	GetByTelegramUserID(ctx context.Context, telegramUserID int64) (*domain.BotProfile, error)

	// Create links a user to a chat account.
	// Returns ErrBotProfileExists when either side is already linked.
	Create(ctx context.Context, profile *domain.BotProfile) error

	// UpdateChatID changes the chat a profile is delivered to.
	UpdateChatID(ctx context.Context, userID idgen.ID, chatID int64) error

	// WithTx returns a BotProfileStore bound to tx.
	WithTx(tx *sql.Tx) BotProfileStore
}
