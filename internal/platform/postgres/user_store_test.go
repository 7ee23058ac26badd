package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/store"
)

func TestPostgresUserStore_Create(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresUserStore(db, quietLogger())
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	user := &domain.User{ID: 1, Username: "alice", Email: "alice@example.com", Password: "s3cretpass", HashedPassword: "$2a$hash", CreatedAt: created}

	mock.ExpectExec(q("INSERT INTO users")).
		WithArgs(int64(1), "alice", "alice@example.com", "$2a$hash", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), user))
	assert.Empty(t, user.Password, "plaintext is cleared after insert")
}

func TestPostgresUserStore_CreateDuplicate(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresUserStore(db, quietLogger())

	mock.ExpectExec(q("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "users_username_key"})

	err := s.Create(context.Background(), &domain.User{ID: 2, Username: "alice"})
	assert.ErrorIs(t, err, store.ErrUsernameExists)
}

func TestPostgresUserStore_CreateInvalid(t *testing.T) {
	t.Parallel()

	db, _ := newMockDB(t)
	s := NewPostgresUserStore(db, quietLogger())

	err := s.Create(context.Background(), &domain.User{ID: 3})
	assert.ErrorIs(t, err, domain.ErrEmptyUsername)
}

func TestPostgresUserStore_Get(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresUserStore(db, quietLogger())
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"id", "username", "email", "hashed_password", "created_at"}

	mock.ExpectQuery(q("FROM users WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), "alice", "", "$2a$hash", created))
	u, err := s.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, idgen.ID(1), u.ID)
	assert.Equal(t, "$2a$hash", u.HashedPassword)

	mock.ExpectQuery(q("FROM users WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)
	_, err = s.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestPostgresBotProfileStore(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresBotProfileStore(db, quietLogger())
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("FROM bot_profiles")).
		WithArgs(int64(4242)).
		WillReturnError(sql.ErrNoRows)
	_, err := s.GetByTelegramUserID(ctx, 4242)
	assert.ErrorIs(t, err, store.ErrBotProfileNotFound)

	mock.ExpectExec(q("INSERT INTO bot_profiles")).
		WithArgs(int64(1), int64(4242), int64(99), created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Create(ctx, &domain.BotProfile{UserID: 1, TelegramUserID: 4242, ChatID: 99, CreatedAt: created}))

	mock.ExpectExec(q("INSERT INTO bot_profiles")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})
	err = s.Create(ctx, &domain.BotProfile{UserID: 2, TelegramUserID: 4242, ChatID: 99, CreatedAt: created})
	assert.ErrorIs(t, err, store.ErrBotProfileExists)

	mock.ExpectExec(q("UPDATE bot_profiles SET chat_id = $1 WHERE user_id = $2")).
		WithArgs(int64(100), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateChatID(ctx, 1, 100))
}
