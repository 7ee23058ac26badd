package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/store"
)

// PostgresUserStore implements store.UserStore.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a user store on db. If logger is nil, the
// default logger is used.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

var _ store.UserStore = (*PostgresUserStore)(nil)

// WithTx implements store.UserStore.WithTx
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}

// Create implements store.UserStore.Create
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, hashed_password, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		user.ID.Int64(),
		user.Username,
		user.Email,
		user.HashedPassword,
		user.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("username already taken", slog.String("username", user.Username))
		} else {
			log.Error("failed to create user",
				slog.String("error", err.Error()),
				slog.String("user_id", user.ID.String()))
		}
		return mapUniqueViolation(err, store.ErrUsernameExists)
	}

	// Plaintext never outlives registration.
	user.Password = ""

	log.Info("user created", slog.String("user_id", user.ID.String()))
	return nil
}

const selectUserColumns = `SELECT id, username, email, hashed_password, created_at FROM users`

// GetByID implements store.UserStore.GetByID
func (s *PostgresUserStore) GetByID(ctx context.Context, id idgen.ID) (*domain.User, error) {
	return s.getOne(ctx, selectUserColumns+` WHERE id = $1`, id.Int64())
}

// GetByUsername implements store.UserStore.GetByUsername
func (s *PostgresUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getOne(ctx, selectUserColumns+` WHERE username = $1`, username)
}

func (s *PostgresUserStore) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.HashedPassword,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load user",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return &u, nil
}

// PostgresBotProfileStore implements store.BotProfileStore.
type PostgresBotProfileStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresBotProfileStore creates a bot profile store on db.
func NewPostgresBotProfileStore(db store.DBTX, logger *slog.Logger) *PostgresBotProfileStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBotProfileStore{
		db:     db,
		logger: logger.With(slog.String("component", "bot_profile_store")),
	}
}

var _ store.BotProfileStore = (*PostgresBotProfileStore)(nil)

// WithTx implements store.BotProfileStore.WithTx
func (s *PostgresBotProfileStore) WithTx(tx *sql.Tx) store.BotProfileStore {
	return &PostgresBotProfileStore{db: tx, logger: s.logger}
}

// GetByTelegramUserID implements store.BotProfileStore.GetByTelegramUserID
func (s *PostgresBotProfileStore) GetByTelegramUserID(
	ctx context.Context,
	telegramUserID int64,
) (*domain.BotProfile, error) {
	var p domain.BotProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, telegram_user_id, chat_id, created_at
		FROM bot_profiles
		WHERE telegram_user_id = $1
	`, telegramUserID).Scan(&p.UserID, &p.TelegramUserID, &p.ChatID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBotProfileNotFound
		}
		return nil, MapError(err)
	}
	return &p, nil
}

// Create implements store.BotProfileStore.Create
func (s *PostgresBotProfileStore) Create(ctx context.Context, profile *domain.BotProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_profiles (user_id, telegram_user_id, chat_id, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		profile.UserID.Int64(),
		profile.TelegramUserID,
		profile.ChatID,
		profile.CreatedAt,
	)
	if err != nil {
		return mapUniqueViolation(err, store.ErrBotProfileExists)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("bot profile linked",
		slog.String("user_id", profile.UserID.String()),
		slog.Int64("telegram_user_id", profile.TelegramUserID))
	return nil
}

// UpdateChatID implements store.BotProfileStore.UpdateChatID
func (s *PostgresBotProfileStore) UpdateChatID(ctx context.Context, userID idgen.ID, chatID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE bot_profiles SET chat_id = $1 WHERE user_id = $2`,
		chatID, userID.Int64())
	if err != nil {
		return mapUniqueViolation(err, store.ErrBotProfileExists)
	}
	return checkRowsAffected(result, store.ErrBotProfileNotFound)
}
