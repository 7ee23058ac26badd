package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/schedule"
	"github.com/ibras0696/m-django-work/internal/service/auth"
	"github.com/ibras0696/m-django-work/internal/store"
)

// TokenPair is the bearer credentials issued on login.
type TokenPair struct {
	Access  string
	Refresh string
}

// BotAuthInput identifies a chat account asking for credentials.
type BotAuthInput struct {
	TelegramUserID int64
	ChatID         int64
	Username       string
}

// BotAuthResult is the user behind a chat account and its tokens.
type BotAuthResult struct {
	Tokens TokenPair
	User   *domain.User
}

// AccountService authenticates users and bot chats.
type AccountService interface {
	// Login exchanges username and password for a token pair.
	Login(ctx context.Context, username, password string) (TokenPair, error)
	// Refresh exchanges a refresh token for a new pair.
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	// BotAuth finds or creates the user linked to a chat account, keeps its
	// chat id current and issues a token pair.
	BotAuth(ctx context.Context, in BotAuthInput) (*BotAuthResult, error)
	// Me returns the authenticated user.
	Me(ctx context.Context, userID idgen.ID) (*domain.User, error)
	// CreateUser registers a password account.
	CreateUser(ctx context.Context, username, email, password string) (*domain.User, error)
}

type accountServiceImpl struct {
	db        store.Beginner
	users     store.UserStore
	profiles  store.BotProfileStore
	jwt       auth.JWTService
	passwords auth.PasswordVerifier
	ids       schedule.IDSource
	logger    *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(
	db store.Beginner,
	users store.UserStore,
	profiles store.BotProfileStore,
	jwt auth.JWTService,
	passwords auth.PasswordVerifier,
	ids schedule.IDSource,
	logger *slog.Logger,
) (AccountService, error) {
	switch {
	case db == nil:
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	case users == nil:
		return nil, domain.NewValidationError("users", "cannot be nil", domain.ErrValidation)
	case profiles == nil:
		return nil, domain.NewValidationError("profiles", "cannot be nil", domain.ErrValidation)
	case jwt == nil:
		return nil, domain.NewValidationError("jwt", "cannot be nil", domain.ErrValidation)
	case passwords == nil:
		return nil, domain.NewValidationError("passwords", "cannot be nil", domain.ErrValidation)
	case ids == nil:
		return nil, domain.NewValidationError("ids", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &accountServiceImpl{
		db:        db,
		users:     users,
		profiles:  profiles,
		jwt:       jwt,
		passwords: passwords,
		ids:       ids,
		logger:    logger.With(slog.String("component", "account_service")),
	}, nil
}

func (s *accountServiceImpl) Login(ctx context.Context, username, password string) (TokenPair, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return TokenPair{}, auth.ErrInvalidCredentials
		}
		log.Error("failed to look up user for login", slog.String("error", err.Error()))
		return TokenPair{}, NewServiceError("account", "login", "failed to load user", err)
	}
	if !user.HasPassword() {
		return TokenPair{}, auth.ErrInvalidCredentials
	}
	if err := s.passwords.Compare(user.HashedPassword, password); err != nil {
		log.Debug("password mismatch", slog.String("user_id", user.ID.String()))
		return TokenPair{}, auth.ErrInvalidCredentials
	}
	return s.issue(ctx, user.ID)
}

func (s *accountServiceImpl) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if _, err := s.users.GetByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return TokenPair{}, ErrUserInactive
		}
		return TokenPair{}, NewServiceError("account", "refresh", "failed to load user", err)
	}
	return s.issue(ctx, claims.UserID)
}

func (s *accountServiceImpl) BotAuth(ctx context.Context, in BotAuthInput) (*BotAuthResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if in.TelegramUserID <= 0 {
		return nil, domain.NewValidationError("telegram_user_id", "must be positive", nil)
	}
	if in.ChatID == 0 {
		return nil, domain.NewValidationError("chat_id", "cannot be empty", nil)
	}

	var user *domain.User
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		users := s.users.WithTx(tx)
		profiles := s.profiles.WithTx(tx)

		profile, err := profiles.GetByTelegramUserID(ctx, in.TelegramUserID)
		switch {
		case err == nil:
			if profile.ChatID != in.ChatID {
				if err := profiles.UpdateChatID(ctx, profile.UserID, in.ChatID); err != nil {
					return fmt.Errorf("failed to update chat id: %w", err)
				}
			}
			user, err = users.GetByID(ctx, profile.UserID)
			return err
		case !errors.Is(err, store.ErrBotProfileNotFound):
			return err
		}

		user, err = s.findOrCreateBotUser(ctx, users, in)
		if err != nil {
			return err
		}
		return profiles.Create(ctx, &domain.BotProfile{
			UserID:         user.ID,
			TelegramUserID: in.TelegramUserID,
			ChatID:         in.ChatID,
			CreatedAt:      time.Now().UTC(),
		})
	})
	if err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			log.Error("bot authentication failed",
				slog.Int64("telegram_user_id", in.TelegramUserID),
				slog.String("error", err.Error()))
		}
		return nil, NewServiceError("account", "bot_auth", "failed to link chat account", err)
	}

	tokens, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &BotAuthResult{Tokens: tokens, User: user}, nil
}

// findOrCreateBotUser picks the requested username when it is free and falls
// back to tg_<telegram_user_id>, reusing an existing account of that name.
func (s *accountServiceImpl) findOrCreateBotUser(
	ctx context.Context,
	users store.UserStore,
	in BotAuthInput,
) (*domain.User, error) {
	username := domain.BotUsername(in.TelegramUserID)
	if wanted := strings.TrimSpace(in.Username); wanted != "" && wanted != username {
		_, err := users.GetByUsername(ctx, wanted)
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			username = wanted
		case err != nil:
			return nil, err
		}
	}

	existing, err := users.GetByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, err
	}

	user, err := domain.NewUser(username, "", "")
	if err != nil {
		return nil, err
	}
	user.ID = s.ids.Next()
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("created bot user",
		slog.String("user_id", user.ID.String()),
		slog.String("username", user.Username))
	return user, nil
}

func (s *accountServiceImpl) Me(ctx context.Context, userID idgen.ID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrUserInactive
		}
		return nil, NewServiceError("account", "me", "failed to load user", err)
	}
	return user, nil
}

func (s *accountServiceImpl) CreateUser(ctx context.Context, username, email, password string) (*domain.User, error) {
	user, err := domain.NewUser(username, email, password)
	if err != nil {
		return nil, err
	}
	if password != "" {
		user.HashedPassword, err = s.passwords.Hash(password)
		if err != nil {
			return nil, NewServiceError("account", "create_user", "failed to hash password", err)
		}
		user.Password = ""
	}
	user.ID = s.ids.Next()

	if err := s.users.Create(ctx, user); err != nil {
		return nil, NewServiceError("account", "create_user", "failed to save user", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("created user",
		slog.String("user_id", user.ID.String()),
		slog.String("username", user.Username))
	return user, nil
}

func (s *accountServiceImpl) issue(ctx context.Context, userID idgen.ID) (TokenPair, error) {
	access, err := s.jwt.GenerateToken(ctx, userID)
	if err != nil {
		return TokenPair{}, NewServiceError("account", "issue_tokens", "failed to generate access token", err)
	}
	refresh, err := s.jwt.GenerateRefreshToken(ctx, userID)
	if err != nil {
		return TokenPair{}, NewServiceError("account", "issue_tokens", "failed to generate refresh token", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}
