package api

import (
	"log/slog"
	"net/http"

	"github.com/ibras0696/m-django-work/internal/api/shared"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/service"
)

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	accounts service.AccountService
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(accounts service.AccountService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AuthHandler")
	}
	return &AuthHandler{
		accounts: accounts,
		logger:   logger.With(slog.String("component", "auth_handler")),
	}
}

// Token handles POST /token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tokens, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to authenticate user")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TokenResponse{Access: tokens.Access, Refresh: tokens.Refresh})
}

// Refresh handles POST /token/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tokens, err := h.accounts.Refresh(r.Context(), req.Refresh)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to refresh token")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TokenResponse{Access: tokens.Access, Refresh: tokens.Refresh})
}

// BotAuth handles POST /bot/auth. The route is guarded by the internal
// token middleware.
func (h *AuthHandler) BotAuth(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req BotAuthRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.accounts.BotAuth(r.Context(), service.BotAuthInput{
		TelegramUserID: req.TelegramUserID,
		ChatID:         req.ChatID,
		Username:       req.Username,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to authenticate chat account")
		return
	}

	log.Debug("bot authenticated", slog.String("user_id", res.User.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, BotAuthResponse{
		Access:  res.Tokens.Access,
		Refresh: res.Tokens.Refresh,
		User:    userToResponse(res.User),
	})
}

// Me handles GET /me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	user, err := h.accounts.Me(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load user")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}
