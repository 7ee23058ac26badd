package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/ibras0696/m-django-work/internal/api/shared"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
)

// InternalTokenHeader carries the shared secret of internal callers.
const InternalTokenHeader = "X-Internal-Token"

// RequireInternalToken admits only requests presenting token.
func RequireInternalToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(InternalTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.FromContextOrDefault(r.Context(), slog.Default()).Warn("rejected internal request",
					slog.String("path", r.URL.Path),
					slog.Bool("header_present", got != ""))
				shared.RespondWithError(w, r, http.StatusForbidden, "Invalid internal token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
