package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ibras0696/m-django-work/internal/api/shared"
	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/service"
)

// getPathID extracts a snowflake id from the URL path parameters.
func getPathID(r *http.Request, paramName string) (idgen.ID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return 0, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}
	id, err := idgen.ParseID(pathParam)
	if err != nil {
		return 0, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

// requireUserID returns the authenticated user's id or writes a 401.
func requireUserID(w http.ResponseWriter, r *http.Request) (idgen.ID, bool) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		logger.FromContextOrDefault(r.Context(), slog.Default()).
			Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return 0, false
	}
	return userID, true
}

// handleUserIDAndPathID extracts both the user id from the context and an id
// from the path. It writes an error response if either extraction fails.
func handleUserIDAndPathID(w http.ResponseWriter, r *http.Request, paramName string) (idgen.ID, idgen.ID, bool) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return 0, 0, false
	}

	pathID, err := getPathID(r, paramName)
	if err != nil {
		logger.FromContextOrDefault(r.Context(), slog.Default()).Debug("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return 0, 0, false
	}
	return userID, pathID, true
}

// parsePage reads ?page=N. A missing value means the first page; a value
// that is not a positive integer is an invalid page.
func parsePage(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, service.ErrInvalidPage
	}
	return page, nil
}

// parseTimeQuery reads an RFC 3339 timestamp query parameter. Values that do
// not parse are ignored rather than rejected.
func parseTimeQuery(r *http.Request, name string) *time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// pageURL returns the absolute URL of page of the current listing.
// Page 1 is addressed without a page parameter.
func pageURL(r *http.Request, page int) *string {
	u := url.URL{
		Scheme: "http",
		Host:   r.Host,
		Path:   r.URL.Path,
	}
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		u.Scheme = "https"
	}

	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()

	s := u.String()
	return &s
}

// newPage builds a listing response for results on page. hasNext reports
// whether a following page exists.
func newPage[T any](r *http.Request, total, page int, hasNext bool, results []T) PageResponse[T] {
	resp := PageResponse[T]{Count: total, Results: results}
	if resp.Results == nil {
		resp.Results = []T{}
	}
	if hasNext {
		resp.Next = pageURL(r, page+1)
	}
	if page > 1 {
		resp.Previous = pageURL(r, page-1)
	}
	return resp
}

// decodeAndValidate decodes the body into req and validates it, writing a
// 400 on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := shared.DecodeJSON(r, req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
