package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibras0696/m-django-work/internal/platform/logger"
)

func TestRespondWithJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusCreated, map[string]any{"id": 42})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":42}`, w.Body.String())
}

func TestRespondNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	RespondNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func requestWithLogger(buf *strings.Builder) *http.Request {
	log := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.WithValue(context.Background(), TraceIDKey, "test-trace-id")
	ctx = logger.WithLogger(ctx, log)
	return httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil).WithContext(ctx)
}

func TestRespondWithError(t *testing.T) {
	var buf strings.Builder
	w := httptest.NewRecorder()

	RespondWithError(w, requestWithLogger(&buf), http.StatusBadRequest, "Invalid request")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid request", resp.Error)
	assert.Equal(t, "test-trace-id", resp.TraceID)
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		elevate   bool
		wantLevel string
	}{
		{"server error", http.StatusInternalServerError, false, "level=ERROR"},
		{"client error", http.StatusBadRequest, false, "level=DEBUG"},
		{"elevated client error", http.StatusConflict, true, "level=WARN"},
		{"rate limited", http.StatusTooManyRequests, false, "level=WARN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf strings.Builder
			w := httptest.NewRecorder()
			var opts []ResponseOption
			if tc.elevate {
				opts = append(opts, WithElevatedLogLevel())
			}

			RespondWithErrorAndLog(w, requestWithLogger(&buf), tc.status, "failed",
				errors.New("dial postgres://app:pw@db/tasks"), opts...)

			assert.Equal(t, tc.status, w.Code)
			out := buf.String()
			assert.Contains(t, out, tc.wantLevel)
			assert.Contains(t, out, "trace_id=test-trace-id")
			assert.Contains(t, out, "error_type=")
			assert.NotContains(t, out, "app:pw", "errors are redacted before logging")
		})
	}
}
