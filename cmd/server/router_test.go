package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibras0696/m-django-work/internal/api/middleware"
	"github.com/ibras0696/m-django-work/internal/config"
	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/mocks"
	"github.com/ibras0696/m-django-work/internal/platform/metrics"
	"github.com/ibras0696/m-django-work/internal/schedule"
	"github.com/ibras0696/m-django-work/internal/service"
	"github.com/ibras0696/m-django-work/internal/service/auth"
)

const testInternalToken = "bot-shared-secret-123"

type routerFixture struct {
	handler http.Handler
	db      sqlmock.Sqlmock
	port    *mocks.MockJobPort
	tasks   *mocks.MockTaskStore
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8000, LogLevel: "info", MetricsEnabled: true},
		Auth: config.AuthConfig{
			JWTSecret:                   "0123456789abcdef0123456789abcdef",
			TokenLifetimeMinutes:        60,
			RefreshTokenLifetimeMinutes: 120,
		},
		Bot: config.BotConfig{InternalToken: testInternalToken},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	jwtService, err := auth.NewJWTService(cfg.Auth)
	require.NoError(t, err)

	ids := &mocks.SequenceIDs{Last: 100}
	port := mocks.NewMockJobPort()
	tasks := mocks.NewMockTaskStore()
	categories := mocks.NewMockCategoryStore(&domain.Category{ID: 11, Name: "home"})

	gate, err := schedule.NewGate(ids, schedule.NewReconciler(port, log), nil, log)
	require.NoError(t, err)

	accounts, err := service.NewAccountService(db, mocks.NewMockUserStore(), mocks.NewMockBotProfileStore(),
		jwtService, &mocks.MockPasswordVerifier{}, ids, log)
	require.NoError(t, err)
	categorySvc, err := service.NewCategoryService(categories, ids, log)
	require.NoError(t, err)
	taskSvc, err := service.NewTaskService(db, tasks, categories, gate, log)
	require.NoError(t, err)

	app := &application{
		config:          cfg,
		logger:          log,
		metrics:         metrics.NewCollector(),
		jwtService:      jwtService,
		accountService:  accounts,
		categoryService: categorySvc,
		taskService:     taskSvc,
	}
	return &routerFixture{handler: app.setupRouter(), db: mock, port: port, tasks: tasks}
}

func (f *routerFixture) do(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Healthz(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	rr := f.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true,"service":"backend"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(middleware.TraceIDHeader))
}

func TestRouter_ProtectedRoutes(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/tasks/", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/me", nil, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/v1/bot/auth",
		map[string]any{"telegram_user_id": 123, "chat_id": 456}, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/v1/bot/auth",
		map[string]any{"telegram_user_id": 123, "chat_id": 456},
		map[string]string{middleware.InternalTokenHeader: "wrong"}).Code)
}

func TestRouter_BotCreatesTaskWithDeadline(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	f.db.ExpectBegin()
	f.db.ExpectCommit()
	rr := f.do(t, http.MethodPost, "/api/v1/bot/auth/",
		map[string]any{"telegram_user_id": 123, "chat_id": 456, "username": "tguser"},
		map[string]string{middleware.InternalTokenHeader: testInternalToken})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var botAuth struct {
		Access string `json:"access"`
		User   struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &botAuth))
	assert.Equal(t, "tguser", botAuth.User.Username)
	bearer := map[string]string{"Authorization": "Bearer " + botAuth.Access}

	due := time.Now().Add(3 * time.Hour).UTC().Truncate(time.Second)
	f.db.ExpectBegin()
	f.db.ExpectCommit()
	rr = f.do(t, http.MethodPost, "/api/v1/tasks/",
		map[string]any{"title": "pay rent", "due_at": due, "category_ids": []int{11, 99}}, bearer)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, []any{float64(11)}, created["category_ids"])
	assert.NotContains(t, created, "notify_job_id")

	submits := f.port.Submits()
	require.Len(t, submits, 1)
	require.NotNil(t, submits[0].ETA)
	assert.True(t, submits[0].ETA.Equal(due))

	rr = f.do(t, http.MethodGet, "/api/v1/tasks?status=todo", nil, bearer)
	require.Equal(t, http.StatusOK, rr.Code)
	var page struct {
		Count   int              `json:"count"`
		Next    *string          `json:"next"`
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Count)
	assert.Nil(t, page.Next)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "pay rent", page.Results[0]["title"])

	rr = f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "taskapi_http_requests_total")
}
