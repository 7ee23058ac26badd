package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ibras0696/m-django-work/internal/api/shared"
	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/service"
)

// MockTaskService is a func-field service.TaskService.
type MockTaskService struct {
	CreateTaskFn func(ctx context.Context, userID idgen.ID, in service.CreateTaskInput) (*domain.Task, error)
	GetTaskFn    func(ctx context.Context, userID, taskID idgen.ID) (*domain.Task, error)
	ListTasksFn  func(ctx context.Context, userID idgen.ID, in service.ListTasksInput) (*service.TaskPage, error)
	UpdateTaskFn func(ctx context.Context, userID, taskID idgen.ID, in service.UpdateTaskInput) (*domain.Task, error)
	DeleteTaskFn func(ctx context.Context, userID, taskID idgen.ID) error
}

func (m *MockTaskService) CreateTask(ctx context.Context, userID idgen.ID, in service.CreateTaskInput) (*domain.Task, error) {
	return m.CreateTaskFn(ctx, userID, in)
}

func (m *MockTaskService) GetTask(ctx context.Context, userID, taskID idgen.ID) (*domain.Task, error) {
	return m.GetTaskFn(ctx, userID, taskID)
}

func (m *MockTaskService) ListTasks(ctx context.Context, userID idgen.ID, in service.ListTasksInput) (*service.TaskPage, error) {
	return m.ListTasksFn(ctx, userID, in)
}

func (m *MockTaskService) UpdateTask(
	ctx context.Context,
	userID, taskID idgen.ID,
	in service.UpdateTaskInput,
) (*domain.Task, error) {
	return m.UpdateTaskFn(ctx, userID, taskID, in)
}

func (m *MockTaskService) DeleteTask(ctx context.Context, userID, taskID idgen.ID) error {
	return m.DeleteTaskFn(ctx, userID, taskID)
}

// MockCategoryService is a func-field service.CategoryService.
type MockCategoryService struct {
	CreateCategoryFn func(ctx context.Context, name string) (*domain.Category, error)
	GetCategoryFn    func(ctx context.Context, id idgen.ID) (*domain.Category, error)
	ListCategoriesFn func(ctx context.Context, page int) (*service.CategoryPage, error)
	RenameCategoryFn func(ctx context.Context, id idgen.ID, name string) (*domain.Category, error)
	DeleteCategoryFn func(ctx context.Context, id idgen.ID) error
}

func (m *MockCategoryService) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	return m.CreateCategoryFn(ctx, name)
}

func (m *MockCategoryService) GetCategory(ctx context.Context, id idgen.ID) (*domain.Category, error) {
	return m.GetCategoryFn(ctx, id)
}

func (m *MockCategoryService) ListCategories(ctx context.Context, page int) (*service.CategoryPage, error) {
	return m.ListCategoriesFn(ctx, page)
}

func (m *MockCategoryService) RenameCategory(ctx context.Context, id idgen.ID, name string) (*domain.Category, error) {
	return m.RenameCategoryFn(ctx, id, name)
}

func (m *MockCategoryService) DeleteCategory(ctx context.Context, id idgen.ID) error {
	return m.DeleteCategoryFn(ctx, id)
}

// MockAccountService is a func-field service.AccountService.
type MockAccountService struct {
	LoginFn      func(ctx context.Context, username, password string) (service.TokenPair, error)
	RefreshFn    func(ctx context.Context, refreshToken string) (service.TokenPair, error)
	BotAuthFn    func(ctx context.Context, in service.BotAuthInput) (*service.BotAuthResult, error)
	MeFn         func(ctx context.Context, userID idgen.ID) (*domain.User, error)
	CreateUserFn func(ctx context.Context, username, email, password string) (*domain.User, error)
}

func (m *MockAccountService) Login(ctx context.Context, username, password string) (service.TokenPair, error) {
	return m.LoginFn(ctx, username, password)
}

func (m *MockAccountService) Refresh(ctx context.Context, refreshToken string) (service.TokenPair, error) {
	return m.RefreshFn(ctx, refreshToken)
}

func (m *MockAccountService) BotAuth(ctx context.Context, in service.BotAuthInput) (*service.BotAuthResult, error) {
	return m.BotAuthFn(ctx, in)
}

func (m *MockAccountService) Me(ctx context.Context, userID idgen.ID) (*domain.User, error) {
	return m.MeFn(ctx, userID)
}

func (m *MockAccountService) CreateUser(ctx context.Context, username, email, password string) (*domain.User, error) {
	return m.CreateUserFn(ctx, username, email, password)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serve routes one request through a chi router with handler mounted at
// pattern, as userID when it is non-zero.
func serve(
	t *testing.T,
	method, pattern, target string,
	handler http.HandlerFunc,
	userID idgen.ID,
	body any,
) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if userID != 0 {
		req = req.WithContext(shared.WithUserID(req.Context(), userID))
	}

	r := chi.NewRouter()
	r.Method(method, pattern, handler)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
