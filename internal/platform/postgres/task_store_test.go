package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/store"
)

var taskRowColumns = []string{"id", "user_id", "title", "description", "status", "created_at", "due_at", "notify_job_id"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func TestPostgresTaskStore_Create(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, quietLogger())

	due := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	task := &domain.Task{
		ID:          500,
		UserID:      7,
		Title:       "renew passport",
		Status:      domain.TaskStatusTodo,
		CategoryIDs: []idgen.ID{11, 12},
		CreatedAt:   created,
		DueAt:       &due,
	}

	mock.ExpectExec(q("INSERT INTO tasks")).
		WithArgs(int64(500), int64(7), "renew passport", "", "todo", created, sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO task_categories")).
		WithArgs(int64(500), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO task_categories")).
		WithArgs(int64(500), int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), task))
}

func TestPostgresTaskStore_CreateRequiresID(t *testing.T) {
	t.Parallel()

	db, _ := newMockDB(t)
	s := NewPostgresTaskStore(db, quietLogger())

	err := s.Create(context.Background(), &domain.Task{UserID: 1, Title: "x", Status: domain.TaskStatusTodo})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPostgresTaskStore_GetByID(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, quietLogger())
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	due := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("FROM tasks t WHERE t.id = $1 AND t.user_id = $2")).
		WithArgs(int64(500), int64(7)).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(int64(500), int64(7), "renew passport", "bring photos", "in_progress", created, due, "job-1"))
	mock.ExpectQuery(q("FROM task_categories")).
		WithArgs(int64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"task_id", "category_id"}).
			AddRow(int64(500), int64(11)).
			AddRow(int64(500), int64(12)))

	task, err := s.GetByID(context.Background(), 7, 500)
	require.NoError(t, err)
	assert.Equal(t, idgen.ID(500), task.ID)
	assert.Equal(t, domain.TaskStatusInProgress, task.Status)
	assert.Equal(t, "job-1", task.NotifyJobID)
	require.NotNil(t, task.DueAt)
	assert.True(t, task.DueAt.Equal(due))
	assert.Equal(t, []idgen.ID{11, 12}, task.CategoryIDs)
}

func TestPostgresTaskStore_GetByIDNotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, quietLogger())

	mock.ExpectQuery(q("FROM tasks t WHERE t.id = $1 AND t.user_id = $2")).
		WithArgs(int64(500), int64(8)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetByID(context.Background(), 8, 500)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresTaskStore_ListAppliesFilters(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, quietLogger())

	before := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	after := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	where := "t.user_id = $1 AND t.status = $2 AND EXISTS (SELECT 1 FROM task_categories tc WHERE tc.task_id = t.id AND tc.category_id = $3) AND t.due_at <= $4 AND t.due_at >= $5"

	mock.ExpectQuery(q("SELECT COUNT(*) FROM tasks t WHERE " + where)).
		WithArgs(int64(7), "todo", int64(11), before, after).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectQuery(q(where + " ORDER BY t.created_at DESC, t.id DESC LIMIT $6 OFFSET $7")).
		WithArgs(int64(7), "todo", int64(11), before, after, 5, 5).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(int64(2), int64(7), "second", "", "todo", created, nil, ""))
	mock.ExpectQuery(q("FROM task_categories")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"task_id", "category_id"}).AddRow(int64(2), int64(11)))

	tasks, total, err := s.List(context.Background(), store.TaskFilter{
		UserID:     7,
		Status:     domain.TaskStatusTodo,
		CategoryID: 11,
		DueBefore:  &before,
		DueAfter:   &after,
		Page:       store.Page{Limit: 5, Offset: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, tasks, 1)
	assert.Nil(t, tasks[0].DueAt)
	assert.Equal(t, []idgen.ID{11}, tasks[0].CategoryIDs)
}

func TestPostgresTaskStore_UpdateReplacesCategories(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, quietLogger())

	task := &domain.Task{ID: 500, UserID: 7, Title: "t", Status: domain.TaskStatusDone, CategoryIDs: []idgen.ID{13}}

	mock.ExpectExec(q("UPDATE tasks")).
		WithArgs("t", "", "done", nil, int64(500), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM task_categories WHERE task_id = $1")).
		WithArgs(int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("INSERT INTO task_categories")).
		WithArgs(int64(500), int64(13)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Update(context.Background(), task))
}

func TestPostgresTaskStore_UpdateOtherUsersTask(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, quietLogger())

	mock.ExpectExec(q("UPDATE tasks")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), &domain.Task{ID: 1, UserID: 2, Title: "t", Status: domain.TaskStatusTodo})
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestPostgresTaskStore_SwapNotifyJobID(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, quietLogger())
	ctx := context.Background()
	due := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	swap := store.HandleSwap{TaskID: 500, Old: "", New: "job-9", DueAt: &due}
	mock.ExpectExec(q("WHERE id = $2 AND notify_job_id = $3 AND (status = 'done') = $4")).
		WithArgs("job-9", int64(500), "", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	swapped, err := s.SwapNotifyJobID(ctx, swap)
	require.NoError(t, err)
	assert.True(t, swapped)

	// The row no longer holds the expected handle.
	mock.ExpectExec(q("WHERE id = $2 AND notify_job_id = $3")).
		WithArgs("job-10", int64(500), "", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	swap.New = "job-10"
	swapped, err = s.SwapNotifyJobID(ctx, swap)
	require.NoError(t, err)
	assert.False(t, swapped)

	mock.ExpectExec(q("due_at IS NOT DISTINCT FROM $5::timestamptz")).
		WithArgs("", int64(501), "job-3", true, sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	_, err = s.SwapNotifyJobID(ctx, store.HandleSwap{TaskID: 501, Old: "job-3", Done: true})
	assert.ErrorContains(t, err, "connection reset")
}

func TestPostgresTaskStore_GetTaskForUpdateLocks(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, quietLogger())

	mock.ExpectQuery(q("WHERE t.id = $1 FOR UPDATE")).
		WithArgs(int64(500)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetTaskForUpdate(context.Background(), 500)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresTaskStore_SweepQueries(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, quietLogger())
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	due := now.Add(time.Hour)

	mock.ExpectQuery(q("t.due_at > $1 AND t.status <> 'done' AND t.notify_job_id = ''")).
		WithArgs(now, 50).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(int64(1), int64(7), "a", "", "todo", now, due, ""))
	tasks, err := s.ListUnscheduledTasks(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	mock.ExpectQuery(q("t.notify_job_id <> '' AND (t.status = 'done' OR t.due_at IS NULL)")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(int64(2), int64(7), "b", "", "done", now, nil, "job-x"))
	stale, err := s.ListTasksWithStaleHandles(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "job-x", stale[0].NotifyJobID)
}
