//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/platform/postgres"
	"github.com/ibras0696/m-django-work/internal/store"
	"github.com/ibras0696/m-django-work/internal/testdb"
)

func TestStoresRoundTrip(t *testing.T) {
	t.Parallel()
	db := testdb.GetTestDBWithT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ids, err := idgen.New(7)
	require.NoError(t, err)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		users := postgres.NewPostgresUserStore(tx, logger)
		categories := postgres.NewPostgresCategoryStore(tx, logger)
		tasks := postgres.NewPostgresTaskStore(tx, logger)

		user, err := domain.NewUser("roundtrip-"+ids.Next().String(), "", "")
		require.NoError(t, err)
		user.ID = ids.Next()
		require.NoError(t, users.Create(ctx, user))

		cat, err := domain.NewCategory("cat-" + ids.Next().String())
		require.NoError(t, err)
		cat.ID = ids.Next()
		require.NoError(t, categories.Create(ctx, cat))

		due := time.Now().Add(time.Hour)
		task, err := domain.NewTask(user.ID, "write report", "", &due)
		require.NoError(t, err)
		task.ID = ids.Next()
		task.CategoryIDs = []idgen.ID{cat.ID}
		require.NoError(t, tasks.Create(ctx, task))

		got, err := tasks.GetByID(ctx, user.ID, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.Title, got.Title)
		assert.True(t, domain.SameDueAt(task.DueAt, got.DueAt))
		assert.Equal(t, []idgen.ID{cat.ID}, got.CategoryIDs)

		swap := store.HandleSwap{TaskID: task.ID, New: "job-a", DueAt: task.DueAt}
		swapped, err := tasks.SwapNotifyJobID(ctx, swap)
		require.NoError(t, err)
		assert.True(t, swapped)

		swap.New = "job-b"
		swapped, err = tasks.SwapNotifyJobID(ctx, swap)
		require.NoError(t, err)
		assert.False(t, swapped, "row no longer holds the old handle")

		moved := due.Add(time.Hour)
		swapped, err = tasks.SwapNotifyJobID(ctx, store.HandleSwap{TaskID: task.ID, Old: "job-a", New: "job-b", DueAt: &moved})
		require.NoError(t, err)
		assert.False(t, swapped, "row holds a different deadline")

		locked, err := tasks.GetTaskForUpdate(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "job-a", locked.NotifyJobID)

		_, err = tasks.GetByID(ctx, ids.Next(), task.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		require.NoError(t, categories.Delete(ctx, cat.ID))
		got, err = tasks.GetByID(ctx, user.ID, task.ID)
		require.NoError(t, err)
		assert.Empty(t, got.CategoryIDs)
	})
}
