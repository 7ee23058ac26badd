package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/store"
)

func TestPostgresCategoryStore_CreateDuplicateName(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresCategoryStore(db, quietLogger())

	mock.ExpectExec(q("INSERT INTO categories")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	err := s.Create(context.Background(), &domain.Category{ID: 1, Name: "work", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, store.ErrCategoryNameExists)
}

func TestPostgresCategoryStore_List(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresCategoryStore(db, quietLogger())
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM categories")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(q("ORDER BY name, id")).
		WithArgs(5, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).
			AddRow(int64(2), "home", created).
			AddRow(int64(1), "work", created))

	cats, total, err := s.List(context.Background(), store.Page{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, cats, 2)
	assert.Equal(t, "home", cats[0].Name)
}

func TestPostgresCategoryStore_ExistingIDs(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresCategoryStore(db, quietLogger())

	mock.ExpectQuery(q("SELECT id FROM categories WHERE id IN ($1, $2, $3)")).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(3)))

	found, err := s.ExistingIDs(context.Background(), []idgen.ID{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []idgen.ID{1, 3}, found)

	none, err := s.ExistingIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostgresCategoryStore_UpdateAndDeleteMissing(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresCategoryStore(db, quietLogger())

	mock.ExpectExec(q("UPDATE categories SET name = $1 WHERE id = $2")).
		WithArgs("errands", int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.Update(context.Background(), &domain.Category{ID: 9, Name: "errands"}), store.ErrCategoryNotFound)

	mock.ExpectExec(q("DELETE FROM categories WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.Delete(context.Background(), 9), store.ErrCategoryNotFound)
}
