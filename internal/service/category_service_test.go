package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/mocks"
	"github.com/ibras0696/m-django-work/internal/service"
	"github.com/ibras0696/m-django-work/internal/store"
)

func newCategoryService(t *testing.T, seed ...*domain.Category) service.CategoryService {
	t.Helper()
	svc, err := service.NewCategoryService(mocks.NewMockCategoryStore(seed...), &mocks.SequenceIDs{Last: 500}, quietLogger())
	require.NoError(t, err)
	return svc
}

func TestCategoryService_Create(t *testing.T) {
	t.Parallel()
	svc := newCategoryService(t)
	ctx := context.Background()

	c, err := svc.CreateCategory(ctx, "  errands ")
	require.NoError(t, err)
	assert.Equal(t, idgen.ID(501), c.ID)
	assert.Equal(t, "errands", c.Name)

	_, err = svc.CreateCategory(ctx, "errands")
	assert.ErrorIs(t, err, store.ErrCategoryNameExists)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	_, err = svc.CreateCategory(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCategoryService_Rename(t *testing.T) {
	t.Parallel()
	svc := newCategoryService(t, &domain.Category{ID: 1, Name: "home"}, &domain.Category{ID: 2, Name: "work"})
	ctx := context.Background()

	c, err := svc.RenameCategory(ctx, 1, "house")
	require.NoError(t, err)
	assert.Equal(t, "house", c.Name)

	_, err = svc.RenameCategory(ctx, 1, "work")
	assert.ErrorIs(t, err, store.ErrDuplicate)

	_, err = svc.RenameCategory(ctx, 9, "x")
	assert.ErrorIs(t, err, store.ErrCategoryNotFound)
}

func TestCategoryService_ListAndDelete(t *testing.T) {
	t.Parallel()
	var seed []*domain.Category
	for i, name := range []string{"f", "b", "d", "a", "c", "e"} {
		seed = append(seed, &domain.Category{ID: idgen.ID(i + 1), Name: name})
	}
	svc := newCategoryService(t, seed...)
	ctx := context.Background()

	page, err := svc.ListCategories(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	require.Len(t, page.Categories, 5)
	assert.Equal(t, "a", page.Categories[0].Name)
	assert.True(t, page.HasNext())

	page, err = svc.ListCategories(ctx, 2)
	require.NoError(t, err)
	require.Len(t, page.Categories, 1)
	assert.Equal(t, "f", page.Categories[0].Name)

	_, err = svc.ListCategories(ctx, 3)
	assert.ErrorIs(t, err, service.ErrInvalidPage)

	require.NoError(t, svc.DeleteCategory(ctx, 4))
	_, err = svc.GetCategory(ctx, 4)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteCategory(ctx, 4), store.ErrCategoryNotFound)
}
