package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/schedule"
	"github.com/ibras0696/m-django-work/internal/store"
)

// CategoryPage is one page of the category listing.
type CategoryPage struct {
	Categories []*domain.Category
	Total      int
	Page       int
	PageSize   int
}

// HasNext reports whether another page follows.
func (p *CategoryPage) HasNext() bool {
	return p.Page*p.PageSize < p.Total
}

// CategoryService manages the shared category list.
type CategoryService interface {
	CreateCategory(ctx context.Context, name string) (*domain.Category, error)
	GetCategory(ctx context.Context, id idgen.ID) (*domain.Category, error)
	ListCategories(ctx context.Context, page int) (*CategoryPage, error)
	RenameCategory(ctx context.Context, id idgen.ID, name string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id idgen.ID) error
}

type categoryServiceImpl struct {
	categories store.CategoryStore
	ids        schedule.IDSource
	logger     *slog.Logger
}

// NewCategoryService creates a CategoryService allocating ids from ids.
func NewCategoryService(categories store.CategoryStore, ids schedule.IDSource, logger *slog.Logger) (CategoryService, error) {
	if categories == nil {
		return nil, domain.NewValidationError("categories", "cannot be nil", domain.ErrValidation)
	}
	if ids == nil {
		return nil, domain.NewValidationError("ids", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &categoryServiceImpl{
		categories: categories,
		ids:        ids,
		logger:     logger.With(slog.String("component", "category_service")),
	}, nil
}

func categoryError(operation, message string, err error) *ServiceError {
	return NewServiceError("category", operation, message, err)
}

func (s *categoryServiceImpl) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	c, err := domain.NewCategory(name)
	if err != nil {
		return nil, err
	}
	c.ID = s.ids.Next()

	if err := s.categories.Create(ctx, c); err != nil {
		return nil, categoryError("create_category", "failed to save category", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("created category",
		slog.String("category_id", c.ID.String()),
		slog.String("name", c.Name))
	return c, nil
}

func (s *categoryServiceImpl) GetCategory(ctx context.Context, id idgen.ID) (*domain.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, categoryError("get_category", "failed to load category", err)
	}
	return c, nil
}

func (s *categoryServiceImpl) ListCategories(ctx context.Context, page int) (*CategoryPage, error) {
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return nil, categoryError("list_categories", "page must be positive", ErrInvalidPage)
	}

	categories, total, err := s.categories.List(ctx, store.Page{
		Limit:  DefaultPageSize,
		Offset: (page - 1) * DefaultPageSize,
	})
	if err != nil {
		return nil, categoryError("list_categories", "failed to list categories", err)
	}
	if page > 1 && len(categories) == 0 {
		return nil, categoryError("list_categories", "page out of range", ErrInvalidPage)
	}
	return &CategoryPage{Categories: categories, Total: total, Page: page, PageSize: DefaultPageSize}, nil
}

func (s *categoryServiceImpl) RenameCategory(ctx context.Context, id idgen.ID, name string) (*domain.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, categoryError("rename_category", "failed to load category", err)
	}
	c.Name = strings.TrimSpace(name)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, categoryError("rename_category", "failed to save category", err)
	}
	return c, nil
}

func (s *categoryServiceImpl) DeleteCategory(ctx context.Context, id idgen.ID) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return categoryError("delete_category", "failed to delete category", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("deleted category",
		slog.String("category_id", id.String()))
	return nil
}
