package store

import (
	"context"
	"database/sql"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
)

// CategoryStore defines the interface for category persistence.
type CategoryStore interface {
	// Create saves a category with a caller-assigned ID.
	// Returns ErrCategoryNameExists when the name is taken.
	Create(ctx context.Context, category *domain.Category) error

	// GetByID returns ErrCategoryNotFound when absent.
	GetByID(ctx context.Context, id idgen.ID) (*domain.Category, error)

	// List returns one page of categories ordered by name, and the total.
	List(ctx context.Context, page Page) ([]*domain.Category, int, error)

	// Update renames a category.
	Update(ctx context.Context, category *domain.Category) error

	// Delete removes a category and its task links.
	Delete(ctx context.Context, id idgen.ID) error

	// ExistingIDs returns the subset of ids that name existing categories.
	ExistingIDs(ctx context.Context, ids []idgen.ID) ([]idgen.ID, error)

	// WithTx returns a CategoryStore bound to tx.
	WithTx(tx *sql.Tx) CategoryStore
}

// Page selects a window of a list.
type Page struct {
	Limit  int
	Offset int
}
