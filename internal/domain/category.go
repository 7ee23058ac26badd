package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ibras0696/m-django-work/internal/idgen"
)

// Category is a shared label that tasks can be filed under.
type Category struct {
	ID        idgen.ID  `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCategory returns a validated category with a zero ID.
func NewCategory(name string) (*Category, error) {
	c := &Category{
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the category name.
func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", "cannot be empty", nil)
	}
	if utf8.RuneCountInString(c.Name) > MaxCategoryNameLength {
		return NewValidationError("name", "must be at most 64 characters", nil)
	}
	return nil
}
