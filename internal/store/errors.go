package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every store implementation. Callers match them
// with errors.Is; entity-specific errors wrap the generic ones.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write would violate a uniqueness rule.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation or a
	// database constraint before being stored.
	ErrInvalidEntity = errors.New("invalid entity")

	ErrUserNotFound       = fmt.Errorf("%w: user", ErrNotFound)
	ErrBotProfileNotFound = fmt.Errorf("%w: bot profile", ErrNotFound)
	ErrCategoryNotFound   = fmt.Errorf("%w: category", ErrNotFound)

	// ErrTaskNotFound also covers tasks owned by another user.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrJobNotFound indicates that no notification job has the given handle.
	ErrJobNotFound = fmt.Errorf("%w: notification job", ErrNotFound)

	ErrUsernameExists     = fmt.Errorf("%w: username", ErrDuplicate)
	ErrCategoryNameExists = fmt.Errorf("%w: category name", ErrDuplicate)

	// ErrBotProfileExists indicates that the telegram user is already linked.
	ErrBotProfileExists = fmt.Errorf("%w: bot profile", ErrDuplicate)
)
