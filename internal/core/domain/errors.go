package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("already exists")
	ErrInvalidEntity    = errors.New("invalid entity")
	ErrValidation       = errors.New("validation failed")
	ErrDuplicateRequest = errors.New("duplicate request")

	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrItemNotFound     = fmt.Errorf("item %w", ErrNotFound)
	ErrPurchaseNotFound = fmt.Errorf("purchase %w", ErrNotFound)
)

// IsNotFound reports whether err is any kind of not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
