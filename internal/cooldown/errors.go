package cooldown

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("invalid cooldown usage")
	// ErrNotFound is returned by a Store when no record exists for a key.
	ErrNotFound = errors.New("cooldown record not found")
	// ErrExists is returned by Store.Create when the key is already taken.
	ErrExists = errors.New("cooldown record already exists")
	// ErrConflict reports that a conditional write kept losing to concurrent writers.
	ErrConflict = errors.New("cooldown record changed concurrently")
)

// ValidationError describes a malformed Usage. It is raised before any store
// access and must be fixed by the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cooldown %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
