package domain

import "errors"

var (
	// ErrNotFound marks lookups for entities that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks input that fails domain validation.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks updates rejected because of concurrent state changes.
	ErrConflict = errors.New("conflict")

	// ErrExhausted marks delivery attempts that reached their retry cap.
	ErrExhausted = errors.New("delivery attempt exhausted")
)
