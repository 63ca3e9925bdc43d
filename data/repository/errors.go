package repository

import "errors"

var (
	ErrAlreadyExists = errors.New("error already exists")
	ErrNotFound      = errors.New("error not found")
	// ErrConflict is a concurrent-write conflict (serialization failure or
	// deadlock). The whole operation was rolled back and may be retried.
	ErrConflict = errors.New("error concurrent write conflict")
)
