package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadySet is returned when a write-once field already holds a different value.
	ErrAlreadySet = errors.New("field already set")

	// ErrConflict is returned when a conditional update finds the row in an unexpected state.
	ErrConflict = errors.New("conditional update did not apply")

	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate entity")
)
