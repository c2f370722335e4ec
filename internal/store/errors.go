package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a create violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)
