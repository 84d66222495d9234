package dao

import "errors"

// Store errors shared by the memory, fs and sqlite implementations; match
// them with errors.Is.
var (
	// ErrNotFound is returned by Load and Delete for unknown keys.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID is returned for empty keys.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when saving a nil entity.
	ErrNilEntity = errors.New("dao: nil entity")
)
