package store

import "errors"

var (
	// ErrNotFound indicates the referenced credential does not exist.
	ErrNotFound = errors.New("credential not found")
	// ErrDuplicateID indicates an insert collided with an existing credential ID.
	ErrDuplicateID = errors.New("credential ID already exists")
	// ErrInvalidTransition indicates a status change from a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
)
