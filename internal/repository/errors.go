package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrInvalidArgument indicates the store rejected a malformed value.
	ErrInvalidArgument = errors.New("repository: invalid argument")
	// ErrDuplicate indicates an append collided with an existing identifier.
	ErrDuplicate = errors.New("repository: duplicate")
)
