package store

import "errors"

var (
	// ErrNotInitialized is returned by operations attempted before Initialize
	ErrNotInitialized = errors.New("store not initialized")

	// ErrNotFound is returned by updates and deletes targeting a missing id
	ErrNotFound = errors.New("entry not found")
)
