package storage

import "errors"

var (
	// ErrPersistence indicates the wallet state could not be written or read.
	ErrPersistence = errors.New("storage: persistence failed")

	// ErrNotFound indicates no wallet state has been persisted yet.
	ErrNotFound = errors.New("storage: wallet state not found")

	// ErrInvalidBaseDir indicates the data directory path is invalid.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrUnknownBackend indicates an unsupported persistence backend name.
	ErrUnknownBackend = errors.New("storage: unknown backend")

	// ErrLocked indicates another process holds the wallet file lock.
	ErrLocked = errors.New("storage: wallet file is locked")
)
