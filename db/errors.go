package db

import "fmt"

var (
	// ErrNotFound is returned when no user matches the provided credentials.
	ErrNotFound = fmt.Errorf("not found")
	// ErrUserExists is returned when registering an id that is already taken.
	ErrUserExists = fmt.Errorf("user already exists")
	// ErrStoreUnavailable is returned when the backing store cannot be loaded
	// or reached at startup.
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	// ErrPersistFailure is returned when an insert could not be written to the
	// backing store. The in-memory collection may already include the record.
	ErrPersistFailure = fmt.Errorf("persist failure")
)
