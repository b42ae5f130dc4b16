package storage

import "errors"

// Storage error constants
var (
	// ErrDatabaseClosed is returned when attempting to use a closed store
	ErrDatabaseClosed = errors.New("database is closed")

	// ErrUnsupportedDriver is returned for an unknown store driver name
	ErrUnsupportedDriver = errors.New("unsupported store driver")

	// ErrNoRows is returned when a scalar query produced no row
	ErrNoRows = errors.New("query returned no rows")

	// ErrInvalidAlert is returned when a fixture row fails validation
	ErrInvalidAlert = errors.New("invalid alert")
)
