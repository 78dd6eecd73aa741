package services

import "errors"

// Service errors
var (
	// ErrDatabaseDisabled is returned when a database table is requested
	// but no database is configured.
	ErrDatabaseDisabled = errors.New("database sink is not configured")
	// ErrInputDirRequired is returned when neither the request nor the
	// configuration names an input directory.
	ErrInputDirRequired = errors.New("input directory is required")
)
