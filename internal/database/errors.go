package database

import "errors"

var (
	// ErrDatabaseNotFound is returned by Open when the file is missing and
	// CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("history database not found")

	// ErrScanNotFound is returned when no scan has the requested id.
	ErrScanNotFound = errors.New("scan not found")
)
