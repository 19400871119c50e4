package scanner

import "errors"

var (
	// ErrNoInputFile is returned when the request has no input path.
	ErrNoInputFile = errors.New("input file path is required")

	// ErrInvalidConcurrency is returned for a negative concurrency.
	ErrInvalidConcurrency = errors.New("concurrency must not be negative")

	// ErrInvalidTimeout is returned for a negative or non-finite timeout.
	ErrInvalidTimeout = errors.New("timeout must be a non-negative number of seconds")

	// ErrUnknownInputFormat is returned for an unsupported input format.
	ErrUnknownInputFormat = errors.New("unknown input format")

	// ErrDeleteSource is returned when the input file could not be removed
	// after the scan.
	ErrDeleteSource = errors.New("failed to delete input file")
)
