package loader

import "errors"

var (
	// ErrOpenInput is returned when the input file cannot be opened.
	ErrOpenInput = errors.New("open input file")

	// ErrReadInput is returned when reading the input file fails.
	ErrReadInput = errors.New("read input file")

	// ErrEmptyInput is returned when the file yields no URLs.
	ErrEmptyInput = errors.New("input file contains no URLs")

	// ErrUnknownFormat is returned for an unsupported input format.
	ErrUnknownFormat = errors.New("unknown input format")
)
