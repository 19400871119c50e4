package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoInputFile is returned when no URL list file is given.
	ErrNoInputFile = errors.New("no input file specified")

	// ErrInvalidConcurrency is returned for a negative concurrency.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must not be negative")

	// ErrInvalidTimeout is returned for a negative timeout.
	ErrInvalidTimeout = errors.New("invalid timeout: must not be negative")

	// ErrInvalidMaxRedirects is returned for a negative redirect limit.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must not be negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrUnknownInputFormat is returned for an input format other than
	// plain or dirsearch.
	ErrUnknownInputFormat = errors.New("unknown input format: must be plain or dirsearch")

	// ErrInvalidRateLimit is returned for a negative rate limit.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must not be negative")

	// ErrInvalidMaxBodySize is returned for a negative body size limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must not be negative")

	// ErrInvalidProxyURL is returned when the proxy URL cannot be parsed or
	// uses an unsupported scheme.
	ErrInvalidProxyURL = errors.New("invalid proxy URL: expected socks5://, socks5h://, http:// or https:// with a host")

	// ErrConflictingProxies is returned when --tor and --proxy are both given.
	ErrConflictingProxies = errors.New("conflicting proxies: --tor and --proxy cannot be used together")
)
