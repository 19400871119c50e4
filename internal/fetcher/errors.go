package fetcher

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a fetch failure.
type Kind int

const (
	// KindNetwork covers DNS, connection, TLS, proxy and body read failures.
	KindNetwork Kind = iota

	// KindTimeout means the per-fetch deadline expired.
	KindTimeout

	// KindInvalidURL means the input could not be used as an http(s) URL.
	// No connection is attempted.
	KindInvalidURL

	// KindCanceled means the scan was canceled while the fetch was running.
	KindCanceled
)

// String returns the name used as the prefix of row error messages.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindTimeout:
		return "timeout"
	case KindInvalidURL:
		return "invalid URL"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// FetchError is returned by Fetcher.Fetch.
type FetchError struct {
	Kind Kind
	URL  string

	// Timeout is the deadline that expired, set for KindTimeout.
	Timeout time.Duration

	Err error
}

// Error implements error. Messages start with the kind name, so a timeout
// always mentions "timeout".
func (e *FetchError) Error() string {
	switch e.Kind {
	case KindTimeout:
		if e.Timeout > 0 {
			return fmt.Sprintf("timeout: no response within %s", e.Timeout)
		}
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		if e.Err == nil {
			return e.Kind.String()
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool {
	return hasKind(err, KindTimeout)
}

// IsNetwork reports whether err is a network failure.
func IsNetwork(err error) bool {
	return hasKind(err, KindNetwork)
}

// IsInvalidURL reports whether err was caused by a malformed URL.
func IsInvalidURL(err error) bool {
	return hasKind(err, KindInvalidURL)
}

// IsCanceled reports whether err was caused by scan cancellation.
func IsCanceled(err error) bool {
	return hasKind(err, KindCanceled)
}

func hasKind(err error, kind Kind) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

var (
	// ErrUnsupportedScheme is wrapped when a URL is not http or https.
	ErrUnsupportedScheme = errors.New("scheme must be http or https")

	// ErrMissingHost is wrapped when a URL has no host.
	ErrMissingHost = errors.New("missing host")

	// ErrUnsupportedProxy is returned for a proxy URL with an unknown scheme.
	ErrUnsupportedProxy = errors.New("unsupported proxy scheme")
)
