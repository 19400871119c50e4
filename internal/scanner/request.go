package scanner

import (
	"fmt"
	"math"
	"strings"

	"github.com/nao1215/urlscan/internal/config"
	"github.com/nao1215/urlscan/internal/model"
)

// Normalize validates req and fills in defaults. Zero concurrency and
// timeout select the defaults; larger values are clamped to the caps.
func Normalize(req model.ScanRequest) (model.ScanRequest, error) {
	req.InputFilePath = strings.TrimSpace(req.InputFilePath)
	if req.InputFilePath == "" {
		return req, ErrNoInputFile
	}

	switch {
	case req.Concurrency < 0:
		return req, fmt.Errorf("%w: %d", ErrInvalidConcurrency, req.Concurrency)
	case req.Concurrency == 0:
		req.Concurrency = config.DefaultConcurrency
	case req.Concurrency > config.MaxConcurrency:
		req.Concurrency = config.MaxConcurrency
	}

	maxSeconds := config.MaxTimeout.Seconds()
	switch t := req.TimeoutSeconds; {
	case math.IsNaN(t), math.IsInf(t, 0), t < 0:
		return req, fmt.Errorf("%w: %v", ErrInvalidTimeout, t)
	case t == 0:
		req.TimeoutSeconds = config.DefaultTimeout.Seconds()
	case t > maxSeconds:
		req.TimeoutSeconds = maxSeconds
	}
	// A positive timeout that rounds to a zero duration would fall back to
	// the fetcher default instead of the requested deadline.
	if req.Timeout() <= 0 {
		return req, fmt.Errorf("%w: %v is below one nanosecond", ErrInvalidTimeout, req.TimeoutSeconds)
	}

	switch req.InputFormat {
	case "":
		req.InputFormat = model.InputFormatPlain
	case model.InputFormatPlain, model.InputFormatDirsearch:
	default:
		return req, fmt.Errorf("%w: %q", ErrUnknownInputFormat, req.InputFormat)
	}

	return req, nil
}
