package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Format selects how an input file is parsed.
type Format string

const (
	// FormatPlain is one URL per line.
	FormatPlain Format = "plain"

	// FormatDirsearch is dirsearch result output.
	FormatDirsearch Format = "dirsearch"
)

// maxLineSize bounds a single input line.
const maxLineSize = 1024 * 1024

var (
	statusLine = regexp.MustCompile(`^\s*(200|301|403)\b`)
	urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// Input is the result of loading a URL list.
type Input struct {
	// URLs are the loaded URLs in file order.
	URLs []string

	// MatchedLines is the number of status-matched lines in dirsearch
	// input. It is zero for plain input.
	MatchedLines int
}

// Option configures Load.
type Option func(*options)

type options struct {
	format Format
	dedupe bool
}

// WithFormat selects the input format. An empty format means FormatPlain.
func WithFormat(f Format) Option {
	return func(o *options) {
		if f != "" {
			o.format = f
		}
	}
}

// WithDedupe drops repeated URLs from plain input, keeping the first.
// Dirsearch input is always de-duplicated.
func WithDedupe(dedupe bool) Option {
	return func(o *options) {
		o.dedupe = dedupe
	}
}

// Load reads the URL list at path. Failing to open or read the file, or a
// file without any URL, is an error.
func Load(path string, opts ...Option) (*Input, error) {
	o := options{format: FormatPlain}
	for _, opt := range opts {
		opt(&o)
	}
	if o.format != FormatPlain && o.format != FormatDirsearch {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, o.format)
	}

	f, err := os.Open(path) //nolint:gosec // User-provided input path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenInput, err)
	}
	defer f.Close()

	in, err := Parse(f, o.format, o.dedupe)
	if err != nil {
		return nil, err
	}
	if len(in.URLs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyInput, path)
	}
	return in, nil
}

// Parse reads URLs from r in the given format. It does not treat an empty
// result as an error.
func Parse(r io.Reader, format Format, dedupe bool) (*Input, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), maxLineSize)

	in := &Input{URLs: make([]string, 0)}
	seen := make(map[string]struct{})
	add := func(u string, unique bool) {
		if unique {
			if _, ok := seen[u]; ok {
				return
			}
			seen[u] = struct{}{}
		}
		in.URLs = append(in.URLs, u)
	}

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		switch format {
		case FormatDirsearch:
			if !statusLine.MatchString(line) {
				continue
			}
			in.MatchedLines++
			if u := urlPattern.FindString(line); u != "" {
				add(u, true)
			}
		case FormatPlain:
			// The row keeps the line as written; the fetcher trims it.
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			add(line, dedupe)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}

	return in, nil
}
