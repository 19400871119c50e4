package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/urlscan/internal/model"
)

// Writer renders a scan response.
type Writer interface {
	// Write renders resp and returns the number of bytes written.
	Write(resp *model.ScanResponse) (int, error)
}

// Format is a report file format.
type Format string

const (
	// FormatMarkdown appends a section to <name>_report.md.
	FormatMarkdown Format = "markdown"
	// FormatJSON writes <name>_report.json.
	FormatJSON Format = "json"
	// FormatText writes <name>_report.txt.
	FormatText Format = "text"
)

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatText:
		return ".txt"
	default:
		return ".md"
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// FileWriter persists reports next to the input file or in an output
// directory. It is safe for concurrent use only across distinct files.
type FileWriter struct {
	format  Format
	version string
	now     func() time.Time
}

// FileWriterOption configures a FileWriter.
type FileWriterOption func(*FileWriter)

// WithVersion records the tool version in JSON reports.
func WithVersion(version string) FileWriterOption {
	return func(w *FileWriter) {
		w.version = version
	}
}

// WithClock sets the time source used for section headers.
func WithClock(now func() time.Time) FileWriterOption {
	return func(w *FileWriter) {
		if now != nil {
			w.now = now
		}
	}
}

// NewFileWriter creates a FileWriter for format. An unknown format falls
// back to Markdown.
func NewFileWriter(format Format, opts ...FileWriterOption) *FileWriter {
	switch format {
	case FormatMarkdown, FormatJSON, FormatText:
	default:
		format = FormatMarkdown
	}
	w := &FileWriter{
		format: format,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Format returns the file format.
func (w *FileWriter) Format() Format {
	return w.format
}

// Path returns where the report for req is written.
func (w *FileWriter) Path(req model.ScanRequest) string {
	dir := strings.TrimSpace(req.OutputDir)
	if dir == "" {
		dir = filepath.Dir(req.InputFilePath)
	}
	return filepath.Join(dir, FileName(req.InputFilePath, w.format))
}

// Write persists resp and returns the report path. Markdown reports are
// appended; JSON and text reports replace the previous file.
func (w *FileWriter) Write(ctx context.Context, req model.ScanRequest, resp *model.ScanResponse) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := w.Path(req)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if w.format == FormatMarkdown {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644) //nolint:gosec // Reports are meant to be shared
	if err != nil {
		return "", fmt.Errorf("open report file: %w", err)
	}

	var renderer Writer
	switch w.format {
	case FormatJSON:
		renderer = NewFullJSONWriter(f, w.version, WithPrettyPrint())
	case FormatText:
		renderer = NewSimpleWriter(f, WithVerbose(true))
	default:
		renderer = NewMarkdownWriter(f, WithMarkdownClock(w.now))
	}

	if _, err := renderer.Write(resp); err != nil {
		_ = f.Close() //nolint:errcheck // Write error takes precedence
		return "", fmt.Errorf("write report file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report file: %w", err)
	}
	return path, nil
}

// FileName builds "<input name>_report<ext>" from the input path. An input
// without a base name yields "scan_report<ext>".
func FileName(inputFilePath string, format Format) string {
	base := filepath.Base(inputFilePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "scan"
	}
	return name + "_report" + format.Extension()
}
