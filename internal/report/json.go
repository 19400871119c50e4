package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/urlscan/internal/model"
)

// JSONWriter outputs responses as JSON.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs resp as JSON.
func (w *JSONWriter) Write(resp *model.ScanResponse) (int, error) {
	return w.writeJSON(resp)
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a response with the version of the tool that produced it.
type JSONReport struct {
	// Version is the urlscan version that generated this report.
	Version string `json:"version,omitempty"`

	// Report is the scan response.
	Report *model.ScanResponse `json:"report"`

	// Components counts rows per detected component.
	Components map[string]int `json:"components,omitempty"`
}

// NewJSONReport creates a JSONReport.
func NewJSONReport(resp *model.ScanResponse, version string) *JSONReport {
	return &JSONReport{
		Version:    version,
		Report:     resp,
		Components: resp.ComponentCounts(),
	}
}

// FullJSONWriter outputs responses wrapped in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a FullJSONWriter.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs resp wrapped with metadata.
func (w *FullJSONWriter) Write(resp *model.ScanResponse) (int, error) {
	return w.writeJSON(NewJSONReport(resp, w.version))
}
