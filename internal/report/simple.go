package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/nao1215/urlscan/internal/model"
)

// SimpleWriter outputs a human-readable text summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every row instead of only failed ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every row.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary.
func (w *SimpleWriter) Write(resp *model.ScanResponse) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, resp)
	w.writeComponents(&sb, resp)
	w.writeRows(&sb, resp)
	w.writeFooter(&sb, resp)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, resp *model.ScanResponse) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                           URLSCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	if resp.InputFile != "" {
		fmt.Fprintf(sb, "Input File:      %s\n", resp.InputFile)
	}
	if !resp.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Started:         %s\n", resp.StartedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(sb, "Duration:        %s\n", resp.Duration().Round(time.Millisecond))
	}
	fmt.Fprintf(sb, "Total URLs:      %d\n", resp.TotalURLs)
	fmt.Fprintf(sb, "Total 200 Lines: %d\n", resp.Total200Lines)
	fmt.Fprintf(sb, "Succeeded:       %d\n", resp.Succeeded)
	fmt.Fprintf(sb, "Failed:          %d\n", resp.Failed)
	if resp.MatchedLines > 0 {
		fmt.Fprintf(sb, "Matched Lines:   %d\n", resp.MatchedLines)
	}
	sb.WriteString("\n")
}

// writeComponents lists component labels by how many rows reported them.
func (w *SimpleWriter) writeComponents(sb *strings.Builder, resp *model.ScanResponse) {
	counts := resp.ComponentCounts()
	if len(counts) == 0 {
		return
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nCOMPONENTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
	for _, label := range labels {
		fmt.Fprintf(sb, "  %4d  %s\n", counts[label], label)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRows(sb *strings.Builder, resp *model.ScanResponse) {
	rows := resp.Rows
	title := "RESULTS"
	if !w.verbose {
		rows = resp.FailedRows()
		title = "FAILED URLS"
	}
	if len(rows) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n" + title + "\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, r := range rows {
		marker := "[+]"
		if !r.Succeeded() {
			marker = "[-]"
		}
		fmt.Fprintf(sb, "%s %s\n", marker, r.URL)
		if r.Title != "" {
			fmt.Fprintf(sb, "    Title: %s\n", r.Title)
		}
		if w.verbose && len(r.Components) > 0 {
			fmt.Fprintf(sb, "    Components: %s\n", strings.Join(r.Components, ", "))
		}
		if r.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", r.Error)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder, resp *model.ScanResponse) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	switch {
	case resp.ReportPath != "":
		fmt.Fprintf(sb, "Report: %s\n", resp.ReportPath)
	case resp.ReportError != "":
		fmt.Fprintf(sb, "Report not written: %s\n", resp.ReportError)
	}
	if resp.HistoryID > 0 {
		fmt.Fprintf(sb, "History ID: %d\n", resp.HistoryID)
	}
}
