package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/urlscan/internal/model"
)

// Placeholders used in table cells.
const (
	placeholderNA    = "N/A"
	placeholderEmpty = "-"
)

// sectionTimeFormat is the timestamp layout in section headers.
const sectionTimeFormat = "2006-01-02 15:04:05"

// MarkdownWriter renders one "## Scan Report - <time>" section per
// response, so repeated runs can be appended to a single file.
type MarkdownWriter struct {
	baseWriter

	now func() time.Time
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownClock sets the time source for the section header when the
// response has no FinishedAt.
func WithMarkdownClock(now func() time.Time) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		if now != nil {
			w.now = now
		}
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders resp as a Markdown section.
func (w *MarkdownWriter) Write(resp *model.ScanResponse) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, resp)
	w.writeRows(md, resp)
	w.writePieChart(md, resp)

	return len(md.String()), md.Build()
}

// writeHeader writes the section title and counters.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, resp *model.ScanResponse) {
	at := resp.FinishedAt
	if at.IsZero() {
		at = w.now()
	}

	md.H2("Scan Report - " + at.Format(sectionTimeFormat))
	md.PlainText("")

	items := []string{
		"Input File: `" + resp.InputFile + "`",
		"Total 200 Lines: " + strconv.Itoa(resp.Total200Lines),
		"Total URLs: " + strconv.Itoa(resp.TotalURLs),
		"Succeeded: " + strconv.Itoa(resp.Succeeded),
		"Failed: " + strconv.Itoa(resp.Failed),
	}
	if resp.MatchedLines > 0 {
		items = append(items, "Matched Lines: "+strconv.Itoa(resp.MatchedLines))
	}
	if d := resp.Duration(); d > 0 {
		items = append(items, "Duration: "+d.Round(time.Millisecond).String())
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeRows writes the result table.
func (w *MarkdownWriter) writeRows(md *markdown.Markdown, resp *model.ScanResponse) {
	headers := []string{"URL", "Title", "Components", "Error"}

	if len(resp.Rows) == 0 {
		md.Table(markdown.TableSet{
			Header: headers,
			Rows:   [][]string{{placeholderNA, placeholderNA, placeholderNA, "No URL found in input"}},
		})
		md.PlainText("")
		return
	}

	rows := make([][]string, len(resp.Rows))
	for i, r := range resp.Rows {
		title := r.Title
		if title == "" {
			title = placeholderNA
		}
		components := placeholderNA
		if len(r.Components) > 0 {
			components = strings.Join(r.Components, ", ")
		}
		errText := r.Error
		if errText == "" {
			errText = placeholderEmpty
		}

		rows[i] = []string{
			EscapeCell(r.URL),
			EscapeCell(title),
			EscapeCell(components),
			EscapeCell(errText),
		}
	}

	md.Table(markdown.TableSet{
		Header: headers,
		Rows:   rows,
	})
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of succeeded and failed rows.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, resp *model.ScanResponse) {
	if resp.TotalURLs == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Scan Results"),
		piechart.WithShowData(true),
	)
	if resp.Succeeded > 0 {
		chart.LabelAndIntValue("Succeeded", uint64(resp.Succeeded))
	}
	if resp.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(resp.Failed))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// EscapeCell makes value safe for a single Markdown table cell: line
// breaks become <br/> and pipes are escaped.
func EscapeCell(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")
	value = strings.ReplaceAll(value, "\n", "<br/>")
	return strings.ReplaceAll(value, "|", `\|`)
}
