package model

import (
	"time"
)

// Input formats understood by the loader.
const (
	// InputFormatPlain is a newline-delimited URL list.
	InputFormatPlain = "plain"

	// InputFormatDirsearch is dirsearch-style output where only lines
	// starting with a 200, 301 or 403 status contribute a URL.
	InputFormatDirsearch = "dirsearch"
)

// ScanRequest describes one scan invocation. It is created once by the
// caller and not modified while the scan runs.
type ScanRequest struct {
	// InputFilePath is the path to the URL list.
	InputFilePath string `json:"inputFilePath"`

	// OutputDir is the directory the report is written to.
	// When empty, the directory of InputFilePath is used.
	OutputDir string `json:"outputDir,omitempty"`

	// Concurrency is the maximum number of simultaneous in-flight fetches.
	Concurrency int `json:"concurrency"`

	// TimeoutSeconds is the per-fetch deadline. It covers connection,
	// request and the full body read.
	TimeoutSeconds float64 `json:"timeoutSeconds"`

	// FollowRedirect makes the fetcher follow 3xx responses.
	FollowRedirect bool `json:"followRedirect"`

	// DeleteSourceAfterRun removes the input file once the report is written.
	DeleteSourceAfterRun bool `json:"deleteSourceAfterRun,omitempty"`

	// InputFormat selects how the input file is parsed.
	// Empty means InputFormatPlain.
	InputFormat string `json:"inputFormat,omitempty"`
}

// Timeout returns TimeoutSeconds as a time.Duration.
func (r ScanRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds * float64(time.Second))
}

// ScanRow is the outcome for one input URL.
// A row is successful if and only if Error is empty.
type ScanRow struct {
	// URL is the input string, unmodified. It is the identity of the row.
	URL string `json:"url"`

	// Title is the page title, or empty when none was found.
	Title string `json:"title"`

	// Components holds the detected technology labels in rule order.
	Components []string `json:"components"`

	// Error is a human-readable failure description. Empty on success.
	Error string `json:"error"`
}

// Succeeded reports whether the row has no error.
func (r ScanRow) Succeeded() bool {
	return r.Error == ""
}

// ScanResponse is the aggregated result of a scan.
// Succeeded + Failed == TotalURLs == len(Rows) always holds.
type ScanResponse struct {
	// ReportPath is where the report writer persisted the report.
	// Empty when writing the report failed.
	ReportPath string `json:"reportPath"`

	// Total200Lines counts rows whose fetch returned exactly HTTP 200,
	// regardless of the row's error.
	Total200Lines int `json:"total200Lines"`

	// TotalURLs is the number of input URLs.
	TotalURLs int `json:"totalUrls"`

	// Succeeded counts rows with an empty error.
	Succeeded int `json:"succeeded"`

	// Failed counts rows with a non-empty error.
	Failed int `json:"failed"`

	// Rows holds one row per input URL in input order.
	Rows []ScanRow `json:"rows"`

	// InputFile is the path the URLs were loaded from.
	InputFile string `json:"inputFile,omitempty"`

	// MatchedLines is the number of status-matched lines when the input
	// was dirsearch output. Zero for plain lists.
	MatchedLines int `json:"matchedLines,omitempty"`

	// StartedAt and FinishedAt bound the scan.
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// ReportError describes why the report could not be written.
	ReportError string `json:"reportError,omitempty"`

	// HistoryID is the id under which the scan was saved to the history
	// database. Zero when history is disabled or saving failed.
	HistoryID int64 `json:"historyId,omitempty"`
}

// Duration returns how long the scan took.
func (r *ScanResponse) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Reconciles reports whether the counters agree with the rows.
func (r *ScanResponse) Reconciles() bool {
	return r.Succeeded+r.Failed == r.TotalURLs && r.TotalURLs == len(r.Rows)
}

// FailedRows returns the rows with a non-empty error, in input order.
func (r *ScanResponse) FailedRows() []ScanRow {
	rows := make([]ScanRow, 0, r.Failed)
	for _, row := range r.Rows {
		if !row.Succeeded() {
			rows = append(rows, row)
		}
	}
	return rows
}

// ComponentCounts returns how many rows reported each component label,
// keyed by label.
func (r *ScanResponse) ComponentCounts() map[string]int {
	counts := make(map[string]int)
	for _, row := range r.Rows {
		for _, c := range row.Components {
			counts[c]++
		}
	}
	return counts
}
