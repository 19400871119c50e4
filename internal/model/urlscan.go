package model

import (
	"net/http"
	"strings"
)

// URLScan is the work item for one URL as it moves through a pipeline.
// It is owned by a single goroutine and is never shared between tasks.
type URLScan struct {
	// Index is the position of URL in the input list.
	Index int

	// URL is the input string, unmodified.
	URL string

	// StatusCode is the HTTP status of the final response. Zero when the
	// fetch failed before a response arrived.
	StatusCode int

	// FinalURL is the URL of the terminal response after redirects.
	FinalURL string

	// Header holds the response headers of the final response.
	Header http.Header

	// ContentType is the Content-Type header of the final response.
	ContentType string

	// Body is the (possibly truncated) response body.
	Body []byte

	// BodyHash is the hex SHA3-256 digest of Body.
	BodyHash string

	// Fetched is true once a response was received.
	Fetched bool

	// FetchErr is the error returned by the fetcher, if any.
	FetchErr error

	// Title and Components are filled by the analyzer.
	Title      string
	Components []string

	// Errors collects failure messages from every step, in order.
	Errors []string
}

// NewURLScan creates the work item for the URL at index.
func NewURLScan(index int, url string) *URLScan {
	return &URLScan{
		Index:      index,
		URL:        url,
		Components: []string{},
	}
}

// AddError records a failure message. Empty messages are ignored.
func (s *URLScan) AddError(msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	s.Errors = append(s.Errors, msg)
}

// Failed reports whether any step recorded an error.
func (s *URLScan) Failed() bool {
	return len(s.Errors) > 0
}

// Row builds the ScanRow for this work item.
func (s *URLScan) Row() ScanRow {
	components := s.Components
	if components == nil {
		components = []string{}
	}
	return ScanRow{
		URL:        s.URL,
		Title:      s.Title,
		Components: components,
		Error:      strings.Join(s.Errors, "; "),
	}
}

// Indexed packages the outcome for the aggregator.
func (s *URLScan) Indexed() IndexedRow {
	return IndexedRow{
		Index:      s.Index,
		Row:        s.Row(),
		StatusCode: s.StatusCode,
		BodyHash:   s.BodyHash,
	}
}

// IndexedRow is a completed row tagged with its input position and the
// fetch status needed for the 200 counter.
type IndexedRow struct {
	Index      int
	Row        ScanRow
	StatusCode int
	BodyHash   string
}
