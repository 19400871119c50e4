package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/nao1215/urlscan/internal/analyzer"
	"github.com/nao1215/urlscan/internal/fetcher"
	"github.com/nao1215/urlscan/internal/model"
)

// Step names.
const (
	StepFetch   = "fetch"
	StepAnalyze = "analyze"
	StepStatus  = "status"
)

// Fetcher is what FetchStep needs from internal/fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Result, error)
}

// PageAnalyzer is what AnalyzeStep needs from internal/analyzer.
type PageAnalyzer interface {
	AnalyzePage(p analyzer.Page) analyzer.Analysis
}

// FetchStep performs the GET and copies the response onto the scan.
type FetchStep struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewFetchStep creates a FetchStep.
func NewFetchStep(f Fetcher, logger *slog.Logger) *FetchStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchStep{fetcher: f, logger: logger}
}

// Name implements Step.
func (s *FetchStep) Name() string {
	return StepFetch
}

// Do implements Step. A partial response, as returned on a body read
// failure, is kept together with the error.
func (s *FetchStep) Do(ctx context.Context, scan *model.URLScan) error {
	res, err := s.fetcher.Fetch(ctx, scan.URL)
	if res != nil {
		scan.Fetched = true
		scan.StatusCode = res.StatusCode
		scan.FinalURL = res.FinalURL
		scan.Header = res.Header
		scan.ContentType = res.ContentType
		scan.Body = res.Body
		scan.BodyHash = res.BodyHash
	}
	if err != nil {
		scan.FetchErr = err
		scan.AddError(err.Error())
		s.logger.Debug("fetch failed", "url", scan.URL, "error", err)
	}
	return nil
}

// AnalyzeStep extracts the title and components from a fetched page.
// It does nothing when no response was received.
type AnalyzeStep struct {
	analyzer PageAnalyzer
}

// NewAnalyzeStep creates an AnalyzeStep.
func NewAnalyzeStep(a PageAnalyzer) *AnalyzeStep {
	return &AnalyzeStep{analyzer: a}
}

// Name implements Step.
func (s *AnalyzeStep) Name() string {
	return StepAnalyze
}

// Do implements Step.
func (s *AnalyzeStep) Do(_ context.Context, scan *model.URLScan) error {
	if !scan.Fetched {
		return nil
	}

	analysis := s.analyzer.AnalyzePage(analyzer.Page{
		Body:        scan.Body,
		Header:      scan.Header,
		ContentType: scan.ContentType,
	})
	scan.Title = analysis.Title
	if analysis.Components != nil {
		scan.Components = analysis.Components
	}

	// The body is not needed past this point.
	scan.Body = nil
	return nil
}

// StatusStep marks responses with a status of 400 or more as failed. The
// "HTTP <code>" message goes in front of any earlier error, such as a body
// read failure.
type StatusStep struct{}

// NewStatusStep creates a StatusStep.
func NewStatusStep() *StatusStep {
	return &StatusStep{}
}

// Name implements Step.
func (s *StatusStep) Name() string {
	return StepStatus
}

// Do implements Step.
func (s *StatusStep) Do(_ context.Context, scan *model.URLScan) error {
	if !scan.Fetched || scan.StatusCode < http.StatusBadRequest {
		return nil
	}
	scan.Errors = slices.Insert(scan.Errors, 0, fmt.Sprintf("HTTP %d", scan.StatusCode))
	return nil
}

// NewURLPipeline builds the standard fetch, analyze and status pipeline.
func NewURLPipeline(f Fetcher, a PageAnalyzer, logger *slog.Logger) *Pipeline {
	p := New(WithLogger(logger))
	p.AddSteps(
		NewFetchStep(f, logger),
		NewAnalyzeStep(a),
		NewStatusStep(),
	)
	return p
}
