package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nao1215/urlscan/internal/analyzer"
	"github.com/nao1215/urlscan/internal/fetcher"
	"github.com/nao1215/urlscan/internal/loader"
	"github.com/nao1215/urlscan/internal/model"
	"github.com/nao1215/urlscan/internal/pipeline"
	"github.com/nao1215/urlscan/internal/report"
)

// ReportWriter persists a scan response and returns where it was written.
type ReportWriter interface {
	Write(ctx context.Context, req model.ScanRequest, resp *model.ScanResponse) (string, error)
}

// HistoryStore saves completed scans.
type HistoryStore interface {
	SaveScan(ctx context.Context, resp *model.ScanResponse, results []model.IndexedRow) (int64, error)
}

// ProgressFunc is called once per completed URL. Calls are serialized.
// done counts the rows received so far, including row.
type ProgressFunc func(done, total int, row model.ScanRow)

// Engine runs scans. An Engine holds no per-scan state and may run several
// scans concurrently as long as its collaborators allow it.
type Engine struct {
	reportWriter ReportWriter
	history      HistoryStore
	analyzer     pipeline.PageAnalyzer
	fetcherOpts  []fetcher.Option
	rateLimit    float64
	dedupe       bool
	progress     ProgressFunc
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithReportWriter sets the report writer. The default writes an appended
// Markdown report next to the input file.
func WithReportWriter(w ReportWriter) Option {
	return func(e *Engine) {
		e.reportWriter = w
	}
}

// WithHistoryStore saves every scan to store.
func WithHistoryStore(store HistoryStore) Option {
	return func(e *Engine) {
		e.history = store
	}
}

// WithAnalyzer replaces the default page analyzer.
func WithAnalyzer(a pipeline.PageAnalyzer) Option {
	return func(e *Engine) {
		if a != nil {
			e.analyzer = a
		}
	}
}

// WithFetcherOptions adds options applied to the fetcher of every scan.
// The request's timeout and redirect policy always take precedence.
func WithFetcherOptions(opts ...fetcher.Option) Option {
	return func(e *Engine) {
		e.fetcherOpts = append(e.fetcherOpts, opts...)
	}
}

// WithRateLimit limits request starts to rps per second.
func WithRateLimit(rps float64) Option {
	return func(e *Engine) {
		e.rateLimit = rps
	}
}

// WithDedupe drops repeated URLs from plain input lists.
func WithDedupe(dedupe bool) Option {
	return func(e *Engine) {
		e.dedupe = dedupe
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.reportWriter == nil {
		e.reportWriter = report.NewFileWriter(report.FormatMarkdown)
	}
	if e.analyzer == nil {
		e.analyzer = analyzer.New(analyzer.WithLogger(e.logger))
	}
	return e
}

// Run performs the scan described by req.
//
// Precondition failures return a nil response. Otherwise a response is
// always returned. The error is non-nil when ctx was canceled during the
// scan (undispatched URLs are then reported as "canceled") or when the
// input file could not be deleted.
func (e *Engine) Run(ctx context.Context, req model.ScanRequest) (*model.ScanResponse, error) {
	req, err := Normalize(req)
	if err != nil {
		return nil, err
	}

	in, err := loader.Load(req.InputFilePath,
		loader.WithFormat(loader.Format(req.InputFormat)),
		loader.WithDedupe(e.dedupe),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load input: %w", err)
	}

	f, err := e.newFetcher(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	e.logger.Debug("starting scan",
		"input", req.InputFilePath,
		"format", req.InputFormat,
		"urls", len(in.URLs),
		"concurrency", req.Concurrency,
		"timeout", req.Timeout(),
		"follow_redirect", req.FollowRedirect,
	)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.NewURLPipeline(f, e.analyzer, e.logger)
		},
		pipeline.WithConcurrency(req.Concurrency),
		pipeline.WithRateLimit(e.rateLimit),
		pipeline.WithBatchLogger(e.logger),
	)
	agg := pipeline.NewAggregator(in.URLs, pipeline.WithAggregatorLogger(e.logger))

	startedAt := time.Now()
	runErr := bp.Process(ctx, in.URLs, e.collector(agg, len(in.URLs)))

	resp := agg.Response()
	resp.InputFile = req.InputFilePath
	resp.MatchedLines = in.MatchedLines
	resp.StartedAt = startedAt
	resp.FinishedAt = time.Now()

	// The rows are already complete, so persist them even when canceled.
	persistCtx := context.WithoutCancel(ctx)

	reportPath, reportErr := e.reportWriter.Write(persistCtx, req, resp)
	if reportErr != nil {
		e.logger.Warn("failed to write report", "input", req.InputFilePath, "error", reportErr)
		resp.ReportPath = ""
		resp.ReportError = reportErr.Error()
	} else {
		resp.ReportPath = reportPath
	}

	if e.history != nil {
		id, err := e.history.SaveScan(persistCtx, resp, agg.Results())
		if err != nil {
			e.logger.Warn("failed to save scan history", "error", err)
		} else {
			resp.HistoryID = id
		}
	}

	e.logger.Debug("scan complete",
		"total", resp.TotalURLs,
		"succeeded", resp.Succeeded,
		"failed", resp.Failed,
		"total_200", resp.Total200Lines,
		"elapsed", resp.Duration(),
	)

	if runErr != nil {
		return resp, fmt.Errorf("scan interrupted: %w", runErr)
	}

	if req.DeleteSourceAfterRun {
		if reportErr != nil {
			e.logger.Warn("keeping input file because the report was not written", "input", req.InputFilePath)
			return resp, nil
		}
		if err := os.Remove(req.InputFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return resp, fmt.Errorf("%w: %w", ErrDeleteSource, err)
		}
	}

	return resp, nil
}

// newFetcher builds the fetcher for one scan.
func (e *Engine) newFetcher(req model.ScanRequest) (*fetcher.Fetcher, error) {
	opts := make([]fetcher.Option, 0, len(e.fetcherOpts)+3)
	opts = append(opts, fetcher.WithLogger(e.logger))
	opts = append(opts, e.fetcherOpts...)
	opts = append(opts,
		fetcher.WithTimeout(req.Timeout()),
		fetcher.WithFollowRedirect(req.FollowRedirect),
	)
	return fetcher.New(opts...)
}

// collector returns the emit function handed to the batch processor. It
// feeds the aggregator and reports progress one row at a time.
func (e *Engine) collector(agg *pipeline.Aggregator, total int) func(model.IndexedRow) {
	var mu sync.Mutex
	done := 0
	return func(row model.IndexedRow) {
		if err := agg.Add(row); err != nil {
			return
		}
		if e.progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		e.progress(done, total, row.Row)
	}
}
