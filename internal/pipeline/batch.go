package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/urlscan/internal/model"
)

// defaultConcurrency is used when WithConcurrency is not given.
const defaultConcurrency = 10

// BatchProcessor scans a list of URLs with bounded concurrency. Each URL
// is dispatched exactly once to a fresh pipeline from the factory.
type BatchProcessor struct {
	// pipelineFactory creates the pipeline for one URL.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of pipelines in flight.
	concurrency int

	// limiter, when set, bounds how fast pipelines are started.
	limiter *rate.Limiter

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of in-flight pipelines.
// Non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRateLimit limits pipeline starts to rps per second. Zero or a
// negative value disables the limit.
func WithRateLimit(rps float64) BatchOption {
	return func(b *BatchProcessor) {
		if rps <= 0 {
			b.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     defaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// Concurrency returns the admission limit.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// Process scans urls and calls emit once per URL with its indexed row.
// emit is called from several goroutines and must be safe for concurrent
// use. Rows arrive in completion order, not input order.
//
// Admission blocks while the concurrency limit is reached. The context is
// checked before each admission: URLs not yet dispatched when it is done
// are emitted with the error "canceled" and no request is made. Process
// returns after every emitted row, with the context error if any.
func (bp *BatchProcessor) Process(ctx context.Context, urls []string, emit func(model.IndexedRow)) error {
	bp.logger.Debug("starting batch",
		"total_urls", len(urls),
		"concurrency", bp.concurrency,
		"rate_limited", bp.limiter != nil,
	)
	startTime := time.Now()

	// Tasks never return errors; per-URL failures are row data.
	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, rawURL := range urls {
		if err := bp.admit(ctx); err != nil {
			emit(canceledRow(i, rawURL))
			continue
		}

		g.Go(func() error {
			scan := model.NewURLScan(i, rawURL)
			if err := bp.pipelineFactory().Execute(ctx, scan); err != nil {
				bp.logger.Debug("pipeline stopped", "url", rawURL, "error", err)
			}
			emit(scan.Indexed())
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // Tasks always return nil

	bp.logger.Debug("batch complete",
		"total_urls", len(urls),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}

// ProcessAll is Process with the rows delivered on a channel. The channel
// is buffered for every URL and closed once all rows have been sent.
func (bp *BatchProcessor) ProcessAll(ctx context.Context, urls []string) <-chan model.IndexedRow {
	out := make(chan model.IndexedRow, len(urls))
	go func() {
		defer close(out)
		_ = bp.Process(ctx, urls, func(row model.IndexedRow) { //nolint:errcheck // Cancellation shows up as canceled rows
			out <- row
		})
	}()
	return out
}

// admit waits for the rate limiter, if any, and reports whether the
// context allows another dispatch. Only the context ends the wait: a
// deadline further away than the limiter delay is waited out until it
// actually expires.
func (bp *BatchProcessor) admit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bp.limiter == nil {
		return nil
	}

	r := bp.limiter.Reserve()
	if !r.OK() {
		// Burst is at least 1, so a single token is always reservable.
		return nil
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

func canceledRow(index int, rawURL string) model.IndexedRow {
	scan := model.NewURLScan(index, rawURL)
	scan.AddError(canceledMessage)
	return scan.Indexed()
}
