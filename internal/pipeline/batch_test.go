package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/urlscan/internal/analyzer"
	"github.com/nao1215/urlscan/internal/fetcher"
	"github.com/nao1215/urlscan/internal/model"
)

// collector is a concurrency-safe emit target.
type collector struct {
	mu   sync.Mutex
	rows []model.IndexedRow
}

func (c *collector) emit(row model.IndexedRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, row)
}

func (c *collector) byIndex() map[int]model.IndexedRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]model.IndexedRow, len(c.rows))
	for _, r := range c.rows {
		out[r.Index] = r
	}
	return out
}

func urlList(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("http://host%d.example", i)
	}
	return urls
}

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() })
		if bp.Concurrency() != defaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", defaultConcurrency, bp.Concurrency())
		}
		if bp.limiter != nil {
			t.Error("expected no rate limiter by default")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithConcurrency(0))
		if bp.Concurrency() != defaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", defaultConcurrency, bp.Concurrency())
		}
	})

	t.Run("rate limit option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithRateLimit(0.5))
		if bp.limiter == nil {
			t.Fatal("expected a rate limiter")
		}
		if bp.limiter.Burst() != 1 {
			t.Errorf("expected burst 1, got %d", bp.limiter.Burst())
		}

		bp = NewBatchProcessor(func() *Pipeline { return New() }, WithRateLimit(0))
		if bp.limiter != nil {
			t.Error("expected zero rate to disable the limiter")
		}
	})
}

func TestBatchProcessorProcess(t *testing.T) {
	t.Parallel()

	t.Run("every URL yields exactly one row", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "count",
				doFunc: func(_ context.Context, _ *model.URLScan) error {
					calls.Add(1)
					return nil
				},
			})
			return p
		}, WithConcurrency(4))

		urls := urlList(25)
		c := &collector{}
		if err := bp.Process(t.Context(), urls, c.emit); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if calls.Load() != 25 {
			t.Errorf("expected 25 pipeline runs, got %d", calls.Load())
		}
		got := c.byIndex()
		if len(c.rows) != 25 || len(got) != 25 {
			t.Fatalf("expected 25 distinct rows, got %d rows and %d indexes", len(c.rows), len(got))
		}
		for i, u := range urls {
			if got[i].Row.URL != u {
				t.Errorf("row %d: expected %q, got %q", i, u, got[i].Row.URL)
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		const limit = 3
		var current, peak atomic.Int32

		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "sleep",
				doFunc: func(_ context.Context, _ *model.URLScan) error {
					n := current.Add(1)
					for {
						old := peak.Load()
						if n <= old || peak.CompareAndSwap(old, n) {
							break
						}
					}
					time.Sleep(20 * time.Millisecond)
					current.Add(-1)
					return nil
				},
			})
			return p
		}, WithConcurrency(limit))

		c := &collector{}
		if err := bp.Process(t.Context(), urlList(12), c.emit); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > limit {
			t.Errorf("peak concurrency %d exceeded limit %d", peak.Load(), limit)
		}
		if peak.Load() < 2 {
			t.Errorf("expected work to overlap, peak was %d", peak.Load())
		}
	})

	t.Run("canceled context yields canceled rows without dispatch", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "count",
				doFunc: func(_ context.Context, _ *model.URLScan) error {
					calls.Add(1)
					return nil
				},
			})
			return p
		})

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		c := &collector{}
		err := bp.Process(ctx, urlList(5), c.emit)
		if err == nil {
			t.Fatal("expected context error")
		}
		if calls.Load() != 0 {
			t.Errorf("expected no dispatch, got %d", calls.Load())
		}
		if len(c.rows) != 5 {
			t.Fatalf("expected 5 rows, got %d", len(c.rows))
		}
		for _, r := range c.rows {
			if r.Row.Error != "canceled" {
				t.Errorf("expected canceled row, got %q", r.Row.Error)
			}
		}
	})

	t.Run("cancel mid-scan still reconciles", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		var started atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "block",
				doFunc: func(ctx context.Context, scan *model.URLScan) error {
					if started.Add(1) == 2 {
						cancel()
					}
					<-ctx.Done()
					scan.AddError("canceled")
					return nil
				},
			})
			return p
		}, WithConcurrency(2))

		urls := urlList(10)
		agg := NewAggregator(urls)
		_ = bp.Process(ctx, urls, func(r model.IndexedRow) { _ = agg.Add(r) }) //nolint:errcheck // Asserted through the response

		resp := agg.Response()
		if !resp.Reconciles() || resp.TotalURLs != 10 {
			t.Fatalf("response does not reconcile: %+v", resp)
		}
		if resp.Failed != 10 {
			t.Errorf("expected all rows failed, got %d", resp.Failed)
		}
	})

	t.Run("rate limit wait past the deadline ends with the deadline error", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "count",
				doFunc: func(_ context.Context, _ *model.URLScan) error {
					calls.Add(1)
					return nil
				},
			})
			return p
		}, WithRateLimit(0.5))

		ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
		defer cancel()

		start := time.Now()
		c := &collector{}
		err := bp.Process(ctx, urlList(3), c.emit)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
			t.Errorf("expected admission to wait for the deadline, returned after %s", elapsed)
		}
		if calls.Load() != 1 {
			t.Errorf("expected only the burst url to be dispatched, got %d", calls.Load())
		}

		rows := c.byIndex()
		if len(rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(rows))
		}
		if rows[0].Row.Error != "" {
			t.Errorf("expected first url to succeed, got %q", rows[0].Row.Error)
		}
		for _, i := range []int{1, 2} {
			if rows[i].Row.Error != "canceled" {
				t.Errorf("row %d: expected canceled, got %q", i, rows[i].Row.Error)
			}
		}
	})

	t.Run("rate limit wait inside the deadline dispatches every url", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "count",
				doFunc: func(_ context.Context, _ *model.URLScan) error {
					calls.Add(1)
					return nil
				},
			})
			return p
		}, WithRateLimit(10))

		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()

		c := &collector{}
		if err := bp.Process(ctx, urlList(13), c.emit); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls.Load() != 13 {
			t.Errorf("expected 13 dispatches, got %d", calls.Load())
		}
		for _, r := range c.rows {
			if r.Row.Error != "" {
				t.Errorf("url %d: unexpected error %q", r.Index, r.Row.Error)
			}
		}
	})

	t.Run("rate limit spaces out starts", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithRateLimit(20))
		// Burst 20 lets the first 20 through at once; the rest wait.
		start := time.Now()
		c := &collector{}
		if err := bp.Process(t.Context(), urlList(25), c.emit); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
			t.Errorf("expected rate limiting to take at least 200ms, took %s", elapsed)
		}
		if len(c.rows) != 25 {
			t.Errorf("expected 25 rows, got %d", len(c.rows))
		}
	})
}

func TestProcessAllRestoresOrder(t *testing.T) {
	t.Parallel()

	// Earlier URLs respond slower so completions arrive out of order.
	const n = 8
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var i int
		_, _ = fmt.Sscanf(r.URL.Path, "/%d", &i) //nolint:errcheck // Test input is well-formed
		time.Sleep(time.Duration(n-i) * 15 * time.Millisecond)
		fmt.Fprintf(w, "<title>page %d</title>", i)
	}))
	defer srv.Close()

	f, err := fetcher.New(fetcher.WithTimeout(5 * time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := analyzer.New()

	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/%d", srv.URL, i)
	}

	bp := NewBatchProcessor(func() *Pipeline {
		return NewURLPipeline(f, a, nil)
	}, WithConcurrency(n))

	resp := NewAggregator(urls).Aggregate(bp.ProcessAll(t.Context(), urls))

	if !resp.Reconciles() {
		t.Fatalf("response does not reconcile: %+v", resp)
	}
	if resp.Total200Lines != n || resp.Succeeded != n {
		t.Errorf("expected %d successes, got total200=%d succeeded=%d", n, resp.Total200Lines, resp.Succeeded)
	}
	for i, row := range resp.Rows {
		if row.URL != urls[i] {
			t.Errorf("row %d: expected %q, got %q", i, urls[i], row.URL)
		}
		if want := fmt.Sprintf("page %d", i); row.Title != want {
			t.Errorf("row %d: expected title %q, got %q", i, want, row.Title)
		}
	}
}
