package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/nao1215/urlscan/internal/model"
)

var (
	// ErrIndexOutOfRange is returned by Add for an index outside the input.
	ErrIndexOutOfRange = errors.New("row index out of range")

	// ErrDuplicateIndex is returned by Add for an index already recorded.
	ErrDuplicateIndex = errors.New("duplicate row index")
)

// missingMessage is the error of a row that never arrived.
const missingMessage = "no result"

// Aggregator collects indexed rows from concurrent pipelines and builds
// the ordered ScanResponse. Add may be called from any goroutine.
type Aggregator struct {
	mu     sync.Mutex
	urls   []string
	rows   []*model.IndexedRow
	added  int
	logger *slog.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithAggregatorLogger sets the logger.
func WithAggregatorLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// NewAggregator creates an Aggregator for the given input list.
func NewAggregator(urls []string, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		urls: urls,
		rows: make([]*model.IndexedRow, len(urls)),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Add records row at its index. Out-of-range and repeated indexes are
// rejected and logged so that nothing is counted twice.
func (a *Aggregator) Add(row model.IndexedRow) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if row.Index < 0 || row.Index >= len(a.rows) {
		a.logger.Warn("rejected row", "index", row.Index, "url", row.Row.URL, "reason", "out of range")
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, row.Index)
	}
	if a.rows[row.Index] != nil {
		a.logger.Warn("rejected row", "index", row.Index, "url", row.Row.URL, "reason", "duplicate")
		return fmt.Errorf("%w: %d", ErrDuplicateIndex, row.Index)
	}

	r := row
	a.rows[row.Index] = &r
	a.added++
	return nil
}

// Added returns how many rows have been recorded.
func (a *Aggregator) Added() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.added
}

// Aggregate adds every row from the channel until it is closed and returns
// the response.
func (a *Aggregator) Aggregate(rows <-chan model.IndexedRow) *model.ScanResponse {
	for row := range rows {
		_ = a.Add(row) //nolint:errcheck // Rejections are logged by Add
	}
	return a.Response()
}

// Response builds the ScanResponse from the rows recorded so far. Rows
// that never arrived are reported as failed.
func (a *Aggregator) Response() *model.ScanResponse {
	a.mu.Lock()
	defer a.mu.Unlock()

	resp := &model.ScanResponse{
		TotalURLs: len(a.rows),
		Rows:      make([]model.ScanRow, len(a.rows)),
	}

	for i, r := range a.rows {
		row := a.rowAt(i, r)
		resp.Rows[i] = row.Row
		if row.StatusCode == http.StatusOK {
			resp.Total200Lines++
		}
		if row.Row.Succeeded() {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp
}

// Results returns every indexed row in input order, including placeholders
// for missing rows.
func (a *Aggregator) Results() []model.IndexedRow {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.IndexedRow, len(a.rows))
	for i, r := range a.rows {
		out[i] = a.rowAt(i, r)
	}
	return out
}

func (a *Aggregator) rowAt(i int, r *model.IndexedRow) model.IndexedRow {
	if r != nil {
		return *r
	}
	scan := model.NewURLScan(i, a.urls[i])
	scan.AddError(missingMessage)
	return scan.Indexed()
}
