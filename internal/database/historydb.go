package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/urlscan/internal/model"
)

// FileName is the database file name inside the data directory.
const FileName = "urlscan.db"

// HistoryDB provides SQLite-based storage for scan results.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if needed.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

func (hdb *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scan_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		input_file TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		total_urls INTEGER NOT NULL,
		total_200 INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		report_path TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON scan_runs(started_at);

	CREATE TABLE IF NOT EXISTS url_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id INTEGER NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		status_code INTEGER,
		title TEXT,
		components TEXT,
		error TEXT,
		body_hash TEXT,
		UNIQUE(scan_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_results_url ON url_results(url);
	CREATE INDEX IF NOT EXISTS idx_results_scan ON url_results(scan_id);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// ScanSummary is one row of scan_runs.
type ScanSummary struct {
	ID            int64
	InputFile     string
	StartedAt     time.Time
	FinishedAt    time.Time
	TotalURLs     int
	Total200Lines int
	Succeeded     int
	Failed        int
	ReportPath    string
}

// URLResult is one stored row.
type URLResult struct {
	ScanID     int64
	Position   int
	URL        string
	StatusCode int
	Title      string
	Components []string
	Error      string
	BodyHash   string

	// ScannedAt is the start time of the scan the result belongs to. It is
	// only set by URLHistory.
	ScannedAt time.Time
}

// StoredScan is a scan with all of its results in input order.
type StoredScan struct {
	ScanSummary
	Results []URLResult
}

// SaveScan stores resp and its per-URL details in one transaction and
// returns the new scan id. results carries the status code and body hash
// of each row; it may be nil, in which case only the rows are stored.
func (hdb *HistoryDB) SaveScan(ctx context.Context, resp *model.ScanResponse, results []model.IndexedRow) (int64, error) {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // No-op after commit
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO scan_runs (input_file, started_at, finished_at, total_urls, total_200, succeeded, failed, report_path)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		resp.InputFile,
		formatTimestamp(resp.StartedAt),
		formatTimestamp(resp.FinishedAt),
		resp.TotalURLs,
		resp.Total200Lines,
		resp.Succeeded,
		resp.Failed,
		resp.ReportPath,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan: %w", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get scan id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO url_results (scan_id, position, url, status_code, title, components, error, body_hash)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range resp.Rows {
		var status int
		var hash string
		if i < len(results) && results[i].Index == i {
			status = results[i].StatusCode
			hash = results[i].BodyHash
		}

		components, err := json.Marshal(row.Components)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize components: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, scanID, i, row.URL, status, row.Title, string(components), row.Error, hash); err != nil {
			return 0, fmt.Errorf("failed to insert result for %s: %w", row.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan: %w", err)
	}
	return scanID, nil
}

// ListScans returns the most recent scans first. A limit of zero or less
// returns every scan.
func (hdb *HistoryDB) ListScans(ctx context.Context, limit int) ([]ScanSummary, error) {
	query := `
	SELECT id, input_file, started_at, finished_at, total_urls, total_200, succeeded, failed, report_path
	FROM scan_runs
	ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	summaries := make([]ScanSummary, 0)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *s)
	}
	return summaries, rows.Err()
}

// GetScan returns the scan with id, or ErrScanNotFound.
func (hdb *HistoryDB) GetScan(ctx context.Context, id int64) (*StoredScan, error) {
	row := hdb.db.QueryRowContext(ctx, `
	SELECT id, input_file, started_at, finished_at, total_urls, total_200, succeeded, failed, report_path
	FROM scan_runs
	WHERE id = ?`, id)

	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrScanNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := hdb.db.QueryContext(ctx, `
	SELECT scan_id, position, url, status_code, title, components, error, body_hash
	FROM url_results
	WHERE scan_id = ?
	ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	stored := &StoredScan{ScanSummary: *summary, Results: make([]URLResult, 0, summary.TotalURLs)}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		stored.Results = append(stored.Results, *r)
	}
	return stored, rows.Err()
}

// URLHistory returns every stored result for url, newest scan first.
func (hdb *HistoryDB) URLHistory(ctx context.Context, url string) ([]URLResult, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT r.scan_id, r.position, r.url, r.status_code, r.title, r.components, r.error, r.body_hash, s.started_at
	FROM url_results r
	JOIN scan_runs s ON s.id = r.scan_id
	WHERE r.url = ?
	ORDER BY r.scan_id DESC, r.position`, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get url history: %w", err)
	}
	defer rows.Close()

	results := make([]URLResult, 0)
	for rows.Next() {
		var startedAt string
		r, err := scanResult(rows, &startedAt)
		if err != nil {
			return nil, err
		}
		r.ScannedAt = parseTimestamp(startedAt)
		results = append(results, *r)
	}
	return results, rows.Err()
}

// DeleteScan removes a scan and its results.
func (hdb *HistoryDB) DeleteScan(ctx context.Context, id int64) error {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // No-op after commit
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM url_results WHERE scan_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM scan_runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrScanNotFound, id)
	}
	return tx.Commit()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(r rowScanner) (*ScanSummary, error) {
	var s ScanSummary
	var startedAt, finishedAt string
	var reportPath sql.NullString

	if err := r.Scan(&s.ID, &s.InputFile, &startedAt, &finishedAt,
		&s.TotalURLs, &s.Total200Lines, &s.Succeeded, &s.Failed, &reportPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan summary: %w", err)
	}
	s.StartedAt = parseTimestamp(startedAt)
	s.FinishedAt = parseTimestamp(finishedAt)
	s.ReportPath = reportPath.String
	return &s, nil
}

func scanResult(r rowScanner, extra ...any) (*URLResult, error) {
	var res URLResult
	var status sql.NullInt64
	var title, components, errText, hash sql.NullString

	dest := []any{&res.ScanID, &res.Position, &res.URL, &status, &title, &components, &errText, &hash}
	dest = append(dest, extra...)
	if err := r.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}

	res.StatusCode = int(status.Int64)
	res.Title = title.String
	res.Error = errText.String
	res.BodyHash = hash.String
	res.Components = []string{}
	if components.Valid && components.String != "" {
		if err := json.Unmarshal([]byte(components.String), &res.Components); err != nil || res.Components == nil {
			res.Components = []string{}
		}
	}
	return &res, nil
}

// timestampLayout is how times are stored.
const timestampLayout = time.RFC3339Nano

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time if
// none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
