// Package database stores scan history in SQLite.
//
// Every completed scan is saved as a scan_runs row with one url_results row
// per input URL, including the HTTP status and the SHA3-256 hash of the
// body. The history command reads these back to list past scans, show the
// history of a single URL and compare two scans.
//
// The database is a single file opened through modernc.org/sqlite, which is
// CGO-free.
package database
