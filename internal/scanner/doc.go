// Package scanner is the entry point of a scan.
//
// Engine.Run takes a model.ScanRequest and performs the whole scan:
//
//  1. normalize and validate the request
//  2. load the URL list (plain or dirsearch)
//  3. fetch and analyze every URL under the concurrency limit
//  4. aggregate the rows in input order
//  5. persist the report and, optionally, the scan history
//  6. optionally delete the input file
//
// Failures before any URL is dispatched are returned as errors with no
// response. Failures of individual URLs are row data. A report or history
// failure never discards the rows.
package scanner
