// Package model defines the data structures shared by the scanning engine,
// the report writers and the history database.
//
// The main types are:
//   - ScanRequest: one scan invocation (input file, concurrency, timeout)
//   - ScanRow: the outcome for a single input URL
//   - ScanResponse: the aggregated result of a scan
//   - URLScan: the mutable work item that flows through a per-URL pipeline
//
// Request, row and response carry JSON tags so they can be written as
// reports and stored in the database unchanged.
package model
