// Package pipeline runs the per-URL scan steps and schedules them across
// the input list.
//
// Each URL gets its own Pipeline of steps (fetch, analyze, classify) that
// fills a model.URLScan. A BatchProcessor admits one pipeline per URL
// through an errgroup with a concurrency limit, and an Aggregator folds the
// completed rows back into input order.
//
// Per-URL failures never stop a scan: steps record them as row errors and
// the batch keeps going. Only cancellation of the context ends a scan early,
// and even then every URL still yields a row.
package pipeline
