// Package main provides the entry point for the urlscan CLI.
//
// urlscan fetches every URL of a list with bounded concurrency, extracts
// the page title and the technologies it detects, and writes a report
// next to the list.
//
// Usage:
//
//	urlscan scan urls.txt
//	urlscan scan --format dirsearch dirsearch_output.txt
//	urlscan history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
