// Package report renders scan responses and persists them.
//
// Three renderers are provided:
//   - MarkdownWriter: a "## Scan Report" section with counters, a result
//     table and a pie chart. Sections are appended to the same file run
//     after run.
//   - JSONWriter: the response as JSON for tool integration.
//   - SimpleWriter: a plain text summary for the terminal.
//
// FileWriter picks a renderer by Format, derives the report file name from
// the input file and returns the path it wrote.
package report
