// Package loader reads the list of URLs to scan from a file.
//
// Two formats are supported. A plain list has one URL per line, and blank
// lines and #-comments are skipped. Dirsearch output only contributes lines
// whose leading status is 200, 301 or 403; the first http(s) URL on each
// such line is taken and duplicates are dropped.
package loader
