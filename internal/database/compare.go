package database

import (
	"context"
	"slices"
)

// Change names a field that differs between two results for the same URL.
type Change string

// Fields compared between scans.
const (
	ChangeStatus     Change = "status"
	ChangeTitle      Change = "title"
	ChangeComponents Change = "components"
	ChangeBody       Change = "body"
	ChangeError      Change = "error"
)

// URLDiff describes how one URL changed between two scans.
type URLDiff struct {
	URL     string
	Before  URLResult
	After   URLResult
	Changes []Change
}

// Comparison is the difference between two scans. URLs are matched by
// their input string; when a URL appears more than once in a scan, the
// first occurrence is used.
type Comparison struct {
	Before *ScanSummary
	After  *ScanSummary

	// Added are URLs only present in the later scan.
	Added []URLResult

	// Removed are URLs only present in the earlier scan.
	Removed []URLResult

	// Changed are URLs present in both scans with at least one change.
	Changed []URLDiff

	// Unchanged counts URLs present in both scans without changes.
	Unchanged int
}

// HasChanges reports whether anything differs.
func (c *Comparison) HasChanges() bool {
	return len(c.Added) > 0 || len(c.Removed) > 0 || len(c.Changed) > 0
}

// CompareScans loads two scans and compares them.
func (hdb *HistoryDB) CompareScans(ctx context.Context, beforeID, afterID int64) (*Comparison, error) {
	before, err := hdb.GetScan(ctx, beforeID)
	if err != nil {
		return nil, err
	}
	after, err := hdb.GetScan(ctx, afterID)
	if err != nil {
		return nil, err
	}
	return Compare(before, after), nil
}

// Compare diffs two stored scans. Added and Changed follow the order of
// after; Removed follows the order of before.
func Compare(before, after *StoredScan) *Comparison {
	c := &Comparison{
		Before:  &before.ScanSummary,
		After:   &after.ScanSummary,
		Added:   make([]URLResult, 0),
		Removed: make([]URLResult, 0),
		Changed: make([]URLDiff, 0),
	}

	beforeByURL := indexByURL(before.Results)
	afterByURL := indexByURL(after.Results)

	seen := make(map[string]struct{}, len(after.Results))
	for _, a := range after.Results {
		if _, dup := seen[a.URL]; dup {
			continue
		}
		seen[a.URL] = struct{}{}

		b, ok := beforeByURL[a.URL]
		if !ok {
			c.Added = append(c.Added, a)
			continue
		}
		changes := diffResults(b, a)
		if len(changes) == 0 {
			c.Unchanged++
			continue
		}
		c.Changed = append(c.Changed, URLDiff{URL: a.URL, Before: b, After: a, Changes: changes})
	}

	removed := make(map[string]struct{})
	for _, b := range before.Results {
		if _, ok := afterByURL[b.URL]; ok {
			continue
		}
		if _, dup := removed[b.URL]; dup {
			continue
		}
		removed[b.URL] = struct{}{}
		c.Removed = append(c.Removed, b)
	}

	return c
}

func indexByURL(results []URLResult) map[string]URLResult {
	m := make(map[string]URLResult, len(results))
	for _, r := range results {
		if _, ok := m[r.URL]; !ok {
			m[r.URL] = r
		}
	}
	return m
}

func diffResults(before, after URLResult) []Change {
	var changes []Change
	if before.StatusCode != after.StatusCode {
		changes = append(changes, ChangeStatus)
	}
	if before.Title != after.Title {
		changes = append(changes, ChangeTitle)
	}
	if !slices.Equal(before.Components, after.Components) {
		changes = append(changes, ChangeComponents)
	}
	// Results without a body have no hash; that is reported as a status or
	// error change instead.
	if before.BodyHash != "" && after.BodyHash != "" && before.BodyHash != after.BodyHash {
		changes = append(changes, ChangeBody)
	}
	if before.Error != after.Error {
		changes = append(changes, ChangeError)
	}
	return changes
}
