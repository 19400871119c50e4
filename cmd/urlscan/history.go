package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/urlscan/internal/config"
	"github.com/nao1215/urlscan/internal/database"
)

// dateFormat is used for timestamps in history output.
const dateFormat = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [scan-id]",
		Short: "Show and compare past scans",
		Long: `History reads the scan history database written by 'urlscan scan'.

Without arguments it lists past scans, newest first. With a scan ID it
shows every row of that scan.

Examples:
  # List the 20 most recent scans
  urlscan history

  # Show scan 12
  urlscan history 12

  # Show one URL across all scans
  urlscan history --url https://example.com/login

  # Show what changed between scan 11 and scan 12
  urlscan history --compare 11 12

  # Delete scan 3
  urlscan history --delete 3`,
		Args: cobra.MaximumNArgs(2),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of scans to list (0 = all)")
	cmd.Flags().StringP("url", "u", "",
		"Show the results of one URL across scans")
	cmd.Flags().Bool("compare", false,
		"Compare two scans given as arguments: <old-id> <new-id>")
	cmd.Flags().Int64("delete", 0,
		"Delete the scan with this ID")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	targetURL, err := flags.GetString("url")
	if err != nil {
		return err
	}
	compare, err := flags.GetBool("compare")
	if err != nil {
		return err
	}
	deleteID, err := flags.GetInt64("delete")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	// Validate arguments before opening the database.
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid scan ID: %q", a)
		}
		ids = append(ids, id)
	}
	switch {
	case compare && len(ids) != 2:
		return errors.New("--compare requires two scan IDs")
	case !compare && len(ids) > 1:
		return errors.New("too many arguments (use --compare to compare two scans)")
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No scan history found.")
		fmt.Fprintln(cmd.OutOrStdout(), "\nUse 'urlscan scan <url-list>' to run a scan.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case deleteID > 0:
		if err := db.DeleteScan(ctx, deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted scan %d\n", deleteID)
		return nil
	case compare:
		return printComparison(ctx, out, db, ids[0], ids[1])
	case targetURL != "":
		return printURLHistory(ctx, out, db, targetURL)
	case len(ids) == 1:
		return printScan(ctx, out, db, ids[0])
	default:
		return printScanList(ctx, out, db, limit)
	}
}

func printScanList(ctx context.Context, out io.Writer, db *database.HistoryDB, limit int) error {
	scans, err := db.ListScans(ctx, limit)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		fmt.Fprintln(out, "No scans found.")
		return nil
	}

	fmt.Fprintf(out, "%-6s  %-19s  %6s  %6s  %6s  %6s  %s\n", "ID", "Date", "URLs", "OK", "Failed", "200", "Input")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, s := range scans {
		fmt.Fprintf(out, "%-6d  %-19s  %6d  %6d  %6d  %6d  %s\n",
			s.ID, formatTime(s.StartedAt), s.TotalURLs, s.Succeeded, s.Failed, s.Total200Lines, s.InputFile)
	}
	fmt.Fprintln(out, "\nUse 'urlscan history <id>' to see the rows of a scan.")
	return nil
}

func printScan(ctx context.Context, out io.Writer, db *database.HistoryDB, id int64) error {
	scan, err := db.GetScan(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Scan %d\n", scan.ID)
	fmt.Fprintf(out, "  Input:     %s\n", scan.InputFile)
	fmt.Fprintf(out, "  Started:   %s\n", formatTime(scan.StartedAt))
	fmt.Fprintf(out, "  Duration:  %s\n", scan.FinishedAt.Sub(scan.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "  URLs:      %d (succeeded %d, failed %d, HTTP 200 %d)\n",
		scan.TotalURLs, scan.Succeeded, scan.Failed, scan.Total200Lines)
	if scan.ReportPath != "" {
		fmt.Fprintf(out, "  Report:    %s\n", scan.ReportPath)
	}
	fmt.Fprintln(out)

	for _, r := range scan.Results {
		fmt.Fprintf(out, "  %s %s\n", statusLabel(r), r.URL)
		if r.Title != "" {
			fmt.Fprintf(out, "        title: %s\n", r.Title)
		}
		if len(r.Components) > 0 {
			fmt.Fprintf(out, "        components: %s\n", strings.Join(r.Components, ", "))
		}
		if r.Error != "" {
			fmt.Fprintf(out, "        error: %s\n", r.Error)
		}
	}
	return nil
}

func printURLHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, target string) error {
	results, err := db.URLHistory(ctx, target)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintf(out, "No history found for %s\n", target)
		return nil
	}

	fmt.Fprintf(out, "History for %s (%d results):\n\n", target, len(results))
	fmt.Fprintf(out, "%-6s  %-19s  %-6s  %-12s  %s\n", "Scan", "Date", "Status", "Body", "Title / Error")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, r := range results {
		detail := r.Title
		if r.Error != "" {
			detail = r.Error
		}
		fmt.Fprintf(out, "%-6d  %-19s  %-6s  %-12s  %s\n",
			r.ScanID, formatTime(r.ScannedAt), statusLabel(r), shortHash(r.BodyHash), detail)
	}
	return nil
}

func printComparison(ctx context.Context, out io.Writer, db *database.HistoryDB, beforeID, afterID int64) error {
	c, err := db.CompareScans(ctx, beforeID, afterID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Comparing scan %d (%s) with scan %d (%s)\n\n",
		c.Before.ID, formatTime(c.Before.StartedAt), c.After.ID, formatTime(c.After.StartedAt))

	if !c.HasChanges() {
		fmt.Fprintf(out, "No changes (%d URLs unchanged).\n", c.Unchanged)
		return nil
	}

	if len(c.Changed) > 0 {
		fmt.Fprintf(out, "CHANGED (%d)\n", len(c.Changed))
		for _, d := range c.Changed {
			fmt.Fprintf(out, "  %s\n", d.URL)
			for _, ch := range d.Changes {
				fmt.Fprintf(out, "    %-10s %s -> %s\n", ch+":", describe(d.Before, ch), describe(d.After, ch))
			}
		}
		fmt.Fprintln(out)
	}
	if len(c.Added) > 0 {
		fmt.Fprintf(out, "ADDED (%d)\n", len(c.Added))
		for _, r := range c.Added {
			fmt.Fprintf(out, "  + %s %s\n", statusLabel(r), r.URL)
		}
		fmt.Fprintln(out)
	}
	if len(c.Removed) > 0 {
		fmt.Fprintf(out, "REMOVED (%d)\n", len(c.Removed))
		for _, r := range c.Removed {
			fmt.Fprintf(out, "  - %s %s\n", statusLabel(r), r.URL)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%d changed, %d added, %d removed, %d unchanged\n",
		len(c.Changed), len(c.Added), len(c.Removed), c.Unchanged)
	return nil
}

// describe renders the field named by ch.
func describe(r database.URLResult, ch database.Change) string {
	var s string
	switch ch {
	case database.ChangeStatus:
		s = statusLabel(r)
	case database.ChangeTitle:
		s = r.Title
	case database.ChangeComponents:
		s = strings.Join(r.Components, ", ")
	case database.ChangeBody:
		s = shortHash(r.BodyHash)
	case database.ChangeError:
		s = r.Error
	}
	if s == "" {
		return "-"
	}
	return s
}

func statusLabel(r database.URLResult) string {
	if r.StatusCode == 0 {
		return "---"
	}
	return strconv.Itoa(r.StatusCode)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateFormat)
}
