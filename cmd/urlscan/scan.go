package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/urlscan/internal/analyzer"
	"github.com/nao1215/urlscan/internal/config"
	"github.com/nao1215/urlscan/internal/database"
	"github.com/nao1215/urlscan/internal/fetcher"
	applog "github.com/nao1215/urlscan/internal/log"
	"github.com/nao1215/urlscan/internal/model"
	"github.com/nao1215/urlscan/internal/report"
	"github.com/nao1215/urlscan/internal/scanner"
	"github.com/nao1215/urlscan/internal/tor"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <url-list>",
		Short: "Scan every URL of a list",
		Long: `Scan fetches every URL of the given file and reports, per URL, the page
title, the detected components and any error.

The input is either a plain list with one URL per line (blank lines and
lines starting with # are skipped) or dirsearch output (--format dirsearch),
in which case only lines reporting status 200, 301 or 403 are used.

A row is failed when the fetch failed, timed out or returned a status of
400 or more. The report is written to <name>_report.md next to the input
file, or into --output-dir. Markdown reports are appended, so the file
keeps one section per run.

Examples:
  # Scan with the defaults (30 concurrent requests, 5s timeout)
  urlscan scan urls.txt

  # Follow redirects with a 10s timeout and 50 concurrent requests
  urlscan scan -r -t 10 -c 50 urls.txt

  # Scan dirsearch output and delete it afterwards
  urlscan scan --format dirsearch --delete-source reports/target.txt

  # Route requests through Tor
  urlscan scan --tor onion_urls.txt

  # Write a JSON report into another directory
  urlscan scan --json -o out/ urls.txt`,
		Args: cobra.ExactArgs(1),
		RunE: runScanCmd,
	}

	// Request flags
	cmd.Flags().IntP("concurrency", "c", config.DefaultConcurrency,
		fmt.Sprintf("Maximum number of concurrent requests (max %d)", config.MaxConcurrency))
	cmd.Flags().Float64P("timeout", "t", config.DefaultTimeout.Seconds(),
		fmt.Sprintf("Per-request timeout in seconds (max %.0f)", config.MaxTimeout.Seconds()))
	cmd.Flags().BoolP("follow-redirect", "r", false,
		"Follow HTTP redirects")
	cmd.Flags().Int("max-redirects", config.DefaultMaxRedirects,
		"Maximum number of redirects to follow")
	cmd.Flags().Float64("rate", 0,
		"Maximum number of requests started per second (0 = unlimited)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of body bytes read per response")
	cmd.Flags().BoolP("insecure", "k", false,
		"Skip TLS certificate verification")

	// Proxy flags
	cmd.Flags().String("proxy", "",
		"Proxy URL (socks5://, socks5h://, http:// or https://)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Input flags
	cmd.Flags().String("format", config.DefaultInputFormat,
		"Input format: plain or dirsearch")
	cmd.Flags().Bool("dedupe", false,
		"Scan repeated URLs of a plain list only once")
	cmd.Flags().Bool("delete-source", false,
		"Delete the input file after the report has been written")

	// Output flags
	cmd.Flags().StringP("output-dir", "o", "",
		"Directory for the report (default: directory of the input file)")
	cmd.Flags().BoolP("json", "j", false,
		"Write a JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Write a Markdown report (default)")

	// History flags
	cmd.Flags().Bool("no-history", false,
		"Do not save the scan to the history database")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	// Configuration file
	cmd.Flags().String("config", "",
		"Configuration file path (default: .urlscan.yaml in current or home directory)")

	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the command flags and the config file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if len(args) > 0 {
		cfg.InputFile = args[0]
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	timeoutSeconds, err := flags.GetFloat64("timeout")
	if err != nil {
		return nil, err
	}
	cfg.Timeout = time.Duration(timeoutSeconds * float64(time.Second))
	if cfg.FollowRedirect, err = flags.GetBool("follow-redirect"); err != nil {
		return nil, err
	}
	if cfg.MaxRedirects, err = flags.GetInt("max-redirects"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.InsecureSkipVerify, err = flags.GetBool("insecure"); err != nil {
		return nil, err
	}
	if cfg.ProxyURL, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.InputFormat, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if cfg.Dedupe, err = flags.GetBool("dedupe"); err != nil {
		return nil, err
	}
	if cfg.DeleteSource, err = flags.GetBool("delete-source"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// An explicitly given config file must exist; a missing default one is
	// not an error.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		f, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.File = f
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	return cfg, nil
}

// setupLogger creates the redacting logger. Scanned URLs may carry
// credentials, so every log line goes through the secure handler.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return applog.NewSecureLogger(w, verbose)
}

// runScan executes a scan described by cfg and prints the summary to out.
func runScan(ctx context.Context, cfg *config.Config, out, errOut io.Writer, logger *slog.Logger, extra ...scanner.Option) error {
	proxyURL := cfg.ProxyURL
	if cfg.UseTor {
		embedded, err := startEmbeddedTor(ctx, cfg, errOut, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
		if proxyURL, err = embedded.ProxyURL(); err != nil {
			return err
		}
	}
	if err := checkProxy(ctx, proxyURL); err != nil {
		return err
	}

	opts := []scanner.Option{
		scanner.WithLogger(logger),
		scanner.WithReportWriter(report.NewFileWriter(reportFormat(cfg), report.WithVersion(getVersion()))),
		scanner.WithAnalyzer(analyzer.New(
			analyzer.WithRules(cfg.File.Rules),
			analyzer.WithLogger(logger),
		)),
		scanner.WithFetcherOptions(
			fetcher.WithMaxRedirects(cfg.MaxRedirects),
			fetcher.WithMaxBodySize(cfg.MaxBodySize),
			fetcher.WithUserAgent(cfg.UserAgent),
			fetcher.WithProxy(proxyURL),
			fetcher.WithInsecureSkipVerify(cfg.InsecureSkipVerify),
			fetcher.WithHosts(cfg.File),
		),
		scanner.WithRateLimit(cfg.RateLimit),
		scanner.WithDedupe(cfg.Dedupe),
		scanner.WithProgress(newProgressPrinter(errOut).Update),
	}

	if cfg.SaveHistory {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			// History is optional; the scan itself can still run.
			logger.Warn("history disabled: failed to open database", "dir", cfg.DBDir, "error", err)
		} else {
			defer db.Close()
			opts = append(opts, scanner.WithHistoryStore(db))
		}
	}
	opts = append(opts, extra...)

	req := model.ScanRequest{
		InputFilePath:        cfg.InputFile,
		OutputDir:            cfg.OutputDir,
		Concurrency:          cfg.Concurrency,
		TimeoutSeconds:       cfg.Timeout.Seconds(),
		FollowRedirect:       cfg.FollowRedirect,
		DeleteSourceAfterRun: cfg.DeleteSource,
		InputFormat:          cfg.InputFormat,
	}

	resp, err := scanner.NewEngine(opts...).Run(ctx, req)
	if resp != nil {
		if _, werr := report.NewSimpleWriter(out).Write(resp); werr != nil {
			logger.Warn("failed to print summary", "error", werr)
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("scan canceled: %w", err)
		}
		return err
	}
	return nil
}

// reportFormat selects the report file format from the flags.
func reportFormat(cfg *config.Config) report.Format {
	if cfg.JSONReport {
		return report.FormatJSON
	}
	return report.FormatMarkdown
}

// checkProxy verifies SOCKS proxies before the scan. HTTP proxies are not
// checked; a broken one shows up as per-URL network errors.
func checkProxy(ctx context.Context, proxyURL string) error {
	if proxyURL == "" {
		return nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidProxyURL, err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil
	}

	addr, err := tor.ProxyAddress(proxyURL)
	if err != nil {
		return err
	}
	if status := tor.CheckProxy(ctx, addr); status != tor.ProxyStatusOK {
		return fmt.Errorf("proxy check failed for %s: %w", addr, status.Err())
	}
	return nil
}

// startEmbeddedTor starts the embedded Tor daemon.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, errOut io.Writer, logger *slog.Logger) (*tor.EmbeddedTor, error) {
	fmt.Fprintln(errOut, "Starting embedded Tor daemon...")
	fmt.Fprintln(errOut, "This may take a few minutes while Tor bootstraps.")

	embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Debug("embedded Tor daemon started",
		"socks_addr", embedded.SocksAddr(),
		"control_addr", embedded.ControlAddr(),
	)
	fmt.Fprintf(errOut, "Tor SOCKS proxy: %s\n\n", embedded.SocksAddr())
	return embedded, nil
}
