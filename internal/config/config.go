package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "urlscan"

	// DefaultConcurrency is the number of simultaneous in-flight fetches
	// when none is given.
	DefaultConcurrency = 30

	// MaxConcurrency caps the requested concurrency. Larger values are
	// clamped rather than rejected.
	MaxConcurrency = 100

	// DefaultTimeout is the per-fetch deadline when none is given.
	DefaultTimeout = 5 * time.Second

	// MaxTimeout caps the per-fetch deadline.
	MaxTimeout = 120 * time.Second

	// DefaultMaxRedirects is the redirect hop limit when following redirects.
	DefaultMaxRedirects = 10

	// DefaultMaxBodySize limits how much of each response body is read.
	// 2MB covers the head of virtually every HTML page.
	DefaultMaxBodySize = 2 << 20

	// DefaultUserAgent is sent with every request. A desktop browser string
	// avoids the bot-specific responses many sites serve to scanners.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultInputFormat is the input file format when none is given.
	DefaultInputFormat = "plain"
)

// Config holds all options for a scan run. It is populated from CLI flags
// and the optional config file and passed down explicitly.
type Config struct {
	// InputFile is the path to the URL list.
	InputFile string

	// InputFormat is "plain" (one URL per line) or "dirsearch".
	InputFormat string

	// Dedupe drops repeated URLs from plain input lists.
	Dedupe bool

	// OutputDir is where the report is written. Empty means the directory
	// of InputFile.
	OutputDir string

	// DeleteSource removes InputFile after the report has been written.
	DeleteSource bool

	// Concurrency is the maximum number of in-flight fetches.
	// Zero means DefaultConcurrency.
	Concurrency int

	// Timeout is the per-fetch deadline covering connect, request and body.
	// Zero means DefaultTimeout.
	Timeout time.Duration

	// FollowRedirect makes the fetcher follow 3xx responses up to
	// MaxRedirects hops.
	FollowRedirect bool

	// MaxRedirects is the redirect hop limit.
	MaxRedirects int

	// RateLimit is the maximum number of requests started per second
	// across the whole scan. Zero disables rate limiting.
	RateLimit float64

	// ProxyURL routes all requests through a proxy. Supported schemes are
	// socks5, socks5h, http and https.
	ProxyURL string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// UserAgent is the User-Agent header sent with each request.
	UserAgent string

	// MaxBodySize is the maximum number of body bytes read per response.
	MaxBodySize int64

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// JSONReport writes the report as JSON instead of Markdown.
	JSONReport bool

	// MarkdownReport writes the report as Markdown. This is the default
	// when neither format is requested.
	MarkdownReport bool

	// SaveHistory stores the scan in the history database.
	SaveHistory bool

	// DBDir is the directory holding the history database.
	DBDir string

	// ConfigFilePath is the path of the config file. Empty means search
	// the current and home directories.
	ConfigFilePath string

	// File holds the settings loaded from the config file.
	File *File

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		InputFormat:       DefaultInputFormat,
		Concurrency:       DefaultConcurrency,
		Timeout:           DefaultTimeout,
		MaxRedirects:      DefaultMaxRedirects,
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		SaveHistory:       true,
		DBDir:             XDGDataDir(),
		File:              NewFile(),
	}
}

// XDGDataDir returns the XDG data directory for urlscan.
// On Linux: ~/.local/share/urlscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for urlscan.
// On Linux: ~/.config/urlscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
// Zero concurrency and timeout are valid and mean "use the default";
// values above the caps are clamped later, not rejected.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InputFile) == "" {
		return ErrNoInputFile
	}

	if c.Concurrency < 0 {
		return ErrInvalidConcurrency
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	switch c.InputFormat {
	case "", "plain", "dirsearch":
	default:
		return ErrUnknownInputFormat
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.UseTor && c.ProxyURL != "" {
		return ErrConflictingProxies
	}

	if c.ProxyURL != "" {
		if err := validateProxyURL(c.ProxyURL); err != nil {
			return err
		}
	}

	return nil
}

func validateProxyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ErrInvalidProxyURL
	}
	switch u.Scheme {
	case "socks5", "socks5h", "http", "https":
		return nil
	default:
		return ErrInvalidProxyURL
	}
}
