package fetcher

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/urlscan/internal/config"
)

// Result is the terminal response of a fetch.
type Result struct {
	StatusCode  int
	Header      http.Header
	Body        []byte
	FinalURL    string
	ContentType string

	// BodyHash is the hex SHA3-256 digest of Body.
	BodyHash string

	// Truncated is true when the body was cut at the size limit.
	Truncated bool
}

// Fetcher issues one GET per URL. It is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*settings)

type settings struct {
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	maxBodySize    int64
	userAgent      string
	proxyURL       string
	insecure       bool
	hosts          *config.File
	transport      http.RoundTripper
	logger         *slog.Logger
}

// WithTimeout sets the per-fetch deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithFollowRedirect enables following 3xx responses.
func WithFollowRedirect(follow bool) Option {
	return func(s *settings) {
		s.followRedirect = follow
	}
}

// WithMaxRedirects sets how many redirects are followed before the last
// response is returned as-is.
func WithMaxRedirects(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.maxRedirects = n
		}
	}
}

// WithMaxBodySize caps the number of body bytes read.
func WithMaxBodySize(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *settings) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithProxy routes requests through a socks5, socks5h, http or https proxy.
func WithProxy(proxyURL string) Option {
	return func(s *settings) {
		s.proxyURL = proxyURL
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify(insecure bool) Option {
	return func(s *settings) {
		s.insecure = insecure
	}
}

// WithHosts applies per-host headers and user agents from the config file.
func WithHosts(f *config.File) Option {
	return func(s *settings) {
		s.hosts = f
	}
}

// WithTransport replaces the base transport. The proxy and TLS options are
// ignored when it is set.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *settings) {
		s.transport = rt
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Fetcher.
func New(opts ...Option) (*Fetcher, error) {
	s := settings{
		timeout:      config.DefaultTimeout,
		maxRedirects: config.DefaultMaxRedirects,
		maxBodySize:  config.DefaultMaxBodySize,
		userAgent:    config.DefaultUserAgent,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	base := s.transport
	if base == nil {
		t, err := newTransport(s.proxyURL, s.timeout, s.insecure)
		if err != nil {
			return nil, err
		}
		base = t
	}

	follow := s.followRedirect
	maxRedirects := s.maxRedirects
	client := &http.Client{
		Transport: &headerInjectingTransport{
			base:      base,
			userAgent: s.userAgent,
			hosts:     s.hosts,
		},
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if !follow || len(via) > maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &Fetcher{
		client:      client,
		timeout:     s.timeout,
		maxBodySize: s.maxBodySize,
		logger:      s.logger,
	}, nil
}

// Timeout returns the per-fetch deadline.
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout
}

// Fetch performs a GET on rawURL. On a body read failure both the partial
// Result and the error are returned, so the status code is not lost.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	target, err := ParseTarget(rawURL)
	if err != nil {
		return nil, &FetchError{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &FetchError{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		fe := f.classify(ctx, rawURL, err)
		f.logger.Debug("fetch failed", "url", rawURL, "kind", fe.Kind.String(), "error", err)
		return nil, fe
	}
	defer resp.Body.Close()

	// Read one extra byte to detect truncation.
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	truncated := int64(len(body)) > f.maxBodySize
	if truncated {
		body = body[:f.maxBodySize]
	}

	result := &Result{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		BodyHash:    hashBody(body),
		Truncated:   truncated,
	}

	if readErr != nil {
		fe := f.classify(ctx, rawURL, readErr)
		f.logger.Debug("body read failed", "url", rawURL, "status", resp.StatusCode, "error", readErr)
		return result, fe
	}

	f.logger.Debug("fetched", "url", rawURL, "status", resp.StatusCode, "bytes", len(body))
	return result, nil
}

// classify maps a transport error onto a FetchError kind. The fetch
// context distinguishes our own deadline from cancellation by the caller.
func (f *Fetcher) classify(ctx context.Context, rawURL string, err error) *FetchError {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return &FetchError{Kind: KindTimeout, URL: rawURL, Timeout: f.timeout, Err: err}
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return &FetchError{Kind: KindCanceled, URL: rawURL, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: KindTimeout, URL: rawURL, Timeout: f.timeout, Err: err}
	}
	return &FetchError{Kind: KindNetwork, URL: rawURL, Err: err}
}

// ParseTarget parses rawURL and checks that it is an absolute http or https
// URL with a host.
func ParseTarget(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, ErrUnsupportedScheme
	}
	if u.Hostname() == "" {
		return nil, ErrMissingHost
	}
	return u, nil
}

func hashBody(body []byte) string {
	sum := sha3.Sum256(body)
	return hex.EncodeToString(sum[:])
}
