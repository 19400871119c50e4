package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/urlscan/internal/config"
)

// newTransport builds the base transport. proxyURL selects a SOCKS5 or
// HTTP proxy; an empty value dials directly.
func newTransport(proxyURL string, dialTimeout time.Duration, insecure bool) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: dialTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // Opt-in via --insecure
		}
	}

	if proxyURL == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch u.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
		socks, err := proxy.SOCKS5("tcp", u.Host, auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = contextDialer(socks)
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProxy, u.Scheme)
	}
	return transport, nil
}

// contextDialer adapts a proxy.Dialer to http.Transport.DialContext.
// Dialers without context support are run in a goroutine so the caller
// still returns on cancellation.
func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()

		select {
		case r := <-resultCh:
			return r.conn, r.err
		case <-ctx.Done():
			go func() {
				if r := <-resultCh; r.conn != nil {
					_ = r.conn.Close() //nolint:errcheck // Late connection after cancel
				}
			}()
			return nil, ctx.Err()
		}
	}
}

// headerInjectingTransport sets the User-Agent and any per-host headers
// from the config file on every request, redirects included.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	hosts     *config.File
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	userAgent := t.userAgent
	if t.hosts != nil {
		hc := t.hosts.ForHost(req.URL.Host)
		if hc.UserAgent != "" {
			userAgent = hc.UserAgent
		}
		for k, v := range hc.Headers {
			clone.Header.Set(k, v)
		}
	}
	if userAgent != "" {
		clone.Header.Set("User-Agent", userAgent)
	}

	return t.base.RoundTrip(clone)
}
