// Package fetcher performs the single HTTP(S) GET issued for each scanned URL.
//
// Every fetch runs under its own deadline covering connect, request and the
// body read. Failures are returned as *FetchError, whose Kind separates
// timeouts, network failures and malformed input. Requests go out directly,
// through an HTTP proxy or through a SOCKS5 proxy such as a Tor daemon.
package fetcher
