// Package tor routes scans through the Tor network.
//
// EmbeddedTor starts a private Tor daemon through tornago, so that
// `urlscan scan --tor` works without a system Tor installation. The
// fetcher then uses the daemon's SOCKS5 port as its proxy.
//
// CheckProxy performs a SOCKS5 handshake against a proxy address. It is
// used before a scan starts so that a dead or wrong proxy fails the scan
// once instead of producing a network error for every URL.
package tor
