// Package safehttp provides outbound HTTP transports for fetching
// provider-hosted assets.
package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

const dialTimeout = 5 * time.Second

// ErrPrivateAddress is returned when a dial lands on a private, loopback or
// link-local address.
type ErrPrivateAddress struct {
	IP net.IP
}

func (e *ErrPrivateAddress) Error() string {
	return fmt.Sprintf("access to private IP %s is denied", e.IP)
}

// IsDisallowed reports whether ip must not be reached by outbound fetches.
func IsDisallowed(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// NewTransport returns a transport that checks the resolved remote address
// of every connection. When allowPrivate is true the check is skipped, which
// is only meant for local development and tests against httptest servers.
func NewTransport(allowPrivate bool) *http.Transport {
	dialer := &net.Dialer{Timeout: dialTimeout}

	t := http.DefaultTransport.(*http.Transport).Clone()
	if allowPrivate {
		t.DialContext = dialer.DialContext
		return t
	}

	t.Proxy = nil
	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		ip := net.ParseIP(host)
		if ip == nil {
			conn.Close()
			return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
		}

		if IsDisallowed(ip) {
			conn.Close()
			return nil, &ErrPrivateAddress{IP: ip}
		}

		return conn, nil
	}
	return t
}

// SafeTransport rejects connections to private or loopback IP ranges.
var SafeTransport = NewTransport(false)
