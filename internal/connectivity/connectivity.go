// Package connectivity answers whether the remote provider is reachable.
package connectivity

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Checker reports whether the network path to the provider is usable.
// Implementations must be safe for concurrent use.
type Checker interface {
	Online(ctx context.Context) bool
}

// Static is a fixed connectivity answer, for tests and forced-offline mode.
type Static bool

func (s Static) Online(context.Context) bool { return bool(s) }

// DialChecker probes the provider host with a short TCP dial. A successful
// dial proves DNS resolution and a route, which is all the offline check
// needs; the real request still carries its own timeout.
type DialChecker struct {
	addr    string
	timeout time.Duration
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewDialChecker builds a checker for the host of the given base URL.
// Port defaults from the scheme when the URL does not carry one.
func NewDialChecker(baseURL string, timeout time.Duration) (*DialChecker, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("connectivity: parse base url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("connectivity: base url %q has no host", baseURL)
	}

	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	var d net.Dialer
	return &DialChecker{
		addr:    net.JoinHostPort(u.Hostname(), port),
		timeout: timeout,
		dial:    d.DialContext,
	}, nil
}

// Online dials the provider address once within the checker timeout.
func (c *DialChecker) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return false
	}
	conn.Close() //nolint:errcheck
	return true
}
