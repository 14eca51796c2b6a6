// Package transport provides the two interchangeable HTTP fetchers: an
// HTTP/2-capable client and an HTTP/1.1 client. Both satisfy fetch.Fetcher
// and fail with kinded TransportErrors; neither falls back to the other on
// its own.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/fetchkit/fetchkit/internal/fetch"
)

// Config controls both transport fetchers.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int64
}

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 5
	defaultMaxBodyBytes = 10 * 1024 * 1024
)

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	return c
}

var errTooManyRedirects = errors.New("stopped after too many redirects")

// applyHeaders merges the browser-profile defaults under the per-request
// headers and sets the user agent.
func applyHeaders(h http.Header, request fetch.Request, userAgent string) {
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Upgrade-Insecure-Requests", "1")
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	for key, values := range request.Headers {
		h.Del(key)
		for _, v := range values {
			h.Add(key, v)
		}
	}
}

// attemptTimeout picks the hard deadline for one fetch attempt: the
// per-request timeout when set, else the configured default.
func attemptTimeout(request fetch.Request, cfg Config) time.Duration {
	if request.Timeout > 0 {
		return request.Timeout
	}
	return cfg.Timeout
}

// readBody drains the response up to the configured cap. Bodies over the
// cap are truncated rather than failed; extraction is best-effort anyway.
func readBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// classify maps a low-level fetch failure onto the transport error
// taxonomy.
func classify(url string, err error) *fetch.TransportError {
	kind := fetch.TransportUnclassified

	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, errTooManyRedirects):
		kind = fetch.TransportTooManyRedirects
	case errors.Is(err, context.DeadlineExceeded):
		kind = fetch.TransportTimeout
	case errors.As(err, &dnsErr):
		kind = fetch.TransportDNSFailure
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = fetch.TransportConnectionRefused
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = fetch.TransportTimeout
	case isProtocolNegotiationErr(err):
		kind = fetch.TransportProtocolNegotiation
	}

	return &fetch.TransportError{Kind: kind, URL: url, Err: err}
}

// isProtocolNegotiationErr spots ALPN/h2 negotiation failures, which have
// no sentinel in the stdlib or x/net error surface.
func isProtocolNegotiationErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "http2") ||
		strings.Contains(msg, "HTTP/2") ||
		strings.Contains(msg, "no application protocol")
}

// statusError converts a well-formed but failing HTTP response into a
// transport error so the orchestrator treats it like any other attempt
// failure.
func statusError(url string, status int) *fetch.TransportError {
	return &fetch.TransportError{
		Kind:       fetch.TransportHTTPStatus,
		URL:        url,
		StatusCode: status,
	}
}
