package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fetchkit/fetchkit/internal/fetch"
)

func TestConfigWithDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, 5, cfg.MaxRedirects)
	require.Equal(t, int64(10*1024*1024), cfg.MaxBodyBytes)

	custom := Config{Timeout: time.Second, MaxRedirects: 2, MaxBodyBytes: 1024}.withDefaults()
	require.Equal(t, time.Second, custom.Timeout)
	require.Equal(t, 2, custom.MaxRedirects)
	require.Equal(t, int64(1024), custom.MaxBodyBytes)
}

func TestApplyHeadersRequestOverridesDefaults(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	req := fetch.Request{Headers: http.Header{
		"Accept":   {"application/json"},
		"X-Custom": {"yes"},
	}}
	applyHeaders(h, req, "test-agent")

	require.Equal(t, "application/json", h.Get("Accept"))
	require.Equal(t, "yes", h.Get("X-Custom"))
	require.Equal(t, "test-agent", h.Get("User-Agent"))
	require.Equal(t, "en-US,en;q=0.9", h.Get("Accept-Language"))
}

func TestAttemptTimeoutPrefersRequest(t *testing.T) {
	t.Parallel()

	cfg := Config{Timeout: 30 * time.Second}
	require.Equal(t, 5*time.Second, attemptTimeout(fetch.Request{Timeout: 5 * time.Second}, cfg))
	require.Equal(t, 30*time.Second, attemptTimeout(fetch.Request{}, cfg))
}

func TestClassifyKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want fetch.TransportErrorKind
	}{
		{"redirect limit", errTooManyRedirects, fetch.TransportTooManyRedirects},
		{"deadline", context.DeadlineExceeded, fetch.TransportTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid"}, fetch.TransportDNSFailure},
		{"refused", syscall.ECONNREFUSED, fetch.TransportConnectionRefused},
		{"alpn", errors.New("tls: no application protocol"), fetch.TransportProtocolNegotiation},
		{"h2 stream", errors.New("http2: stream closed"), fetch.TransportProtocolNegotiation},
		{"other", errors.New("mystery"), fetch.TransportUnclassified},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			terr := classify("https://example.com", tc.err)
			require.Equal(t, tc.want, terr.Kind)
			require.ErrorIs(t, terr, tc.err)
		})
	}
}

func TestClassifyWrappedError(t *testing.T) {
	t.Parallel()

	wrapped := &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	terr := classify("https://example.com", wrapped)
	require.Equal(t, fetch.TransportConnectionRefused, terr.Kind)
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	terr := statusError("https://example.com", 503)
	require.Equal(t, fetch.TransportHTTPStatus, terr.Kind)
	require.Equal(t, 503, terr.StatusCode)
	require.Contains(t, terr.Error(), "503")
}
