package render

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/fetchkit/fetchkit/internal/fetch"
)

func TestNoopAlwaysUnavailable(t *testing.T) {
	t.Parallel()

	n := NewNoop()
	_, err := n.Fetch(context.Background(), fetch.Request{URL: "https://example.com"})
	require.Error(t, err)

	var rerr *fetch.RenderError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, fetch.RenderUnavailable, rerr.Kind)
}

func TestTransportForRespectsHTTP2Gate(t *testing.T) {
	t.Parallel()

	allowed := &Chromedp{cfg: Config{AllowHTTP2: true}}
	require.Equal(t, fetch.TransportHTTP2, allowed.transportFor("h2"))
	require.Equal(t, fetch.TransportHTTP2, allowed.transportFor("h2c"))
	require.Equal(t, fetch.TransportHTTP1, allowed.transportFor("http/1.1"))
	require.Equal(t, fetch.TransportHTTP1, allowed.transportFor(""))

	// With HTTP/2 off the reported transport never exceeds HTTP/1.1, no
	// matter what the browser negotiated.
	gated := &Chromedp{cfg: Config{AllowHTTP2: false}}
	require.Equal(t, fetch.TransportHTTP1, gated.transportFor("h2"))
}

func TestClassifyRenderErrors(t *testing.T) {
	t.Parallel()

	r := &Chromedp{}

	cases := []struct {
		name string
		err  error
		want fetch.RenderErrorKind
	}{
		{"deadline", context.DeadlineExceeded, fetch.RenderNavigationTimeout},
		{"canceled", context.Canceled, fetch.RenderNavigationTimeout},
		{"missing binary", errors.New(`exec: "google-chrome": executable file not found in $PATH`), fetch.RenderLaunchFailure},
		{"crash", errors.New("chrome process exited unexpectedly"), fetch.RenderBrowserCrash},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rerr := r.classify("https://example.com", tc.err)
			require.Equal(t, tc.want, rerr.Kind)
		})
	}
}

func TestResponseMetaCapturesDocumentResponse(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:   200,
			URL:      "https://example.com/final",
			Protocol: "h2",
			Headers:  network.Headers{"Content-Type": "text/html", "Set-Cookie": []interface{}{"a=1", "b=2"}},
		},
	})

	status, headers, url, protocol := meta.snapshotWithFallbacks("https://example.com", "")
	require.Equal(t, 200, status)
	require.Equal(t, "https://example.com/final", url)
	require.Equal(t, "h2", protocol)
	require.Equal(t, "text/html", headers.Get("Content-Type"))
	require.Equal(t, []string{"a=1", "b=2"}, headers.Values("Set-Cookie"))
}

func TestResponseMetaIgnoresSubresources(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404, URL: "https://example.com/missing.png"},
	})

	status, _, url, _ := meta.snapshotWithFallbacks("https://example.com", "https://example.com/loc")
	require.Equal(t, http.StatusOK, status, "no document response means assume 200")
	require.Equal(t, "https://example.com/loc", url, "falls back to the browser location")
}

func TestResponseMetaFallsBackToRequestURL(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	status, headers, url, protocol := meta.snapshotWithFallbacks("https://example.com", "")
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, headers)
	require.Equal(t, "https://example.com", url)
	require.Empty(t, protocol)
}

func TestCheckoutHonorsCancellation(t *testing.T) {
	t.Parallel()

	r := &Chromedp{cfg: Config{MaxParallel: 1}, limiter: make(chan struct{}, 1)}
	require.NoError(t, r.checkout(context.Background()))
	require.Equal(t, int64(1), r.InFlight())

	// Pool exhausted: a canceled waiter must not leak a slot.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.checkout(ctx)
	require.Error(t, err)
	require.Equal(t, int64(1), r.InFlight())

	r.checkin()
	require.Equal(t, int64(0), r.InFlight())
	require.NoError(t, r.checkout(context.Background()))
	r.checkin()
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	h := http.Header{
		"X-Single": {"one"},
		"X-Multi":  {"a", "b"},
	}
	converted := toNetworkHeaders(h)
	require.Equal(t, "one", converted["X-Single"])
	require.Equal(t, []string{"a", "b"}, converted["X-Multi"])
}
