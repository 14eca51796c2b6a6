package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fetchkit/fetchkit/internal/fetch"
)

func TestNewHTTP2(t *testing.T) {
	t.Parallel()

	f, err := NewHTTP2(Config{})
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestHTTP2RefusesNegotiatedHTTP1(t *testing.T) {
	t.Parallel()

	// A plaintext server can only speak HTTP/1.1; the fetcher must report a
	// negotiation failure rather than silently downgrade.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "hello over h1")
	}))
	defer srv.Close()

	f, err := NewHTTP2(Config{Timeout: 5 * time.Second})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), fetch.Request{URL: srv.URL})
	require.Error(t, err)

	var terr *fetch.TransportError
	require.True(t, errors.As(err, &terr), "want TransportError, got %T", err)
	require.Equal(t, fetch.TransportProtocolNegotiation, terr.Kind)
}

func TestHTTP2InvalidURL(t *testing.T) {
	t.Parallel()

	f, err := NewHTTP2(Config{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), fetch.Request{URL: "http://exa mple.com"})
	require.Error(t, err)

	var terr *fetch.TransportError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, fetch.TransportUnclassified, terr.Kind)
}

func TestHTTP2Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		fmt.Fprint(w, "late")
	}))
	defer srv.Close()
	defer close(release)

	f, err := NewHTTP2(Config{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), fetch.Request{
		URL:     srv.URL,
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)

	var terr *fetch.TransportError
	require.True(t, errors.As(err, &terr), "want TransportError, got %T", err)
	require.Equal(t, fetch.TransportTimeout, terr.Kind)
}
