package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/fetchkit/fetchkit/internal/fetch"
)

// HTTP2 fetches over an HTTP/2-capable client. It must only be constructed
// when the HTTP/2 capability was detected; a response that did not
// negotiate h2 is a protocol-negotiation failure, not a silent downgrade.
type HTTP2 struct {
	cfg    Config
	client *http.Client
}

// NewHTTP2 builds the HTTP/2 fetcher.
func NewHTTP2(cfg Config) (*HTTP2, error) {
	cfg = cfg.withDefaults()

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	if _, err := http2.ConfigureTransports(tr); err != nil {
		return nil, fmt.Errorf("configure http2 transport: %w", err)
	}

	client := &http.Client{
		Transport: tr,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}

	return &HTTP2{cfg: cfg, client: client}, nil
}

// Fetch executes a single GET over HTTP/2. The request timeout is a hard
// deadline covering connection plus full body read.
func (f *HTTP2) Fetch(ctx context.Context, request fetch.Request) (fetch.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeout(request, f.cfg))
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, request.URL, nil)
	if err != nil {
		return fetch.Result{}, &fetch.TransportError{
			Kind: fetch.TransportUnclassified,
			URL:  request.URL,
			Err:  err,
		}
	}
	applyHeaders(httpReq.Header, request, f.cfg.UserAgent)

	start := time.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return fetch.Result{}, classify(request.URL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read side already handled

	if resp.ProtoMajor != 2 {
		return fetch.Result{}, &fetch.TransportError{
			Kind: fetch.TransportProtocolNegotiation,
			URL:  request.URL,
			Err:  fmt.Errorf("server negotiated %s instead of HTTP/2", resp.Proto),
		}
	}

	body, err := readBody(resp.Body, f.cfg.MaxBodyBytes)
	if err != nil {
		return fetch.Result{}, classify(request.URL, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fetch.Result{}, statusError(request.URL, resp.StatusCode)
	}

	return fetch.Result{
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header.Clone(),
		ContentType: resp.Header.Get("Content-Type"),
		Transport:   fetch.TransportHTTP2,
		Renderer:    fetch.RendererStatic,
		Elapsed:     time.Since(start),
	}, nil
}
