package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/fetchkit/fetchkit/internal/fetch"
)

// HTTP1 fetches over Colly collectors pinned to HTTP/1.1. It is the
// weakest transport tier and the last stop before the orchestrator reports
// the target unreachable.
//
// Each Fetch builds its own collector so per-request settings (deadline,
// redirect cap) never touch state visible to concurrent fetches; only the
// pinned *http.Transport and its connection pool are shared.
type HTTP1 struct {
	cfg       Config
	transport *http.Transport
}

// NewHTTP1 builds the HTTP/1.1 fetcher. Robots handling is disabled: this
// is a single-URL acquisition tool, not a crawler.
func NewHTTP1(cfg Config) *HTTP1 {
	return &HTTP1{
		cfg:       cfg.withDefaults(),
		transport: newHTTP1Transport(),
	}
}

// Fetch executes a single HTTP/1.1 GET using Colly.
func (f *HTTP1) Fetch(ctx context.Context, request fetch.Request) (fetch.Result, error) {
	var (
		result   fetch.Result
		fetchErr *fetch.TransportError
	)
	start := time.Now()
	collector := f.buildCollector(request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.URL); err != nil {
		if fetchErr != nil {
			return fetch.Result{}, fetchErr
		}
		return fetch.Result{}, classify(request.URL, err)
	}
	if fetchErr != nil {
		return fetch.Result{}, fetchErr
	}
	return result, nil
}

func (f *HTTP1) buildCollector(
	request fetch.Request,
	start time.Time,
	result *fetch.Result,
	fetchErr **fetch.TransportError,
) *colly.Collector {
	collector := colly.NewCollector()
	collector.IgnoreRobotsTxt = true
	collector.MaxBodySize = int(f.cfg.MaxBodyBytes)
	collector.WithTransport(f.transport)
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(attemptTimeout(request, f.cfg))
	collector.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) >= f.cfg.MaxRedirects {
			return errTooManyRedirects
		}
		return nil
	})

	collector.OnRequest(func(r *colly.Request) {
		applyHeaders(*r.Headers, request, "")
	})

	collector.OnResponse(func(r *colly.Response) {
		headers := r.Headers.Clone()
		*result = fetch.Result{
			Body:        append([]byte(nil), r.Body...),
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			Headers:     headers,
			ContentType: headers.Get("Content-Type"),
			Transport:   fetch.TransportHTTP1,
			Renderer:    fetch.RendererStatic,
			Elapsed:     time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= http.StatusBadRequest {
			*fetchErr = statusError(request.URL, r.StatusCode)
			return
		}
		*fetchErr = classify(request.URL, err)
	})

	return collector
}

func (f *HTTP1) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("http1 fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("http1 visit failed: %w", err)
		}
		return nil
	}
}

// newHTTP1Transport builds a pooled transport with HTTP/2 negotiation
// disabled, so this tier never upgrades past HTTP/1.1.
func newHTTP1Transport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{},
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
