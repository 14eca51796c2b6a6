// Package render contains the JS rendering tier: fetchers that execute
// JavaScript in a headless browser before serializing the DOM.
package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/fetchkit/fetchkit/internal/fetch"
	"github.com/fetchkit/fetchkit/internal/metrics"
)

// Config controls the behavior of the chromedp renderer.
type Config struct {
	ExecPath          string
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	SettleWait        time.Duration
	// AllowHTTP2 gates the browser's own transport negotiation so rendered
	// results never report a stronger transport tier than was detected at
	// startup.
	AllowHTTP2 bool
}

// Chromedp implements fetch.Fetcher by navigating with a pooled headless
// browser, waiting a bounded settle period, and returning the rendered DOM.
type Chromedp struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	inFlight    atomic.Int64
}

// NewChromedp creates the renderer and its browser allocator.
func NewChromedp(cfg Config) (*Chromedp, error) {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.SettleWait <= 0 {
		cfg.SettleWait = 1500 * time.Millisecond
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if !cfg.AllowHTTP2 {
		opts = append(opts, chromedp.Flag("disable-http2", true))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Chromedp{
		cfg:         cfg,
		limiter:     make(chan struct{}, cfg.MaxParallel),
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, tearing down pooled browsers.
func (r *Chromedp) Close() {
	r.allocCancel()
}

// InFlight reports the number of checked-out page-load sessions. Tests use
// it as a resource-leak counter.
func (r *Chromedp) InFlight() int64 {
	return r.inFlight.Load()
}

// Fetch renders the page and returns the serialized DOM. Any browser
// failure surfaces as a RenderError; the fallback decision belongs to the
// orchestrator.
func (r *Chromedp) Fetch(ctx context.Context, request fetch.Request) (fetch.Result, error) {
	if err := r.checkout(ctx); err != nil {
		return fetch.Result{}, &fetch.RenderError{
			Kind: fetch.RenderLaunchFailure,
			URL:  request.URL,
			Err:  err,
		}
	}
	defer r.checkin()

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()

	timeout := r.cfg.NavigationTimeout
	if request.Timeout > 0 {
		timeout = request.Timeout
	}
	taskCtx, cancel := context.WithTimeout(taskCtx, timeout)
	defer cancel()

	// Propagate caller cancellation into the browser session.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := r.runHeadless(taskCtx, request)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return fetch.Result{}, r.classify(request.URL, err)
	}

	status, headers, responseURL, protocol := meta.snapshotWithFallbacks(request.URL, finalURL)

	return fetch.Result{
		Body:        []byte(html),
		FinalURL:    responseURL,
		StatusCode:  status,
		Headers:     headers,
		ContentType: headers.Get("Content-Type"),
		Transport:   r.transportFor(protocol),
		Renderer:    fetch.RendererJS,
		Elapsed:     time.Since(start),
	}, nil
}

func (r *Chromedp) runHeadless(ctx context.Context, request fetch.Request) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		r.networkSetupAction(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Bounded settle: fixed delay plus a scroll to trigger lazy loads.
		chromedp.Sleep(r.cfg.SettleWait),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (r *Chromedp) networkSetupAction(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// checkout claims a page-load session slot, blocking until one frees up or
// the caller cancels.
func (r *Chromedp) checkout(ctx context.Context) error {
	select {
	case r.limiter <- struct{}{}:
		metrics.SetBrowserSessions(r.inFlight.Add(1))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser session wait canceled: %w", ctx.Err())
	}
}

func (r *Chromedp) checkin() {
	metrics.SetBrowserSessions(r.inFlight.Add(-1))
	<-r.limiter
}

func (r *Chromedp) classify(url string, err error) *fetch.RenderError {
	kind := fetch.RenderBrowserCrash
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = fetch.RenderNavigationTimeout
	case errors.Is(err, context.Canceled):
		kind = fetch.RenderNavigationTimeout
	case strings.Contains(msg, "executable file not found"),
		strings.Contains(msg, "exec:"),
		strings.Contains(msg, "failed to start"):
		kind = fetch.RenderLaunchFailure
	}
	return &fetch.RenderError{Kind: kind, URL: url, Err: err}
}

func (r *Chromedp) transportFor(protocol string) fetch.Transport {
	if r.cfg.AllowHTTP2 && (protocol == "h2" || protocol == "h2c") {
		return fetch.TransportHTTP2
	}
	return fetch.TransportHTTP1
}

// responseMeta collects status/header/protocol details for the document
// response from CDP network events.
type responseMeta struct {
	mu       sync.RWMutex
	status   int
	headers  http.Header
	url      string
	protocol string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.protocol = event.Response.Protocol
	m.mu.Unlock()
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string, string) {
	m.mu.RLock()
	status, headers, url, protocol := m.status, m.headers.Clone(), m.url, m.protocol
	m.mu.RUnlock()

	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	if headers == nil {
		headers = http.Header{}
	}
	return status, headers, url, protocol
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
