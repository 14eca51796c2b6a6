// Package acquire implements the acquisition orchestrator: tier selection,
// fallback-on-failure, and normalization of whatever a tier produced into
// extracted content with provenance.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fetchkit/fetchkit/internal/capability"
	"github.com/fetchkit/fetchkit/internal/detect"
	"github.com/fetchkit/fetchkit/internal/extract"
	"github.com/fetchkit/fetchkit/internal/fetch"
	"github.com/fetchkit/fetchkit/internal/metrics"
)

// Result is the normalized outcome of one acquisition, annotated with
// which tiers actually produced it.
type Result struct {
	Content    extract.Content
	URL        string
	FinalURL   string
	StatusCode int
	Transport  fetch.Transport
	Renderer   fetch.Renderer
	Elapsed    time.Duration
}

// Options tune orchestrator behavior beyond the capability set.
type Options struct {
	// AutoPromote retries a static result through the JS tier when it looks
	// JS-rendered and the caller expressed no preference. Off by default.
	AutoPromote bool
}

// Orchestrator selects the best available tier combination per request and
// executes it with strictly one-hop-per-axis fallback. It depends only on
// the fetch.Fetcher contract, never on a concrete tier.
type Orchestrator struct {
	caps      capability.Set
	http2     fetch.Fetcher
	http1     fetch.Fetcher
	js        fetch.Fetcher
	pipeline  *extract.Pipeline
	heuristic *detect.Heuristic
	opts      Options
	logger    *zap.Logger
}

// New wires an Orchestrator. http2 and js may be nil when the matching
// capability is unavailable; http1 and pipeline are required.
func New(
	caps capability.Set,
	http2 fetch.Fetcher,
	http1 fetch.Fetcher,
	js fetch.Fetcher,
	pipeline *extract.Pipeline,
	heuristic *detect.Heuristic,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		caps:      caps,
		http2:     http2,
		http1:     http1,
		js:        js,
		pipeline:  pipeline,
		heuristic: heuristic,
		opts:      opts,
		logger:    logger,
	}
}

// Capabilities returns the immutable capability set this orchestrator was
// built with.
func (o *Orchestrator) Capabilities() capability.Set {
	return o.caps
}

// Acquire fetches the URL through the best available tiers and extracts
// its content. Callers receive either a best-effort Result or a kinded
// AcquisitionError, never a raw transport failure.
func (o *Orchestrator) Acquire(ctx context.Context, request fetch.Request) (Result, error) {
	if err := validate(request); err != nil {
		return Result{}, err
	}

	logger := o.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("url", request.URL),
	)

	start := time.Now()
	res, err := o.execute(ctx, request, logger)
	if err != nil {
		return Result{}, err
	}

	content := o.pipeline.Extract(res.Body, finalURL(res, request), res.ContentType)
	elapsed := time.Since(start)

	metrics.RecordFetch(string(res.Renderer), string(res.Transport), "success")
	metrics.ObserveDuration(string(res.Renderer), elapsed)
	logger.Info("acquisition complete",
		zap.String("renderer", string(res.Renderer)),
		zap.String("transport", string(res.Transport)),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", elapsed),
	)

	return Result{
		Content:    content,
		URL:        request.URL,
		FinalURL:   finalURL(res, request),
		StatusCode: res.StatusCode,
		Transport:  res.Transport,
		Renderer:   res.Renderer,
		Elapsed:    elapsed,
	}, nil
}

// transportNone labels error metrics for attempts where no transport was
// negotiated (the JS tier fails before its transport is known).
const transportNone = "none"

// execute runs the renderer-axis selection and fallback. Every failed tier
// attempt is counted against the tier that actually ran.
func (o *Orchestrator) execute(ctx context.Context, request fetch.Request, logger *zap.Logger) (fetch.Result, error) {
	if request.PreferJS && o.caps.JSRendering.Available && o.js != nil {
		res, err := o.js.Fetch(ctx, request)
		if err == nil {
			return res, nil
		}
		metrics.RecordFetch(string(fetch.RendererJS), transportNone, "error")
		// One hop down the renderer axis; static is the floor.
		logger.Warn("js rendering failed, falling back to static", zap.Error(err))
		metrics.RecordFallback("renderer")
		res, staticErr := o.fetchStatic(ctx, request, logger)
		if staticErr != nil {
			return fetch.Result{}, unreachable(request.URL, errors.Join(err, staticErr))
		}
		return res, nil
	}

	res, err := o.fetchStatic(ctx, request, logger)
	if err != nil {
		return fetch.Result{}, unreachable(request.URL, err)
	}
	return o.maybePromote(ctx, request, res, logger), nil
}

// fetchStatic runs the transport-axis selection: HTTP/2 when detected, one
// fallback hop to HTTP/1.1, nothing after that.
func (o *Orchestrator) fetchStatic(ctx context.Context, request fetch.Request, logger *zap.Logger) (fetch.Result, error) {
	if o.caps.HTTP2.Available && o.http2 != nil {
		res, err := o.http2.Fetch(ctx, request)
		if err == nil {
			return res, nil
		}
		metrics.RecordFetch(string(fetch.RendererStatic), string(fetch.TransportHTTP2), "error")
		logger.Warn("http2 fetch failed, falling back to http1", zap.Error(err))
		metrics.RecordFallback("transport")
	}
	res, err := o.http1.Fetch(ctx, request)
	if err != nil {
		metrics.RecordFetch(string(fetch.RendererStatic), string(fetch.TransportHTTP1), "error")
		return fetch.Result{}, err
	}
	return res, nil
}

// maybePromote upgrades a static result through the JS tier when the
// heuristic says the page is a JS shell. A failed promotion keeps the
// static result; this path never degrades a success into an error.
func (o *Orchestrator) maybePromote(ctx context.Context, request fetch.Request, res fetch.Result, logger *zap.Logger) fetch.Result {
	if !o.opts.AutoPromote || request.PreferJS || o.heuristic == nil || o.js == nil {
		return res
	}
	if !o.caps.JSRendering.Available || !o.heuristic.ShouldPromote(res) {
		return res
	}
	logger.Info("static result looks js-rendered, promoting")
	promoted, err := o.js.Fetch(ctx, request)
	if err != nil {
		metrics.RecordFetch(string(fetch.RendererJS), transportNone, "error")
		logger.Warn("js promotion failed, keeping static result", zap.Error(err))
		return res
	}
	return promoted
}

func validate(request fetch.Request) error {
	invalid := func(err error) error {
		return &fetch.AcquisitionError{
			Kind: fetch.AcquisitionInvalidRequest,
			URL:  request.URL,
			Err:  err,
		}
	}
	if request.URL == "" {
		return invalid(errors.New("url must not be empty"))
	}
	u, err := url.Parse(request.URL)
	if err != nil {
		return invalid(fmt.Errorf("parse url: %w", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid(fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return invalid(errors.New("url has no host"))
	}
	return nil
}

func unreachable(url string, cause error) error {
	return &fetch.AcquisitionError{
		Kind: fetch.AcquisitionUnreachable,
		URL:  url,
		Err:  cause,
	}
}

func finalURL(res fetch.Result, request fetch.Request) string {
	if res.FinalURL != "" {
		return res.FinalURL
	}
	return request.URL
}
