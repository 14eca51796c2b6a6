// Package fetch defines the value types and contracts shared by the
// transport, rendering, and acquisition layers.
package fetch

import (
	"net/http"
	"time"
)

// Transport identifies which HTTP transport tier produced a result.
type Transport string

// Transport tiers, strongest first.
const (
	TransportHTTP2 Transport = "http2"
	TransportHTTP1 Transport = "http1"
)

// Renderer identifies which rendering tier produced a result.
type Renderer string

// Renderer tiers, strongest first.
const (
	RendererJS     Renderer = "js"
	RendererStatic Renderer = "static"
)

// Request captures everything needed to fetch a single URL. It is an
// immutable per-call value; layers must not mutate it.
type Request struct {
	URL      string
	Timeout  time.Duration
	PreferJS bool
	Headers  http.Header
}

// WithTimeout returns a copy of the request with the timeout replaced.
func (r Request) WithTimeout(d time.Duration) Request {
	r.Timeout = d
	return r
}

// Result is produced by a transport or renderer and consumed by the
// extraction pipeline.
type Result struct {
	Body        []byte
	FinalURL    string
	StatusCode  int
	Headers     http.Header
	ContentType string
	Transport   Transport
	Renderer    Renderer
	Elapsed     time.Duration
}
