package fetch

import "fmt"

// TransportErrorKind classifies transport-level failures.
type TransportErrorKind string

// Transport failure kinds.
const (
	TransportDNSFailure          TransportErrorKind = "dns_failure"
	TransportConnectionRefused   TransportErrorKind = "connection_refused"
	TransportProtocolNegotiation TransportErrorKind = "protocol_negotiation"
	TransportTimeout             TransportErrorKind = "timeout"
	TransportTooManyRedirects    TransportErrorKind = "too_many_redirects"
	TransportHTTPStatus          TransportErrorKind = "http_status"
	TransportUnclassified        TransportErrorKind = "unclassified"
)

// TransportError is returned by a single transport attempt. Fallback to a
// weaker transport is the orchestrator's decision, never the fetcher's.
type TransportError struct {
	Kind       TransportErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Kind == TransportHTTPStatus {
		return fmt.Sprintf("transport %s: %s returned status %d", e.Kind, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transport %s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RenderErrorKind classifies headless-rendering failures.
type RenderErrorKind string

// Render failure kinds.
const (
	RenderLaunchFailure     RenderErrorKind = "browser_launch_failure"
	RenderNavigationTimeout RenderErrorKind = "navigation_timeout"
	RenderBrowserCrash      RenderErrorKind = "browser_crash"
	RenderUnavailable       RenderErrorKind = "unavailable"
)

// RenderError is returned by a JS rendering attempt. The renderer never
// falls back to a static fetch on its own.
type RenderError struct {
	Kind RenderErrorKind
	URL  string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// AcquisitionErrorKind classifies terminal acquisition failures.
type AcquisitionErrorKind string

// Acquisition failure kinds.
const (
	AcquisitionUnreachable    AcquisitionErrorKind = "unreachable"
	AcquisitionInvalidRequest AcquisitionErrorKind = "invalid_request"
)

// AcquisitionError is the only error surfaced to callers of the
// orchestrator: either the request was invalid, or every applicable tier
// was exhausted. Low-level transport errors never escape raw.
type AcquisitionError struct {
	Kind AcquisitionErrorKind
	URL  string
	Err  error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquisition %s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }
