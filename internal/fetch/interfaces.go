package fetch

import "context"

// Fetcher fetches a URL and returns the body plus metadata. Both transport
// fetchers and renderers satisfy this contract so the orchestrator can
// substitute any tier (including fakes in tests).
type Fetcher interface {
	Fetch(ctx context.Context, request Request) (Result, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, request Request) (Result, error)

// Fetch calls the wrapped function.
func (f FetcherFunc) Fetch(ctx context.Context, request Request) (Result, error) {
	return f(ctx, request)
}
