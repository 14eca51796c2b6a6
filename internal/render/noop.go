package render

import (
	"context"
	"errors"

	"github.com/fetchkit/fetchkit/internal/fetch"
)

// Noop implements fetch.Fetcher but always fails, indicating that JS
// rendering is not available in the current process.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns a render error since no browser is configured.
func (Noop) Fetch(_ context.Context, request fetch.Request) (fetch.Result, error) {
	return fetch.Result{}, &fetch.RenderError{
		Kind: fetch.RenderUnavailable,
		URL:  request.URL,
		Err:  errors.New("js rendering not available"),
	}
}
