// Package history provides the optional fetch-audit store. The acquisition
// core itself is stateless; recording is best-effort and failures are never
// surfaced to the fetch caller.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one audit row describing a completed (or failed) acquisition.
type Entry struct {
	ID         uuid.UUID
	URL        string
	FinalURL   string
	StatusCode int
	Renderer   string
	Transport  string
	DurationMs int64
	ErrorKind  string
	FetchedAt  time.Time
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	Close()
}

// Noop discards all entries. Used when no history backend is configured.
type Noop struct{}

// Record does nothing.
func (Noop) Record(_ context.Context, _ Entry) error { return nil }

// Close does nothing.
func (Noop) Close() {}
