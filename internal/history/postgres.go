package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// db is the slice of pgxpool.Pool the recorder needs; pgxmock satisfies it
// in tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres implements Recorder on a pgx connection pool.
//
// Expected schema:
//
//	CREATE TABLE fetch_history (
//	    id UUID PRIMARY KEY,
//	    url TEXT NOT NULL,
//	    final_url TEXT NOT NULL,
//	    status_code INT NOT NULL,
//	    renderer TEXT NOT NULL,
//	    transport TEXT NOT NULL,
//	    duration_ms BIGINT NOT NULL,
//	    error_kind TEXT,
//	    fetched_at TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	pool db
}

// NewPostgres connects a pool and verifies it with a ping.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (or mock).
func NewPostgresWithPool(pool db) *Postgres {
	return &Postgres{pool: pool}
}

// Record inserts one audit row.
func (p *Postgres) Record(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO fetch_history
			(id, url, final_url, status_code, renderer, transport, duration_ms, error_kind, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := p.pool.Exec(ctx, query,
		entry.ID,
		entry.URL,
		entry.FinalURL,
		entry.StatusCode,
		entry.Renderer,
		entry.Transport,
		entry.DurationMs,
		entry.ErrorKind,
		entry.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fetch history: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
