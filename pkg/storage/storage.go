// Package storage defines the persistence seams shared by the domain
// packages. Concrete PostgreSQL, Redis and S3 implementations live in the
// postgres subpackage.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.GetJSON when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a caller's transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// RowScanner is satisfied by *sql.Row and *sql.Rows
type RowScanner interface {
	Scan(dest ...interface{}) error
}

// TxBeginner starts transactions
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// DB is the full database handle used by services
type DB interface {
	DBTX
	TxBeginner
}

// Cache is a JSON value cache with pattern invalidation. Generation
// counters let readers key entries by the current generation so a fill that
// raced an invalidation is never served.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePatterns(ctx context.Context, patterns ...string) error
	Generation(ctx context.Context, key string) (int64, error)
	BumpGeneration(ctx context.Context, key string) (int64, error)
}

// ObjectStore uploads opaque blobs
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}
