// Package sqlite opens embedded SQLite databases through sqlx and the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite"
)

const (
	defaultBusyTimeoutMS = 5000
	defaultReadConns     = 4
)

// DSN builds a file DSN with WAL journaling, foreign keys and a busy timeout.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", defaultBusyTimeoutMS))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "synchronous(NORMAL)")

	return "file:" + path + "?" + q.Encode()
}

// New opens the database at path and applies schema. SQLite allows one writer
// at a time, so the pool is limited to a single connection. Pair it with
// NewReader to keep reads off that connection.
func New(ctx context.Context, path, schema string) (*sqlx.DB, error) {
	const op = "sqlite.New"

	db, err := sqlx.ConnectContext(ctx, "sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	db.SetMaxOpenConns(1)

	if schema != "" {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: failed to apply schema: %w", op, err)
		}
	}

	return db, nil
}

// ReaderDSN builds a DSN for query-only connections to an existing database.
// WAL lets them read while the writer holds a transaction.
func ReaderDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", defaultBusyTimeoutMS))
	q.Add("_pragma", "query_only(1)")

	return "file:" + path + "?" + q.Encode()
}

// NewReader opens a pool of up to maxConns query-only connections to the
// database at path. The database must have been created by New.
func NewReader(ctx context.Context, path string, maxConns int) (*sqlx.DB, error) {
	const op = "sqlite.NewReader"

	if maxConns <= 0 {
		maxConns = defaultReadConns
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", ReaderDSN(path))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	return db, nil
}
