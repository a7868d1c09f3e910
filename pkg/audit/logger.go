package audit

import (
	"context"
	"database/sql"
)

// Execer is the slice of database/sql needed to append a record. Both
// *sql.DB and *sql.Tx satisfy it, so records can join the transaction of
// the change they describe.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Logger appends audit records.
type Logger interface {
	Log(ctx context.Context, db Execer, record *Record) error
}

// NopLogger discards records. Used in tests that do not assert on audit
// output.
type NopLogger struct{}

// Log does nothing.
func (NopLogger) Log(context.Context, Execer, *Record) error { return nil }
