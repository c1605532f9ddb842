package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a specific record is not found.
	ErrNotFound = errors.New("requested record not found")

	// ErrDatabaseError is returned for unexpected database errors, including
	// timeouts and cancelled contexts. Driver errors are wrapped inside it.
	ErrDatabaseError = errors.New("database error")

	// ErrDuplicateKey is returned when an insert/update violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")
)

// SQLExecutor is satisfied by *sql.DB and *sql.Tx, so repository methods can
// run inside a transaction or directly on the pool.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Transactor runs fn inside one database transaction. The transaction is
// committed only when fn returns nil; any error rolls everything back.
//
// WithinReadTx runs fn in a read-only REPEATABLE READ transaction, so every
// query fn makes sees the same committed snapshot.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(exec SQLExecutor) error) error
	WithinReadTx(ctx context.Context, fn func(exec SQLExecutor) error) error
}

type sqlTransactor struct {
	db *sql.DB
}

// NewTransactor creates a Transactor over the given pool.
func NewTransactor(db *sql.DB) Transactor {
	return &sqlTransactor{db: db}
}

func (t *sqlTransactor) WithinTx(ctx context.Context, fn func(exec SQLExecutor) error) error {
	return t.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

func (t *sqlTransactor) WithinReadTx(ctx context.Context, fn func(exec SQLExecutor) error) error {
	return t.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (t *sqlTransactor) run(ctx context.Context, opts *sql.TxOptions, fn func(exec SQLExecutor) error) error {
	tx, err := t.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", ErrDatabaseError, err)
	}
	return nil
}

// scanner is an interface satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// dbError wraps a driver or context error so callers can match ErrDatabaseError
// and still reach the cause (context.DeadlineExceeded, *pq.Error).
func dbError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDatabaseError, op, err)
}
