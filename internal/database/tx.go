package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-sql-driver/mysql"
	"github.com/thenoetrevino/tablero/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Querier is the query surface shared by *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries carries every repository method; it is embedded by both Store
// (autocommit reads) and Tx (transactional reads and writes).
type queries struct {
	q       Querier
	dialect Dialect
}

// Store is the entry point to the ordering store
type Store struct {
	queries
	db *sql.DB
}

// Tx is a running store transaction. Writes are only available here.
type Tx struct {
	queries
}

// NewStore wraps an already migrated connection pool
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{queries: queries{q: db, dialect: dialect}, db: db}
}

// DB exposes the underlying pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect reports the engine in use
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx executes fn within a database transaction. It rolls back when fn
// (or the commit) fails and classifies serialization failures as
// models.ErrTransactionConflict.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		if err := sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(&Tx{queries: queries{q: sqlTx, dialect: s.dialect}}); err != nil {
		return classify(err)
	}

	if err := sqlTx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// WithRetryTx runs WithTx and, when it fails with a transaction conflict,
// runs it exactly once more. fn must be safe to re-run from scratch.
func (s *Store) WithRetryTx(ctx context.Context, fn func(tx *Tx) error) error {
	err := s.WithTx(ctx, fn)
	if errors.Is(err, models.ErrTransactionConflict) {
		slog.Debug("transaction conflict, retrying once", "error", err)
		err = s.WithTx(ctx, fn)
	}
	return err
}

// classify wraps engine serialization failures with ErrTransactionConflict
func classify(err error) error {
	if err == nil || errors.Is(err, models.ErrTransactionConflict) {
		return err
	}
	if IsConflict(err) {
		return fmt.Errorf("%w: %w", models.ErrTransactionConflict, err)
	}
	return err
}

// IsConflict reports whether err is a retryable serialization failure
func IsConflict(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1213, 1205: // deadlock, lock wait timeout
			return true
		}
	}
	return false
}
