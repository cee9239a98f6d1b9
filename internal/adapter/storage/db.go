package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/rl1809/kiosk-ledger/internal/core/mapper"
	"github.com/rl1809/kiosk-ledger/internal/platform/logger"
)

// DBTX is implemented by both *sql.DB and *sql.Tx, so a store can run on the
// pool or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction runs fn on one transaction. The transaction is committed
// when fn returns nil and rolled back on error or panic; either way its
// connection goes back to the pool before RunInTransaction returns.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", rbErr.Error()),
					slog.Any("panic", p))
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rbErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf("rollback tx: %v (original error: %w)", rbErr, err)
		}
		log.Debug("rolled back transaction", slog.String("error", err.Error()))
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", slog.String("error", err.Error()))
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// deadlockRetries bounds how often runAtomic restarts a transaction that
// InnoDB chose as a deadlock victim.
const deadlockRetries = 3

// runAtomic runs fn in a new transaction when q is the pool, or directly on
// q when it already is a transaction. A transaction it owns is retried when
// it loses a deadlock; a caller-owned transaction gets the error back.
func runAtomic(ctx context.Context, q DBTX, fn func(ctx context.Context, q DBTX) error) error {
	db, ok := q.(*sql.DB)
	if !ok {
		return fn(ctx, q)
	}

	var err error
	for attempt := 0; attempt <= deadlockRetries; attempt++ {
		err = RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			return fn(ctx, tx)
		})
		if !isDeadlock(err) {
			return err
		}
		logger.FromContext(ctx).Debug("retrying deadlocked transaction", slog.Int("attempt", attempt+1))
	}
	return err
}

// queryRows runs query and scans every result row into a flat mapper.Row.
func queryRows(ctx context.Context, q DBTX, query string, args ...any) ([]mapper.Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []mapper.Row
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(mapper.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
