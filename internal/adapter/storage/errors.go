package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
)

// MySQL server error numbers
const (
	errDupEntry          = 1062
	errLockDeadlock      = 1213
	errDataTooLong       = 1406
	errRowIsReferenced   = 1451
	errNoReferencedRow   = 1452
	errBadNull           = 1048
	errTruncatedWrongVal = 1366
)

// MapError maps driver errors onto domain errors, keeping the original in
// the chain.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDupEntry:
			return fmt.Errorf("%w: %w", domain.ErrDuplicate, err)
		case errRowIsReferenced, errNoReferencedRow, errDataTooLong, errBadNull, errTruncatedWrongVal:
			return fmt.Errorf("%w: %w", domain.ErrInvalidEntity, err)
		}
	}
	return err
}

func isDeadlock(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errLockDeadlock
}

// checkRowsAffected returns notFound when result touched no rows.
func checkRowsAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
