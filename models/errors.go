package models

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrProfileNotFound = errors.New("user profile not found")
	// ErrNotReady is returned when a refinement left the ready state before
	// its option could be applied.
	ErrNotReady = errors.New("refinement is not ready")
	// ErrTableMissing is returned by optional side tables that are not deployed.
	ErrTableMissing = errors.New("table does not exist")
)

// MySQL server error 1146: ER_NO_SUCH_TABLE.
const mysqlErrNoSuchTable = 1146

// IsMissingTable reports whether err is MySQL's "table doesn't exist".
func IsMissingTable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrNoSuchTable
	}
	return errors.Is(err, ErrTableMissing)
}

// ErrDuplicate is returned when an insert hits a unique index.
var ErrDuplicate = errors.New("duplicate entry")

// MySQL server error 1062: ER_DUP_ENTRY.
const mysqlErrDupEntry = 1062

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDupEntry
}
