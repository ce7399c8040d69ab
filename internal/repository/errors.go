// Package repository is the record store: one repo per table over a shared
// *sql.DB.  The sentinel errors below let handlers tell a missing or foreign
// row apart from a store failure without inspecting driver errors.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row does not exist or is owned by another
// user.  Handlers translate it into 404 in both cases so ownership never
// leaks through a different status code.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique index.
var ErrDuplicate = errors.New("duplicate entry")

// ErrOwnerMissing is returned when an insert references a user that does
// not exist (foreign key violation).
var ErrOwnerMissing = errors.New("referenced user does not exist")

// ErrInvalid is returned when MySQL rejects a value the column cannot hold
// (too long, out of range, or failing a CHECK constraint).
var ErrInvalid = errors.New("value rejected by column")

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrDataTooLong     = 1406
	mysqlErrOutOfRange      = 1264
	mysqlErrCheckViolated   = 3819
	mysqlErrNoReferencedRow = 1452
)

// translate maps MySQL constraint violations onto the sentinels above and
// leaves every other error untouched.
func translate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlErrDuplicateEntry:
		return fmt.Errorf("%w: %s", ErrDuplicate, me.Message)
	case mysqlErrNoReferencedRow:
		return fmt.Errorf("%w: %s", ErrOwnerMissing, me.Message)
	case mysqlErrDataTooLong, mysqlErrOutOfRange, mysqlErrCheckViolated:
		return fmt.Errorf("%w: %s", ErrInvalid, me.Message)
	}
	return err
}

// IsNotFound reports whether err means the row is absent, not owned by the
// caller, or references a user that does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrOwnerMissing)
}
