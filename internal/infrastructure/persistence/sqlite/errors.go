package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/workflow"
)

const uniquePrefix = "UNIQUE constraint failed: "

// Translate maps driver errors onto the workflow error classes. Unique and
// primary key violations become *port.ConstraintError. A foreign key
// violation names a missing parent row and wraps workflow.ErrNotFound.
// Lock and I/O failures wrap workflow.ErrStoreUnavailable. Other errors are
// returned unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: %v", workflow.ErrStoreUnavailable, err)
	}

	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}

	switch se.Code {
	case sqlite3.ErrConstraint:
		if se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			table, column := parseUnique(se.Error())
			return &port.ConstraintError{Table: table, Column: column, Err: err}
		}
		if se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return fmt.Errorf("%w: %v", workflow.ErrNotFound, err)
		}
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrFull, sqlite3.ErrCantOpen, sqlite3.ErrReadonly:
		return fmt.Errorf("%w: %v", workflow.ErrStoreUnavailable, err)
	}
	return err
}

// parseUnique extracts the first "table.column" from a sqlite unique
// violation message such as "UNIQUE constraint failed: drivers.phone"
func parseUnique(msg string) (table, column string) {
	i := strings.Index(msg, uniquePrefix)
	if i < 0 {
		return "", ""
	}
	target := msg[i+len(uniquePrefix):]
	if j := strings.Index(target, ","); j >= 0 {
		target = target[:j]
	}
	target = strings.TrimSpace(target)

	if dot := strings.Index(target, "."); dot >= 0 {
		return target[:dot], target[dot+1:]
	}
	return "", target
}
