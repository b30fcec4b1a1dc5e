// Package repository defines error values that are reused across multiple
// repositories. These sentinel values allow higher layers such as handlers
// to distinguish failure scenarios without inspecting driver error text.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicateIdentity is returned when an insert collides with an existing
// unique value (e-mail, CPF, or sistema name/key). Handlers translate this
// into an HTTP 409 response.
var ErrDuplicateIdentity = errors.New("duplicate identity")

// ErrConflict is returned when a statement trips a foreign key: deleting a
// row that children still reference, or inserting a child whose parent does
// not exist. Handlers translate this into an HTTP 409 or 404 depending on
// the operation.
var ErrConflict = errors.New("conflict")

// MySQL server error numbers this package maps to sentinels.
const (
	mysqlErrDuplicateEntry   = 1062 // ER_DUP_ENTRY
	mysqlErrRowIsReferenced  = 1451 // ER_ROW_IS_REFERENCED_2, raised on DELETE/UPDATE of a parent
	mysqlErrNoReferencedRow  = 1452 // ER_NO_REFERENCED_ROW_2, raised on INSERT/UPDATE of a child
)

// mysqlErrNumber unwraps the driver error and returns its server error
// number, or 0 when err did not come from the MySQL server.
func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicateKey detects a unique-key collision.
func isDuplicateKey(err error) bool {
	return mysqlErrNumber(err) == mysqlErrDuplicateEntry
}

// isForeignKeyViolation detects both foreign-key failure shapes: a parent
// row still referenced by children (1451) and a child row pointing at a
// missing parent (1452).
func isForeignKeyViolation(err error) bool {
	n := mysqlErrNumber(err)
	return n == mysqlErrRowIsReferenced || n == mysqlErrNoReferencedRow
}
