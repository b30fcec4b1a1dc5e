package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func mysqlErr(number uint16, msg string) error {
	return &mysql.MySQLError{Number: number, Message: msg}
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(mysqlErr(1062, "Duplicate entry 'a@x.com' for key 'users.email'")))
	assert.False(t, isDuplicateKey(mysqlErr(1451, "")))
	assert.False(t, isDuplicateKey(errors.New("plain error")))
	assert.False(t, isDuplicateKey(nil))
}

func TestIsForeignKeyViolation(t *testing.T) {
	// 1451: parent row still referenced, raised on DELETE of the parent.
	assert.True(t, isForeignKeyViolation(mysqlErr(1451,
		"Cannot delete or update a parent row: a foreign key constraint fails")))
	// 1452: child row pointing at a missing parent, raised on INSERT. This is
	// what a parecer insert for a deleted ocorrência produces.
	assert.True(t, isForeignKeyViolation(mysqlErr(1452,
		"Cannot add or update a child row: a foreign key constraint fails")))

	assert.False(t, isForeignKeyViolation(mysqlErr(1062, "")))
	assert.False(t, isForeignKeyViolation(errors.New("1451 in text only")))
	assert.False(t, isForeignKeyViolation(nil))
}

func TestErrNumberUnwrapsDriverError(t *testing.T) {
	wrapped := fmt.Errorf("exec insert: %w", mysqlErr(1452, "fk fails"))
	assert.True(t, isForeignKeyViolation(wrapped))

	// An error whose text merely mentions a number must not match.
	assert.Zero(t, mysqlErrNumber(errors.New("error 1452 occurred")))
}
