// Package repository provides the data-access layer over MySQL. Each
// repository is a thin struct around *sql.DB issuing single-statement,
// context-bound queries. Sentinel errors let handlers map failure
// scenarios to HTTP statuses without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no active row.
// Handlers translate it into HTTP 404 (or 401 for credentials).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when registration collides with an
// existing account (emails are unique case-insensitively).
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint other than the email one — notably the one-download-per-
// transaction guard. Callers that expect at-least-once delivery treat
// it as "already done".
var ErrDuplicate = errors.New("duplicate record")

// isDuplicateKey reports whether err is MySQL error 1062.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
