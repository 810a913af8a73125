// Package repository defines the MySQL and in-memory stores behind the
// reservation engine, and the error values they share.  Handlers and the
// engine use these sentinels to tell "nothing there" apart from a
// conflicting write.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when a write would violate a uniqueness
// constraint, such as a seat that already belongs to another ticket.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is the server error number for a duplicate key.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL duplicate key error.
func isDuplicate(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
