// Package repository implements the entity store on MySQL.  Every record
// type (users, services, service centers, bookings, decorators, payments,
// decorator earnings) has its own repo.  Writes that touch a record and its
// child rows run in a transaction scoped to that single record; no method
// ever locks two records.
//
// The sentinel values below are the only outcome vocabulary the store
// exposes.  Higher layers translate them into their own error kinds.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the referenced record does not exist or a
// guarded update matched no record.
var ErrNotFound = errors.New("not found")

// ErrNoChange is returned when a guarded update matched a record but
// modified nothing, typically because the record is already in the
// requested state.
var ErrNoChange = errors.New("no change")

// ErrDuplicate is returned when an insert violates a unique index.
var ErrDuplicate = errors.New("duplicate key")

// isDuplicate reports whether err is a MySQL unique-key violation (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
