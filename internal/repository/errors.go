// Package repository defines the persistence layer for users and tasks and
// the sentinel errors shared by its implementations.  Handlers and services
// match these with errors.Is; the raw driver error is wrapped for logging.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist, or when a
// conditional update matched no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a write violates the unique email index.
var ErrDuplicateEmail = errors.New("email already exists")

// ErrDuplicateName is returned when a write violates the unique name index.
var ErrDuplicateName = errors.New("name already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// mapDuplicate translates a MySQL duplicate-key error into the matching
// sentinel based on the violated index name.  Any other error is returned
// unchanged.
func mapDuplicate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return err
	}
	switch {
	case strings.Contains(me.Message, "uq_users_email"):
		return ErrDuplicateEmail
	case strings.Contains(me.Message, "uq_users_name"):
		return ErrDuplicateName
	}
	return err
}
