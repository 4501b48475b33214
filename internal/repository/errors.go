// Package repository implements data access over MySQL.  Repositories
// hold a *sql.DB and expose plain methods for single reads plus ...Tx
// variants that operate inside a caller-owned transaction.  The sentinel
// errors below let handlers distinguish failure classes without parsing
// messages.
package repository

import "errors"

// ErrNotFound is returned when a referenced entity does not exist.
// Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict signals that live state no longer supports the operation:
// stock that can no longer cover an approval at commit time, or an
// appointment status that moved under a concurrent transition.  Handlers
// translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrPrecondition signals that the entity exists but is in a state the
// operation does not accept, e.g. resolving an already-resolved conflict
// aggregate.  Handlers translate it into HTTP 422.
var ErrPrecondition = errors.New("precondition not met")

// ErrEmailExists is returned by user creation when the email is taken.
var ErrEmailExists = errors.New("email already exists")
