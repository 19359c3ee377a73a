// Package repository holds the MySQL persistence layer.  MySQLStore
// implements the service store over database/sql with row locks; the
// user and token repositories back the auth handlers.  The sentinel values
// below let handlers tell failure scenarios apart without inspecting
// driver errors.
package repository

import "errors"

// ErrUserNotFound is returned by user lookups that match no row.
var ErrUserNotFound = errors.New("user not found")

// ErrPhoneExists is returned when signing up with a phone number that is
// already registered.  Handlers translate it into an HTTP 409 response.
var ErrPhoneExists = errors.New("phone already exists")

// ErrTokenInvalid is returned for unknown, revoked or expired refresh
// tokens.
var ErrTokenInvalid = errors.New("refresh token invalid")
