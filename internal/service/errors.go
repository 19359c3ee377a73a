// Package service holds the pass & seat occupancy core: the catalog, the
// per-user pass ledger, the seat registry, the on-read time accrual and the
// coordinator that moves passes and seats together in one transaction.
//
// Every failure the core can produce for a known domain condition is one
// of the sentinel errors below.  Callers compare with errors.Is; the HTTP
// layer maps each sentinel to a distinct status and error code.
package service

import "errors"

var (
	// ErrNotFound is returned for an unknown pass definition or user pass,
	// and for a user pass that belongs to a different user.
	ErrNotFound = errors.New("not found")

	// ErrInvalidUser is returned when the acting user does not exist.
	ErrInvalidUser = errors.New("invalid user")

	// ErrAlreadyActive is returned when the user already has an active pass.
	ErrAlreadyActive = errors.New("another pass is already active")

	// ErrExhausted is returned when a time_period pass has no minutes left.
	ErrExhausted = errors.New("pass exhausted")

	// ErrExpired is returned when a pass's expire_at has passed.
	ErrExpired = errors.New("pass expired")

	// ErrNotActive is returned when deactivating a pass that is not active.
	ErrNotActive = errors.New("pass not active")

	// ErrSeatNotFound is returned for an unknown seat id.
	ErrSeatNotFound = errors.New("seat not found")

	// ErrSeatTaken is returned when assigning an occupied seat.
	ErrSeatTaken = errors.New("seat taken")

	// ErrSeatNotOccupied is returned when releasing an empty seat.
	ErrSeatNotOccupied = errors.New("seat not occupied")

	// ErrNotCheckedIn is returned by check-out when the pass holds no seat.
	ErrNotCheckedIn = errors.New("not checked in")

	// ErrConcurrencyConflict is returned by a Store when a transaction lost
	// a lock race (deadlock, lock wait timeout).  The coordinator retries it
	// a bounded number of times before surfacing it.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
