package service

import (
	"context"

	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/queue"
)

// CatalogReader exposes the immutable pass catalog.
type CatalogReader interface {
	// ListPassDefinitions returns every definition ordered by id.
	ListPassDefinitions(ctx context.Context) ([]model.PassDefinition, error)
	// GetPassDefinition returns ErrNotFound for an unknown id.
	GetPassDefinition(ctx context.Context, id uint64) (model.PassDefinition, error)
}

// Store is the persistence boundary of the core.  InTx runs fn inside a
// single transaction: a nil return commits, any error aborts and nothing
// fn wrote becomes visible.  Lock races surface as ErrConcurrencyConflict.
type Store interface {
	CatalogReader
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the row-level view of the store inside one transaction.  Getters
// that return a single row lock it until the transaction ends.
type Tx interface {
	CatalogReader

	// GetUser returns ErrInvalidUser when the user does not exist.
	GetUser(ctx context.Context, id uint64) (model.User, error)
	// LockUser takes the per-user lock that serializes check-in, check-out
	// and accrual for one user.  Returns ErrInvalidUser when missing.
	LockUser(ctx context.Context, id uint64) error

	// GetUserPass returns ErrNotFound when the pass does not exist.
	GetUserPass(ctx context.Context, id uint64) (model.UserPass, error)
	// PassOwner returns the user id of a pass without locking its row.
	// Returns ErrNotFound when the pass does not exist.
	PassOwner(ctx context.Context, userPassID uint64) (uint64, error)
	// ListUserPasses returns the user's passes, newest purchase first.
	ListUserPasses(ctx context.Context, userID uint64) ([]model.UserPass, error)
	// ActiveUserPasses returns the user's passes with is_active set.
	ActiveUserPasses(ctx context.Context, userID uint64) ([]model.UserPass, error)
	// InsertUserPass stores p and fills in its ID.
	InsertUserPass(ctx context.Context, p *model.UserPass) error
	// UpdateUserPass overwrites the mutable state of an existing pass.
	UpdateUserPass(ctx context.Context, p model.UserPass) error
	// InsertPurchaseLog appends a purchase record and fills in its ID.
	InsertPurchaseLog(ctx context.Context, l *model.PurchaseLog) error

	// GetSeat returns ErrSeatNotFound for an unknown seat.
	GetSeat(ctx context.Context, id string) (model.Seat, error)
	// SeatByOccupant is the reverse lookup pass -> seat.
	SeatByOccupant(ctx context.Context, userPassID uint64) (model.Seat, bool, error)
	// ListSeats returns every seat ordered by id.
	ListSeats(ctx context.Context) ([]model.Seat, error)
	// UpdateSeat overwrites the occupancy of an existing seat.  The
	// reverse index moves with it.
	UpdateSeat(ctx context.Context, s model.Seat) error
}

// Publisher receives session events after their transaction commits.
type Publisher interface {
	Publish(ctx context.Context, ev queue.SessionEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, queue.SessionEvent) error { return nil }
