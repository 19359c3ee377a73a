package service

import (
	"context"

	"github.com/iliyamo/studycafe-seat-pass/internal/clock"
	"github.com/iliyamo/studycafe-seat-pass/internal/model"
)

// SeatRegistry owns seat occupancy.  The seat row's occupant is the single
// source of truth; the pass -> seat lookup is the store's index over it and
// moves in the same write.
type SeatRegistry struct {
	clock clock.Clock
}

// NewSeatRegistry returns a registry reading time from clk.
func NewSeatRegistry(clk clock.Clock) *SeatRegistry { return &SeatRegistry{clock: clk} }

// Assign puts userPassID on seatID.  A seat holds at most one pass and a
// pass holds at most one seat.
func (r *SeatRegistry) Assign(ctx context.Context, tx Tx, seatID string, userPassID uint64) (model.Seat, error) {
	seat, err := tx.GetSeat(ctx, seatID)
	if err != nil {
		return model.Seat{}, err
	}
	if seat.Occupied() {
		return model.Seat{}, ErrSeatTaken
	}
	if _, held, err := tx.SeatByOccupant(ctx, userPassID); err != nil {
		return model.Seat{}, err
	} else if held {
		return model.Seat{}, ErrAlreadyActive
	}
	now := r.clock.Now()
	seat.OccupantUserPassID = &userPassID
	seat.OccupiedAt = &now
	if err := tx.UpdateSeat(ctx, seat); err != nil {
		return model.Seat{}, err
	}
	return seat, nil
}

// Release empties seatID.
func (r *SeatRegistry) Release(ctx context.Context, tx Tx, seatID string) (model.Seat, error) {
	seat, err := tx.GetSeat(ctx, seatID)
	if err != nil {
		return model.Seat{}, err
	}
	if !seat.Occupied() {
		return model.Seat{}, ErrSeatNotOccupied
	}
	seat.OccupantUserPassID = nil
	seat.OccupiedAt = nil
	if err := tx.UpdateSeat(ctx, seat); err != nil {
		return model.Seat{}, err
	}
	return seat, nil
}

// OccupantOf returns the pass on seatID, or nil when the seat is free.
func (r *SeatRegistry) OccupantOf(ctx context.Context, tx Tx, seatID string) (*uint64, error) {
	seat, err := tx.GetSeat(ctx, seatID)
	if err != nil {
		return nil, err
	}
	return seat.OccupantUserPassID, nil
}

// SeatOf returns the seat held by userPassID, or nil.
func (r *SeatRegistry) SeatOf(ctx context.Context, tx Tx, userPassID uint64) (*string, error) {
	seat, ok, err := tx.SeatByOccupant(ctx, userPassID)
	if err != nil || !ok {
		return nil, err
	}
	return &seat.ID, nil
}

// List returns all seats ordered by id.
func (r *SeatRegistry) List(ctx context.Context, tx Tx) ([]model.Seat, error) {
	return tx.ListSeats(ctx)
}
