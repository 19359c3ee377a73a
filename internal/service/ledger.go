package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/studycafe-seat-pass/internal/clock"
	"github.com/iliyamo/studycafe-seat-pass/internal/model"
)

// PassLedger owns UserPass rows: purchase snapshots, activation and the
// decrementing balance of time_period passes.  The only seat it touches is
// the one held by a pass it deactivates.
type PassLedger struct {
	clock clock.Clock
	seats *SeatRegistry
}

// NewPassLedger returns a ledger reading time from clk and freeing seats
// through seats.
func NewPassLedger(clk clock.Clock, seats *SeatRegistry) *PassLedger {
	return &PassLedger{clock: clk, seats: seats}
}

// Purchase creates a new, inactive UserPass for userID from the catalog
// definition and records the price paid.
func (l *PassLedger) Purchase(ctx context.Context, tx Tx, userID, definitionID uint64) (model.UserPass, error) {
	if _, err := tx.GetUser(ctx, userID); err != nil {
		return model.UserPass{}, err
	}
	def, err := tx.GetPassDefinition(ctx, definitionID)
	if err != nil {
		return model.UserPass{}, err
	}
	now := l.clock.Now()
	p := model.UserPass{
		UserID:        userID,
		PassID:        def.ID,
		Name:          def.Name,
		PassType:      def.PassType,
		TotalDuration: def.Duration,
		PurchasedAt:   now,
	}
	switch def.PassType {
	case model.PassTypeTimePeriod:
		remaining := def.Duration
		p.RemainingTime = &remaining
	case model.PassTypeDay:
		exp := now.AddDate(0, 0, def.Duration)
		p.ExpireAt = &exp
	case model.PassTypeTime:
		// expire_at is fixed on first activation
	default:
		return model.UserPass{}, fmt.Errorf("pass definition %d: unknown pass type %q", def.ID, def.PassType)
	}
	if err := tx.InsertUserPass(ctx, &p); err != nil {
		return model.UserPass{}, err
	}
	entry := model.PurchaseLog{
		UserID:      userID,
		PassID:      def.ID,
		UserPassID:  p.ID,
		Price:       def.Price,
		PurchasedAt: now,
	}
	if err := tx.InsertPurchaseLog(ctx, &entry); err != nil {
		return model.UserPass{}, err
	}
	return p, nil
}

// ListForUser returns the user's passes, newest purchase first.
func (l *PassLedger) ListForUser(ctx context.Context, tx Tx, userID uint64) ([]model.UserPass, error) {
	return tx.ListUserPasses(ctx, userID)
}

// Activate marks a pass active and starts its accrual cursor.  A time pass
// gets its expire_at on first activation.
func (l *PassLedger) Activate(ctx context.Context, tx Tx, userPassID uint64) (model.UserPass, error) {
	p, err := tx.GetUserPass(ctx, userPassID)
	if err != nil {
		return model.UserPass{}, err
	}
	if p.IsActive {
		return model.UserPass{}, ErrAlreadyActive
	}
	now := l.clock.Now()
	if p.Exhausted() {
		return model.UserPass{}, ErrExhausted
	}
	if p.Expired(now) {
		return model.UserPass{}, ErrExpired
	}
	active, err := tx.ActiveUserPasses(ctx, p.UserID)
	if err != nil {
		return model.UserPass{}, err
	}
	if len(active) > 0 {
		return model.UserPass{}, ErrAlreadyActive
	}
	p.IsActive = true
	p.LastAccruedAt = &now
	if p.PassType == model.PassTypeTime && p.ExpireAt == nil {
		exp := now.Add(time.Duration(p.TotalDuration) * time.Minute)
		p.ExpireAt = &exp
	}
	if err := tx.UpdateUserPass(ctx, p); err != nil {
		return model.UserPass{}, err
	}
	return p, nil
}

// AttachSeat records seatID as the current seat of an active pass.
func (l *PassLedger) AttachSeat(ctx context.Context, tx Tx, userPassID uint64, seatID string) (model.UserPass, error) {
	p, err := tx.GetUserPass(ctx, userPassID)
	if err != nil {
		return model.UserPass{}, err
	}
	if !p.IsActive {
		return model.UserPass{}, ErrNotActive
	}
	p.CurrentSeatID = &seatID
	if err := tx.UpdateUserPass(ctx, p); err != nil {
		return model.UserPass{}, err
	}
	return p, nil
}

// Deactivate clears is_active and the current seat.
func (l *PassLedger) Deactivate(ctx context.Context, tx Tx, userPassID uint64) (model.UserPass, error) {
	p, err := tx.GetUserPass(ctx, userPassID)
	if err != nil {
		return model.UserPass{}, err
	}
	if !p.IsActive {
		return model.UserPass{}, ErrNotActive
	}
	deactivate(&p)
	if err := tx.UpdateUserPass(ctx, p); err != nil {
		return model.UserPass{}, err
	}
	return p, nil
}

// DecrementRemaining takes elapsedMinutes off a time_period balance,
// flooring at zero, and moves the accrual cursor to cursor.  A pass that
// reaches zero is deactivated and its seat released in the same
// transaction.  Other pass types are returned unchanged.
func (l *PassLedger) DecrementRemaining(ctx context.Context, tx Tx, userPassID uint64, elapsedMinutes int, cursor time.Time) (model.UserPass, error) {
	p, err := tx.GetUserPass(ctx, userPassID)
	if err != nil {
		return model.UserPass{}, err
	}
	if p.PassType != model.PassTypeTimePeriod || elapsedMinutes <= 0 {
		return p, nil
	}
	decrement(&p, elapsedMinutes)
	if p.IsActive {
		p.LastAccruedAt = &cursor
	} else if err := l.releaseSeat(ctx, tx, p.ID); err != nil {
		return model.UserPass{}, err
	}
	if err := tx.UpdateUserPass(ctx, p); err != nil {
		return model.UserPass{}, err
	}
	return p, nil
}

// releaseSeat frees whatever seat userPassID holds, if any.
func (l *PassLedger) releaseSeat(ctx context.Context, tx Tx, userPassID uint64) error {
	seatID, err := l.seats.SeatOf(ctx, tx, userPassID)
	if err != nil || seatID == nil {
		return err
	}
	_, err = l.seats.Release(ctx, tx, *seatID)
	return err
}

func decrement(p *model.UserPass, elapsedMinutes int) {
	if p.RemainingTime == nil {
		zero := 0
		p.RemainingTime = &zero
	}
	left := *p.RemainingTime - elapsedMinutes
	if left < 0 {
		left = 0
	}
	p.RemainingTime = &left
	if left == 0 {
		deactivate(p)
	}
}

func deactivate(p *model.UserPass) {
	p.IsActive = false
	p.CurrentSeatID = nil
	p.LastAccruedAt = nil
}
