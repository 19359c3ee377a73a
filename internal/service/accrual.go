package service

import (
	"context"
	"time"

	"github.com/iliyamo/studycafe-seat-pass/internal/clock"
	"github.com/iliyamo/studycafe-seat-pass/internal/model"
)

// Outcome reports what a reconciliation did to a pass.
type Outcome int

const (
	Unchanged Outcome = iota
	Accrued           // minutes were taken off a time_period balance
	Exhausted         // balance hit zero; pass deactivated and seat released
	Expired           // expire_at passed; pass deactivated and seat released
)

// TimeAccrualClock reconciles elapsed time against active passes when they
// are read.  There is no background sweep: every transaction that looks at
// an active pass first brings it up to date.
type TimeAccrualClock struct {
	clock  clock.Clock
	ledger *PassLedger
	seats  *SeatRegistry
}

// NewTimeAccrualClock wires the accrual to the ledger and registry it
// mutates.
func NewTimeAccrualClock(clk clock.Clock, ledger *PassLedger, seats *SeatRegistry) *TimeAccrualClock {
	return &TimeAccrualClock{clock: clk, ledger: ledger, seats: seats}
}

// Reconcile brings one pass up to date.  Only whole minutes are charged;
// the cursor advances by exactly the charged minutes so the remainder is
// carried to the next read.  Inactive passes are left untouched.
func (a *TimeAccrualClock) Reconcile(ctx context.Context, tx Tx, p model.UserPass) (model.UserPass, Outcome, error) {
	if !p.IsActive {
		return p, Unchanged, nil
	}
	now := a.clock.Now()
	if p.Expired(now) {
		if err := a.ledger.releaseSeat(ctx, tx, p.ID); err != nil {
			return p, Unchanged, err
		}
		out, err := a.ledger.Deactivate(ctx, tx, p.ID)
		if err != nil {
			return p, Unchanged, err
		}
		return out, Expired, nil
	}
	if p.PassType != model.PassTypeTimePeriod {
		return p, Unchanged, nil
	}
	if p.LastAccruedAt == nil {
		p.LastAccruedAt = &now
		if err := tx.UpdateUserPass(ctx, p); err != nil {
			return p, Unchanged, err
		}
		return p, Unchanged, nil
	}
	elapsed := int(now.Sub(*p.LastAccruedAt) / time.Minute)
	if elapsed <= 0 {
		return p, Unchanged, nil
	}
	cursor := p.LastAccruedAt.Add(time.Duration(elapsed) * time.Minute)
	out, err := a.ledger.DecrementRemaining(ctx, tx, p.ID, elapsed, cursor)
	if err != nil {
		return p, Unchanged, err
	}
	if !out.IsActive {
		return out, Exhausted, nil
	}
	return out, Accrued, nil
}

// ReconcileUser reconciles every active pass of userID and returns the
// passes that reached a terminal state.
func (a *TimeAccrualClock) ReconcileUser(ctx context.Context, tx Tx, userID uint64) ([]Reconciled, error) {
	active, err := tx.ActiveUserPasses(ctx, userID)
	if err != nil {
		return nil, err
	}
	var ended []Reconciled
	for _, p := range active {
		seatID, err := a.seats.SeatOf(ctx, tx, p.ID)
		if err != nil {
			return nil, err
		}
		out, outcome, err := a.Reconcile(ctx, tx, p)
		if err != nil {
			return nil, err
		}
		if outcome == Exhausted || outcome == Expired {
			r := Reconciled{UserPass: out, Outcome: outcome}
			if seatID != nil {
				r.SeatID = *seatID
			}
			ended = append(ended, r)
		}
	}
	return ended, nil
}

// Reconciled is a pass that the accrual moved to a terminal state, along
// with the seat it was released from.
type Reconciled struct {
	UserPass model.UserPass
	SeatID   string
	Outcome  Outcome
}

// RemainingMinutes is the balance shown to users: the stored balance for
// time_period passes, minutes until expiry for time and day passes, nil
// for a time pass that was never activated.
func RemainingMinutes(p model.UserPass, now time.Time) *int {
	if p.PassType == model.PassTypeTimePeriod {
		if p.RemainingTime == nil {
			return nil
		}
		v := *p.RemainingTime
		return &v
	}
	if p.ExpireAt == nil {
		return nil
	}
	v := int(p.ExpireAt.Sub(now) / time.Minute)
	if v < 0 {
		v = 0
	}
	return &v
}
