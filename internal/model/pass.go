package model

import "time"

// PassType names the three kinds of pass the cafe sells.  Only
// time_period passes carry a decrementing balance; time and day passes
// are bounded by expire_at.
type PassType string

const (
	PassTypeTime       PassType = "time"        // wall-clock minutes from first check-in
	PassTypeTimePeriod PassType = "time_period" // balance of minutes spent only while seated
	PassTypeDay        PassType = "day"         // whole days from purchase
)

// Valid reports whether t is one of the known pass types.
func (t PassType) Valid() bool {
	switch t {
	case PassTypeTime, PassTypeTimePeriod, PassTypeDay:
		return true
	}
	return false
}

// PassDefinition is an immutable catalog entry.  Duration is expressed in
// minutes for time and time_period passes and in days for day passes.
//
// Fields:
//  ID       – passes.id
//  Name     – display name shown on the ticket card
//  PassType – passes.pass_type
//  Duration – passes.duration
//  Price    – passes.price in won
type PassDefinition struct {
	ID       uint64
	Name     string
	PassType PassType
	Duration int
	Price    int64
}

// PassState is the derived lifecycle state of a UserPass.  Exhausted and
// Expired are terminal.
type PassState string

const (
	PassInactive  PassState = "inactive"
	PassActive    PassState = "active"
	PassExhausted PassState = "exhausted"
	PassExpired   PassState = "expired"
)

// UserPass is a purchased pass owned by one user.  Type, name and total
// duration are snapshotted from the definition at purchase time so later
// catalog edits never change what was sold.
type UserPass struct {
	ID            uint64     // user_passes.id
	UserID        uint64     // user_passes.user_id
	PassID        uint64     // user_passes.pass_id (definition)
	Name          string     // user_passes.name
	PassType      PassType   // user_passes.pass_type
	TotalDuration int        // user_passes.total_duration
	RemainingTime *int       // user_passes.remaining_time, minutes (time_period only)
	ExpireAt      *time.Time // user_passes.expire_at (time and day)
	IsActive      bool       // user_passes.is_active
	CurrentSeatID *string    // user_passes.current_seat_id
	LastAccruedAt *time.Time // user_passes.last_accrued_at, accrual cursor while active
	PurchasedAt   time.Time  // user_passes.purchased_at
}

// Exhausted reports whether a time_period pass has no minutes left.
func (p *UserPass) Exhausted() bool {
	return p.PassType == PassTypeTimePeriod && p.RemainingTime != nil && *p.RemainingTime <= 0
}

// Expired reports whether the pass carries an expire_at at or before now.
func (p *UserPass) Expired(now time.Time) bool {
	return p.ExpireAt != nil && !p.ExpireAt.After(now)
}

// State derives the lifecycle state at instant now.
func (p *UserPass) State(now time.Time) PassState {
	switch {
	case p.Exhausted():
		return PassExhausted
	case p.Expired(now):
		return PassExpired
	case p.IsActive:
		return PassActive
	}
	return PassInactive
}

// Clone returns a deep copy so callers can mutate pointer fields freely.
func (p UserPass) Clone() UserPass {
	out := p
	if p.RemainingTime != nil {
		v := *p.RemainingTime
		out.RemainingTime = &v
	}
	if p.ExpireAt != nil {
		v := *p.ExpireAt
		out.ExpireAt = &v
	}
	if p.CurrentSeatID != nil {
		v := *p.CurrentSeatID
		out.CurrentSeatID = &v
	}
	if p.LastAccruedAt != nil {
		v := *p.LastAccruedAt
		out.LastAccruedAt = &v
	}
	return out
}
