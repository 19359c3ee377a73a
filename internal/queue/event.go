// Package queue defines message payloads exchanged over the message broker.
package queue

// Session event types.
const (
	EventPurchased  = "pass.purchased"
	EventCheckedIn  = "seat.checked_in"
	EventCheckedOut = "seat.checked_out"
	EventExhausted  = "pass.exhausted"
	EventExpired    = "pass.expired"
)

// SessionEvent is published after a pass or seat transition commits.  It
// carries enough context for downstream consumers to log or bill without
// querying the primary database.
type SessionEvent struct {
	MessageID     string `json:"message_id"`
	Type          string `json:"type"`
	UserID        uint64 `json:"user_id"`
	UserPassID    uint64 `json:"user_pass_id"`
	PassType      string `json:"pass_type"`
	SeatID        string `json:"seat_id,omitempty"`
	RemainingTime *int   `json:"remaining_time,omitempty"`
	Price         int64  `json:"price,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
