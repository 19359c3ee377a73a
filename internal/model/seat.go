package model

import "time"

// Seat is a physical desk in the cafe, identified by its printed label
// (e.g. "A1").  OccupantUserPassID is the forward half of the seat/pass
// relation; a nil pointer means the seat is free.
//
// Fields:
//  ID                 – seats.id (label)
//  OccupantUserPassID – seats.user_pass_id (nullable, unique)
//  OccupiedAt         – seats.occupied_at, set on check-in
type Seat struct {
	ID                 string
	OccupantUserPassID *uint64
	OccupiedAt         *time.Time
}

// Occupied reports whether a pass currently holds the seat.
func (s *Seat) Occupied() bool { return s.OccupantUserPassID != nil }

// Clone returns a deep copy of the seat.
func (s Seat) Clone() Seat {
	out := s
	if s.OccupantUserPassID != nil {
		v := *s.OccupantUserPassID
		out.OccupantUserPassID = &v
	}
	if s.OccupiedAt != nil {
		v := *s.OccupiedAt
		out.OccupiedAt = &v
	}
	return out
}
