package handler

import (
	"time"

	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

type passDefResp struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	PassType string `json:"pass_type"`
	Duration int    `json:"duration"`
	Unit     string `json:"duration_unit"`
	Price    int64  `json:"price"`
}

func toPassDefResp(d model.PassDefinition) passDefResp {
	unit := "minutes"
	if d.PassType == model.PassTypeDay {
		unit = "days"
	}
	return passDefResp{ID: d.ID, Name: d.Name, PassType: string(d.PassType), Duration: d.Duration, Unit: unit, Price: d.Price}
}

// userPassResp is one ticket card: remaining_time is the stored balance of
// a time_period pass, remaining_minutes what the member has left right now.
type userPassResp struct {
	ID               uint64     `json:"id"`
	PassID           uint64     `json:"pass_id"`
	Name             string     `json:"name"`
	PassType         string     `json:"pass_type"`
	TotalDuration    int        `json:"total_duration"`
	RemainingTime    *int       `json:"remaining_time"`
	RemainingMinutes *int       `json:"remaining_minutes"`
	ExpireAt         *time.Time `json:"expire_at"`
	IsActive         bool       `json:"is_active"`
	CurrentSeatID    *string    `json:"current_seat_id"`
	State            string     `json:"state"`
	PurchasedAt      time.Time  `json:"purchased_at"`
}

func toUserPassResp(p model.UserPass, now time.Time) userPassResp {
	return userPassResp{
		ID:               p.ID,
		PassID:           p.PassID,
		Name:             p.Name,
		PassType:         string(p.PassType),
		TotalDuration:    p.TotalDuration,
		RemainingTime:    p.RemainingTime,
		RemainingMinutes: service.RemainingMinutes(p, now),
		ExpireAt:         p.ExpireAt,
		IsActive:         p.IsActive,
		CurrentSeatID:    p.CurrentSeatID,
		State:            string(p.State(now)),
		PurchasedAt:      p.PurchasedAt,
	}
}

type seatResp struct {
	ID         string     `json:"id"`
	UserPassID *uint64    `json:"user_pass_id"`
	OccupiedAt *time.Time `json:"occupied_at"`
}

func toSeatResp(s model.Seat) seatResp {
	return seatResp{ID: s.ID, UserPassID: s.OccupantUserPassID, OccupiedAt: s.OccupiedAt}
}

type seatStatusResp struct {
	SeatID                string     `json:"seat_id"`
	IsOccupied            bool       `json:"is_occupied"`
	OccupantUserPassID    *uint64    `json:"occupant_user_pass_id"`
	OccupantRemainingTime *int       `json:"occupant_remaining_time"`
	OccupiedAt            *time.Time `json:"occupied_at"`
}
