package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studycafe-seat-pass/internal/middleware"
	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

// SeatHandler serves check-in, check-out and the seat map.  Checking out
// also ends the member's sessions: refresh tokens are revoked and the
// presented access token is deny-listed.
type SeatHandler struct {
	Core     *service.Coordinator
	Sessions TokenStore
	Deny     *middleware.TokenDenylist
}

func NewSeatHandler(core *service.Coordinator, sessions TokenStore, deny *middleware.TokenDenylist) *SeatHandler {
	if core == nil || sessions == nil {
		panic("nil dependency passed to NewSeatHandler")
	}
	return &SeatHandler{Core: core, Sessions: sessions, Deny: deny}
}

type checkInReq struct {
	UserPassID uint64 `json:"user_pass_id"`
	SeatID     string `json:"seat_id"`
}

type leaveReq struct {
	UserPassID uint64 `json:"user_pass_id"`
	SeatID     string `json:"seat_id"`
}

// Status: GET /seat/status.
func (h *SeatHandler) Status(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	seats, err := h.Core.SeatStatuses(ctx)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]seatStatusResp, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatStatusResp{
			SeatID:                s.SeatID,
			IsOccupied:            s.Occupied,
			OccupantUserPassID:    s.OccupantUserPassID,
			OccupantRemainingTime: s.OccupantRemainingMinutes,
			OccupiedAt:            s.OccupiedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// CheckIn: POST /seat {user_pass_id, seat_id}.
func (h *SeatHandler) CheckIn(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c, "unauthorized", "unauthorized")
	}
	var req checkInReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	seatID := strings.ToUpper(strings.TrimSpace(req.SeatID))
	if req.UserPassID == 0 || seatID == "" {
		return badRequest(c, "user_pass_id and seat_id required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Core.CheckIn(ctx, uid, req.UserPassID, seatID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_pass": toUserPassResp(res.UserPass, h.Core.Now()),
		"seat":      toSeatResp(res.Seat),
	})
}

// Leave: POST /leave.  The body may name the pass or the seat; an empty
// body checks out whatever pass the member has active.
func (h *SeatHandler) Leave(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c, "unauthorized", "unauthorized")
	}
	var req leaveReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	var p model.UserPass
	switch seatID := strings.ToUpper(strings.TrimSpace(req.SeatID)); {
	case req.UserPassID != 0:
		p, err = h.Core.CheckOut(ctx, uid, req.UserPassID)
	case seatID != "":
		p, err = h.Core.CheckOutSeat(ctx, uid, seatID)
	default:
		p, err = h.Core.CheckOutActive(ctx, uid)
	}
	if err != nil {
		return writeError(c, err)
	}

	// The check-out is committed; session teardown is best effort.
	if err := h.Sessions.RevokeAllForUser(ctx, uid); err != nil {
		c.Logger().Warnf("leave: revoke refresh tokens for user %d failed: %v", uid, err)
	}
	jti, _ := c.Get(middleware.CtxTokenID).(string)
	exp, _ := c.Get(middleware.CtxTokenExp).(time.Time)
	if err := h.Deny.Deny(ctx, jti, exp); err != nil {
		c.Logger().Warnf("leave: deny access token failed: %v", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_pass":  toUserPassResp(p, h.Core.Now()),
		"logged_out": true,
	})
}
