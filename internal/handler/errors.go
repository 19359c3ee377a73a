package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

// domainError is one row of the error table: each domain error has a
// stable code clients can switch on and a single HTTP status.
type domainError struct {
	err     error
	status  int
	code    string
	message string
}

var domainErrors = []domainError{
	{service.ErrNotFound, http.StatusNotFound, "not_found", "pass not found"},
	{service.ErrInvalidUser, http.StatusNotFound, "invalid_user", "user not found"},
	{service.ErrSeatNotFound, http.StatusNotFound, "seat_not_found", "seat not found"},
	{service.ErrSeatTaken, http.StatusConflict, "seat_taken", "seat is already occupied"},
	{service.ErrAlreadyActive, http.StatusConflict, "already_active", "another pass is already in use"},
	{service.ErrNotCheckedIn, http.StatusConflict, "not_checked_in", "not checked in"},
	{service.ErrSeatNotOccupied, http.StatusConflict, "seat_not_occupied", "seat is not occupied"},
	{service.ErrNotActive, http.StatusConflict, "not_active", "pass is not active"},
	{service.ErrExhausted, http.StatusGone, "exhausted", "no time left on this pass"},
	{service.ErrExpired, http.StatusGone, "expired", "pass has expired"},
	{service.ErrConcurrencyConflict, http.StatusServiceUnavailable, "concurrency_conflict", "busy, please retry"},
}

// writeError renders err with the error envelope.  Unknown errors are
// logged and reported as 500 without detail.
func writeError(c echo.Context, err error) error {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return c.JSON(d.status, echo.Map{"error": d.code, "message": d.message})
		}
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body", "message": msg})
}

func unauthorized(c echo.Context, code, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": code, "message": msg})
}
