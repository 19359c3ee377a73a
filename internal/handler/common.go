package handler // handler defines http handlers

import (
	"context"
	"errors"  // errors provides sentinel values used in getUserID
	"strconv" // strconv converts strings to numeric types
	"time"

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/iliyamo/studycafe-seat-pass/internal/middleware"
)

// requestTimeout bounds the store work of one request.
const requestTimeout = 5 * time.Second

// getUserID extracts the user_id set by JWTAuth and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get(middleware.CtxUserID)
	switch t := v.(type) {
	case uint64:
		if t != 0 {
			return t, nil
		}
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n != 0 {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}
