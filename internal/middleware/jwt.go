package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/studycafe-seat-pass/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxUserID   = "user_id"   // uint64
	CtxTokenID  = "jti"       // string
	CtxTokenExp = "token_exp" // time.Time
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject, jti and expiry into the request context.  The
// provided secret must match the one used when issuing tokens.  Tokens on
// the deny list (revoked at check-out) are rejected; a nil list disables
// that check.  Handlers read the authenticated member via
// `c.Get(CtxUserID).(uint64)`.
func JWTAuth(secret string, deny *TokenDenylist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return unauthorized(c, "invalid token")
			}

			denied, err := deny.IsDenied(c.Request().Context(), claims.ID)
			if err != nil {
				// Redis trouble must not lock everyone out; the token
				// still expires on its own.
				c.Logger().Warnf("jwt: deny list lookup failed: %v", err)
			}
			if denied {
				return unauthorized(c, "token revoked")
			}

			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxTokenID, claims.ID)
			c.Set(CtxTokenExp, claims.Exp)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": msg})
}
