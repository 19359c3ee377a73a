package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studycafe-seat-pass/internal/middleware"
	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/repository"
	"github.com/iliyamo/studycafe-seat-pass/internal/utils"
)

// UserStore is the users table as the auth endpoints need it.
type UserStore interface {
	Create(ctx context.Context, name, phone string, age int) (uint64, error)
	GetByPhone(ctx context.Context, phone string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore persists hashed refresh tokens.  ConsumeRefresh spends a
// token: it succeeds at most once per token.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ConsumeRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// TokenSettings configures issued tokens.
type TokenSettings struct {
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Tokens   TokenSettings
	Users    UserStore
	Sessions TokenStore
	Deny     *middleware.TokenDenylist
}

func NewAuthHandler(ts TokenSettings, u UserStore, t TokenStore, deny *middleware.TokenDenylist) *AuthHandler {
	if u == nil || t == nil {
		panic("nil store passed to NewAuthHandler")
	}
	return &AuthHandler{Tokens: ts, Users: u, Sessions: t, Deny: deny}
}

// ----- DTOs -----

type signupReq struct {
	Name        string `json:"name"`
	Age         int    `json:"age"`
	PhoneNumber string `json:"phone_number"`
}
type loginReq struct {
	PhoneNumber string `json:"phone_number"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type userResp struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Age         int       `json:"age"`
	PhoneNumber string    `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
}

type tokenResp struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func toUserResp(u model.User) userResp {
	return userResp{ID: u.ID, Name: u.Name, Age: u.Age, PhoneNumber: u.Phone, CreatedAt: u.CreatedAt}
}

// Signup: create a member.  Phone numbers are stored digits-only.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return badRequest(c, "name required (max 100 characters)")
	}
	if req.Age < 1 || req.Age > 150 {
		return badRequest(c, "age must be between 1 and 150")
	}
	phone, err := utils.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return badRequest(c, "phone_number must be 9 to 11 digits")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, name, phone, req.Age)
	if err != nil {
		if errors.Is(err, repository.ErrPhoneExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "phone_exists", "message": "phone number already registered"})
		}
		return writeError(c, err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toUserResp(u))
}

// Login: the phone number alone identifies the member.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	phone, err := utils.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return unauthorized(c, "invalid_credentials", "unknown phone number")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return unauthorized(c, "invalid_credentials", "unknown phone number")
		}
		return writeError(c, err)
	}
	return h.issue(c, ctx, u.ID, http.StatusOK)
}

// Refresh: spend the old refresh token, issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := withTimeout(c)
	defer cancel()

	userID, err := h.Sessions.ConsumeRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return unauthorized(c, "invalid_refresh", "refresh token invalid or expired")
		}
		return writeError(c, err)
	}
	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		return unauthorized(c, "invalid_refresh", "refresh token invalid or expired")
	}
	return h.issue(c, ctx, userID, http.StatusOK)
}

// Logout revokes sessions.  With a refresh_token in the body only that
// session ends; otherwise a valid bearer token ends every session of its
// member and the bearer itself is deny-listed.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := withTimeout(c)
	defer cancel()

	if refreshToken != "" {
		if _, err := h.Sessions.ConsumeRefresh(ctx, utils.HashRefreshRaw(refreshToken)); err != nil {
			if errors.Is(err, repository.ErrTokenInvalid) {
				return unauthorized(c, "invalid_refresh", "refresh token invalid or expired")
			}
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return badRequest(c, "provide Authorization header or refresh_token")
	}
	claims, err := utils.ParseAccessToken(h.Tokens.Secret, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
	if err != nil {
		return unauthorized(c, "unauthorized", "invalid token")
	}
	if err := h.Sessions.RevokeAllForUser(ctx, claims.UserID); err != nil {
		return writeError(c, err)
	}
	if err := h.Deny.Deny(ctx, claims.ID, claims.Exp); err != nil {
		c.Logger().Warnf("logout: deny list write failed: %v", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated member.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c, "unauthorized", "unauthorized")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return unauthorized(c, "unauthorized", "unknown member")
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// issue creates an access/refresh pair for userID.
func (h *AuthHandler) issue(c echo.Context, ctx context.Context, userID uint64, status int) error {
	access, err := utils.NewAccessToken(h.Tokens.Secret, userID, h.Tokens.AccessTTLMin)
	if err != nil {
		return writeError(c, err)
	}
	refresh, err := utils.NewRefreshToken(h.Tokens.RefreshTTLDays)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Sessions.StoreRefresh(ctx, userID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return writeError(c, err)
	}
	return c.JSON(status, tokenResp{
		AccessToken:      access.Token,
		TokenType:        "bearer",
		ExpiresAt:        access.Exp,
		RefreshToken:     refresh.Raw, // raw back to client
		RefreshExpiresAt: refresh.Exp,
	})
}
