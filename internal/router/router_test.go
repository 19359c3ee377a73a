package router_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studycafe-seat-pass/internal/clock"
	"github.com/iliyamo/studycafe-seat-pass/internal/config"
	"github.com/iliyamo/studycafe-seat-pass/internal/database"
	"github.com/iliyamo/studycafe-seat-pass/internal/handler"
	"github.com/iliyamo/studycafe-seat-pass/internal/repository/memory"
	"github.com/iliyamo/studycafe-seat-pass/internal/router"
	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

const secret = "router-test-secret"

type app struct {
	e     *echo.Echo
	clock *clock.FakeClock
}

func newApp(t *testing.T) *app {
	t.Helper()
	clk := clock.Fake(time.Now().UTC().Truncate(time.Minute))
	store := memory.New(memory.Options{
		Catalog: database.DefaultCatalog,
		SeatIDs: []string{"A1", "A2", "B1"},
		Clock:   clk,
	})
	core := service.NewCoordinator(store, service.Options{Clock: clk})
	ts := handler.TokenSettings{Secret: secret, AccessTTLMin: 15, RefreshTTLDays: 7}

	e := echo.New()
	router.Register(e, router.Deps{
		JWTSecret: secret,
		Auth:      handler.NewAuthHandler(ts, store.Users(), store.Tokens(), nil),
		Passes:    handler.NewPassHandler(core),
		Seats:     handler.NewSeatHandler(core, store.Tokens(), nil),
		Cache:     config.CacheConfig{},
		RateLimit: config.RateLimitConfig{},
	})
	return &app{e: e, clock: clk}
}

func (a *app) do(t *testing.T, method, path, bearer, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(rec.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (a *app) login(t *testing.T, phone string) (access, refresh string) {
	t.Helper()
	rec, body := a.do(t, http.MethodPost, "/signup", "", `{"name":"Kim","age":24,"phone_number":"`+phone+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, body = a.do(t, http.MethodPost, "/login", "", `{"phone_number":"`+phone+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "bearer", body["token_type"])
	return body["access_token"].(string), body["refresh_token"].(string)
}

func TestHealthz(t *testing.T) {
	a := newApp(t)
	rec, _ := a.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSignupNormalizesAndRejectsDuplicates(t *testing.T) {
	a := newApp(t)
	rec, body := a.do(t, http.MethodPost, "/signup", "", `{"name":"Kim","age":24,"phone_number":"010-1234-5678"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "01012345678", body["phone_number"])

	rec, body = a.do(t, http.MethodPost, "/signup", "", `{"name":"Lee","age":30,"phone_number":"01012345678"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "phone_exists", body["error"])

	rec, body = a.do(t, http.MethodPost, "/signup", "", `{"name":"Lee","age":0,"phone_number":"01099998888"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", body["error"])
}

func TestLoginUnknownPhone(t *testing.T) {
	a := newApp(t)
	rec, body := a.do(t, http.MethodPost, "/login", "", `{"phone_number":"01000000000"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", body["error"])
}

func TestMemberRoutesNeedToken(t *testing.T) {
	a := newApp(t)
	for _, path := range []string{"/user/passes", "/seat/status", "/v1/me"} {
		rec, body := a.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "unauthorized", body["error"], path)
	}
	rec, _ := a.do(t, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogIsPublic(t *testing.T) {
	a := newApp(t)
	rec, body := a.do(t, http.MethodGet, "/passes", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := body["items"].([]any)
	require.Len(t, items, len(database.DefaultCatalog))
	first := items[0].(map[string]any)
	assert.Equal(t, "time", first["pass_type"])
	assert.Equal(t, "minutes", first["duration_unit"])
}

func TestSessionFlow(t *testing.T) {
	a := newApp(t)
	access, refresh := a.login(t, "01012345678")

	rec, me := a.do(t, http.MethodGet, "/v1/me", access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kim", me["name"])

	// 50-hour pass
	rec, pass := a.do(t, http.MethodPost, "/purchase", access, `{"pass_id":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "inactive", pass["state"])
	assert.EqualValues(t, 3000, pass["remaining_time"])
	passID := pass["id"].(float64)

	rec, out := a.do(t, http.MethodPost, "/seat", access, `{"user_pass_id":`+jsonNum(passID)+`,"seat_id":"a1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "A1", out["seat"].(map[string]any)["id"])
	assert.Equal(t, "active", out["user_pass"].(map[string]any)["state"])

	a.clock.Advance(90*time.Minute + 20*time.Second)

	rec, _ = a.do(t, http.MethodGet, "/user/passes", access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var passes []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &passes))
	require.Len(t, passes, 1)
	assert.EqualValues(t, 2910, passes[0]["remaining_minutes"])
	assert.Equal(t, "A1", passes[0]["current_seat_id"])

	rec, _ = a.do(t, http.MethodGet, "/seat/status", access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var seats []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &seats))
	require.Len(t, seats, 3)
	assert.Equal(t, "A1", seats[0]["seat_id"])
	assert.Equal(t, true, seats[0]["is_occupied"])
	assert.EqualValues(t, 2910, seats[0]["occupant_remaining_time"])
	assert.Equal(t, false, seats[1]["is_occupied"])

	rec, out = a.do(t, http.MethodPost, "/leave", access, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	left := out["user_pass"].(map[string]any)
	assert.Equal(t, "inactive", left["state"])
	assert.Nil(t, left["current_seat_id"])
	assert.Equal(t, true, out["logged_out"])

	// Check-out ended every refresh session.
	rec, body := a.do(t, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+refresh+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_refresh", body["error"])
}

func TestCheckInErrors(t *testing.T) {
	a := newApp(t)
	kim, _ := a.login(t, "01011112222")
	lee, _ := a.login(t, "01033334444")

	_, kimPass := a.do(t, http.MethodPost, "/purchase", kim, `{"pass_id":1}`)
	_, leePass := a.do(t, http.MethodPost, "/purchase", lee, `{"pass_id":4}`)

	rec, _ := a.do(t, http.MethodPost, "/seat", kim, `{"user_pass_id":`+jsonNum(kimPass["id"].(float64))+`,"seat_id":"B1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := a.do(t, http.MethodPost, "/seat", lee, `{"user_pass_id":`+jsonNum(leePass["id"].(float64))+`,"seat_id":"B1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "seat_taken", body["error"])

	rec, body = a.do(t, http.MethodPost, "/seat", lee, `{"user_pass_id":`+jsonNum(kimPass["id"].(float64))+`,"seat_id":"A2"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"])

	rec, body = a.do(t, http.MethodPost, "/seat", lee, `{"user_pass_id":`+jsonNum(leePass["id"].(float64))+`,"seat_id":"Z9"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "seat_not_found", body["error"])

	rec, body = a.do(t, http.MethodPost, "/leave", lee, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_checked_in", body["error"])

	rec, body = a.do(t, http.MethodPost, "/purchase", lee, `{"pass_id":99}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"])

	rec, body = a.do(t, http.MethodPost, "/seat", lee, `{"seat_id":"A2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", body["error"])
}

func TestLeaveBySeat(t *testing.T) {
	a := newApp(t)
	access, _ := a.login(t, "01055556666")
	_, pass := a.do(t, http.MethodPost, "/purchase", access, `{"pass_id":1}`)
	rec, _ := a.do(t, http.MethodPost, "/seat", access, `{"user_pass_id":`+jsonNum(pass["id"].(float64))+`,"seat_id":"A2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := a.do(t, http.MethodPost, "/leave", access, `{"seat_id":"A1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_checked_in", body["error"])

	rec, _ = a.do(t, http.MethodPost, "/leave", access, `{"seat_id":"a2"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutWithRefreshToken(t *testing.T) {
	a := newApp(t)
	_, refresh := a.login(t, "01077778888")

	rec, _ := a.do(t, http.MethodPost, "/v1/auth/logout", "", `{"refresh_token":"`+refresh+`"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, body := a.do(t, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+refresh+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_refresh", body["error"])
}

func TestRefreshRotates(t *testing.T) {
	a := newApp(t)
	_, refresh := a.login(t, "01099990000")

	rec, body := a.do(t, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+refresh+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, refresh, body["refresh_token"])

	rec, _ = a.do(t, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+refresh+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func jsonNum(v float64) string {
	bs, _ := json.Marshal(uint64(v))
	return string(bs)
}
