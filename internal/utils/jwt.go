package utils // package utils provides helpers for tokens, hashing and phone numbers

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA‑256 hashing for refresh tokens
	"encoding/hex"  // hex encoding and decoding functions
	"errors"
	"strconv"
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time and ID the token's unique jti, which the deny
// list keys on when a member checks out.  Access tokens are short‑lived and
// encoded in the Authorization header when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	ID    string    // the jti claim
	Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long‑lived token used to obtain new access tokens.
// The Raw field contains the raw token string returned to the client.  The Exp
// field records when it expires.  In the database only a SHA‑256 hash of the
// raw string is stored for security reasons.
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// AccessClaims are the verified claims of an access token.
type AccessClaims struct {
	UserID uint64
	ID     string
	Exp    time.Time
}

// ErrInvalidToken is returned by ParseAccessToken for any token that fails
// signature, algorithm, expiry or subject checks.
var ErrInvalidToken = errors.New("invalid access token")

// NewAccessToken builds and signs an HS256 JWT for a user.  It takes the
// signing secret, the user ID and a TTL in minutes.  The JWT carries the
// registered claims subject (sub, the decimal user id), jti (a random
// UUID), expiration (exp) and issued at (iat).
func NewAccessToken(secret string, userID uint64, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	// Sign the token with the provided secret and obtain the string form.  If
	// signing fails, return the error and a zero AccessToken.
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ID: claims.ID, Exp: exp}, nil
}

// ParseAccessToken verifies raw with secret and returns its claims.  Only
// HS256 is accepted; exp is required.
func ParseAccessToken(secret, raw string) (AccessClaims, error) {
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return AccessClaims{}, ErrInvalidToken
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 {
		return AccessClaims{}, ErrInvalidToken
	}
	return AccessClaims{UserID: uid, ID: claims.ID, Exp: claims.ExpiresAt.Time.UTC()}, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw) and
// its expiration time.  Refresh tokens live longer than access tokens and
// are used to obtain new access tokens.  The ttlDays parameter controls
// how many days the refresh token is valid.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	// Generate a random 48‑byte string and encode it as hex (96 characters).
	raw, err := randomHex(48) // 48 bytes -> 96 hex chars
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		// Set the expiration by adding the specified number of days to the current UTC time.
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string.  Storing only the hash in the database prevents attackers from
// using stolen database entries to refresh sessions.
func HashRefreshRaw(raw string) string {
	// Compute the SHA‑256 digest of the raw bytes.
	sum := sha256.Sum256([]byte(raw))
	// Convert the binary digest to a hex string.
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.  It is used to produce refresh
// tokens.  If the random number generator fails, an error is returned.
func randomHex(n int) (string, error) {
	// Allocate a slice of n bytes.
	buf := make([]byte, n)
	// Fill the slice with secure random data.  rand.Read returns the number
	// of bytes read and an error.  We ignore the count since we request
	// exactly n bytes.
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// Convert the random bytes to a hex string and return.
	return hex.EncodeToString(buf), nil
}
