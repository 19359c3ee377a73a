package model

import "time"

// User represents a cafe member as stored in the `users` table.  Members
// sign up with a phone number, which doubles as their login; records are
// never updated after creation.
//
// Fields:
//  ID        – primary key identifier of the user.
//  Name      – display name.
//  Phone     – normalized digits-only phone number, unique.
//  Age       – age in years at signup.
//  CreatedAt – timestamp of creation.
type User struct {
	ID        uint64    // users.id
	Name      string    // users.name
	Phone     string    // users.phone (unique)
	Age       int       // users.age
	CreatedAt time.Time // users.created_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
