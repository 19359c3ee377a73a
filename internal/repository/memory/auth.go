package memory

import (
	"context"
	"time"

	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/repository"
)

// UserRepo is the users table of a Store.
type UserRepo struct{ s *Store }

// Users returns the store's user table.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Create inserts a user; the phone must already be normalized.
func (r *UserRepo) Create(ctx context.Context, name, phone string, age int) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.phones[phone]; ok {
		return 0, repository.ErrPhoneExists
	}
	r.s.nextUserID++
	u := model.User{ID: r.s.nextUserID, Name: name, Phone: phone, Age: age, CreatedAt: r.s.clock.Now()}
	r.s.users[u.ID] = u
	r.s.phones[phone] = u.ID
	return u.ID, nil
}

// GetByPhone returns repository.ErrUserNotFound for an unknown phone.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.phones[phone]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return r.s.users[id], nil
}

// GetByID returns repository.ErrUserNotFound for an unknown id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

// TokenRepo is the refresh_tokens table of a Store.
type TokenRepo struct{ s *Store }

// Tokens returns the store's refresh token table.
func (s *Store) Tokens() *TokenRepo { return &TokenRepo{s: s} }

// StoreRefresh records a refresh token hash.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextTokenID++
	r.s.tokens[tokenHash] = model.RefreshToken{
		ID:        r.s.nextTokenID,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp,
		CreatedAt: r.s.clock.Now(),
	}
	return nil
}

// ConsumeRefresh revokes a live token and returns its owner, or
// repository.ErrTokenInvalid when the token is unknown, spent or expired.
func (r *TokenRepo) ConsumeRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.clock.Now()
	t, ok := r.s.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || !t.ExpiresAt.After(now) {
		return 0, repository.ErrTokenInvalid
	}
	t.RevokedAt = &now
	r.s.tokens[tokenHash] = t
	return t.UserID, nil
}

// RevokeAllForUser revokes every live token of userID.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.clock.Now()
	for h, t := range r.s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.s.tokens[h] = t
		}
	}
	return nil
}
