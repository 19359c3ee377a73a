package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/studycafe-seat-pass/internal/clock"
)

// TokenRepo keeps hashed refresh tokens.  A token is live while it is
// neither revoked nor past expires_at, and it can be spent exactly once.
type TokenRepo struct {
	DB    *sql.DB
	Clock clock.Clock
}

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db, Clock: clock.Real()} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)",
		userID, tokenHash, exp.UTC(), r.Clock.Now())
	return err
}

// ConsumeRefresh revokes a live token and returns its owner.  The row is
// locked for the check so two concurrent exchanges of the same token
// cannot both succeed; the loser gets ErrTokenInvalid.
func (r *TokenRepo) ConsumeRefresh(ctx context.Context, tokenHash string) (userID uint64, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := r.Clock.Now()
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM refresh_tokens
		 WHERE token_hash=? AND revoked_at IS NULL AND expires_at > ?
		 LIMIT 1 FOR UPDATE`,
		tokenHash, now).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTokenInvalid
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=?", now, tokenHash); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return userID, nil
}

// RevokeAllForUser ends every session of userID.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		r.Clock.Now(), userID)
	return err
}
