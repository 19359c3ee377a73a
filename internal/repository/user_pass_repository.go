package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

const userPassColumns = `id, user_id, pass_id, name, pass_type, total_duration, remaining_time,
       expire_at, is_active, current_seat_id, last_accrued_at, purchased_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserPass(r rowScanner) (model.UserPass, error) {
	var (
		p         model.UserPass
		remaining sql.NullInt64
		expireAt  sql.NullTime
		seatID    sql.NullString
		accrued   sql.NullTime
	)
	if err := r.Scan(&p.ID, &p.UserID, &p.PassID, &p.Name, &p.PassType, &p.TotalDuration,
		&remaining, &expireAt, &p.IsActive, &seatID, &accrued, &p.PurchasedAt); err != nil {
		return model.UserPass{}, err
	}
	if remaining.Valid {
		v := int(remaining.Int64)
		p.RemainingTime = &v
	}
	if expireAt.Valid {
		v := expireAt.Time.UTC()
		p.ExpireAt = &v
	}
	if seatID.Valid {
		v := seatID.String
		p.CurrentSeatID = &v
	}
	if accrued.Valid {
		v := accrued.Time.UTC()
		p.LastAccruedAt = &v
	}
	p.PurchasedAt = p.PurchasedAt.UTC()
	return p, nil
}

func collectUserPasses(rows *sql.Rows) ([]model.UserPass, error) {
	defer rows.Close()
	out := []model.UserPass{}
	for rows.Next() {
		p, err := scanUserPass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserPass loads and row-locks one pass.
func (t *mysqlTx) GetUserPass(ctx context.Context, id uint64) (model.UserPass, error) {
	p, err := scanUserPass(t.q.QueryRowContext(ctx,
		"SELECT "+userPassColumns+" FROM user_passes WHERE id=? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserPass{}, service.ErrNotFound
	}
	return p, err
}

// PassOwner is a plain read: callers use it to learn which user to lock
// before taking any pass lock.
func (t *mysqlTx) PassOwner(ctx context.Context, userPassID uint64) (uint64, error) {
	var owner uint64
	err := t.q.QueryRowContext(ctx, "SELECT user_id FROM user_passes WHERE id=?", userPassID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, service.ErrNotFound
	}
	return owner, err
}

func (t *mysqlTx) ListUserPasses(ctx context.Context, userID uint64) ([]model.UserPass, error) {
	rows, err := t.q.QueryContext(ctx,
		"SELECT "+userPassColumns+" FROM user_passes WHERE user_id=? ORDER BY purchased_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	return collectUserPasses(rows)
}

func (t *mysqlTx) ActiveUserPasses(ctx context.Context, userID uint64) ([]model.UserPass, error) {
	rows, err := t.q.QueryContext(ctx,
		"SELECT "+userPassColumns+" FROM user_passes WHERE user_id=? AND is_active=1 ORDER BY id FOR UPDATE", userID)
	if err != nil {
		return nil, err
	}
	return collectUserPasses(rows)
}

func (t *mysqlTx) InsertUserPass(ctx context.Context, p *model.UserPass) error {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO user_passes (user_id, pass_id, name, pass_type, total_duration, remaining_time,
		                          expire_at, is_active, current_seat_id, last_accrued_at, purchased_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.UserID, p.PassID, p.Name, p.PassType, p.TotalDuration, nullInt(p.RemainingTime),
		nullTime(p.ExpireAt), p.IsActive, nullString(p.CurrentSeatID), nullTime(p.LastAccruedAt), p.PurchasedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

func (t *mysqlTx) UpdateUserPass(ctx context.Context, p model.UserPass) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE user_passes SET remaining_time=?, expire_at=?, is_active=?, current_seat_id=?, last_accrued_at=?
		 WHERE id=?`,
		nullInt(p.RemainingTime), nullTime(p.ExpireAt), p.IsActive, nullString(p.CurrentSeatID), nullTime(p.LastAccruedAt), p.ID)
	if err != nil {
		return err
	}
	return requireRow(res, service.ErrNotFound)
}

func (t *mysqlTx) InsertPurchaseLog(ctx context.Context, l *model.PurchaseLog) error {
	res, err := t.q.ExecContext(ctx,
		"INSERT INTO purchase_logs (user_id, pass_id, user_pass_id, price, purchased_at) VALUES (?,?,?,?,?)",
		l.UserID, l.PassID, l.UserPassID, l.Price, l.PurchasedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// requireRow turns an UPDATE that matched nothing into notFound.  The DSN
// sets clientFoundRows, so RowsAffected counts matched rather than changed
// rows.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
