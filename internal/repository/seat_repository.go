package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

const seatColumns = "id, user_pass_id, occupied_at"

func scanSeat(r rowScanner) (model.Seat, error) {
	var (
		s        model.Seat
		occupant sql.NullInt64
		at       sql.NullTime
	)
	if err := r.Scan(&s.ID, &occupant, &at); err != nil {
		return model.Seat{}, err
	}
	if occupant.Valid {
		v := uint64(occupant.Int64)
		s.OccupantUserPassID = &v
	}
	if at.Valid {
		v := at.Time.UTC()
		s.OccupiedAt = &v
	}
	return s, nil
}

// GetSeat loads and row-locks one seat; the lock is the serialization
// point for concurrent check-ins on it.
func (t *mysqlTx) GetSeat(ctx context.Context, id string) (model.Seat, error) {
	s, err := scanSeat(t.q.QueryRowContext(ctx,
		"SELECT "+seatColumns+" FROM seats WHERE id=? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, service.ErrSeatNotFound
	}
	return s, err
}

// SeatByOccupant reads the reverse lookup through the unique index on
// seats.user_pass_id.
func (t *mysqlTx) SeatByOccupant(ctx context.Context, userPassID uint64) (model.Seat, bool, error) {
	s, err := scanSeat(t.q.QueryRowContext(ctx,
		"SELECT "+seatColumns+" FROM seats WHERE user_pass_id=? FOR UPDATE", userPassID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, false, nil
	}
	if err != nil {
		return model.Seat{}, false, err
	}
	return s, true, nil
}

func (t *mysqlTx) ListSeats(ctx context.Context) ([]model.Seat, error) {
	rows, err := t.q.QueryContext(ctx, "SELECT "+seatColumns+" FROM seats ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Seat{}
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSeat writes occupancy.  A duplicate on the unique user_pass_id
// index means the pass already holds another seat.
func (t *mysqlTx) UpdateSeat(ctx context.Context, s model.Seat) error {
	var occupant sql.NullInt64
	if s.OccupantUserPassID != nil {
		occupant = sql.NullInt64{Int64: int64(*s.OccupantUserPassID), Valid: true}
	}
	res, err := t.q.ExecContext(ctx,
		"UPDATE seats SET user_pass_id=?, occupied_at=? WHERE id=?",
		occupant, nullTime(s.OccupiedAt), s.ID)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("seat %s: %w", s.ID, service.ErrAlreadyActive)
		}
		return err
	}
	return requireRow(res, service.ErrSeatNotFound)
}
