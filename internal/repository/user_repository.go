package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its ID.  phone must already be
// normalized to digits.
func (r *UserRepo) Create(ctx context.Context, name, phone string, age int) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, phone, age) VALUES (?,?,?)",
		strings.TrimSpace(name), phone, age)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrPhoneExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByPhone fetches a user by normalized phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	return getUser(ctx, r.DB, "phone=?", phone)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return getUser(ctx, r.DB, "id=?", id)
}

func getUser(ctx context.Context, q querier, where string, arg any) (model.User, error) {
	var u model.User
	err := q.QueryRowContext(ctx,
		"SELECT id,name,phone,age,created_at FROM users WHERE "+where+" LIMIT 1",
		arg).Scan(&u.ID, &u.Name, &u.Phone, &u.Age, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

func (t *mysqlTx) GetUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := getUser(ctx, t.q, "id=?", id)
	if errors.Is(err, ErrUserNotFound) {
		return model.User{}, service.ErrInvalidUser
	}
	return u, err
}

// LockUser takes the user row lock that serializes one member's sessions.
func (t *mysqlTx) LockUser(ctx context.Context, id uint64) error {
	var got uint64
	err := t.q.QueryRowContext(ctx, "SELECT id FROM users WHERE id=? FOR UPDATE", id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return service.ErrInvalidUser
	}
	return err
}
