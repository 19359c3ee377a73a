package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studycafe-seat-pass/internal/clock"
)

func TestUserCreateDuplicatePhone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(q("INSERT INTO users (name, phone, age) VALUES (?,?,?)")).
		WithArgs("kim", "01012345678", 30).
		WillReturnError(&mysql.MySQLError{Number: 1062})

	_, err = NewUserRepo(db).Create(context.Background(), " kim ", "01012345678", 30)
	assert.ErrorIs(t, err, ErrPhoneExists)
}

func TestUserGetByPhone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("SELECT id,name,phone,age,created_at FROM users WHERE phone=?")).
		WithArgs("01012345678").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone", "age", "created_at"}).
			AddRow(5, "kim", "01012345678", 30, created))
	mock.ExpectQuery(q("FROM users WHERE id=?")).
		WithArgs(6).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone", "age", "created_at"}))

	repo := NewUserRepo(db)
	u, err := repo.GetByPhone(context.Background(), "01012345678")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), u.ID)
	assert.Equal(t, 30, u.Age)

	_, err = repo.GetByID(context.Background(), 6)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConsumeRefresh(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := &TokenRepo{DB: db, Clock: clock.Fake(now)}
	selectLive := q("SELECT user_id FROM refresh_tokens")

	mock.ExpectBegin()
	mock.ExpectQuery(selectLive).WithArgs("ok", now).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(3))
	mock.ExpectExec(q("UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=?")).
		WithArgs(now, "ok").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(selectLive).WithArgs("spent", now).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectRollback()

	uid, err := repo.ConsumeRefresh(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), uid)

	_, err = repo.ConsumeRefresh(context.Background(), "spent")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeAllForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := &TokenRepo{DB: db, Clock: clock.Fake(now)}
	mock.ExpectExec(q("UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL")).
		WithArgs(now, 9).WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.RevokeAllForUser(context.Background(), 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}
