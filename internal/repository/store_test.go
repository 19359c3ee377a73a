package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

func newMock(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMySQLStore(db), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestInTxCommits(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM users WHERE id=? FOR UPDATE")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx service.Tx) error {
		return tx.LockUser(context.Background(), 7)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM users WHERE id=? FOR UPDATE")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx service.Tx) error {
		return tx.LockUser(context.Background(), 7)
	})
	assert.ErrorIs(t, err, service.ErrInvalidUser)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxClassifiesDeadlock(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id, user_pass_id, occupied_at FROM seats WHERE id=? FOR UPDATE")).
		WithArgs("A1").
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx service.Tx) error {
		_, err := tx.GetSeat(context.Background(), "A1")
		return err
	})
	assert.ErrorIs(t, err, service.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyLeavesOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1205}), service.ErrConcurrencyConflict)
	assert.NotErrorIs(t, classify(&mysql.MySQLError{Number: 1062}), service.ErrConcurrencyConflict)
}

func TestGetUserPassScansNullables(t *testing.T) {
	store, mock := newMock(t)
	purchased := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	accrued := purchased.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM user_passes WHERE id=? FOR UPDATE")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "pass_id", "name", "pass_type", "total_duration",
			"remaining_time", "expire_at", "is_active", "current_seat_id", "last_accrued_at", "purchased_at"}).
			AddRow(3, 1, 2, "50-hour pass", "time_period", 3000, 2880, nil, true, "A1", accrued, purchased))
	mock.ExpectQuery(q("FROM user_passes WHERE id=? FOR UPDATE")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx service.Tx) error {
		p, err := tx.GetUserPass(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, model.PassTypeTimePeriod, p.PassType)
		assert.Equal(t, 2880, *p.RemainingTime)
		assert.Nil(t, p.ExpireAt)
		assert.True(t, p.IsActive)
		assert.Equal(t, "A1", *p.CurrentSeatID)
		assert.Equal(t, accrued, *p.LastAccruedAt)

		_, err = tx.GetUserPass(context.Background(), 4)
		assert.ErrorIs(t, err, service.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPassOwnerTakesNoRowLock(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("^" + q("SELECT user_id FROM user_passes WHERE id=?") + "$").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(8))
	mock.ExpectQuery("^" + q("SELECT user_id FROM user_passes WHERE id=?") + "$").
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx service.Tx) error {
		owner, err := tx.PassOwner(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, uint64(8), owner)

		_, err = tx.PassOwner(context.Background(), 4)
		assert.ErrorIs(t, err, service.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSeatDuplicateOccupant(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE seats SET user_pass_id=?, occupied_at=? WHERE id=?")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	pass := uint64(5)
	now := time.Now().UTC()
	err := store.InTx(context.Background(), func(tx service.Tx) error {
		return tx.UpdateSeat(context.Background(), model.Seat{ID: "B1", OccupantUserPassID: &pass, OccupiedAt: &now})
	})
	assert.ErrorIs(t, err, service.ErrAlreadyActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSeatUnknown(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE seats SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx service.Tx) error {
		return tx.UpdateSeat(context.Background(), model.Seat{ID: "Z9"})
	})
	assert.ErrorIs(t, err, service.ErrSeatNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUserPassFillsID(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO user_passes")).WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectExec(q("INSERT INTO purchase_logs")).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	left := 3000
	p := model.UserPass{UserID: 1, PassID: 2, Name: "50-hour pass", PassType: model.PassTypeTimePeriod, TotalDuration: 3000, RemainingTime: &left, PurchasedAt: time.Now()}
	l := model.PurchaseLog{UserID: 1, PassID: 2, Price: 90000, PurchasedAt: time.Now()}
	err := store.InTx(context.Background(), func(tx service.Tx) error {
		if err := tx.InsertUserPass(context.Background(), &p); err != nil {
			return err
		}
		l.UserPassID = p.ID
		return tx.InsertPurchaseLog(context.Background(), &l)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(41), p.ID)
	assert.Equal(t, uint64(9), l.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPassDefinitions(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(q("SELECT id, name, pass_type, duration, price FROM passes ORDER BY id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "pass_type", "duration", "price"}).
			AddRow(1, "4-hour pass", "time", 240, 8000).
			AddRow(4, "1-day pass", "day", 1, 12000))

	defs, err := store.ListPassDefinitions(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, model.PassTypeDay, defs[1].PassType)
	assert.Equal(t, int64(12000), defs[1].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPassDefinitionMissing(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(q("FROM passes WHERE id=?")).WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "pass_type", "duration", "price"}))
	_, err := store.GetPassDefinition(context.Background(), 99)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
