package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

// MySQL error numbers the store reacts to.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLStore implements service.Store on a MySQL database.  Row locks
// (SELECT ... FOR UPDATE) taken inside InTx are held until commit.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a store bound to db.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// InTx runs fn in a READ COMMITTED transaction.  Deadlocks and lock wait
// timeouts are reported as service.ErrConcurrencyConflict so the caller
// can retry.
func (s *MySQLStore) InTx(ctx context.Context, fn func(tx service.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&mysqlTx{q: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

// ListPassDefinitions implements service.CatalogReader.
func (s *MySQLStore) ListPassDefinitions(ctx context.Context) ([]model.PassDefinition, error) {
	return listPassDefinitions(ctx, s.db)
}

// GetPassDefinition implements service.CatalogReader.
func (s *MySQLStore) GetPassDefinition(ctx context.Context, id uint64) (model.PassDefinition, error) {
	return getPassDefinition(ctx, s.db, id)
}

// classify maps lock races to service.ErrConcurrencyConflict and leaves
// every other error untouched.
func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == errDeadlock || me.Number == errLockWaitTimeout) {
		return fmt.Errorf("mysql %d: %w", me.Number, service.ErrConcurrencyConflict)
	}
	return err
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

// mysqlTx implements service.Tx over one *sql.Tx.
type mysqlTx struct {
	q querier
}

func (t *mysqlTx) ListPassDefinitions(ctx context.Context) ([]model.PassDefinition, error) {
	return listPassDefinitions(ctx, t.q)
}

func (t *mysqlTx) GetPassDefinition(ctx context.Context, id uint64) (model.PassDefinition, error) {
	return getPassDefinition(ctx, t.q, id)
}
