// Package memory is an in-process implementation of the service store.
// One mutex serializes every transaction; writes are recorded in an undo
// log that is replayed in reverse when the transaction function fails, so
// an aborted transaction leaves nothing behind.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iliyamo/studycafe-seat-pass/internal/clock"
	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

// Options seeds a Store.
type Options struct {
	Catalog []model.PassDefinition
	SeatIDs []string
	Clock   clock.Clock // token expiry and user creation time; defaults to clock.Real()
}

// Store holds every table in maps guarded by mu.
type Store struct {
	mu    sync.Mutex
	clock clock.Clock

	catalog map[uint64]model.PassDefinition

	users      map[uint64]model.User
	phones     map[string]uint64
	nextUserID uint64

	passes     map[uint64]model.UserPass
	nextPassID uint64

	logs      []model.PurchaseLog
	nextLogID uint64

	seats      map[string]model.Seat
	seatByPass map[uint64]string

	tokens      map[string]model.RefreshToken
	nextTokenID uint64
}

// New returns a store seeded with opts.
func New(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	s := &Store{
		clock:      opts.Clock,
		catalog:    make(map[uint64]model.PassDefinition, len(opts.Catalog)),
		users:      make(map[uint64]model.User),
		phones:     make(map[string]uint64),
		passes:     make(map[uint64]model.UserPass),
		seats:      make(map[string]model.Seat, len(opts.SeatIDs)),
		seatByPass: make(map[uint64]string),
		tokens:     make(map[string]model.RefreshToken),
	}
	for _, d := range opts.Catalog {
		s.catalog[d.ID] = d
	}
	for _, id := range opts.SeatIDs {
		s.seats[id] = model.Seat{ID: id}
	}
	return s
}

// ListPassDefinitions implements service.CatalogReader.
func (s *Store) ListPassDefinitions(ctx context.Context) ([]model.PassDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCatalog(), nil
}

// GetPassDefinition implements service.CatalogReader.
func (s *Store) GetPassDefinition(ctx context.Context, id uint64) (model.PassDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCatalog(id)
}

func (s *Store) listCatalog() []model.PassDefinition {
	out := make([]model.PassDefinition, 0, len(s.catalog))
	for _, d := range s.catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) getCatalog(id uint64) (model.PassDefinition, error) {
	d, ok := s.catalog[id]
	if !ok {
		return model.PassDefinition{}, service.ErrNotFound
	}
	return d, nil
}

// InTx runs fn with exclusive access to the store.  A panic inside fn is
// rolled back and re-raised.
func (s *Store) InTx(ctx context.Context, fn func(tx service.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	committed = true
	return nil
}

// memTx is the view handed to a transaction function.  Every write pushes
// its inverse onto undo.
type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) ListPassDefinitions(ctx context.Context) ([]model.PassDefinition, error) {
	return t.s.listCatalog(), nil
}

func (t *memTx) GetPassDefinition(ctx context.Context, id uint64) (model.PassDefinition, error) {
	return t.s.getCatalog(id)
}

func (t *memTx) GetUser(ctx context.Context, id uint64) (model.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return model.User{}, service.ErrInvalidUser
	}
	return u, nil
}

// LockUser only checks existence: the store mutex already serializes.
func (t *memTx) LockUser(ctx context.Context, id uint64) error {
	_, err := t.GetUser(ctx, id)
	return err
}

func (t *memTx) GetUserPass(ctx context.Context, id uint64) (model.UserPass, error) {
	p, ok := t.s.passes[id]
	if !ok {
		return model.UserPass{}, service.ErrNotFound
	}
	return p.Clone(), nil
}

func (t *memTx) PassOwner(ctx context.Context, userPassID uint64) (uint64, error) {
	p, ok := t.s.passes[userPassID]
	if !ok {
		return 0, service.ErrNotFound
	}
	return p.UserID, nil
}

func (t *memTx) ListUserPasses(ctx context.Context, userID uint64) ([]model.UserPass, error) {
	out := make([]model.UserPass, 0)
	for _, p := range t.s.passes {
		if p.UserID == userID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchasedAt.Equal(out[j].PurchasedAt) {
			return out[i].PurchasedAt.After(out[j].PurchasedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (t *memTx) ActiveUserPasses(ctx context.Context, userID uint64) ([]model.UserPass, error) {
	out := make([]model.UserPass, 0, 1)
	for _, p := range t.s.passes {
		if p.UserID == userID && p.IsActive {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) InsertUserPass(ctx context.Context, p *model.UserPass) error {
	if _, ok := t.s.users[p.UserID]; !ok {
		return service.ErrInvalidUser
	}
	t.s.nextPassID++
	p.ID = t.s.nextPassID
	t.s.passes[p.ID] = p.Clone()
	id := p.ID
	t.undo = append(t.undo, func() {
		delete(t.s.passes, id)
		t.s.nextPassID--
	})
	return nil
}

func (t *memTx) UpdateUserPass(ctx context.Context, p model.UserPass) error {
	prev, ok := t.s.passes[p.ID]
	if !ok {
		return service.ErrNotFound
	}
	t.s.passes[p.ID] = p.Clone()
	t.undo = append(t.undo, func() { t.s.passes[prev.ID] = prev })
	return nil
}

func (t *memTx) InsertPurchaseLog(ctx context.Context, l *model.PurchaseLog) error {
	t.s.nextLogID++
	l.ID = t.s.nextLogID
	t.s.logs = append(t.s.logs, *l)
	t.undo = append(t.undo, func() {
		t.s.logs = t.s.logs[:len(t.s.logs)-1]
		t.s.nextLogID--
	})
	return nil
}

func (t *memTx) GetSeat(ctx context.Context, id string) (model.Seat, error) {
	s, ok := t.s.seats[id]
	if !ok {
		return model.Seat{}, service.ErrSeatNotFound
	}
	return s.Clone(), nil
}

func (t *memTx) SeatByOccupant(ctx context.Context, userPassID uint64) (model.Seat, bool, error) {
	id, ok := t.s.seatByPass[userPassID]
	if !ok {
		return model.Seat{}, false, nil
	}
	return t.s.seats[id].Clone(), true, nil
}

func (t *memTx) ListSeats(ctx context.Context) ([]model.Seat, error) {
	out := make([]model.Seat, 0, len(t.s.seats))
	for _, s := range t.s.seats {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateSeat writes the seat and moves the pass -> seat index with it.
func (t *memTx) UpdateSeat(ctx context.Context, seat model.Seat) error {
	prev, ok := t.s.seats[seat.ID]
	if !ok {
		return service.ErrSeatNotFound
	}
	if seat.OccupantUserPassID != nil {
		if other, held := t.s.seatByPass[*seat.OccupantUserPassID]; held && other != seat.ID {
			return fmt.Errorf("memory: user pass %d already holds seat %s", *seat.OccupantUserPassID, other)
		}
	}
	if prev.OccupantUserPassID != nil {
		delete(t.s.seatByPass, *prev.OccupantUserPassID)
	}
	if seat.OccupantUserPassID != nil {
		t.s.seatByPass[*seat.OccupantUserPassID] = seat.ID
	}
	t.s.seats[seat.ID] = seat.Clone()
	t.undo = append(t.undo, func() {
		if seat.OccupantUserPassID != nil {
			delete(t.s.seatByPass, *seat.OccupantUserPassID)
		}
		if prev.OccupantUserPassID != nil {
			t.s.seatByPass[*prev.OccupantUserPassID] = prev.ID
		}
		t.s.seats[prev.ID] = prev
	})
	return nil
}

// PurchaseLogs returns a copy of the purchase log.
func (s *Store) PurchaseLogs() []model.PurchaseLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PurchaseLog(nil), s.logs...)
}
