package service

import (
	"context"
	"errors"
	"log"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/studycafe-seat-pass/internal/clock"
	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/queue"
)

// Options tunes a Coordinator.  Zero values select the defaults.
type Options struct {
	Clock       clock.Clock   // defaults to clock.Real()
	Publisher   Publisher     // defaults to a no-op
	MaxAttempts int           // transaction attempts on ErrConcurrencyConflict, default 3
	Backoff     time.Duration // base delay between attempts, default 20ms
}

// Coordinator is the SessionCoordinator: it moves a pass and a seat
// together inside one store transaction so the seat/pass bijection and the
// one-active-pass-per-user rule hold after every commit.  It keeps no state
// of its own.
type Coordinator struct {
	store       Store
	clock       clock.Clock
	events      Publisher
	catalog     *PassCatalog
	ledger      *PassLedger
	seats       *SeatRegistry
	accrual     *TimeAccrualClock
	maxAttempts int
	backoff     time.Duration
}

// NewCoordinator builds the core over store.
func NewCoordinator(store Store, opts Options) *Coordinator {
	if store == nil {
		panic("nil store passed to NewCoordinator")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Publisher == nil {
		opts.Publisher = noopPublisher{}
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 20 * time.Millisecond
	}
	seats := NewSeatRegistry(opts.Clock)
	ledger := NewPassLedger(opts.Clock, seats)
	return &Coordinator{
		store:       store,
		clock:       opts.Clock,
		events:      opts.Publisher,
		catalog:     NewPassCatalog(store),
		ledger:      ledger,
		seats:       seats,
		accrual:     NewTimeAccrualClock(opts.Clock, ledger, seats),
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
	}
}

// Now returns the coordinator's notion of the current time.
func (c *Coordinator) Now() time.Time { return c.clock.Now() }

// Catalog exposes the pass catalog.
func (c *Coordinator) Catalog() *PassCatalog { return c.catalog }

// CheckInResult is the state committed by a successful check-in.
type CheckInResult struct {
	UserPass model.UserPass
	Seat     model.Seat
}

// CheckIn activates userPassID and seats it on seatID.  The user lock and
// the seat row lock are both held by the same transaction, so of two racing
// check-ins on one seat exactly one wins (ErrSeatTaken for the other), and
// of two racing check-ins by one user exactly one wins (ErrAlreadyActive).
func (c *Coordinator) CheckIn(ctx context.Context, userID, userPassID uint64, seatID string) (CheckInResult, error) {
	var res CheckInResult
	var events []queue.SessionEvent
	err := c.run(ctx, func(tx Tx) error {
		events = events[:0]
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		p, err := tx.GetUserPass(ctx, userPassID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return ErrNotFound
		}
		ended, err := c.accrual.ReconcileUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		events = append(events, c.endedEvents(ended)...)

		if _, err := c.ledger.Activate(ctx, tx, userPassID); err != nil {
			return err
		}
		seat, err := c.seats.Assign(ctx, tx, seatID, userPassID)
		if err != nil {
			return err
		}
		p, err = c.ledger.AttachSeat(ctx, tx, userPassID, seat.ID)
		if err != nil {
			return err
		}
		res = CheckInResult{UserPass: p, Seat: seat}
		events = append(events, c.event(queue.EventCheckedIn, p, seat.ID))
		return nil
	})
	if err != nil {
		return CheckInResult{}, err
	}
	c.publish(ctx, events)
	return res, nil
}

// CheckOut releases the seat held by userPassID and deactivates the pass.
// Elapsed time is charged up to the check-out instant; afterwards the
// balance is frozen.  When the accrual itself ends the pass during this
// call, the seat is already free and the ended pass is returned.
func (c *Coordinator) CheckOut(ctx context.Context, userID, userPassID uint64) (model.UserPass, error) {
	return c.checkOutWith(ctx, userID, func(tx Tx) (uint64, error) {
		p, err := tx.GetUserPass(ctx, userPassID)
		if err != nil {
			return 0, err
		}
		if p.UserID != userID {
			return 0, ErrNotFound
		}
		return p.ID, nil
	})
}

// CheckOutSeat checks out whichever of the user's passes sits on seatID.
func (c *Coordinator) CheckOutSeat(ctx context.Context, userID uint64, seatID string) (model.UserPass, error) {
	return c.checkOutWith(ctx, userID, func(tx Tx) (uint64, error) {
		occupant, err := c.seats.OccupantOf(ctx, tx, seatID)
		if err != nil {
			return 0, err
		}
		if occupant == nil {
			return 0, ErrNotCheckedIn
		}
		p, err := tx.GetUserPass(ctx, *occupant)
		if err != nil {
			return 0, err
		}
		if p.UserID != userID {
			return 0, ErrNotCheckedIn
		}
		return p.ID, nil
	})
}

// CheckOutActive checks out the user's active pass, whatever seat it holds.
func (c *Coordinator) CheckOutActive(ctx context.Context, userID uint64) (model.UserPass, error) {
	return c.checkOutWith(ctx, userID, func(tx Tx) (uint64, error) {
		active, err := tx.ActiveUserPasses(ctx, userID)
		if err != nil {
			return 0, err
		}
		if len(active) == 0 {
			return 0, ErrNotCheckedIn
		}
		return active[0].ID, nil
	})
}

func (c *Coordinator) checkOutWith(ctx context.Context, userID uint64, resolve func(tx Tx) (uint64, error)) (model.UserPass, error) {
	var out model.UserPass
	var events []queue.SessionEvent
	err := c.run(ctx, func(tx Tx) error {
		events = events[:0]
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		passID, err := resolve(tx)
		if err != nil {
			return err
		}
		p, err := tx.GetUserPass(ctx, passID)
		if err != nil {
			return err
		}
		seatID, err := c.seats.SeatOf(ctx, tx, passID)
		if err != nil {
			return err
		}
		if seatID == nil {
			return ErrNotCheckedIn
		}
		p, outcome, err := c.accrual.Reconcile(ctx, tx, p)
		if err != nil {
			return err
		}
		if outcome == Exhausted || outcome == Expired {
			out = p
			events = append(events, c.endedEvents([]Reconciled{{UserPass: p, SeatID: *seatID, Outcome: outcome}})...)
			return nil
		}
		if _, err := c.seats.Release(ctx, tx, *seatID); err != nil {
			return err
		}
		p, err = c.ledger.Deactivate(ctx, tx, passID)
		if err != nil {
			return err
		}
		out = p
		events = append(events, c.event(queue.EventCheckedOut, p, *seatID))
		return nil
	})
	if err != nil {
		return model.UserPass{}, err
	}
	c.publish(ctx, events)
	return out, nil
}

// Purchase buys a pass for userID.  The new pass is never activated; a
// user may hold several unused passes and picks one at check-in.
func (c *Coordinator) Purchase(ctx context.Context, userID, definitionID uint64) (model.UserPass, error) {
	var p model.UserPass
	err := c.run(ctx, func(tx Tx) error {
		var err error
		p, err = c.ledger.Purchase(ctx, tx, userID, definitionID)
		return err
	})
	if err != nil {
		return model.UserPass{}, err
	}
	ev := c.event(queue.EventPurchased, p, "")
	if def, derr := c.catalog.Get(ctx, definitionID); derr == nil {
		ev.Price = def.Price
	}
	c.publish(ctx, []queue.SessionEvent{ev})
	return p, nil
}

// ListPasses returns the user's passes with elapsed time already charged.
func (c *Coordinator) ListPasses(ctx context.Context, userID uint64) ([]model.UserPass, error) {
	var passes []model.UserPass
	var events []queue.SessionEvent
	err := c.run(ctx, func(tx Tx) error {
		events = events[:0]
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		ended, err := c.accrual.ReconcileUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		events = append(events, c.endedEvents(ended)...)
		passes, err = c.ledger.ListForUser(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.publish(ctx, events)
	return passes, nil
}

// SeatStatus is one entry of the seat map.
type SeatStatus struct {
	SeatID                   string
	Occupied                 bool
	OccupantUserPassID       *uint64
	OccupantRemainingMinutes *int
	OccupiedAt               *time.Time
}

// SeatStatuses returns the seat map after reconciling every occupant.
// Owners are found without locking, then locked in ascending user order
// before any of their passes or seats.
func (c *Coordinator) SeatStatuses(ctx context.Context) ([]SeatStatus, error) {
	var out []SeatStatus
	var events []queue.SessionEvent
	err := c.run(ctx, func(tx Tx) error {
		events = events[:0]
		seats, err := c.seats.List(ctx, tx)
		if err != nil {
			return err
		}
		users := make([]uint64, 0)
		seen := make(map[uint64]struct{})
		for _, s := range seats {
			if s.OccupantUserPassID == nil {
				continue
			}
			owner, err := tx.PassOwner(ctx, *s.OccupantUserPassID)
			if err != nil {
				return err
			}
			if _, ok := seen[owner]; !ok {
				seen[owner] = struct{}{}
				users = append(users, owner)
			}
		}
		slices.Sort(users)
		for _, uid := range users {
			if err := tx.LockUser(ctx, uid); err != nil {
				return err
			}
			ended, err := c.accrual.ReconcileUser(ctx, tx, uid)
			if err != nil {
				return err
			}
			events = append(events, c.endedEvents(ended)...)
		}
		if len(users) > 0 {
			if seats, err = c.seats.List(ctx, tx); err != nil {
				return err
			}
		}
		now := c.clock.Now()
		out = make([]SeatStatus, 0, len(seats))
		for _, s := range seats {
			st := SeatStatus{SeatID: s.ID, Occupied: s.Occupied(), OccupantUserPassID: s.OccupantUserPassID, OccupiedAt: s.OccupiedAt}
			if s.OccupantUserPassID != nil {
				p, err := tx.GetUserPass(ctx, *s.OccupantUserPassID)
				if err != nil {
					return err
				}
				st.OccupantRemainingMinutes = RemainingMinutes(p, now)
			}
			out = append(out, st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.publish(ctx, events)
	return out, nil
}

// run executes fn in a store transaction, retrying lost lock races.
func (c *Coordinator) run(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.store.InTx(ctx, fn)
		if !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
		log.Printf("coordinator: transaction conflict (attempt %d/%d): %v", attempt, c.maxAttempts, err)
		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	return err
}

func (c *Coordinator) event(typ string, p model.UserPass, seatID string) queue.SessionEvent {
	return queue.SessionEvent{
		MessageID:     uuid.NewString(),
		Type:          typ,
		UserID:        p.UserID,
		UserPassID:    p.ID,
		PassType:      string(p.PassType),
		SeatID:        seatID,
		RemainingTime: RemainingMinutes(p, c.clock.Now()),
		OccurredAt:    c.clock.Now().UTC().Format(time.RFC3339),
	}
}

func (c *Coordinator) endedEvents(ended []Reconciled) []queue.SessionEvent {
	out := make([]queue.SessionEvent, 0, len(ended))
	for _, r := range ended {
		typ := queue.EventExhausted
		if r.Outcome == Expired {
			typ = queue.EventExpired
		}
		out = append(out, c.event(typ, r.UserPass, r.SeatID))
	}
	return out
}

// publish is best effort: the transaction has already committed.
func (c *Coordinator) publish(ctx context.Context, events []queue.SessionEvent) {
	for _, ev := range events {
		if err := c.events.Publish(ctx, ev); err != nil {
			log.Printf("coordinator: publish %s for pass %d failed: %v", ev.Type, ev.UserPassID, err)
		}
	}
}
