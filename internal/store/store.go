// Package store is the in-process, owner-keyed reactive store behind the
// dashboards. Every successful mutation emits exactly one event on the
// owner's "<collection>:<ownerKey>" channel.
//
// The store is ephemeral; nothing survives the process.
package store

import (
	"math"
	"slices"
	"sync"
	"time"

	"transitbook/internal/domain"
	"transitbook/internal/domain/models"
	"transitbook/internal/events"

	"github.com/google/uuid"
)

const (
	// DefaultLoyaltyPoints seeds every new profile.
	DefaultLoyaltyPoints = 320

	DefaultBookingLimit     = 5
	DefaultActivityLimit    = 10
	DefaultTransactionLimit = 50
)

type ownerData struct {
	bookings     []models.Booking
	activities   []models.Activity
	transactions []models.Transaction
	profile      models.Profile

	// ready is done once the seed hooks for this owner have returned. Every
	// caller passes through it before emitting.
	ready sync.Once
}

// Store guards all collections with one mutex. Events are emitted after the
// mutex is released so handlers may call back into the store.
type Store struct {
	mu     sync.Mutex
	owners map[domain.OwnerKey]*ownerData
	last   time.Time

	bus           events.Bus
	now           func() time.Time
	newID         func() string
	defaultPoints int
	seedHooks     []func(domain.OwnerKey)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithDefaultPoints overrides DefaultLoyaltyPoints. Negative values are clamped to 0.
func WithDefaultPoints(points int) Option {
	return func(s *Store) { s.defaultPoints = max(points, 0) }
}

// WithSeedHook registers fn to run once per owner, right after the owner's
// collections are first created and before any event for that owner is
// emitted. fn must not call back into the store for the same owner.
func WithSeedHook(fn func(domain.OwnerKey)) Option {
	return func(s *Store) { s.seedHooks = append(s.seedHooks, fn) }
}

func New(bus events.Bus, opts ...Option) *Store {
	if bus == nil {
		bus = events.NewLocalBus()
	}
	s := &Store{
		owners:        map[domain.OwnerKey]*ownerData{},
		bus:           bus,
		now:           time.Now,
		newID:         uuid.NewString,
		defaultPoints: DefaultLoyaltyPoints,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bus returns the bus mutations are emitted on.
func (s *Store) Bus() events.Bus { return s.bus }

// EnsureSeed creates the owner's empty collections and default profile on
// first use. Later calls do nothing.
func (s *Store) EnsureSeed(owner domain.OwnerKey) {
	s.mu.Lock()
	d := s.seedLocked(owner)
	s.mu.Unlock()
	s.awaitSeed(owner, d)
}

func (s *Store) seedLocked(owner domain.OwnerKey) *ownerData {
	if d, ok := s.owners[owner]; ok {
		return d
	}
	d := &ownerData{
		bookings:     []models.Booking{},
		activities:   []models.Activity{},
		transactions: []models.Transaction{},
		profile:      models.Profile{ID: string(owner), LoyaltyPoints: s.defaultPoints},
	}
	s.owners[owner] = d
	return d
}

// awaitSeed runs the seed hooks on the first call for d and blocks every
// other caller until they have returned.
func (s *Store) awaitSeed(owner domain.OwnerKey, d *ownerData) {
	d.ready.Do(func() {
		for _, fn := range s.seedHooks {
			fn(owner)
		}
	})
}

// stamp returns a creation time strictly after the previous one so
// newest-first ordering is total.
func (s *Store) stamp() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

// withOwner runs fn under the lock against the seeded owner, then emits ev
// (when fn returns one) on collection's channel.
func (s *Store) withOwner(owner domain.OwnerKey, collection string, fn func(d *ownerData) (events.Event, bool)) {
	s.mu.Lock()
	d := s.seedLocked(owner)
	ev, emit := fn(d)
	s.mu.Unlock()

	s.awaitSeed(owner, d)
	if emit {
		s.bus.Emit(events.Channel(collection, owner), ev)
	}
}

func (s *Store) GetProfile(owner domain.OwnerKey) (models.Profile, bool) {
	var p models.Profile
	s.withOwner(owner, events.CollectionProfile, func(d *ownerData) (events.Event, bool) {
		p = d.profile
		return events.Event{}, false
	})
	return p, true
}

// GetBookings returns up to limit bookings, newest first. limit <= 0 means
// DefaultBookingLimit.
func (s *Store) GetBookings(owner domain.OwnerKey, limit int) []models.Booking {
	var out []models.Booking
	s.withOwner(owner, events.CollectionBookings, func(d *ownerData) (events.Event, bool) {
		out = make([]models.Booking, 0, len(d.bookings))
		for _, b := range d.bookings {
			out = append(out, b.Clone())
		}
		return events.Event{}, false
	})
	slices.SortStableFunc(out, func(a, b models.Booking) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return truncate(out, limit, DefaultBookingLimit)
}

// GetBooking looks up one booking by id within the owner's collection.
func (s *Store) GetBooking(owner domain.OwnerKey, id string) (models.Booking, bool) {
	var (
		out   models.Booking
		found bool
	)
	s.withOwner(owner, events.CollectionBookings, func(d *ownerData) (events.Event, bool) {
		if i := indexBooking(d.bookings, id); i >= 0 {
			out, found = d.bookings[i].Clone(), true
		}
		return events.Event{}, false
	})
	return out, found
}

func (s *Store) GetActivities(owner domain.OwnerKey, limit int) []models.Activity {
	var out []models.Activity
	s.withOwner(owner, events.CollectionActivities, func(d *ownerData) (events.Event, bool) {
		out = make([]models.Activity, 0, len(d.activities))
		for _, a := range d.activities {
			out = append(out, a.Clone())
		}
		return events.Event{}, false
	})
	slices.SortStableFunc(out, func(a, b models.Activity) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return truncate(out, limit, DefaultActivityLimit)
}

func (s *Store) GetTransactions(owner domain.OwnerKey, limit int) []models.Transaction {
	var out []models.Transaction
	s.withOwner(owner, events.CollectionTransactions, func(d *ownerData) (events.Event, bool) {
		out = slices.Clone(d.transactions)
		return events.Event{}, false
	})
	slices.SortStableFunc(out, func(a, b models.Transaction) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return truncate(out, limit, DefaultTransactionLimit)
}

func (s *Store) AddBooking(owner domain.OwnerKey, f models.BookingFields) models.Booking {
	var b models.Booking
	s.withOwner(owner, events.CollectionBookings, func(d *ownerData) (events.Event, bool) {
		b = models.NewBooking(s.newID(), string(owner), s.stamp(), f)
		d.bookings = append(d.bookings, b)
		return events.Event{Kind: events.Insert, Entity: b.Clone()}, true
	})
	return b.Clone()
}

// UpdateBooking merges the present fields of patch over booking id. ok is
// false, and nothing is emitted, when the owner has no such booking.
func (s *Store) UpdateBooking(owner domain.OwnerKey, id string, patch models.BookingPatch) (models.Booking, bool) {
	var (
		b  models.Booking
		ok bool
	)
	s.withOwner(owner, events.CollectionBookings, func(d *ownerData) (events.Event, bool) {
		i := indexBooking(d.bookings, id)
		if i < 0 {
			return events.Event{}, false
		}
		b = patch.Apply(d.bookings[i])
		d.bookings[i] = b
		ok = true
		return events.Event{Kind: events.Update, Entity: b.Clone()}, true
	})
	return b.Clone(), ok
}

// UpdateBookingIf is UpdateBooking guarded by check, which sees the current
// booking under the store lock. A non-nil error from check leaves the booking
// untouched and is returned together with the current booking; nothing is
// emitted. ok is false when the owner has no such booking.
func (s *Store) UpdateBookingIf(owner domain.OwnerKey, id string, check func(models.Booking) error, patch models.BookingPatch) (b models.Booking, ok bool, err error) {
	s.withOwner(owner, events.CollectionBookings, func(d *ownerData) (events.Event, bool) {
		i := indexBooking(d.bookings, id)
		if i < 0 {
			return events.Event{}, false
		}
		ok = true
		if err = check(d.bookings[i].Clone()); err != nil {
			b = d.bookings[i]
			return events.Event{}, false
		}
		b = patch.Apply(d.bookings[i])
		d.bookings[i] = b
		return events.Event{Kind: events.Update, Entity: b.Clone()}, true
	})
	return b.Clone(), ok, err
}

func (s *Store) RemoveBooking(owner domain.OwnerKey, id string) bool {
	removed := false
	s.withOwner(owner, events.CollectionBookings, func(d *ownerData) (events.Event, bool) {
		i := indexBooking(d.bookings, id)
		if i < 0 {
			return events.Event{}, false
		}
		b := d.bookings[i]
		d.bookings = slices.Delete(d.bookings, i, i+1)
		removed = true
		return events.Event{Kind: events.Delete, Entity: b}, true
	})
	return removed
}

func (s *Store) AddActivity(owner domain.OwnerKey, f models.ActivityFields) models.Activity {
	var a models.Activity
	s.withOwner(owner, events.CollectionActivities, func(d *ownerData) (events.Event, bool) {
		a = models.NewActivity(s.newID(), string(owner), s.stamp(), f)
		d.activities = slices.Insert(d.activities, 0, a)
		return events.Event{Kind: events.Insert, Entity: a.Clone()}, true
	})
	return a.Clone()
}

func (s *Store) AddTransaction(owner domain.OwnerKey, f models.TransactionFields) models.Transaction {
	var tx models.Transaction
	s.withOwner(owner, events.CollectionTransactions, func(d *ownerData) (events.Event, bool) {
		tx = models.NewTransaction(s.newID(), string(owner), s.stamp(), f)
		d.transactions = slices.Insert(d.transactions, 0, tx)
		return events.Event{Kind: events.Insert, Entity: tx}, true
	})
	return tx
}

// AddPoints adds delta (possibly negative) to the loyalty balance. The
// balance never drops below zero and saturates at math.MaxInt.
func (s *Store) AddPoints(owner domain.OwnerKey, delta int) models.Profile {
	var p models.Profile
	s.withOwner(owner, events.CollectionProfile, func(d *ownerData) (events.Event, bool) {
		d.profile.LoyaltyPoints = addPoints(d.profile.LoyaltyPoints, delta)
		p = d.profile
		return events.Event{Kind: events.Update, Entity: p}, true
	})
	return p
}

// SpendPoints subtracts n from the balance only when the balance covers it.
// ok is false, and nothing is emitted, when it does not; p is then the
// unchanged profile.
func (s *Store) SpendPoints(owner domain.OwnerKey, n int) (p models.Profile, ok bool) {
	s.withOwner(owner, events.CollectionProfile, func(d *ownerData) (events.Event, bool) {
		if n < 0 || n > d.profile.LoyaltyPoints {
			p = d.profile
			return events.Event{}, false
		}
		d.profile.LoyaltyPoints -= n
		p, ok = d.profile, true
		return events.Event{Kind: events.Update, Entity: p}, true
	})
	return p, ok
}

// addPoints assumes balance >= 0.
func addPoints(balance, delta int) int {
	if delta > 0 && balance > math.MaxInt-delta {
		return math.MaxInt
	}
	return max(balance+delta, 0)
}

func indexBooking(list []models.Booking, id string) int {
	return slices.IndexFunc(list, func(b models.Booking) bool { return b.ID == id })
}

func truncate[T any](list []T, limit, def int) []T {
	if limit <= 0 {
		limit = def
	}
	if len(list) > limit {
		return list[:limit]
	}
	return list
}
