package service

import (
	"context"
	"database/sql"
	"io"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
)

// memDB is an in-memory stand-in for MySQL.  memRunner serialises
// transactions on mu and restores a snapshot when a transaction fails, so
// workflows see the same all-or-nothing behaviour as with a real database.
// The unique keys of the schema are enforced on writes.
type memDB struct {
	mu sync.Mutex

	seq          uint64
	pools        map[uint64]model.Pool
	reservations map[uint64]model.Reservation
	lockers      map[uint64]model.Locker
	lockerRes    map[uint64]model.LockerReservation
	payments     map[uint64]model.Payment
	memberships  map[uint64]model.Membership
	categories   map[uint64]model.UserCategory
	userCategory map[uint64]uint64
	settings     map[string]string

	// failOn makes the named operation return the error.
	failOn map[string]error
}

func newMemDB() *memDB {
	return &memDB{
		pools:        map[uint64]model.Pool{},
		reservations: map[uint64]model.Reservation{},
		lockers:      map[uint64]model.Locker{},
		lockerRes:    map[uint64]model.LockerReservation{},
		payments:     map[uint64]model.Payment{},
		memberships:  map[uint64]model.Membership{},
		categories:   map[uint64]model.UserCategory{},
		userCategory: map[uint64]uint64{},
		settings:     map[string]string{},
		failOn:       map[string]error{},
	}
}

type memSnapshot struct {
	seq          uint64
	pools        map[uint64]model.Pool
	reservations map[uint64]model.Reservation
	lockers      map[uint64]model.Locker
	lockerRes    map[uint64]model.LockerReservation
	payments     map[uint64]model.Payment
	memberships  map[uint64]model.Membership
	categories   map[uint64]model.UserCategory
	userCategory map[uint64]uint64
	settings     map[string]string
}

func (d *memDB) snapshot() memSnapshot {
	return memSnapshot{
		seq: d.seq, pools: maps.Clone(d.pools), reservations: maps.Clone(d.reservations),
		lockers: maps.Clone(d.lockers), lockerRes: maps.Clone(d.lockerRes), payments: maps.Clone(d.payments),
		memberships: maps.Clone(d.memberships), categories: maps.Clone(d.categories),
		userCategory: maps.Clone(d.userCategory), settings: maps.Clone(d.settings),
	}
}

func (d *memDB) restore(s memSnapshot) {
	d.seq, d.pools, d.reservations, d.lockers, d.lockerRes = s.seq, s.pools, s.reservations, s.lockers, s.lockerRes
	d.payments, d.memberships, d.categories, d.userCategory, d.settings = s.payments, s.memberships, s.categories, s.userCategory, s.settings
}

func (d *memDB) next() uint64 {
	d.seq++
	return d.seq
}

func (d *memDB) fail(op string) error { return d.failOn[op] }

type memRunner struct {
	db      *memDB
	commits int
}

func (r *memRunner) WithTx(_ context.Context, fn func(tx *sql.Tx) error) (err error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	snap := r.db.snapshot()
	committed := false
	defer func() {
		if !committed {
			r.db.restore(snap)
		}
	}()
	if err := fn(nil); err != nil {
		return err
	}
	committed = true
	r.commits++
	return nil
}

// pools

type memPools struct{ db *memDB }

func (s memPools) GetForUpdateTx(_ context.Context, _ *sql.Tx, id uint64) (model.Pool, error) {
	p, ok := s.db.pools[id]
	if !ok {
		return p, repository.ErrNotFound
	}
	return p, nil
}

// reservations

type memReservations struct{ db *memDB }

func (s memReservations) ActiveSlotsTx(_ context.Context, _ *sql.Tx, poolID uint64, date string) ([]int, error) {
	var slots []int
	for _, r := range s.db.reservations {
		if r.PoolID == poolID && r.ReservationDate == date && r.Status != model.ReservationCancelled {
			slots = append(slots, r.SlotNo)
		}
	}
	sort.Ints(slots)
	return slots, nil
}

func (s memReservations) slotTaken(r model.Reservation) bool {
	for _, o := range s.db.reservations {
		if o.ID != r.ID && o.PoolID == r.PoolID && o.ReservationDate == r.ReservationDate &&
			o.SlotNo == r.SlotNo && o.Status != model.ReservationCancelled {
			return true
		}
	}
	return false
}

func (s memReservations) CreateTx(_ context.Context, _ *sql.Tx, r *model.Reservation) error {
	if err := s.db.fail("reservations.CreateTx"); err != nil {
		return err
	}
	if r.Status != model.ReservationCancelled && s.slotTaken(*r) {
		return repository.ErrConflict
	}
	r.ID = s.db.next()
	s.db.reservations[r.ID] = *r
	return nil
}

func (s memReservations) GetByIDTx(_ context.Context, _ *sql.Tx, id uint64) (model.Reservation, error) {
	r, ok := s.db.reservations[id]
	if !ok {
		return r, repository.ErrNotFound
	}
	return r, nil
}

func (s memReservations) GetForUserTx(_ context.Context, _ *sql.Tx, id, userID uint64) (model.Reservation, error) {
	r, ok := s.db.reservations[id]
	if !ok || r.UserID != userID {
		return model.Reservation{}, repository.ErrNotFound
	}
	return r, nil
}

func (s memReservations) UpdateStatusTx(_ context.Context, _ *sql.Tx, id uint64, status string) error {
	r, ok := s.db.reservations[id]
	if !ok {
		return nil
	}
	r.Status = status
	if status != model.ReservationCancelled && s.slotTaken(r) {
		return repository.ErrConflict
	}
	s.db.reservations[id] = r
	return nil
}

// lockers

type memLockers struct{ db *memDB }

func (s memLockers) GetForUpdateTx(_ context.Context, _ *sql.Tx, id uint64) (model.Locker, error) {
	l, ok := s.db.lockers[id]
	if !ok {
		return l, repository.ErrNotFound
	}
	return l, nil
}

type memLockerReservations struct{ db *memDB }

func (s memLockerReservations) HasActiveTx(_ context.Context, _ *sql.Tx, lockerID uint64, date string) (bool, error) {
	for _, lr := range s.db.lockerRes {
		if lr.LockerID == lockerID && lr.ReservationDate == date && lr.Status != model.LockerReservationCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (s memLockerReservations) CreateTx(ctx context.Context, tx *sql.Tx, lr *model.LockerReservation) error {
	if taken, _ := s.HasActiveTx(ctx, tx, lr.LockerID, lr.ReservationDate); taken {
		return repository.ErrConflict
	}
	lr.ID = s.db.next()
	s.db.lockerRes[lr.ID] = *lr
	return nil
}

func (s memLockerReservations) GetByIDTx(_ context.Context, _ *sql.Tx, id uint64) (model.LockerReservation, error) {
	lr, ok := s.db.lockerRes[id]
	if !ok {
		return lr, repository.ErrNotFound
	}
	return lr, nil
}

func (s memLockerReservations) UpdateStatusTx(_ context.Context, _ *sql.Tx, id uint64, status string) error {
	lr := s.db.lockerRes[id]
	lr.Status = status
	s.db.lockerRes[id] = lr
	return nil
}

func (s memLockerReservations) CancelForUser(_ context.Context, id, userID uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	lr, ok := s.db.lockerRes[id]
	if !ok || lr.UserID != userID || lr.Status == model.LockerReservationCancelled {
		return repository.ErrNotFound
	}
	lr.Status = model.LockerReservationCancelled
	s.db.lockerRes[id] = lr
	return nil
}

// payments

type memPayments struct{ db *memDB }

func (s memPayments) CreateTx(_ context.Context, _ *sql.Tx, p *model.Payment) error {
	if err := s.db.fail("payments.CreateTx"); err != nil {
		return err
	}
	p.ID = s.db.next()
	s.db.payments[p.ID] = *p
	return nil
}

func (s memPayments) GetForUpdateTx(_ context.Context, _ *sql.Tx, id uint64) (model.Payment, error) {
	p, ok := s.db.payments[id]
	if !ok {
		return p, repository.ErrNotFound
	}
	return p, nil
}

func (s memPayments) UpdateStatusTx(_ context.Context, _ *sql.Tx, id uint64, status string) error {
	p, ok := s.db.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	s.db.payments[id] = p
	return nil
}

func (s memPayments) LinkMembershipTx(_ context.Context, _ *sql.Tx, id, membershipID uint64) error {
	p := s.db.payments[id]
	p.MembershipID = &membershipID
	s.db.payments[id] = p
	return nil
}

func (s memPayments) UpdateSlipTx(_ context.Context, _ *sql.Tx, id uint64, url string) error {
	if err := s.db.fail("payments.UpdateSlipTx"); err != nil {
		return err
	}
	p := s.db.payments[id]
	p.SlipURL, p.Status = &url, model.PaymentPending
	s.db.payments[id] = p
	return nil
}

func (s memPayments) FailPendingForReservationTx(_ context.Context, _ *sql.Tx, reservationID uint64) error {
	for id, p := range s.db.payments {
		if p.ReservationID != nil && *p.ReservationID == reservationID && p.Status == model.PaymentPending {
			p.Status = model.PaymentFailed
			s.db.payments[id] = p
		}
	}
	return nil
}

func (s memPayments) FailPendingForLockerReservationTx(_ context.Context, _ *sql.Tx, lockerReservationID uint64) error {
	for id, p := range s.db.payments {
		if p.LockerReservationID != nil && *p.LockerReservationID == lockerReservationID && p.Status == model.PaymentPending {
			p.Status = model.PaymentFailed
			s.db.payments[id] = p
		}
	}
	return nil
}

// memberships

type memMemberships struct{ db *memDB }

// violates reports whether m would be a second active or pending row of
// its user and type.
func (s memMemberships) violates(m model.Membership) bool {
	if m.Status != model.MembershipActive && m.Status != model.MembershipPending {
		return false
	}
	for _, o := range s.db.memberships {
		if o.ID != m.ID && o.UserID == m.UserID && o.MembershipTypeID == m.MembershipTypeID && o.Status == m.Status {
			return true
		}
	}
	return false
}

func (s memMemberships) find(pred func(model.Membership) bool) (model.Membership, error) {
	var (
		best  model.Membership
		found bool
	)
	for _, m := range s.db.memberships {
		if pred(m) && (!found || m.ID > best.ID) {
			best, found = m, true
		}
	}
	if !found {
		return best, repository.ErrNotFound
	}
	return best, nil
}

func (s memMemberships) FindByStatusTx(_ context.Context, _ *sql.Tx, userID, typeID uint64, status string) (model.Membership, error) {
	return s.find(func(m model.Membership) bool {
		return m.UserID == userID && m.MembershipTypeID == typeID && m.Status == status
	})
}

func (s memMemberships) GetByIDTx(_ context.Context, _ *sql.Tx, id uint64) (model.Membership, error) {
	m, ok := s.db.memberships[id]
	if !ok {
		return m, repository.ErrNotFound
	}
	return m, nil
}

func (s memMemberships) LatestForUserTx(_ context.Context, _ *sql.Tx, userID uint64) (model.Membership, error) {
	return s.find(func(m model.Membership) bool { return m.UserID == userID })
}

func (s memMemberships) LatestActiveForUserTx(_ context.Context, _ *sql.Tx, userID uint64) (model.Membership, error) {
	return s.find(func(m model.Membership) bool { return m.UserID == userID && m.Status == model.MembershipActive })
}

func (s memMemberships) FindOtherActiveTx(_ context.Context, _ *sql.Tx, userID, typeID, excludeID uint64) (model.Membership, error) {
	return s.find(func(m model.Membership) bool {
		return m.UserID == userID && m.MembershipTypeID == typeID && m.Status == model.MembershipActive && m.ID != excludeID
	})
}

func (s memMemberships) CreateTx(_ context.Context, _ *sql.Tx, m *model.Membership) error {
	if s.violates(*m) {
		return repository.ErrConflict
	}
	m.ID = s.db.next()
	m.CreatedAt = time.Now()
	s.db.memberships[m.ID] = *m
	return nil
}

func (s memMemberships) UpdateTx(_ context.Context, _ *sql.Tx, id uint64, expiresAt time.Time, status string) error {
	if err := s.db.fail("memberships.UpdateTx"); err != nil {
		return err
	}
	m := s.db.memberships[id]
	m.ExpiresAt, m.Status = expiresAt, status
	if s.violates(m) {
		return repository.ErrConflict
	}
	s.db.memberships[id] = m
	return nil
}

func (s memMemberships) SetStatusTx(_ context.Context, _ *sql.Tx, id uint64, status string) error {
	m := s.db.memberships[id]
	m.Status = status
	if s.violates(m) {
		return repository.ErrConflict
	}
	s.db.memberships[id] = m
	return nil
}

func (s memMemberships) ExpireOthersTx(_ context.Context, _ *sql.Tx, userID, typeID, keepID uint64) error {
	for id, m := range s.db.memberships {
		if m.UserID == userID && m.MembershipTypeID == typeID && m.Status == model.MembershipActive && id != keepID {
			m.Status = model.MembershipExpired
			s.db.memberships[id] = m
		}
	}
	return nil
}

// categories, users, settings

type memCategories struct{ db *memDB }

func (s memCategories) GetByIDTx(_ context.Context, _ *sql.Tx, id uint64) (model.UserCategory, error) {
	c, ok := s.db.categories[id]
	if !ok {
		return c, repository.ErrNotFound
	}
	return c, nil
}

type memUsers struct{ db *memDB }

func (s memUsers) SetCategoryTx(_ context.Context, _ *sql.Tx, userID, categoryID uint64) error {
	s.db.userCategory[userID] = categoryID
	return nil
}

type memSettings struct{ db *memDB }

func (s memSettings) Lookup(_ context.Context, key string) (string, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.settings[key]
	return v, ok, nil
}

func (d *memDB) stores() Stores {
	return Stores{
		Pools: memPools{d}, Reservations: memReservations{d}, Lockers: memLockers{d},
		LockerReservations: memLockerReservations{d}, Payments: memPayments{d}, Memberships: memMemberships{d},
		Categories: memCategories{d}, Users: memUsers{d}, Settings: memSettings{d},
	}
}

// blobs and events

type memBlobs struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
	err     error
}

func (b *memBlobs) Save(_ context.Context, folder, filename string, _ io.Reader) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	url := "https://files.test/" + folder + "/" + filename
	b.saved = append(b.saved, url)
	return url, nil
}

func (b *memBlobs) Delete(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, url)
	return nil
}

type memEvents struct {
	mu     sync.Mutex
	queues []string
	events []any
}

func (e *memEvents) Publish(_ context.Context, queue string, event any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queues = append(e.queues, queue)
	e.events = append(e.events, event)
	return nil
}

var testTypes = MembershipTypes{Session: 1, Annual: 2}

// fixture wires all workflows against one memDB with a fixed clock.
type fixture struct {
	db       *memDB
	runner   *memRunner
	blobs    *memBlobs
	events   *memEvents
	now      time.Time
	booking  *BookingService
	members  *MembershipService
	payments *PaymentService
}

func newFixture() *fixture {
	db := newMemDB()
	f := &fixture{
		db: db, runner: &memRunner{db: db}, blobs: &memBlobs{}, events: &memEvents{},
		now: time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	log := logger.NewNop()
	f.booking = NewBookingService(f.runner, db.stores(), f.blobs, f.events, log)
	f.booking.now = clock
	f.members = NewMembershipService(f.runner, db.stores(), testTypes, log)
	f.members.now = clock
	f.payments = NewPaymentService(f.runner, db.stores(), testTypes, f.blobs, f.events, log)
	f.payments.now = clock
	return f
}

func (f *fixture) addPool(name string, capacity int, status string) model.Pool {
	p := model.Pool{ID: f.db.next(), Name: name, Capacity: capacity, Status: status}
	f.db.pools[p.ID] = p
	return p
}

func (f *fixture) addLocker(code, status string) model.Locker {
	l := model.Locker{ID: f.db.next(), Code: code, Status: status}
	f.db.lockers[l.ID] = l
	return l
}

func (f *fixture) addMembership(m model.Membership) model.Membership {
	m.ID = f.db.next()
	f.db.memberships[m.ID] = m
	return m
}

func (f *fixture) addPayment(p model.Payment) model.Payment {
	p.ID = f.db.next()
	f.db.payments[p.ID] = p
	return p
}
