package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// The interfaces below are the slices of the repositories the workflows
// need.  *repository.XxxRepo types satisfy them; tests use in-memory fakes.

type PoolStore interface {
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Pool, error)
}

type ReservationStore interface {
	ActiveSlotsTx(ctx context.Context, tx *sql.Tx, poolID uint64, date string) ([]int, error)
	CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error)
	GetForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (model.Reservation, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error
}

type LockerStore interface {
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Locker, error)
}

type LockerReservationStore interface {
	HasActiveTx(ctx context.Context, tx *sql.Tx, lockerID uint64, date string) (bool, error)
	CreateTx(ctx context.Context, tx *sql.Tx, lr *model.LockerReservation) error
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.LockerReservation, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error
	CancelForUser(ctx context.Context, id, userID uint64) error
}

type PaymentStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Payment, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error
	LinkMembershipTx(ctx context.Context, tx *sql.Tx, id, membershipID uint64) error
	UpdateSlipTx(ctx context.Context, tx *sql.Tx, id uint64, url string) error
	FailPendingForReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) error
	FailPendingForLockerReservationTx(ctx context.Context, tx *sql.Tx, lockerReservationID uint64) error
}

type MembershipStore interface {
	FindByStatusTx(ctx context.Context, tx *sql.Tx, userID, typeID uint64, status string) (model.Membership, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Membership, error)
	LatestForUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (model.Membership, error)
	LatestActiveForUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (model.Membership, error)
	FindOtherActiveTx(ctx context.Context, tx *sql.Tx, userID, typeID, excludeID uint64) (model.Membership, error)
	CreateTx(ctx context.Context, tx *sql.Tx, m *model.Membership) error
	UpdateTx(ctx context.Context, tx *sql.Tx, id uint64, expiresAt time.Time, status string) error
	SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error
	ExpireOthersTx(ctx context.Context, tx *sql.Tx, userID, typeID, keepID uint64) error
}

type CategoryStore interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.UserCategory, error)
}

type UserStore interface {
	SetCategoryTx(ctx context.Context, tx *sql.Tx, userID, categoryID uint64) error
}

type SettingStore interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
}

// EventPublisher is implemented by queue.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, event any) error
}

// Stores bundles the data access dependencies of all workflows.
type Stores struct {
	Pools              PoolStore
	Reservations       ReservationStore
	Lockers            LockerStore
	LockerReservations LockerReservationStore
	Payments           PaymentStore
	Memberships        MembershipStore
	Categories         CategoryStore
	Users              UserStore
	Settings           SettingStore
}

// MembershipTypes holds the ids of the membership types the workflows
// depend on, resolved from the catalog at startup.
type MembershipTypes struct {
	Session uint64
	Annual  uint64
}

// NewMembershipTypes builds the enumeration from the resolved catalog.
func NewMembershipTypes(ids map[model.MembershipKind]uint64) MembershipTypes {
	return MembershipTypes{Session: ids[model.KindSession], Annual: ids[model.KindAnnual]}
}
