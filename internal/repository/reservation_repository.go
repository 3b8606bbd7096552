package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// ReservationRepo provides access to pool reservations.  Capacity is
// tracked through slot numbers: a non-cancelled reservation occupies one
// slot in [1, capacity] for its pool and date, and the unique key over the
// generated active_slot column rejects two live rows in the same slot.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `r.id, r.user_id, r.pool_resource_id, DATE_FORMAT(r.reservation_date, '%Y-%m-%d'),
	r.start_time, r.end_time, r.status, r.notes, r.slot_no, r.created_at`

func scanReservation(row rowScanner, extra ...any) (model.Reservation, error) {
	var (
		res   model.Reservation
		notes sql.NullString
	)
	dest := []any{&res.ID, &res.UserID, &res.PoolID, &res.ReservationDate,
		&res.StartTime, &res.EndTime, &res.Status, &notes, &res.SlotNo, &res.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return res, err
	}
	res.Notes = ptrString(notes)
	return res, nil
}

// ActiveSlotsTx returns the slot numbers held by non-cancelled reservations
// for a pool and date.  Call it after locking the pool row.
func (r *ReservationRepo) ActiveSlotsTx(ctx context.Context, tx *sql.Tx, poolID uint64, date string) ([]int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT slot_no FROM reservations
		 WHERE pool_resource_id = ? AND reservation_date = ? AND status <> 'cancelled'
		 ORDER BY slot_no`, poolID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slots []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// CreateTx inserts the reservation and fills in its id.  A duplicate key on
// the slot index yields ErrConflict.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
		(user_id, pool_resource_id, reservation_date, start_time, end_time, status, notes, slot_no)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.UserID, res.PoolID, res.ReservationDate,
		res.StartTime, res.EndTime, res.Status, nullString(res.Notes), res.SlotNo)
	if err != nil {
		return conflict(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetByIDTx reads a reservation inside a transaction and locks it.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations r WHERE r.id = ? FOR UPDATE", id))
	return res, notFound(err)
}

// GetForUserTx reads and locks a reservation owned by userID.  A
// reservation owned by someone else is reported as ErrNotFound.
func (r *ReservationRepo) GetForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations r WHERE r.id = ? AND r.user_id = ? FOR UPDATE", id, userID))
	return res, notFound(err)
}

// UpdateStatusTx sets the status of a reservation.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx, "UPDATE reservations SET status = ? WHERE id = ?", status, id)
	return conflict(err)
}

const reservationViewSelect = `SELECT ` + reservationColumns + `, pr.name,
	u.username, u.email, p.id, p.amount, p.status, p.payment_method, p.slip_url
	FROM reservations r
	JOIN pool_resources pr ON pr.id = r.pool_resource_id
	JOIN users u ON u.id = r.user_id
	LEFT JOIN payments p ON p.id = (SELECT MAX(p2.id) FROM payments p2 WHERE p2.reservation_id = r.id)`

func (r *ReservationRepo) queryViews(ctx context.Context, q string, args ...any) ([]model.ReservationView, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ReservationView{}
	for rows.Next() {
		var (
			v                             model.ReservationView
			payID                         sql.NullInt64
			payAmount                     sql.NullFloat64
			payStatus, payMethod, slipURL sql.NullString
		)
		res, err := scanReservation(rows, &v.PoolName, &v.UserName, &v.UserEmail,
			&payID, &payAmount, &payStatus, &payMethod, &slipURL)
		if err != nil {
			return nil, err
		}
		v.Reservation = res
		v.PaymentID, v.PaymentAmount = ptrUint(payID), ptrFloat(payAmount)
		v.PaymentStatus, v.PaymentMethod, v.SlipURL = ptrString(payStatus), ptrString(payMethod), ptrString(slipURL)
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListByUser returns a user's reservations, most recent date first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.ReservationView, error) {
	return r.queryViews(ctx, reservationViewSelect+
		" WHERE r.user_id = ? ORDER BY r.reservation_date DESC, r.start_time DESC", userID)
}

// Upcoming returns up to limit non-cancelled reservations from today on.
func (r *ReservationRepo) Upcoming(ctx context.Context, userID uint64, limit int) ([]model.ReservationView, error) {
	return r.queryViews(ctx, reservationViewSelect+
		` WHERE r.user_id = ? AND r.reservation_date >= CURDATE() AND r.status <> 'cancelled'
		  ORDER BY r.reservation_date, r.start_time LIMIT ?`, userID, limit)
}

// ListAll returns every reservation for the admin view.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]model.ReservationView, error) {
	return r.queryViews(ctx, reservationViewSelect+" ORDER BY r.reservation_date DESC, r.start_time DESC")
}

// UsageStats summarises a user's bookings for the dashboard.
type UsageStats struct {
	TotalReservations     int `json:"total_reservations"`
	CompletedReservations int `json:"completed_reservations"`
	UpcomingReservations  int `json:"upcoming_reservations"`
}

func (r *ReservationRepo) UsageStats(ctx context.Context, userID uint64) (UsageStats, error) {
	var s UsageStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(status = 'completed'), 0),
		        COALESCE(SUM(status <> 'cancelled' AND reservation_date >= CURDATE()), 0)
		 FROM reservations WHERE user_id = ?`, userID).
		Scan(&s.TotalReservations, &s.CompletedReservations, &s.UpcomingReservations)
	return s, err
}
