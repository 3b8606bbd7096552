package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// LockerReservationRepo manages locker_reservations.  The unique key over
// (locker_id, reservation_date, active_marker) allows one live booking per
// locker and day.
type LockerReservationRepo struct{ db *sql.DB }

func NewLockerReservationRepo(db *sql.DB) *LockerReservationRepo {
	return &LockerReservationRepo{db: db}
}

const lockerReservationColumns = `lr.id, lr.user_id, lr.locker_id, DATE_FORMAT(lr.reservation_date, '%Y-%m-%d'),
	lr.start_time, lr.end_time, lr.status, lr.created_at`

func scanLockerReservation(row rowScanner, extra ...any) (model.LockerReservation, error) {
	var lr model.LockerReservation
	dest := []any{&lr.ID, &lr.UserID, &lr.LockerID, &lr.ReservationDate,
		&lr.StartTime, &lr.EndTime, &lr.Status, &lr.CreatedAt}
	err := row.Scan(append(dest, extra...)...)
	return lr, err
}

// HasActiveTx reports whether the locker already has a non-cancelled
// reservation on date.
func (r *LockerReservationRepo) HasActiveTx(ctx context.Context, tx *sql.Tx, lockerID uint64, date string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locker_reservations
		 WHERE locker_id = ? AND reservation_date = ? AND status <> 'cancelled'`, lockerID, date).Scan(&n)
	return n > 0, err
}

// CreateTx inserts a whole-day reservation.  Duplicate key yields ErrConflict.
func (r *LockerReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, lr *model.LockerReservation) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO locker_reservations (user_id, locker_id, reservation_date, start_time, end_time, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		lr.UserID, lr.LockerID, lr.ReservationDate, lr.StartTime, lr.EndTime, lr.Status)
	if err != nil {
		return conflict(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	lr.ID = uint64(id)
	return nil
}

// CancelForUser cancels a live reservation owned by userID.
func (r *LockerReservationRepo) CancelForUser(ctx context.Context, id, userID uint64) error {
	return affected(r.db.ExecContext(ctx,
		`UPDATE locker_reservations SET status = 'cancelled'
		 WHERE id = ? AND user_id = ? AND status <> 'cancelled'`, id, userID))
}

// GetByIDTx reads and locks one reservation.
func (r *LockerReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.LockerReservation, error) {
	lr, err := scanLockerReservation(tx.QueryRowContext(ctx,
		"SELECT "+lockerReservationColumns+" FROM locker_reservations lr WHERE lr.id = ? FOR UPDATE", id))
	return lr, notFound(err)
}

func (r *LockerReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx, "UPDATE locker_reservations SET status = ? WHERE id = ?", status, id)
	return conflict(err)
}

// GetForLockerDate returns the live reservation of a locker on a date.
func (r *LockerReservationRepo) GetForLockerDate(ctx context.Context, lockerID uint64, date string) (model.LockerReservationView, error) {
	views, err := r.queryViews(ctx, lockerReservationViewSelect+
		" WHERE lr.locker_id = ? AND lr.reservation_date = ? AND lr.status <> 'cancelled' LIMIT 1", lockerID, date)
	if err != nil {
		return model.LockerReservationView{}, err
	}
	if len(views) == 0 {
		return model.LockerReservationView{}, ErrNotFound
	}
	return views[0], nil
}

const lockerReservationViewSelect = `SELECT ` + lockerReservationColumns + `, l.code, l.location,
	u.username, u.email, p.id, p.amount, p.status, p.payment_method, p.slip_url
	FROM locker_reservations lr
	JOIN lockers l ON l.id = lr.locker_id
	JOIN users u ON u.id = lr.user_id
	LEFT JOIN payments p ON p.id = (SELECT MAX(p2.id) FROM payments p2 WHERE p2.locker_reservation_id = lr.id)`

func (r *LockerReservationRepo) queryViews(ctx context.Context, q string, args ...any) ([]model.LockerReservationView, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.LockerReservationView{}
	for rows.Next() {
		var (
			v                             model.LockerReservationView
			payID                         sql.NullInt64
			payAmount                     sql.NullFloat64
			payStatus, payMethod, slipURL sql.NullString
		)
		lr, err := scanLockerReservation(rows, &v.LockerCode, &v.LockerLocation, &v.UserName, &v.UserEmail,
			&payID, &payAmount, &payStatus, &payMethod, &slipURL)
		if err != nil {
			return nil, err
		}
		v.LockerReservation = lr
		v.PaymentID, v.PaymentAmount = ptrUint(payID), ptrFloat(payAmount)
		v.PaymentStatus, v.PaymentMethod, v.SlipURL = ptrString(payStatus), ptrString(payMethod), ptrString(slipURL)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *LockerReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.LockerReservationView, error) {
	return r.queryViews(ctx, lockerReservationViewSelect+
		" WHERE lr.user_id = ? ORDER BY lr.reservation_date DESC, lr.id DESC", userID)
}

// ListAll returns every locker reservation for the admin panel.
func (r *LockerReservationRepo) ListAll(ctx context.Context) ([]model.LockerReservationView, error) {
	return r.queryViews(ctx, lockerReservationViewSelect+" ORDER BY lr.reservation_date DESC, lr.id DESC")
}

func (r *LockerReservationRepo) Delete(ctx context.Context, id uint64) error {
	return affected(r.db.ExecContext(ctx, "DELETE FROM locker_reservations WHERE id = ?", id))
}
