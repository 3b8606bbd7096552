package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// PaymentRepo manages payments.  Workflows read payments with
// GetForUpdateTx so that concurrent confirmations of the same payment are
// serialised on the row lock.
type PaymentRepo struct{ db *sql.DB }

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `p.id, p.user_id, p.amount, p.status, p.payment_method, p.transaction_id, p.slip_url,
	p.membership_id, p.reservation_id, p.locker_reservation_id, p.created_at, p.updated_at`

func scanPayment(row rowScanner, extra ...any) (model.Payment, error) {
	var (
		p                       model.Payment
		slip                    sql.NullString
		memID, resID, lockResID sql.NullInt64
	)
	dest := []any{&p.ID, &p.UserID, &p.Amount, &p.Status, &p.PaymentMethod, &p.TransactionID, &slip,
		&memID, &resID, &lockResID, &p.CreatedAt, &p.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return p, err
	}
	p.SlipURL = ptrString(slip)
	p.MembershipID, p.ReservationID, p.LockerReservationID = ptrUint(memID), ptrUint(resID), ptrUint(lockResID)
	return p, nil
}

// CreateTx inserts a payment and fills in its id.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO payments (user_id, amount, status, payment_method, transaction_id, slip_url,
		                       membership_id, reservation_id, locker_reservation_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Amount, p.Status, p.PaymentMethod, p.TransactionID, nullString(p.SlipURL),
		nullUint(p.MembershipID), nullUint(p.ReservationID), nullUint(p.LockerReservationID))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetForUpdateTx reads and locks a payment.
func (r *PaymentRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Payment, error) {
	p, err := scanPayment(tx.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments p WHERE p.id = ? FOR UPDATE", id))
	return p, notFound(err)
}

func (r *PaymentRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	return affected(tx.ExecContext(ctx, "UPDATE payments SET status = ? WHERE id = ?", status, id))
}

// LinkMembershipTx points a payment at the membership row it pays for.
func (r *PaymentRepo) LinkMembershipTx(ctx context.Context, tx *sql.Tx, id, membershipID uint64) error {
	return affected(tx.ExecContext(ctx, "UPDATE payments SET membership_id = ? WHERE id = ?", membershipID, id))
}

// UpdateSlipTx stores the slip URL and puts the payment back to pending
// for review.
func (r *PaymentRepo) UpdateSlipTx(ctx context.Context, tx *sql.Tx, id uint64, url string) error {
	return affected(tx.ExecContext(ctx,
		"UPDATE payments SET slip_url = ?, status = 'pending' WHERE id = ?", url, id))
}

// FailPendingForReservationTx fails the pending payments of a cancelled
// pool reservation.
func (r *PaymentRepo) FailPendingForReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE payments SET status = 'failed' WHERE reservation_id = ? AND status = 'pending'", reservationID)
	return err
}

func (r *PaymentRepo) FailPendingForLockerReservationTx(ctx context.Context, tx *sql.Tx, lockerReservationID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE payments SET status = 'failed' WHERE locker_reservation_id = ? AND status = 'pending'", lockerReservationID)
	return err
}

const paymentViewSelect = `SELECT ` + paymentColumns + `, u.username, u.first_name, u.last_name, u.email
	FROM payments p JOIN users u ON u.id = p.user_id`

func (r *PaymentRepo) queryViews(ctx context.Context, q string, args ...any) ([]model.PaymentView, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PaymentView{}
	for rows.Next() {
		var (
			v           model.PaymentView
			first, last string
		)
		p, err := scanPayment(rows, &v.Username, &first, &last, &v.UserEmail)
		if err != nil {
			return nil, err
		}
		v.Payment = p
		v.Type = p.PaymentType()
		v.UserName = model.User{FirstName: first, LastName: last}.FullName()
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.PaymentView, error) {
	return r.queryViews(ctx, paymentViewSelect+" WHERE p.user_id = ? ORDER BY p.created_at DESC, p.id DESC", userID)
}

// Get returns one payment with its payer.
func (r *PaymentRepo) Get(ctx context.Context, id uint64) (model.PaymentView, error) {
	views, err := r.queryViews(ctx, paymentViewSelect+" WHERE p.id = ?", id)
	if err != nil {
		return model.PaymentView{}, err
	}
	if len(views) == 0 {
		return model.PaymentView{}, ErrNotFound
	}
	return views[0], nil
}

// dateFilters maps the admin period filter onto a created_at predicate.
var dateFilters = map[string]string{
	"day":   "DATE(p.created_at) = CURDATE()",
	"week":  "YEARWEEK(p.created_at, 1) = YEARWEEK(CURDATE(), 1)",
	"month": "YEAR(p.created_at) = YEAR(CURDATE()) AND MONTH(p.created_at) = MONTH(CURDATE())",
	"year":  "YEAR(p.created_at) = YEAR(CURDATE())",
}

// ValidDateFilter reports whether f is empty or a known period.
func ValidDateFilter(f string) bool {
	_, ok := dateFilters[f]
	return f == "" || ok
}

// ListFiltered returns payments for the admin panel filtered by status and
// creation period (day, week, month or year).
func (r *PaymentRepo) ListFiltered(ctx context.Context, status, period string) ([]model.PaymentView, error) {
	q := paymentViewSelect + " WHERE 1=1"
	var args []any
	if status != "" {
		q += " AND p.status = ?"
		args = append(args, status)
	}
	if cond, ok := dateFilters[period]; ok {
		q += " AND " + cond
	}
	q += " ORDER BY p.created_at DESC, p.id DESC"
	return r.queryViews(ctx, q, args...)
}
