package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// LockerRepo manages the lockers table.
type LockerRepo struct{ db *sql.DB }

func NewLockerRepo(db *sql.DB) *LockerRepo { return &LockerRepo{db: db} }

const lockerColumns = "l.id, l.code, l.location, l.status, l.created_at"

func scanLocker(row rowScanner, extra ...any) (model.Locker, error) {
	var l model.Locker
	err := row.Scan(append([]any{&l.ID, &l.Code, &l.Location, &l.Status, &l.CreatedAt}, extra...)...)
	return l, err
}

func (r *LockerRepo) collect(rows *sql.Rows, withFlag bool) ([]model.Locker, error) {
	defer rows.Close()
	out := []model.Locker{}
	for rows.Next() {
		var (
			l        model.Locker
			err      error
			reserved bool
		)
		if withFlag {
			l, err = scanLocker(rows, &reserved)
			l.ReservedOnDate = &reserved
		} else {
			l, err = scanLocker(rows)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// List returns all lockers.  When date is set every locker carries a flag
// telling whether it has a non-cancelled reservation on that date.
func (r *LockerRepo) List(ctx context.Context, date string) ([]model.Locker, error) {
	if date == "" {
		rows, err := r.db.QueryContext(ctx, "SELECT "+lockerColumns+" FROM lockers l ORDER BY l.code")
		if err != nil {
			return nil, err
		}
		return r.collect(rows, false)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lockerColumns+`,
		        EXISTS (SELECT 1 FROM locker_reservations lr
		                WHERE lr.locker_id = l.id AND lr.reservation_date = ? AND lr.status <> 'cancelled')
		 FROM lockers l ORDER BY l.code`, date)
	if err != nil {
		return nil, err
	}
	return r.collect(rows, true)
}

// Available returns lockers in status available with no live reservation
// on the given date.
func (r *LockerRepo) Available(ctx context.Context, date string) ([]model.Locker, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lockerColumns+` FROM lockers l
		 WHERE l.status = 'available'
		   AND NOT EXISTS (SELECT 1 FROM locker_reservations lr
		                   WHERE lr.locker_id = l.id AND lr.reservation_date = ? AND lr.status <> 'cancelled')
		 ORDER BY l.code`, date)
	if err != nil {
		return nil, err
	}
	return r.collect(rows, false)
}

// GetForUpdateTx locks the locker row for the duration of the transaction.
func (r *LockerRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Locker, error) {
	l, err := scanLocker(tx.QueryRowContext(ctx,
		"SELECT "+lockerColumns+" FROM lockers l WHERE l.id = ? FOR UPDATE", id))
	return l, notFound(err)
}

func (r *LockerRepo) Create(ctx context.Context, l *model.Locker) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO lockers (code, location, status) VALUES (?, ?, ?)", l.Code, l.Location, l.Status)
	if err != nil {
		return conflict(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

func (r *LockerRepo) Update(ctx context.Context, l model.Locker) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE lockers SET code = ?, location = ?, status = ? WHERE id = ?", l.Code, l.Location, l.Status, l.ID)
	return affected(res, conflict(err))
}

func (r *LockerRepo) Delete(ctx context.Context, id uint64) error {
	return affected(r.db.ExecContext(ctx, "DELETE FROM lockers WHERE id = ?", id))
}
