package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// PoolRepo manages pool_resources and their weekly pool_schedules.
type PoolRepo struct{ db *sql.DB }

func NewPoolRepo(db *sql.DB) *PoolRepo { return &PoolRepo{db: db} }

const poolColumns = "id, name, description, capacity, status, created_at"

func scanPool(row rowScanner) (model.Pool, error) {
	var (
		p    model.Pool
		desc sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &desc, &p.Capacity, &p.Status, &p.CreatedAt)
	p.Description = ptrString(desc)
	return p, err
}

// List returns every pool ordered by name.
func (r *PoolRepo) List(ctx context.Context) ([]model.Pool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+poolColumns+" FROM pool_resources ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Pool{}
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PoolRepo) GetByID(ctx context.Context, id uint64) (model.Pool, error) {
	p, err := scanPool(r.db.QueryRowContext(ctx, "SELECT "+poolColumns+" FROM pool_resources WHERE id=?", id))
	return p, notFound(err)
}

// GetForUpdateTx locks the pool row.  Concurrent bookings for the same pool
// queue behind this lock, which serialises the capacity check and insert.
func (r *PoolRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Pool, error) {
	p, err := scanPool(tx.QueryRowContext(ctx,
		"SELECT "+poolColumns+" FROM pool_resources WHERE id=? FOR UPDATE", id))
	return p, notFound(err)
}

// ListWithSchedules returns pools with their weekly schedules grouped.
func (r *PoolRepo) ListWithSchedules(ctx context.Context) ([]model.PoolWithSchedules, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pr.id, pr.name, pr.description, pr.capacity, pr.status, pr.created_at,
		        ps.day_of_week, ps.open_time, ps.close_time, ps.is_active
		 FROM pool_resources pr
		 LEFT JOIN pool_schedules ps ON ps.pool_resource_id = pr.id
		 ORDER BY pr.name, pr.id, FIELD(ps.day_of_week,'monday','tuesday','wednesday','thursday','friday','saturday','sunday')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PoolWithSchedules{}
	index := map[uint64]int{}
	for rows.Next() {
		var (
			p                  model.Pool
			desc               sql.NullString
			day, open, closeAt sql.NullString
			active             sql.NullBool
		)
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.Capacity, &p.Status, &p.CreatedAt,
			&day, &open, &closeAt, &active); err != nil {
			return nil, err
		}
		p.Description = ptrString(desc)
		i, ok := index[p.ID]
		if !ok {
			i = len(out)
			index[p.ID] = i
			out = append(out, model.PoolWithSchedules{Pool: p, Schedules: []model.PoolSchedule{}})
		}
		if day.Valid {
			out[i].Schedules = append(out[i].Schedules, model.PoolSchedule{
				DayOfWeek: day.String, OpenTime: open.String, CloseTime: closeAt.String, IsActive: active.Bool,
			})
		}
	}
	return out, rows.Err()
}

// Create inserts a pool and returns its id.
func (r *PoolRepo) Create(ctx context.Context, p *model.Pool) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO pool_resources (name, description, capacity, status) VALUES (?,?,?,?)",
		p.Name, nullString(p.Description), p.Capacity, p.Status)
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

// Update overwrites name, description, capacity and status.
func (r *PoolRepo) Update(ctx context.Context, p model.Pool) error {
	return affected(r.db.ExecContext(ctx,
		"UPDATE pool_resources SET name=?, description=?, capacity=?, status=? WHERE id=?",
		p.Name, nullString(p.Description), p.Capacity, p.Status, p.ID))
}

// Schedule returns the weekly schedule of one pool.
func (r *PoolRepo) Schedule(ctx context.Context, poolID uint64) ([]model.PoolSchedule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT day_of_week, open_time, close_time, is_active FROM pool_schedules
		 WHERE pool_resource_id=?
		 ORDER BY FIELD(day_of_week,'monday','tuesday','wednesday','thursday','friday','saturday','sunday')`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PoolSchedule{}
	for rows.Next() {
		var s model.PoolSchedule
		if err := rows.Scan(&s.DayOfWeek, &s.OpenTime, &s.CloseTime, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReplaceScheduleTx swaps the whole weekly schedule of a pool.
func (r *PoolRepo) ReplaceScheduleTx(ctx context.Context, tx *sql.Tx, poolID uint64, days []model.PoolSchedule) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM pool_schedules WHERE pool_resource_id=?", poolID); err != nil {
		return err
	}
	for _, d := range days {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO pool_schedules (pool_resource_id, day_of_week, open_time, close_time, is_active) VALUES (?,?,?,?,?)",
			poolID, d.DayOfWeek, d.OpenTime, d.CloseTime, d.IsActive); err != nil {
			return conflict(err)
		}
	}
	return nil
}

// Availability reports occupancy per available pool for a date.  When
// poolID is non-zero only that pool is returned.
func (r *PoolRepo) Availability(ctx context.Context, date string, poolID uint64) ([]model.PoolAvailability, error) {
	q := `SELECT pr.id, pr.name, pr.capacity,
	             (SELECT COUNT(*) FROM reservations r
	              WHERE r.pool_resource_id = pr.id AND r.reservation_date = ? AND r.status <> 'cancelled') AS current
	      FROM pool_resources pr WHERE pr.status = 'available'`
	args := []any{date}
	if poolID != 0 {
		q += " AND pr.id = ?"
		args = append(args, poolID)
	}
	q += " ORDER BY pr.name"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PoolAvailability{}
	for rows.Next() {
		var a model.PoolAvailability
		if err := rows.Scan(&a.ID, &a.Name, &a.Capacity, &a.CurrentReservations); err != nil {
			return nil, err
		}
		a.Available = a.Capacity - a.CurrentReservations
		if a.Available < 0 {
			a.Available = 0
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MonthlyStats counts non-cancelled bookings per day of a month.
func (r *PoolRepo) MonthlyStats(ctx context.Context, pool model.Pool, year, month int) ([]model.DailyBookingStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DATE_FORMAT(reservation_date, '%Y-%m-%d') AS d, COUNT(*)
		 FROM reservations
		 WHERE pool_resource_id = ? AND YEAR(reservation_date) = ? AND MONTH(reservation_date) = ?
		   AND status <> 'cancelled'
		 GROUP BY d ORDER BY d`, pool.ID, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.DailyBookingStat{}
	for rows.Next() {
		var s model.DailyBookingStat
		if err := rows.Scan(&s.Date, &s.TotalBookings); err != nil {
			return nil, err
		}
		s.AvailableSlots = pool.Capacity - s.TotalBookings
		out = append(out, s)
	}
	return out, rows.Err()
}
