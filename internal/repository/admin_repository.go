package repository

import (
	"context"
	"database/sql"
	"time"
)

// AdminRepo runs the aggregate queries behind the admin dashboard.
type AdminRepo struct{ db *sql.DB }

func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{db: db} }

// DashboardStats is the summary block of the admin dashboard.
type DashboardStats struct {
	TotalMembers          int     `json:"total_members"`
	ActiveMembers         int     `json:"active_members"`
	MembersDiff           int     `json:"members_diff"`
	TodayReservations     int     `json:"today_reservations"`
	YesterdayReservations int     `json:"yesterday_reservations"`
	ReservationsDiff      int     `json:"reservations_diff"`
	TodayRevenue          float64 `json:"today_revenue"`
	YesterdayRevenue      float64 `json:"yesterday_revenue"`
	MonthlyRevenue        float64 `json:"monthly_revenue"`
	TotalLockers          int     `json:"total_lockers"`
	AvailableLockers      int     `json:"available_lockers"`
	CurrentDate           string  `json:"current_date"`
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UserName    string    `json:"user_name"`
}

// DashboardStats aggregates members, reservations, revenue and lockers.
// Revenue only counts completed payments.
func (r *AdminRepo) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var s DashboardStats
	var prevMembers int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(status = 'active'), 0),
		        COALESCE(SUM(created_at < DATE_FORMAT(NOW(), '%Y-%m-01')), 0)
		 FROM users WHERE role = 'user'`).Scan(&s.TotalMembers, &s.ActiveMembers, &prevMembers); err != nil {
		return s, err
	}
	s.MembersDiff = s.TotalMembers - prevMembers

	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(reservation_date = CURDATE()), 0),
		        COALESCE(SUM(reservation_date = DATE_SUB(CURDATE(), INTERVAL 1 DAY)), 0)
		 FROM reservations`).Scan(&s.TodayReservations, &s.YesterdayReservations); err != nil {
		return s, err
	}
	s.ReservationsDiff = s.TodayReservations - s.YesterdayReservations

	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN DATE(created_at) = CURDATE() THEN amount END), 0),
		        COALESCE(SUM(CASE WHEN DATE(created_at) = DATE_SUB(CURDATE(), INTERVAL 1 DAY) THEN amount END), 0),
		        COALESCE(SUM(CASE WHEN created_at >= DATE_FORMAT(NOW(), '%Y-%m-01') THEN amount END), 0)
		 FROM payments WHERE status = 'completed'`).Scan(&s.TodayRevenue, &s.YesterdayRevenue, &s.MonthlyRevenue); err != nil {
		return s, err
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(status = 'available'), 0) FROM lockers`).
		Scan(&s.TotalLockers, &s.AvailableLockers); err != nil {
		return s, err
	}
	s.CurrentDate = time.Now().UTC().Format("2006-01-02")
	return s, nil
}

// RecentActivities lists reservations created during the last seven days.
func (r *AdminRepo) RecentActivities(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.created_at, TRIM(CONCAT(u.first_name, ' ', u.last_name))
		 FROM reservations r JOIN users u ON u.id = r.user_id
		 WHERE r.created_at >= DATE_SUB(NOW(), INTERVAL 7 DAY)
		 ORDER BY r.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Activity{}
	for rows.Next() {
		a := Activity{Type: "reservation", Description: "New reservation created"}
		if err := rows.Scan(&a.CreatedAt, &a.UserName); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
