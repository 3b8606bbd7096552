package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

type NotificationRepo struct{ db *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO notifications (user_id, title, message) VALUES (?, ?, ?)", n.UserID, n.Title, n.Message)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// Broadcast writes one notification for every account with role user and
// returns how many were written.
func (r *NotificationRepo) Broadcast(ctx context.Context, title, message string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO notifications (user_id, title, message) SELECT id, ?, ? FROM users WHERE role = 'user'",
		title, message)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *NotificationRepo) scanAll(rows *sql.Rows) ([]model.Notification, error) {
	defer rows.Close()
	out := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ListByUser returns the newest notifications of a user; limit <= 0 means all.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Notification, error) {
	q := "SELECT id, user_id, title, message, is_read, created_at FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC"
	args := []any{userID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return r.scanAll(rows)
}

// MarkRead flags a notification of userID as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID uint64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// already read rows report zero affected rows
	var exists int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM notifications WHERE id = ? AND user_id = ?", id, userID).Scan(&exists)
	return notFound(err)
}

func (r *NotificationRepo) ListAll(ctx context.Context) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, title, message, is_read, created_at FROM notifications ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	return r.scanAll(rows)
}

func (r *NotificationRepo) Delete(ctx context.Context, id uint64) error {
	return affected(r.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id))
}
