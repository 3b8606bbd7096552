package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// MembershipRepo manages memberships.  The schema allows at most one
// active and one pending row per user and type; writes that would break
// that rule fail with ErrConflict.
type MembershipRepo struct{ db *sql.DB }

func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

const membershipColumns = "m.id, m.user_id, m.membership_type_id, m.expires_at, m.status, m.created_at"

func scanMembership(row rowScanner, extra ...any) (model.Membership, error) {
	var m model.Membership
	dest := []any{&m.ID, &m.UserID, &m.MembershipTypeID, &m.ExpiresAt, &m.Status, &m.CreatedAt}
	err := row.Scan(append(dest, extra...)...)
	return m, err
}

func (r *MembershipRepo) oneTx(ctx context.Context, tx *sql.Tx, where string, args ...any) (model.Membership, error) {
	m, err := scanMembership(tx.QueryRowContext(ctx,
		"SELECT "+membershipColumns+" FROM memberships m WHERE "+where+" FOR UPDATE", args...))
	return m, notFound(err)
}

// FindByStatusTx locks the user's row of a type in the given status.
func (r *MembershipRepo) FindByStatusTx(ctx context.Context, tx *sql.Tx, userID, typeID uint64, status string) (model.Membership, error) {
	return r.oneTx(ctx, tx, "m.user_id = ? AND m.membership_type_id = ? AND m.status = ? LIMIT 1",
		userID, typeID, status)
}

// GetByIDTx locks one membership.
func (r *MembershipRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Membership, error) {
	return r.oneTx(ctx, tx, "m.id = ?", id)
}

// LatestForUserTx returns the user's most recently created membership.
// Only payments without an explicit membership link fall back to it.
func (r *MembershipRepo) LatestForUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (model.Membership, error) {
	return r.oneTx(ctx, tx, "m.user_id = ? ORDER BY m.created_at DESC, m.id DESC LIMIT 1", userID)
}

// LatestActiveForUserTx returns the user's most recent active membership.
func (r *MembershipRepo) LatestActiveForUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (model.Membership, error) {
	return r.oneTx(ctx, tx, "m.user_id = ? AND m.status = 'active' ORDER BY m.created_at DESC, m.id DESC LIMIT 1", userID)
}

// FindOtherActiveTx returns an active row of the same user and type other
// than excludeID.
func (r *MembershipRepo) FindOtherActiveTx(ctx context.Context, tx *sql.Tx, userID, typeID, excludeID uint64) (model.Membership, error) {
	return r.oneTx(ctx, tx, "m.user_id = ? AND m.membership_type_id = ? AND m.status = 'active' AND m.id <> ? LIMIT 1",
		userID, typeID, excludeID)
}

// CreateTx inserts a membership and fills in its id.
func (r *MembershipRepo) CreateTx(ctx context.Context, tx *sql.Tx, m *model.Membership) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO memberships (user_id, membership_type_id, expires_at, status) VALUES (?, ?, ?, ?)",
		m.UserID, m.MembershipTypeID, m.ExpiresAt.UTC(), m.Status)
	if err != nil {
		return conflict(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// UpdateTx sets both expiry and status.
func (r *MembershipRepo) UpdateTx(ctx context.Context, tx *sql.Tx, id uint64, expiresAt time.Time, status string) error {
	_, err := tx.ExecContext(ctx, "UPDATE memberships SET expires_at = ?, status = ? WHERE id = ?",
		expiresAt.UTC(), status, id)
	return conflict(err)
}

func (r *MembershipRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx, "UPDATE memberships SET status = ? WHERE id = ?", status, id)
	return conflict(err)
}

// ExpireOthersTx marks every active row of the user and type except keepID
// as expired.
func (r *MembershipRepo) ExpireOthersTx(ctx context.Context, tx *sql.Tx, userID, typeID, keepID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE memberships SET status = 'expired'
		 WHERE user_id = ? AND membership_type_id = ? AND status = 'active' AND id <> ?`,
		userID, typeID, keepID)
	return err
}

const membershipViewSelect = `SELECT ` + membershipColumns + `, mt.name, u.username, u.first_name, u.last_name, u.email
	FROM memberships m
	JOIN membership_types mt ON mt.id = m.membership_type_id
	JOIN users u ON u.id = m.user_id`

func (r *MembershipRepo) queryViews(ctx context.Context, q string, args ...any) ([]model.MembershipView, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.MembershipView{}
	for rows.Next() {
		var (
			v           model.MembershipView
			first, last string
		)
		m, err := scanMembership(rows, &v.TypeName, &v.Username, &first, &last, &v.UserEmail)
		if err != nil {
			return nil, err
		}
		v.Membership = m
		v.UserName = model.User{FirstName: first, LastName: last}.FullName()
		out = append(out, v)
	}
	return out, rows.Err()
}

// ActiveForUser returns the user's active memberships that have not yet
// expired, latest expiry first.
func (r *MembershipRepo) ActiveForUser(ctx context.Context, userID uint64) ([]model.MembershipView, error) {
	return r.queryViews(ctx, membershipViewSelect+
		" WHERE m.user_id = ? AND m.status = 'active' AND m.expires_at > UTC_TIMESTAMP() ORDER BY m.expires_at DESC", userID)
}

// ListByUser returns every membership of a user, newest first.
func (r *MembershipRepo) ListByUser(ctx context.Context, userID uint64) ([]model.MembershipView, error) {
	return r.queryViews(ctx, membershipViewSelect+" WHERE m.user_id = ? ORDER BY m.created_at DESC", userID)
}

// List returns all memberships, optionally filtered by status.
func (r *MembershipRepo) List(ctx context.Context, status string) ([]model.MembershipView, error) {
	if status == "" {
		return r.queryViews(ctx, membershipViewSelect+" ORDER BY m.created_at DESC")
	}
	return r.queryViews(ctx, membershipViewSelect+" WHERE m.status = ? ORDER BY m.created_at DESC", status)
}

func (r *MembershipRepo) Get(ctx context.Context, id uint64) (model.MembershipView, error) {
	views, err := r.queryViews(ctx, membershipViewSelect+" WHERE m.id = ?", id)
	if err != nil {
		return model.MembershipView{}, err
	}
	if len(views) == 0 {
		return model.MembershipView{}, ErrNotFound
	}
	return views[0], nil
}

func (r *MembershipRepo) Delete(ctx context.Context, id uint64) error {
	return affected(r.db.ExecContext(ctx, "DELETE FROM memberships WHERE id = ?", id))
}
