package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// UserRepo reads and writes the users table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, username, email, password, first_name, last_name, phone, address,
	date_of_birth, id_card, profile_photo_url, role, status, user_category_id, created_at, updated_at`

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser reads userColumns followed by any extra destinations.
func scanUser(row rowScanner, extra ...any) (model.User, error) {
	var (
		u                                model.User
		phone, address, idCard, photoURL sql.NullString
		dob                              sql.NullTime
		categoryID                       sql.NullInt64
	)
	dest := []any{&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&phone, &address, &dob, &idCard, &photoURL, &u.Role, &u.Status, &categoryID,
		&u.CreatedAt, &u.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return u, err
	}
	u.Phone, u.Address, u.IDCard, u.ProfilePhotoURL = ptrString(phone), ptrString(address), ptrString(idCard), ptrString(photoURL)
	if dob.Valid {
		d := dob.Time
		u.DateOfBirth = &d
	}
	u.UserCategoryID = ptrUint(categoryID)
	return u, nil
}

// CreateTx inserts a user whose password is already hashed and returns its
// id.  A duplicate username or email yields ErrUserExists.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *model.User) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, email, password, first_name, last_name, phone, address, date_of_birth, id_card,
			role, status, user_category_id)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		strings.TrimSpace(u.Username), strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash,
		u.FirstName, u.LastName, nullString(u.Phone), nullString(u.Address), nullTime(u.DateOfBirth), nullString(u.IDCard),
		u.Role, u.Status, nullUint(u.UserCategoryID))
	if err != nil {
		if conflict(err) == ErrConflict {
			return 0, ErrUserExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	u.ID = uint64(id)
	return u.ID, nil
}

// GetByLogin fetches a user by username or email.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.TrimSpace(login)
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? OR email=? LIMIT 1",
		login, strings.ToLower(login)))
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err)
}

// ProfileUpdate carries the self-service editable fields.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Phone     *string
	Address   *string
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, p ProfileUpdate) error {
	return affected(r.DB.ExecContext(ctx,
		"UPDATE users SET first_name=?, last_name=?, phone=?, address=? WHERE id=?",
		p.FirstName, p.LastName, nullString(p.Phone), nullString(p.Address), id))
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	return affected(r.DB.ExecContext(ctx, "UPDATE users SET password=? WHERE id=?", hash, id))
}

func (r *UserRepo) UpdatePhoto(ctx context.Context, id uint64, url string) error {
	return affected(r.DB.ExecContext(ctx, "UPDATE users SET profile_photo_url=? WHERE id=?", url, id))
}

// SetCategoryTx switches the user's pricing tier.  The switch is part of
// the purchase transaction and takes effect regardless of payment outcome.
func (r *UserRepo) SetCategoryTx(ctx context.Context, tx *sql.Tx, userID, categoryID uint64) error {
	return affected(tx.ExecContext(ctx, "UPDATE users SET user_category_id=? WHERE id=?", categoryID, userID))
}

// AdminUpdate changes contact data and account status.
func (r *UserRepo) AdminUpdate(ctx context.Context, id uint64, p ProfileUpdate, status string) error {
	return affected(r.DB.ExecContext(ctx,
		"UPDATE users SET first_name=?, last_name=?, phone=?, status=? WHERE id=?",
		p.FirstName, p.LastName, nullString(p.Phone), status, id))
}

func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	return affected(r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id))
}

// UserListing is a user with the currently active membership, if any.
type UserListing struct {
	model.User
	Membership *ActiveMembershipInfo `json:"membership"`
}

// ActiveMembershipInfo summarises a user's active membership.
type ActiveMembershipInfo struct {
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    string    `json:"status"`
}

// List returns all users, optionally filtered by role, newest first.
func (r *UserRepo) List(ctx context.Context, role string) ([]UserListing, error) {
	q := `SELECT ` + prefixed("u", userColumns) + `, mt.name, m.expires_at, m.status
		FROM users u
		LEFT JOIN memberships m ON m.user_id = u.id AND m.status = 'active'
		LEFT JOIN membership_types mt ON mt.id = m.membership_type_id`
	var args []any
	if role != "" {
		q += " WHERE u.role = ?"
		args = append(args, role)
	}
	q += " ORDER BY u.created_at DESC, u.id DESC"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[uint64]int{}
	out := []UserListing{}
	for rows.Next() {
		var (
			typeName, mStatus sql.NullString
			mExpires          sql.NullTime
		)
		u, err := scanUser(rows, &typeName, &mExpires, &mStatus)
		if err != nil {
			return nil, err
		}
		// a user may hold one active membership per type; keep the first
		if _, seen := byID[u.ID]; seen {
			continue
		}
		item := UserListing{User: u}
		if typeName.Valid {
			item.Membership = &ActiveMembershipInfo{Type: typeName.String, ExpiresAt: mExpires.Time, Status: mStatus.String}
		}
		byID[u.ID] = len(out)
		out = append(out, item)
	}
	return out, rows.Err()
}
