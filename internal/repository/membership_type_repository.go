package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// MembershipTypeRepo manages the membership_types catalog.
type MembershipTypeRepo struct{ db *sql.DB }

func NewMembershipTypeRepo(db *sql.DB) *MembershipTypeRepo { return &MembershipTypeRepo{db: db} }

const membershipTypeColumns = "id, code, name, description, duration_days, price"

func (r *MembershipTypeRepo) List(ctx context.Context) ([]model.MembershipType, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+membershipTypeColumns+" FROM membership_types ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.MembershipType{}
	for rows.Next() {
		var (
			t    model.MembershipType
			desc sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &desc, &t.DurationDays, &t.Price); err != nil {
			return nil, err
		}
		t.Description = ptrString(desc)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *MembershipTypeRepo) Create(ctx context.Context, t *model.MembershipType) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO membership_types (code, name, description, duration_days, price) VALUES (?, ?, ?, ?, ?)",
		t.Code, t.Name, nullString(t.Description), t.DurationDays, t.Price)
	if err != nil {
		return conflict(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// Update changes the display fields of a type.  The code is immutable
// because workflows resolve types by code.
func (r *MembershipTypeRepo) Update(ctx context.Context, t model.MembershipType) error {
	return affected(r.db.ExecContext(ctx,
		"UPDATE membership_types SET name = ?, description = ?, duration_days = ?, price = ? WHERE id = ?",
		t.Name, nullString(t.Description), t.DurationDays, t.Price, t.ID))
}

// ResolveKinds maps every required code to its numeric id.  A missing code
// is an error: the process must not start without a complete catalog.
func (r *MembershipTypeRepo) ResolveKinds(ctx context.Context, kinds ...model.MembershipKind) (map[model.MembershipKind]uint64, error) {
	types, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[model.MembershipKind]uint64, len(types))
	for _, t := range types {
		ids[t.Code] = t.ID
	}
	for _, k := range kinds {
		if _, ok := ids[k]; !ok {
			return nil, fmt.Errorf("membership type %q is not configured", k)
		}
	}
	return ids, nil
}
