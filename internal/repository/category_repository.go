package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// CategoryRepo manages user_categories, the pricing tiers used by
// membership purchases.
type CategoryRepo struct{ db *sql.DB }

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

const categoryColumns = "id, name, description, pay_per_session_price, annual_price"

func scanCategory(row rowScanner) (model.UserCategory, error) {
	var (
		c    model.UserCategory
		desc sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &desc, &c.PayPerSessionPrice, &c.AnnualPrice)
	c.Description = ptrString(desc)
	return c, err
}

func (r *CategoryRepo) List(ctx context.Context) ([]model.UserCategory, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM user_categories ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.UserCategory{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetByIDTx reads a category inside the purchase transaction so the price
// charged is the price at commit time.
func (r *CategoryRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.UserCategory, error) {
	c, err := scanCategory(tx.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM user_categories WHERE id=?", id))
	return c, notFound(err)
}

// GetByUser returns the category currently assigned to a user.
func (r *CategoryRepo) GetByUser(ctx context.Context, userID uint64) (model.UserCategory, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT uc.id, uc.name, uc.description, uc.pay_per_session_price, uc.annual_price
		 FROM users u JOIN user_categories uc ON uc.id = u.user_category_id WHERE u.id=?`, userID))
	return c, notFound(err)
}

// UpdatePrices changes the per-session and annual prices of a category.
func (r *CategoryRepo) UpdatePrices(ctx context.Context, id uint64, perSession, annual float64) error {
	return affected(r.db.ExecContext(ctx,
		"UPDATE user_categories SET pay_per_session_price=?, annual_price=? WHERE id=?",
		perSession, annual, id))
}
