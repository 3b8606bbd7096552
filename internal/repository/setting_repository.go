package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

type SettingRepo struct{ db *sql.DB }

func NewSettingRepo(db *sql.DB) *SettingRepo { return &SettingRepo{db: db} }

// Get returns a stored setting, falling back to model.SettingDefaults.
// Unknown keys without a default yield ErrNotFound.
func (r *SettingRepo) Get(ctx context.Context, key string) (model.Setting, error) {
	s := model.Setting{Key: key}
	err := r.db.QueryRowContext(ctx,
		"SELECT setting_value, updated_at FROM settings WHERE setting_key = ?", key).Scan(&s.Value, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		if v, ok := model.SettingDefaults[key]; ok {
			s.Value = v
			return s, nil
		}
		return s, ErrNotFound
	}
	return s, err
}

// Lookup returns the stored value and whether the key exists, ignoring
// defaults.
func (r *SettingRepo) Lookup(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx, "SELECT setting_value FROM settings WHERE setting_key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	return v, err == nil, err
}

func (r *SettingRepo) List(ctx context.Context) ([]model.Setting, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT setting_key, setting_value, updated_at FROM settings ORDER BY setting_key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Setting{}
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces a setting.
func (r *SettingRepo) Upsert(ctx context.Context, key, value string) (model.Setting, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (setting_key, setting_value) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value)`, key, value)
	return model.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}, err
}
