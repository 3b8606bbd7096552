package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/swimming-pool-reservation/internal/config"
	"github.com/iliyamo/swimming-pool-reservation/internal/database"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
	"github.com/iliyamo/swimming-pool-reservation/internal/utils"
)

const (
	seedAdminUsername = "admin"
	seedAdminEmail    = "admin@pool.local"
	seedAdminPassword = "admin123"
)

// seed creates the initial admin account and the default locker price when
// they are missing.  Running it twice changes nothing.
func seed(ctx context.Context, cfg config.Config, tx database.TxRunner, users *repository.UserRepo, settings *repository.SettingRepo) error {
	_, err := users.GetByLogin(ctx, seedAdminUsername)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		hash, err := utils.HashPassword(seedAdminPassword, cfg.BcryptCost)
		if err != nil {
			return err
		}
		admin := model.User{
			Username:     seedAdminUsername,
			Email:        seedAdminEmail,
			PasswordHash: hash,
			FirstName:    "Admin",
			LastName:     "User",
			Role:         model.RoleAdmin,
			Status:       model.UserActive,
		}
		err = tx.WithTx(ctx, func(t *sql.Tx) error {
			_, err := users.CreateTx(ctx, t, &admin)
			return err
		})
		if err != nil && !errors.Is(err, repository.ErrUserExists) {
			return fmt.Errorf("create admin: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lookup admin: %w", err)
	}

	if _, ok, err := settings.Lookup(ctx, model.SettingLockerPrice); err != nil {
		return fmt.Errorf("lookup locker price: %w", err)
	} else if !ok {
		if _, err := settings.Upsert(ctx, model.SettingLockerPrice, model.SettingDefaults[model.SettingLockerPrice]); err != nil {
			return fmt.Errorf("seed locker price: %w", err)
		}
	}
	return nil
}
