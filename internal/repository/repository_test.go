package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

func TestCreateUserDuplicateIsUserExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = NewUserRepo(db).CreateTx(ctx, tx, &model.User{Username: "alice", Email: "A@x.io", Role: model.RoleUser, Status: model.UserActive})
	assert.ErrorIs(t, err, ErrUserExists)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserListKeepsOneMembershipPerUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	cols := []string{"id", "username", "email", "password", "first_name", "last_name", "phone", "address",
		"date_of_birth", "id_card", "profile_photo_url", "role", "status", "user_category_id", "created_at", "updated_at",
		"name", "expires_at", "m_status"}
	rows := sqlmock.NewRows(cols).
		AddRow(1, "alice", "a@x.io", "h", "Alice", "A", nil, nil, nil, nil, nil, "user", "active", 2, now, now, "Annual", now, "active").
		AddRow(1, "alice", "a@x.io", "h", "Alice", "A", nil, nil, nil, nil, nil, "user", "active", 2, now, now, "Pay per session", now, "active").
		AddRow(2, "bob", "b@x.io", "h", "Bob", "B", "0812", nil, nil, nil, nil, "user", "active", nil, now, now, nil, nil, nil)
	mock.ExpectQuery("FROM users u").WithArgs("user").WillReturnRows(rows)

	list, err := NewUserRepo(db).List(context.Background(), "user")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].Membership)
	assert.Equal(t, "Annual", list[0].Membership.Type)
	assert.Equal(t, uint64(2), *list[0].UserCategoryID)
	assert.Nil(t, list[1].Membership)
	assert.Nil(t, list[1].UserCategoryID)
	assert.Equal(t, "0812", *list[1].Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshRejectsSpentToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs("old", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = NewTokenRepo(db).RotateTx(ctx, tx, "old", model.RefreshToken{UserID: 7, TokenHash: "new", ExpiresAt: time.Now()})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshStoresNextToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	exp := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs("old", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(uint64(7), "new", exp).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, NewTokenRepo(db).RotateTx(ctx, tx, "old", model.RefreshToken{UserID: 7, TokenHash: "new", ExpiresAt: exp}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeUnknownTokenIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").WithArgs("gone").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, NewTokenRepo(db).Revoke(context.Background(), "gone"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentListFilteredBuildsPredicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	boom := errors.New("stop")
	mock.ExpectQuery(`p\.status = \? AND YEARWEEK`).WithArgs("pending").WillReturnError(boom)

	_, err = NewPaymentRepo(db).ListFiltered(context.Background(), "pending", "week")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidDateFilter(t *testing.T) {
	for _, f := range []string{"", "day", "week", "month", "year"} {
		assert.True(t, ValidDateFilter(f), f)
	}
	assert.False(t, ValidDateFilter("decade"))
}

func TestSettingGetPrefersStoredValue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT setting_value, updated_at FROM settings").
		WithArgs(model.SettingLockerPrice).
		WillReturnRows(sqlmock.NewRows([]string{"setting_value", "updated_at"}).AddRow("2000", now))

	s, err := NewSettingRepo(db).Get(context.Background(), model.SettingLockerPrice)
	require.NoError(t, err)
	assert.Equal(t, "2000", s.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailPendingTouchesOnlyPendingLinkedPayments(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payments SET status = 'failed' WHERE reservation_id = \? AND status = 'pending'`).
		WithArgs(uint64(12)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE payments SET status = 'failed' WHERE locker_reservation_id = \? AND status = 'pending'`).
		WithArgs(uint64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	repo := NewPaymentRepo(db)
	// no pending payment is not an error
	require.NoError(t, repo.FailPendingForReservationTx(ctx, tx, 12))
	require.NoError(t, repo.FailPendingForLockerReservationTx(ctx, tx, 5))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
