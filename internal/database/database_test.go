package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNContainsParseTimeAndUTC(t *testing.T) {
	dsn := DSN("root", "secret", "db", "3306", "swimming_pool_db")
	assert.Equal(t, "root:secret@tcp(db:3306)/swimming_pool_db?charset=utf8mb4&parseTime=true&loc=UTC", dsn)
	assert.True(t, strings.HasPrefix(DSN("root", "", "db", "3306", "x"), "root@tcp("))
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestMigrationsAreOrderedGooseFiles(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), ".")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"00001_create_schema.sql", "00002_seed_membership_types.sql"}, names)

	for _, name := range names {
		raw, err := fs.ReadFile(Migrations(), name)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "-- +goose Up", name)
		assert.Contains(t, string(raw), "-- +goose Down", name)
	}
}

func TestSchemaMigrationDeclaresUniqueGuards(t *testing.T) {
	raw, err := fs.ReadFile(Migrations(), "00001_create_schema.sql")
	require.NoError(t, err)
	schema := string(raw)
	assert.Contains(t, schema, "uq_reservation_slot")
	assert.Contains(t, schema, "uq_locker_day")
	assert.Contains(t, schema, "uq_membership_active")
	assert.Contains(t, schema, "uq_membership_pending")
}

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.True(t, IsDuplicateKey(dup))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert: %w", dup)))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1452}))
	assert.False(t, IsDuplicateKey(errors.New("1062")))
	assert.False(t, IsDuplicateKey(nil))
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewRunner(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE payments SET status = 'failed' WHERE id = 1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewRunner(db).WithTx(context.Background(), func(tx *sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackAndRepanics(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "kaput", func() {
		_ = NewRunner(db).WithTx(context.Background(), func(tx *sql.Tx) error { panic("kaput") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
