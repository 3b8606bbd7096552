package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to the database named by TEST_MYSQL_DSN and skips
// the test when it is unset.  The DSN must include parseTime=true.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set, skipping MySQL integration test")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotentAndGuardsSlots(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := Migrate(ctx, db)
	require.NoError(t, err)
	again, err := Migrate(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, again, "a second run applies nothing")

	var types int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM membership_types WHERE code IN ('session','annual')").Scan(&types))
	assert.Equal(t, 2, types)

	errRollback := errors.New("rollback")
	err = NewRunner(db).WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO users (username, email, password) VALUES ('it_slot_user', 'it_slot@example.test', 'x')")
		if err != nil {
			return err
		}
		uid, _ := res.LastInsertId()
		res, err = tx.ExecContext(ctx, "INSERT INTO pool_resources (name, capacity) VALUES ('it pool', 1)")
		if err != nil {
			return err
		}
		pid, _ := res.LastInsertId()
		insert := `INSERT INTO reservations (user_id, pool_resource_id, reservation_date, start_time, end_time, status, slot_no)
		           VALUES (?, ?, '2030-01-01', '09:00', '10:00', ?, 1)`
		if _, err := tx.ExecContext(ctx, insert, uid, pid, "cancelled"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, uid, pid, "pending"); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, insert, uid, pid, "confirmed")
		assert.True(t, IsDuplicateKey(err), "second active row in slot 1 must violate uq_reservation_slot")
		return errRollback
	})
	assert.ErrorIs(t, err, errRollback)
}
