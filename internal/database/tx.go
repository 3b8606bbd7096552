package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// TxRunner scopes a unit of work to one transaction.  Services depend on this
// interface rather than on *sql.DB so tests can substitute an in-memory
// runner.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// SQLRunner runs transactions against a real connection pool.
type SQLRunner struct {
	DB   *sql.DB
	Opts *sql.TxOptions
}

// NewRunner returns a runner using READ COMMITTED isolation.  Correctness of
// the booking workflows relies on row locks and unique keys, not on the
// isolation level.
func NewRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{DB: db, Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}
}

// WithTx begins a transaction, runs fn and commits.  The transaction is
// rolled back when fn returns an error or panics; the panic is re-raised.
func (r *SQLRunner) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.DB.BeginTx(ctx, r.Opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// IsDuplicateKey reports whether err is a MySQL unique constraint violation.
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
