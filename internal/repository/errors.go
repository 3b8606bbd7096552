// Package repository contains the MySQL data access layer.  Every method
// takes a context; methods with a Tx suffix run inside a transaction owned
// by the caller and never commit or roll back themselves.
//
// The sentinel errors below let services and handlers tell failure modes
// apart without inspecting driver errors.
package repository

import (
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/swimming-pool-reservation/internal/database"
)

// ErrNotFound is returned when a row does not exist or is not visible to
// the caller (for example a reservation owned by someone else).
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict signals that a write violated a unique key, e.g. re-opening a
// cancelled reservation whose capacity slot was taken in the meantime.
var ErrConflict = errors.New("conflict")

// ErrUserExists is returned when the username or email is already taken.
var ErrUserExists = errors.New("username or email already exists")

// notFound maps sql.ErrNoRows to ErrNotFound and leaves other errors as-is.
func notFound(err error) error {
    if errors.Is(err, sql.ErrNoRows) {
        return ErrNotFound
    }
    return err
}

// conflict maps duplicate key violations to ErrConflict.
func conflict(err error) error {
    if database.IsDuplicateKey(err) {
        return ErrConflict
    }
    return err
}

// affected returns ErrNotFound when an UPDATE or DELETE touched no rows.
func affected(res sql.Result, err error) error {
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNotFound
    }
    return nil
}

// nullString converts an optional string to a driver value.
func nullString(s *string) sql.NullString {
    if s == nil {
        return sql.NullString{}
    }
    return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
    if t == nil {
        return sql.NullTime{}
    }
    return sql.NullTime{Time: *t, Valid: true}
}

func nullUint(v *uint64) sql.NullInt64 {
    if v == nil {
        return sql.NullInt64{}
    }
    return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func ptrString(ns sql.NullString) *string {
    if !ns.Valid {
        return nil
    }
    s := ns.String
    return &s
}

func ptrUint(ni sql.NullInt64) *uint64 {
    if !ni.Valid {
        return nil
    }
    v := uint64(ni.Int64)
    return &v
}

func ptrFloat(nf sql.NullFloat64) *float64 {
    if !nf.Valid {
        return nil
    }
    v := nf.Float64
    return &v
}
