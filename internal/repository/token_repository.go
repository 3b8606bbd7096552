package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// TokenRepo keeps refresh tokens.  Rows carry only the SHA-256 of the raw
// token; a token is live while revoked_at is NULL and expires_at is ahead.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const liveToken = "revoked_at IS NULL AND expires_at > UTC_TIMESTAMP()"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertToken(ctx context.Context, db execer, t model.RefreshToken) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)",
		t.UserID, t.TokenHash, t.ExpiresAt.UTC())
	return err
}

func (r *TokenRepo) Store(ctx context.Context, t model.RefreshToken) error {
	return insertToken(ctx, r.DB, t)
}

// Active returns the live token with the given hash or ErrNotFound.
func (r *TokenRepo) Active(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	t := model.RefreshToken{TokenHash: tokenHash}
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, expires_at, created_at FROM refresh_tokens WHERE token_hash = ? AND "+liveToken,
		tokenHash).Scan(&t.ID, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	return t, notFound(err)
}

// RotateTx revokes the live token oldHash and stores next in its place.
// A token that was already used, revoked or expired yields ErrNotFound, so
// two concurrent refreshes with the same token cannot both succeed.
func (r *TokenRepo) RotateTx(ctx context.Context, tx *sql.Tx, oldHash string, next model.RefreshToken) error {
	if err := affected(tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP() WHERE token_hash = ? AND user_id = ? AND "+liveToken,
		oldHash, next.UserID)); err != nil {
		return err
	}
	return insertToken(ctx, tx, next)
}

// Revoke invalidates one live token.  It returns ErrNotFound when there
// was nothing to revoke.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	return affected(r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP() WHERE token_hash = ? AND "+liveToken, tokenHash))
}

// RevokeAllForUser ends every session of a user.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP() WHERE user_id = ? AND revoked_at IS NULL", userID)
	return err
}

// PurgeExpired deletes tokens that expired before cutoff.
func (r *TokenRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
