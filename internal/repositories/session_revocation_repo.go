package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elbekdev/atelier/internal/database"
)

// SessionRevocationRepository blacklists session tokens. Banning a user
// revokes their live session here so the forced logout sticks even if the
// client keeps the old token around.
type SessionRevocationRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRevocationRepository(db *database.DB) *SessionRevocationRepository {
	return &SessionRevocationRepository{pool: db.Pool}
}

// Revoke adds a token id to the blacklist until its natural expiry.
func (r *SessionRevocationRepository) Revoke(ctx context.Context, jti, uid string, expiresAt time.Time, reason string) error {
	query := `
		INSERT INTO revoked_sessions (jti, uid, expires_at, reason, revoked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (jti) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query, jti, uid, expiresAt, reason, time.Now())
	return database.MapPostgresError(err)
}

// IsRevoked checks whether a token id has been blacklisted.
func (r *SessionRevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM revoked_sessions WHERE jti = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, jti).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// RevokeUser invalidates every session the user currently holds: any token
// issued at or before the revocation instant is rejected from here on. A
// repeat ban moves the cutoff forward.
func (r *SessionRevocationRepository) RevokeUser(ctx context.Context, uid, reason string) error {
	query := `
		INSERT INTO revoked_users (uid, reason, revoked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (uid) DO UPDATE SET reason = EXCLUDED.reason, revoked_at = EXCLUDED.revoked_at
	`

	_, err := r.pool.Exec(ctx, query, uid, reason)
	return database.MapPostgresError(err)
}

// IsUserRevoked checks whether a token issued at issuedAt falls under a
// user-level revocation. Tokens issued after the cutoff (a fresh login
// following an unban) pass.
func (r *SessionRevocationRepository) IsUserRevoked(ctx context.Context, uid string, issuedAt time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM revoked_users WHERE uid = $1 AND revoked_at >= $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, uid, issuedAt).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// ClearUserRevocation lifts a user-level revocation on unban.
func (r *SessionRevocationRepository) ClearUserRevocation(ctx context.Context, uid string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM revoked_users WHERE uid = $1`, uid)
	return database.MapPostgresError(err)
}

// CleanupExpired removes blacklist entries whose tokens have expired anyway.
func (r *SessionRevocationRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM revoked_sessions WHERE expires_at < $1`

	result, err := r.pool.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
