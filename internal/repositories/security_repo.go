package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elbekdev/atelier/internal/database"
	"github.com/elbekdev/atelier/internal/models"
)

// SecurityRepository persists per-user ban state. Rows are created lazily:
// a user with no row is simply unbanned with zero strikes.
type SecurityRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewSecurityRepository(db *database.DB) *SecurityRepository {
	return &SecurityRepository{db: db, pool: db.Pool}
}

// Get returns the ban status for uid, defaulting to the zero status when no
// row exists.
func (r *SecurityRepository) Get(ctx context.Context, uid string) (*models.BanStatus, error) {
	query := `SELECT is_banned, attempts, reason, banned_at FROM user_security WHERE uid = $1`

	var status models.BanStatus
	var reason *string

	err := r.pool.QueryRow(ctx, query, uid).Scan(&status.IsBanned, &status.Attempts, &reason, &status.BannedAt)
	if err != nil {
		if mapped := database.MapPostgresError(err); mapped == models.ErrNotFound {
			return &models.BanStatus{}, nil
		}
		return nil, database.MapPostgresError(err)
	}

	if reason != nil {
		status.Reason = *reason
	}

	return &status, nil
}

// IncrementStrike adds one strike in a single transaction and auto-bans when
// the threshold is reached. Returns the updated status and whether this call
// crossed the threshold. A write failure surfaces as an error with the
// stored attempts unchanged; the increment is never silently lost.
func (r *SecurityRepository) IncrementStrike(ctx context.Context, uid string) (*models.BanStatus, bool, error) {
	var status models.BanStatus
	var justBanned bool

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var attempts int
		var isBanned bool
		err := tx.QueryRow(ctx,
			`SELECT attempts, is_banned FROM user_security WHERE uid = $1 FOR UPDATE`, uid,
		).Scan(&attempts, &isBanned)
		if err != nil && err != pgx.ErrNoRows {
			return database.MapPostgresError(err)
		}

		attempts++
		status.Attempts = attempts

		if attempts >= models.BanThreshold {
			now := time.Now()
			status.IsBanned = true
			status.Reason = models.AutoBanReason
			status.BannedAt = &now
			justBanned = !isBanned

			_, err = tx.Exec(ctx, `
				INSERT INTO user_security (uid, attempts, is_banned, reason, banned_at)
				VALUES ($1, $2, TRUE, $3, $4)
				ON CONFLICT (uid) DO UPDATE SET
					attempts = EXCLUDED.attempts,
					is_banned = TRUE,
					reason = EXCLUDED.reason,
					banned_at = EXCLUDED.banned_at
			`, uid, attempts, models.AutoBanReason, now)
			return database.MapPostgresError(err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO user_security (uid, attempts, is_banned)
			VALUES ($1, $2, FALSE)
			ON CONFLICT (uid) DO UPDATE SET attempts = EXCLUDED.attempts
		`, uid, attempts)
		return database.MapPostgresError(err)
	})
	if err != nil {
		return nil, false, err
	}

	return &status, justBanned, nil
}

// Ban marks a user banned with an operator-supplied reason. Attempts are
// left as-is; the ban and its metadata land in one write.
func (r *SecurityRepository) Ban(ctx context.Context, uid, reason string) error {
	query := `
		INSERT INTO user_security (uid, attempts, is_banned, reason, banned_at)
		VALUES ($1, 0, TRUE, $2, $3)
		ON CONFLICT (uid) DO UPDATE SET
			is_banned = TRUE,
			reason = EXCLUDED.reason,
			banned_at = EXCLUDED.banned_at
	`

	_, err := r.pool.Exec(ctx, query, uid, reason, time.Now())
	return database.MapPostgresError(err)
}

// Unban clears the ban, the strikes and the reason in a single write so a
// reader can never observe a partially reset record.
func (r *SecurityRepository) Unban(ctx context.Context, uid string) error {
	query := `
		INSERT INTO user_security (uid, attempts, is_banned, reason, banned_at)
		VALUES ($1, 0, FALSE, NULL, NULL)
		ON CONFLICT (uid) DO UPDATE SET
			attempts = 0,
			is_banned = FALSE,
			reason = NULL,
			banned_at = NULL
	`

	_, err := r.pool.Exec(ctx, query, uid)
	return database.MapPostgresError(err)
}
