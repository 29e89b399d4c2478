package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elbekdev/atelier/internal/database"
	"github.com/elbekdev/atelier/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var email, photoURL, telegramID, passwordHash, totpSecret *string

	err := scanner.Scan(
		&user.UID, &user.DisplayName, &email, &photoURL,
		&telegramID, &user.AuthMethod, &user.Role,
		&passwordHash, &totpSecret,
		&user.LastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if email != nil {
		user.Email = *email
	}
	if photoURL != nil {
		user.PhotoURL = *photoURL
	}
	if telegramID != nil {
		user.TelegramID = *telegramID
	}
	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	if totpSecret != nil {
		user.TOTPSecret = *totpSecret
	}

	return &user, nil
}

const userColumns = `uid, display_name, email, photo_url, telegram_id, auth_method, role, password_hash, totp_secret, last_login, created_at, updated_at`

func (r *UserRepository) GetByUID(ctx context.Context, uid string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, uid))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

// List returns all users ordered by most recent login, for the admin view.
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY last_login DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

// Create inserts a new account. The uid is caller-assigned: the OAuth
// subject id for Google accounts, tg_<id> for Telegram accounts.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.LastLogin.IsZero() {
		user.LastLogin = now
	}
	if user.Role == "" {
		user.Role = "user"
	}

	query := `
		INSERT INTO users (uid, display_name, email, photo_url, telegram_id, auth_method, role, password_hash, totp_secret, last_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.UID, user.DisplayName, nullable(user.Email), nullable(user.PhotoURL),
		nullable(user.TelegramID), user.AuthMethod, user.Role,
		nullable(user.PasswordHash), nullable(user.TOTPSecret),
		user.LastLogin, user.CreatedAt, user.UpdatedAt,
	))
}

// UpsertProfile refreshes profile fields on login. A telegram_id already on
// the row is preserved unless the caller explicitly provides a new one.
func (r *UserRepository) UpsertProfile(ctx context.Context, user *models.User) error {
	now := time.Now()

	query := `
		INSERT INTO users (uid, display_name, email, photo_url, telegram_id, auth_method, role, last_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'user', $7, $7, $7)
		ON CONFLICT (uid) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			photo_url = EXCLUDED.photo_url,
			telegram_id = COALESCE(EXCLUDED.telegram_id, users.telegram_id),
			auth_method = EXCLUDED.auth_method,
			last_login = EXCLUDED.last_login,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		user.UID, user.DisplayName, nullable(user.Email), nullable(user.PhotoURL),
		nullable(user.TelegramID), user.AuthMethod, now,
	)
	return database.MapPostgresError(err)
}

// SetTelegramID links a verified Telegram ID to an existing account.
func (r *UserRepository) SetTelegramID(ctx context.Context, uid, telegramID string) error {
	query := `UPDATE users SET telegram_id = $1, updated_at = $2 WHERE uid = $3`

	result, err := r.pool.Exec(ctx, query, telegramID, time.Now(), uid)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetTOTPSecret stores the operator's enrolled MFA secret.
func (r *UserRepository) SetTOTPSecret(ctx context.Context, uid, secret string) error {
	query := `UPDATE users SET totp_secret = $1, updated_at = $2 WHERE uid = $3`

	result, err := r.pool.Exec(ctx, query, secret, time.Now(), uid)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Touch updates only the last-login timestamp.
func (r *UserRepository) Touch(ctx context.Context, uid string) error {
	query := `UPDATE users SET last_login = $1, updated_at = $1 WHERE uid = $2`
	_, err := r.pool.Exec(ctx, query, time.Now(), uid)
	return database.MapPostgresError(err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
