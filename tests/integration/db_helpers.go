package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/elbekdev/atelier/internal/database"
	"github.com/elbekdev/atelier/internal/models"
	"github.com/elbekdev/atelier/internal/repositories"
	"github.com/elbekdev/atelier/pkg/auth"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("atelier"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dbWrapper := &database.DB{
		Pool: pool,
	}

	// Embedded goose migrations, same path the server takes at startup.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := dbWrapper.Migrate(quiet); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"orders",
		"revoked_sessions",
		"revoked_users",
		"user_security",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from database wrapper
func InitializeRepositories(db *database.DB) (
	*repositories.UserRepository,
	*repositories.SecurityRepository,
	*repositories.OrderRepository,
	*repositories.SessionRevocationRepository,
) {
	return repositories.NewUserRepository(db),
		repositories.NewSecurityRepository(db),
		repositories.NewOrderRepository(db),
		repositories.NewSessionRevocationRepository(db)
}

// SeedUser inserts a test user resolved through Google login
func SeedUser(ctx context.Context, pool *pgxpool.Pool, uid, email string) (*models.User, error) {
	query := `
		INSERT INTO users (uid, display_name, email, auth_method, role, last_login, created_at, updated_at)
		VALUES ($1, $2, $3, 'google', 'user', NOW(), NOW(), NOW())
		RETURNING uid, display_name, email, auth_method, role, created_at, updated_at
	`

	var user models.User
	err := pool.QueryRow(ctx, query, uid, "Test User", email).Scan(
		&user.UID,
		&user.DisplayName,
		&user.Email,
		&user.AuthMethod,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &user, nil
}

// SeedOperator inserts the operator account with a hashed password
func SeedOperator(ctx context.Context, pool *pgxpool.Pool, email, password string) (*models.User, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (uid, display_name, email, auth_method, role, password_hash, last_login, created_at, updated_at)
		VALUES ($1, 'Operator', $2, 'google', 'operator', $3, NOW(), NOW(), NOW())
		RETURNING uid, display_name, email, auth_method, role, password_hash, created_at, updated_at
	`

	var user models.User
	err = pool.QueryRow(ctx, query, "op_"+email, email, hashedPassword).Scan(
		&user.UID,
		&user.DisplayName,
		&user.Email,
		&user.AuthMethod,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert operator: %w", err)
	}

	return &user, nil
}

// SeedStrikes writes a user_security row with the given attempt count
func SeedStrikes(ctx context.Context, pool *pgxpool.Pool, uid string, attempts int, banned bool) error {
	query := `
		INSERT INTO user_security (uid, is_banned, attempts, reason, banned_at, updated_at)
		VALUES ($1, $2, $3, $4, CASE WHEN $2 THEN NOW() ELSE NULL END, NOW())
	`

	reason := ""
	if banned {
		reason = models.AutoBanReason
	}
	if _, err := pool.Exec(ctx, query, uid, banned, attempts, reason); err != nil {
		return fmt.Errorf("failed to insert security row: %w", err)
	}
	return nil
}

// SeedOrder inserts a submitted order for a user
func SeedOrder(ctx context.Context, pool *pgxpool.Pool, id, uid string) error {
	query := `
		INSERT INTO orders (id, user_id, first_name, last_name, phone, telegram_username, comment, selected_game, selected_design, status, created_at)
		VALUES ($1, $2, 'Ali', 'Valiyev', '+998901234567', 'alivaliyev', 'test order', 'pubg', 'logo', 'sent', NOW())
	`

	if _, err := pool.Exec(ctx, query, id, uid); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}
