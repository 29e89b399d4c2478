package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elbekdev/atelier/internal/database"
	"github.com/elbekdev/atelier/internal/models"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{pool: db.Pool}
}

const orderColumns = `id, user_id, first_name, last_name, email, phone, telegram_username, comment, selected_game, selected_design, location, status, result_image, result_description, created_at`

func scanOrderRow(scanner rowScanner) (*models.Order, error) {
	var order models.Order
	var email, resultImage, resultDescription *string
	var location []byte

	err := scanner.Scan(
		&order.ID, &order.UserID, &order.FirstName, &order.LastName,
		&email, &order.Phone, &order.TelegramUsername, &order.Comment,
		&order.SelectedGame, &order.SelectedDesign, &location,
		&order.Status, &resultImage, &resultDescription, &order.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if email != nil {
		order.Email = *email
	}
	if resultImage != nil {
		order.ResultImage = *resultImage
	}
	if resultDescription != nil {
		order.ResultDescription = *resultDescription
	}
	if len(location) > 0 {
		var loc models.VerifiedLocation
		if err := json.Unmarshal(location, &loc); err == nil {
			order.Location = &loc
		}
	}

	return &order, nil
}

// Create persists a new order with a server-assigned id, created timestamp
// and the initial "sent" status.
func (r *OrderRepository) Create(ctx context.Context, userID string, form *models.OrderForm) (*models.Order, error) {
	order := &models.Order{
		OrderForm: *form,
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now(),
		Status:    models.OrderStatusSent,
	}

	var location []byte
	if form.Location != nil {
		var err error
		location, err = json.Marshal(form.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to encode order location: %w", err)
		}
	}

	query := `
		INSERT INTO orders (id, user_id, first_name, last_name, email, phone, telegram_username, comment, selected_game, selected_design, location, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.pool.Exec(ctx, query,
		order.ID, order.UserID, order.FirstName, order.LastName,
		nullable(order.Email), order.Phone, order.TelegramUsername, order.Comment,
		order.SelectedGame, order.SelectedDesign, location, order.Status, order.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return order, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrderRow(r.pool.QueryRow(ctx, query, id))
}

// ListRecent returns the newest orders up to limit, newest first. Per-user
// views filter this window rather than querying by user, mirroring the
// bounded recent-window read the storefront always used.
func (r *OrderRepository) ListRecent(ctx context.Context, limit int) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return orders, nil
}

// UpdateStatus moves an order to any of the five statuses. No ordering is
// enforced between statuses.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE orders SET status = $1 WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeliverResult completes an order and attaches the result in one UPDATE so
// status=completed is never visible without its image and description.
func (r *OrderRepository) DeliverResult(ctx context.Context, id, resultImage, resultDescription string) error {
	query := `
		UPDATE orders
		SET status = $1, result_image = $2, result_description = $3
		WHERE id = $4
	`

	result, err := r.pool.Exec(ctx, query, models.OrderStatusCompleted, resultImage, resultDescription, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
