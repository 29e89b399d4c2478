package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/elbekdev/atelier/internal/models"
	pkglogger "github.com/elbekdev/atelier/pkg/logger"
)

// AdminService backs the operator dashboard: the full order queue, the
// user roster with ban state, and the two order mutations.
type AdminService struct {
	orders       OrderRepository
	users        UserRepository
	security     SecurityRepository
	email        EmailService
	recentWindow int
	logger       *slog.Logger
	audit        *pkglogger.AuditLogger
}

func NewAdminService(
	orders OrderRepository,
	users UserRepository,
	security SecurityRepository,
	email EmailService,
	recentWindow int,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *AdminService {
	return &AdminService{
		orders:       orders,
		users:        users,
		security:     security,
		email:        email,
		recentWindow: recentWindow,
		logger:       logger,
		audit:        audit,
	}
}

// ListOrders returns the recent order window across all users, newest
// first.
func (s *AdminService) ListOrders(ctx context.Context) ([]*models.Order, error) {
	orders, err := s.orders.ListRecent(ctx, s.recentWindow)
	if err != nil {
		s.logger.Error("failed to list orders", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return orders, nil
}

// ListUsers joins every profile with its ban state. The join is recomputed
// per fetch; FullUserData is never stored.
func (s *AdminService) ListUsers(ctx context.Context) ([]*models.FullUserData, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	result := make([]*models.FullUserData, 0, len(users))
	for _, user := range users {
		ban, err := s.security.Get(ctx, user.UID)
		if err != nil {
			s.logger.Error("failed to read ban status", slog.String("uid", user.UID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		result = append(result, &models.FullUserData{
			UID:      user.UID,
			Profile:  user,
			Security: ban,
		})
	}
	return result, nil
}

// UpdateStatus moves an order to any valid status. No ordering between
// statuses is enforced.
func (s *AdminService) UpdateStatus(ctx context.Context, operatorUID, orderID, status string) error {
	if !models.IsValidOrderStatus(status) {
		return models.ErrBadRequest
	}

	if err := s.orders.UpdateStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to update order status",
			slog.String("order_id", orderID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.LogAdminAction(pkglogger.AuditEvent{
		EventType: "order_status_update",
		UserID:    operatorUID,
		Success:   true,
		Metadata:  map[string]string{"order_id": orderID, "status": status},
	})
	return nil
}

// DeliverResult completes an order with its result image and description
// in one write, then emails the customer if they left an address. The
// email is best effort; the delivery stands either way.
func (s *AdminService) DeliverResult(ctx context.Context, operatorUID, orderID, resultImage, resultDescription string) error {
	if resultImage == "" || resultDescription == "" {
		return models.ErrBadRequest
	}

	if err := s.orders.DeliverResult(ctx, orderID, resultImage, resultDescription); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to deliver order result",
			slog.String("order_id", orderID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.LogAdminAction(pkglogger.AuditEvent{
		EventType: "order_result_delivered",
		UserID:    operatorUID,
		Success:   true,
		Metadata:  map[string]string{"order_id": orderID},
	})

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		s.logger.Error("failed to reload delivered order", slog.String("order_id", orderID), slog.Any("error", err))
		return nil
	}
	if order.Email != "" {
		if err := s.email.SendOrderResultEmail(ctx, order.Email, order); err != nil {
			s.logger.Error("result email failed", slog.String("order_id", orderID), slog.Any("error", err))
		}
	}

	return nil
}
