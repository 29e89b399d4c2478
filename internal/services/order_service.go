package services

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/models"
)

// OrderRepository defines order data access for the submission pipeline
// and the order views.
type OrderRepository interface {
	Create(ctx context.Context, userID string, form *models.OrderForm) (*models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, id, status string) error
	DeliverResult(ctx context.Context, id, resultImage, resultDescription string) error
}

// OperatorNotifier posts a submitted order to the operator channel.
// Satisfied by *telegram.Notifier.
type OperatorNotifier interface {
	NotifyOperator(order *models.Order) error
}

// uzPhonePattern matches Uzbek mobile numbers: +998 followed by exactly
// nine digits.
var uzPhonePattern = regexp.MustCompile(`^\+998\d{9}$`)

// OrderService runs the submission pipeline and serves the customer-side
// order list.
type OrderService struct {
	orders       OrderRepository
	notifier     OperatorNotifier
	flows        *flow.Store
	recentWindow int
	logger       *slog.Logger
}

func NewOrderService(orders OrderRepository, notifier OperatorNotifier, flows *flow.Store, recentWindow int, logger *slog.Logger) *OrderService {
	return &OrderService{
		orders:       orders,
		notifier:     notifier,
		flows:        flows,
		recentWindow: recentWindow,
		logger:       logger,
	}
}

// Submit validates the form, consumes the session's verified location,
// persists the order and then notifies the operator. Persist comes first:
// a Telegram outage must not lose the order, so notification failure is
// logged and the submission still succeeds.
func (s *OrderService) Submit(ctx context.Context, claims *auth.SessionClaims, form *models.OrderForm) (*models.Order, error) {
	if err := validateOrderForm(form); err != nil {
		return nil, err
	}

	loc, err := s.flows.ConsumeLocation(claims.UID, claims.ID)
	if err != nil {
		return nil, err
	}
	form.Location = loc

	order, err := s.orders.Create(ctx, claims.UID, form)
	if err != nil {
		s.logger.Error("failed to persist order", slog.String("uid", claims.UID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.notifier.NotifyOperator(order); err != nil {
		s.logger.Error("operator notification failed",
			slog.String("order_id", order.ID), slog.Any("error", err))
	}

	s.logger.Info("order submitted",
		slog.String("order_id", order.ID),
		slog.String("uid", claims.UID),
		slog.String("game", order.SelectedGame),
		slog.String("design", order.SelectedDesign),
	)

	return order, nil
}

// MyOrders returns the caller's orders from the recent window, newest
// first. The window is a bounded read over all orders filtered in memory;
// an order older than the newest recentWindow rows ages out of this view.
func (s *OrderService) MyOrders(ctx context.Context, uid string) ([]*models.Order, error) {
	recent, err := s.orders.ListRecent(ctx, s.recentWindow)
	if err != nil {
		s.logger.Error("failed to list orders", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	mine := make([]*models.Order, 0)
	for _, order := range recent {
		if order.UserID == uid {
			mine = append(mine, order)
		}
	}
	return mine, nil
}

// validateOrderForm enforces the required fields and the phone format.
// Email is optional; everything else must be present.
func validateOrderForm(form *models.OrderForm) error {
	if form.FirstName == "" || form.LastName == "" || form.TelegramUsername == "" ||
		form.Comment == "" || form.SelectedGame == "" || form.SelectedDesign == "" {
		return models.ErrBadRequest
	}
	if !uzPhonePattern.MatchString(form.Phone) {
		return models.ErrBadRequest
	}
	if _, ok := models.GameLabels[form.SelectedGame]; !ok {
		return models.ErrBadRequest
	}
	if _, ok := models.DesignLabels[form.SelectedDesign]; !ok {
		return models.ErrBadRequest
	}
	return nil
}
