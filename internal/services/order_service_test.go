package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/models"
)

func verifiedFlow(uid, sid string) *flow.Store {
	flows := flow.NewStore()
	flows.Begin(uid, sid)
	_ = flows.Advance(uid, sid, flow.StepLocationVerify)
	_ = flows.MarkVerified(uid, sid, &models.VerifiedLocation{
		Country: "Uzbekistan", Region: "Tashkent", City: "Tashkent",
		Lat: 41.3, Lng: 69.2,
	})
	return flows
}

func TestOrderService_Submit_Success(t *testing.T) {
	flows := verifiedFlow("u1", "s1")
	notifier := &MockNotifier{}
	svc := NewOrderService(&MockOrderRepository{}, notifier, flows, 200, slog.Default())

	order, err := svc.Submit(context.Background(), testClaims("u1", "s1"), NewTestOrderForm())

	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusSent, order.Status)
	assert.Equal(t, "u1", order.UserID)

	// The verified location was stamped onto the order and consumed.
	assert.NotNil(t, order.Location)
	assert.Equal(t, "Tashkent", order.Location.City)
	assert.Len(t, notifier.Notified, 1)

	sess := flows.Get("u1", "s1")
	assert.Equal(t, flow.StepComplete, sess.Step)
	assert.Nil(t, sess.Location)
}

func TestOrderService_Submit_SecondSubmitNeedsReverification(t *testing.T) {
	flows := verifiedFlow("u1", "s1")
	svc := NewOrderService(&MockOrderRepository{}, &MockNotifier{}, flows, 200, slog.Default())

	_, err := svc.Submit(context.Background(), testClaims("u1", "s1"), NewTestOrderForm())
	assert.NoError(t, err)

	_, err = svc.Submit(context.Background(), testClaims("u1", "s1"), NewTestOrderForm())
	assert.ErrorIs(t, err, models.ErrLocationNotVerified)
}

func TestOrderService_Submit_WithoutVerifiedLocation(t *testing.T) {
	flows := flow.NewStore()
	flows.Begin("u1", "s1")
	svc := NewOrderService(&MockOrderRepository{}, &MockNotifier{}, flows, 200, slog.Default())

	order, err := svc.Submit(context.Background(), testClaims("u1", "s1"), NewTestOrderForm())

	assert.ErrorIs(t, err, models.ErrLocationNotVerified)
	assert.Nil(t, order)
}

func TestOrderService_Submit_NotificationFailureDoesNotLoseOrder(t *testing.T) {
	flows := verifiedFlow("u1", "s1")
	notifier := &MockNotifier{
		NotifyFunc: func(order *models.Order) error {
			return errors.New("telegram down")
		},
	}

	persisted := false
	repo := &MockOrderRepository{
		CreateFunc: func(ctx context.Context, userID string, form *models.OrderForm) (*models.Order, error) {
			persisted = true
			return &models.Order{OrderForm: *form, ID: "order_1", UserID: userID, Status: models.OrderStatusSent}, nil
		},
	}

	svc := NewOrderService(repo, notifier, flows, 200, slog.Default())
	order, err := svc.Submit(context.Background(), testClaims("u1", "s1"), NewTestOrderForm())

	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.True(t, persisted)
}

func TestOrderService_Submit_PhoneValidation(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		valid bool
	}{
		{"nine digits after prefix", "+998901234567", true},
		{"eight digits after prefix", "+99890123456", false},
		{"ten digits after prefix", "+9989012345678", false},
		{"missing plus", "998901234567", false},
		{"wrong country code", "+7901234567", false},
		{"letters", "+99890123456a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flows := verifiedFlow("u1", "s1")
			svc := NewOrderService(&MockOrderRepository{}, &MockNotifier{}, flows, 200, slog.Default())

			form := NewTestOrderForm()
			form.Phone = tt.phone

			_, err := svc.Submit(context.Background(), testClaims("u1", "s1"), form)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, models.ErrBadRequest)
			}
		})
	}
}

func TestOrderService_Submit_UnknownGameOrDesign(t *testing.T) {
	flows := verifiedFlow("u1", "s1")
	svc := NewOrderService(&MockOrderRepository{}, &MockNotifier{}, flows, 200, slog.Default())

	form := NewTestOrderForm()
	form.SelectedGame = "chess"

	_, err := svc.Submit(context.Background(), testClaims("u1", "s1"), form)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestOrderService_MyOrders_FiltersRecentWindow(t *testing.T) {
	repo := &MockOrderRepository{
		ListRecentFunc: func(ctx context.Context, limit int) ([]*models.Order, error) {
			assert.Equal(t, 200, limit)
			return []*models.Order{
				{ID: "o3", UserID: "u2"},
				{ID: "o2", UserID: "u1"},
				{ID: "o1", UserID: "u1"},
			}, nil
		},
	}

	svc := NewOrderService(repo, &MockNotifier{}, flow.NewStore(), 200, slog.Default())
	orders, err := svc.MyOrders(context.Background(), "u1")

	assert.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, "o2", orders[0].ID)
	assert.Equal(t, "o1", orders[1].ID)
}
