package services

import (
	"context"
	"time"

	"github.com/elbekdev/atelier/internal/countries"
	"github.com/elbekdev/atelier/internal/geo"
	"github.com/elbekdev/atelier/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByUIDFunc      func(ctx context.Context, uid string) (*models.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*models.User, error)
	CreateFunc        func(ctx context.Context, user *models.User) (*models.User, error)
	UpsertProfileFunc func(ctx context.Context, user *models.User) error
	SetTelegramIDFunc func(ctx context.Context, uid, telegramID string) error
	SetTOTPSecretFunc func(ctx context.Context, uid, secret string) error
	TouchFunc         func(ctx context.Context, uid string) error
	ListFunc          func(ctx context.Context) ([]*models.User, error)
}

func (m *MockUserRepository) GetByUID(ctx context.Context, uid string) (*models.User, error) {
	if m.GetByUIDFunc != nil {
		return m.GetByUIDFunc(ctx, uid)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) UpsertProfile(ctx context.Context, user *models.User) error {
	if m.UpsertProfileFunc != nil {
		return m.UpsertProfileFunc(ctx, user)
	}
	return nil
}

func (m *MockUserRepository) SetTelegramID(ctx context.Context, uid, telegramID string) error {
	if m.SetTelegramIDFunc != nil {
		return m.SetTelegramIDFunc(ctx, uid, telegramID)
	}
	return nil
}

func (m *MockUserRepository) SetTOTPSecret(ctx context.Context, uid, secret string) error {
	if m.SetTOTPSecretFunc != nil {
		return m.SetTOTPSecretFunc(ctx, uid, secret)
	}
	return nil
}

func (m *MockUserRepository) Touch(ctx context.Context, uid string) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, uid)
	}
	return nil
}

func (m *MockUserRepository) List(ctx context.Context) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.User{}, nil
}

// MockSecurityRepository implements SecurityRepository for testing
type MockSecurityRepository struct {
	GetFunc             func(ctx context.Context, uid string) (*models.BanStatus, error)
	IncrementStrikeFunc func(ctx context.Context, uid string) (*models.BanStatus, bool, error)
	BanFunc             func(ctx context.Context, uid, reason string) error
	UnbanFunc           func(ctx context.Context, uid string) error
}

func (m *MockSecurityRepository) Get(ctx context.Context, uid string) (*models.BanStatus, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, uid)
	}
	return &models.BanStatus{}, nil
}

func (m *MockSecurityRepository) IncrementStrike(ctx context.Context, uid string) (*models.BanStatus, bool, error) {
	if m.IncrementStrikeFunc != nil {
		return m.IncrementStrikeFunc(ctx, uid)
	}
	return &models.BanStatus{Attempts: 1}, false, nil
}

func (m *MockSecurityRepository) Ban(ctx context.Context, uid, reason string) error {
	if m.BanFunc != nil {
		return m.BanFunc(ctx, uid, reason)
	}
	return nil
}

func (m *MockSecurityRepository) Unban(ctx context.Context, uid string) error {
	if m.UnbanFunc != nil {
		return m.UnbanFunc(ctx, uid)
	}
	return nil
}

// MockSessionRevoker implements SessionRevoker for testing
type MockSessionRevoker struct {
	RevokeFunc     func(ctx context.Context, jti, uid string, expiresAt time.Time, reason string) error
	RevokeUserFunc func(ctx context.Context, uid, reason string) error
	Revoked        []string
	RevokedUsers   []string
	ClearedUsers   []string
}

func (m *MockSessionRevoker) Revoke(ctx context.Context, jti, uid string, expiresAt time.Time, reason string) error {
	m.Revoked = append(m.Revoked, jti)
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, jti, uid, expiresAt, reason)
	}
	return nil
}

func (m *MockSessionRevoker) RevokeUser(ctx context.Context, uid, reason string) error {
	if m.RevokeUserFunc != nil {
		if err := m.RevokeUserFunc(ctx, uid, reason); err != nil {
			return err
		}
	}
	m.RevokedUsers = append(m.RevokedUsers, uid)
	return nil
}

func (m *MockSessionRevoker) ClearUserRevocation(ctx context.Context, uid string) error {
	m.ClearedUsers = append(m.ClearedUsers, uid)
	return nil
}

// MockOrderRepository implements OrderRepository for testing
type MockOrderRepository struct {
	CreateFunc        func(ctx context.Context, userID string, form *models.OrderForm) (*models.Order, error)
	GetByIDFunc       func(ctx context.Context, id string) (*models.Order, error)
	ListRecentFunc    func(ctx context.Context, limit int) ([]*models.Order, error)
	UpdateStatusFunc  func(ctx context.Context, id, status string) error
	DeliverResultFunc func(ctx context.Context, id, resultImage, resultDescription string) error
}

func (m *MockOrderRepository) Create(ctx context.Context, userID string, form *models.OrderForm) (*models.Order, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, form)
	}
	return &models.Order{
		OrderForm: *form,
		ID:        "order_1",
		UserID:    userID,
		Status:    models.OrderStatusSent,
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockOrderRepository) ListRecent(ctx context.Context, limit int) ([]*models.Order, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, limit)
	}
	return []*models.Order{}, nil
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id, status string) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *MockOrderRepository) DeliverResult(ctx context.Context, id, resultImage, resultDescription string) error {
	if m.DeliverResultFunc != nil {
		return m.DeliverResultFunc(ctx, id, resultImage, resultDescription)
	}
	return nil
}

// MockCodeSender implements CodeSender for testing
type MockCodeSender struct {
	SendFunc  func(telegramID, code string) error
	SentCodes []string
	SentTo    []string
}

func (m *MockCodeSender) SendVerificationCode(telegramID, code string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(telegramID, code); err != nil {
			return err
		}
	}
	m.SentCodes = append(m.SentCodes, code)
	m.SentTo = append(m.SentTo, telegramID)
	return nil
}

func (m *MockCodeSender) BotLink() string {
	return "https://t.me/testbot"
}

// MockNotifier implements OperatorNotifier for testing
type MockNotifier struct {
	NotifyFunc func(order *models.Order) error
	Notified   []*models.Order
}

func (m *MockNotifier) NotifyOperator(order *models.Order) error {
	if m.NotifyFunc != nil {
		if err := m.NotifyFunc(order); err != nil {
			return err
		}
	}
	m.Notified = append(m.Notified, order)
	return nil
}

// MockGeocoder implements geo.ReverseGeocoder for testing
type MockGeocoder struct {
	Address *geo.Address
	Err     error
}

func (m *MockGeocoder) Reverse(ctx context.Context, lat, lng float64) (*geo.Address, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Address, nil
}

// MockCountryResolver implements CountryResolver for testing
type MockCountryResolver struct {
	Countries map[string]countries.Country
}

func (m *MockCountryResolver) FindByName(ctx context.Context, name string) (countries.Country, bool) {
	c, ok := m.Countries[name]
	return c, ok
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendFunc func(ctx context.Context, email string, order *models.Order) error
	Sent     []string
}

func (m *MockEmailService) SendOrderResultEmail(ctx context.Context, email string, order *models.Order) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, email, order); err != nil {
			return err
		}
	}
	m.Sent = append(m.Sent, email)
	return nil
}

// NewTestUser builds a Google-authenticated user for tests
func NewTestUser(uid, email, name string) *models.User {
	now := time.Now()
	return &models.User{
		UID:         uid,
		DisplayName: name,
		Email:       email,
		AuthMethod:  models.AuthMethodGoogle,
		Role:        "user",
		LastLogin:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewTestOrderForm builds a valid order form for tests
func NewTestOrderForm() *models.OrderForm {
	return &models.OrderForm{
		FirstName:        "Ali",
		LastName:         "Valiyev",
		Email:            "ali@example.com",
		Phone:            "+998901234567",
		TelegramUsername: "alivaliyev",
		Comment:          "PUBG uchun logotip kerak",
		SelectedGame:     "pubg",
		SelectedDesign:   "logo",
	}
}
