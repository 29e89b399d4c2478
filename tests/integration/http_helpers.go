package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/config"
	"github.com/elbekdev/atelier/internal/countries"
	"github.com/elbekdev/atelier/internal/database"
	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/geo"
	"github.com/elbekdev/atelier/internal/handlers"
	middlewareCustom "github.com/elbekdev/atelier/internal/middleware"
	"github.com/elbekdev/atelier/internal/models"
	"github.com/elbekdev/atelier/internal/routes"
	"github.com/elbekdev/atelier/internal/services"
	"github.com/elbekdev/atelier/internal/telegram"
	pkglogger "github.com/elbekdev/atelier/pkg/logger"
)

// SentMessage is one Telegram message captured by the fake bot.
type SentMessage struct {
	ChatID int64
	Text   string
}

// FakeBot records outbound Telegram messages for test assertions.
type FakeBot struct {
	mu       sync.Mutex
	Messages []SentMessage
	Err      error
}

func (b *FakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Err != nil {
		return tgbotapi.Message{}, b.Err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		b.Messages = append(b.Messages, SentMessage{ChatID: msg.ChatID, Text: msg.Text})
	}
	return tgbotapi.Message{MessageID: len(b.Messages)}, nil
}

// LastMessage returns the most recent captured message, or nil.
func (b *FakeBot) LastMessage() *SentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.Messages) == 0 {
		return nil
	}
	return &b.Messages[len(b.Messages)-1]
}

// MockEmailService captures order-result emails.
type MockEmailService struct {
	mu   sync.Mutex
	Sent []string
}

func (m *MockEmailService) SendOrderResultEmail(ctx context.Context, email string, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, email)
	return nil
}

// FakeGeocoder returns a fixed address for any coordinates.
type FakeGeocoder struct {
	Address *geo.Address
	Err     error
}

func (g *FakeGeocoder) Reverse(ctx context.Context, lat, lng float64) (*geo.Address, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	return g.Address, nil
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server       *httptest.Server
	Pool         *database.DB
	Bot          *FakeBot
	Geocoder     *FakeGeocoder
	EmailService *MockEmailService
	Flows        *flow.Store
	TokenManager *auth.TokenManager
	Config       *config.Config

	logger *slog.Logger
}

// NewTestServer initializes a complete HTTP server with a real database
// and fakes for the three external dependencies (bot, geocoder, email).
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-32-characters-long-for-testing",
			SessionExpiry:   24 * time.Hour,
			CleanupInterval: 1 * time.Hour,
			TOTPIssuer:      "AtelierTest",
		},
		Telegram: config.TelegramConfig{
			BotUsername:    "testbot",
			OperatorChatID: 777,
		},
		Orders: config.OrdersConfig{
			RecentWindow: 200,
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
		},
	}

	userRepo, securityRepo, orderRepo, revocationRepo := InitializeRepositories(db)

	bot := &FakeBot{}
	notifier := telegram.NewNotifier(bot, cfg.Telegram.OperatorChatID, cfg.Telegram.BotUsername, logger)

	geocoder := &FakeGeocoder{
		Address: &geo.Address{
			Country:     "Uzbekistan",
			CountryCode: "uz",
			State:       "Tashkent Region",
			City:        "Tashkent",
		},
	}
	countryService := countries.NewService(logger)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiry)
	totpManager := auth.NewTOTPManager(cfg.Auth.TOTPIssuer)
	auditLogger := pkglogger.NewAuditLogger(logger)
	flowStore := flow.NewStore()
	mockEmail := &MockEmailService{}

	identityService := services.NewIdentityService(userRepo, securityRepo, revocationRepo, tokenManager, totpManager, flowStore, logger, auditLogger)
	banService := services.NewBanService(securityRepo, flowStore, revocationRepo, logger, auditLogger)
	locationService := services.NewLocationService(geocoder, countryService, banService, flowStore, revocationRepo, logger)
	verifyService := services.NewTelegramVerifyService(userRepo, identityService, notifier, logger)
	orderService := services.NewOrderService(orderRepo, notifier, flowStore, cfg.Orders.RecentWindow, logger)
	adminService := services.NewAdminService(orderRepo, userRepo, securityRepo, mockEmail, cfg.Orders.RecentWindow, logger, auditLogger)

	authHandler := handlers.NewAuthHandler(identityService)
	verifyHandler := handlers.NewTelegramVerifyHandler(verifyService)
	locationHandler := handlers.NewLocationHandler(locationService)
	ordersHandler := handlers.NewOrdersHandler(orderService)
	adminHandler := handlers.NewAdminHandler(adminService, banService)
	countriesHandler := handlers.NewCountriesHandler(countryService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders())
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, verifyHandler, locationHandler, ordersHandler, adminHandler, countriesHandler, tokenManager, revocationRepo)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:       server,
		Pool:         db,
		Bot:          bot,
		Geocoder:     geocoder,
		EmailService: mockEmail,
		Flows:        flowStore,
		TokenManager: tokenManager,
		Config:       cfg,
		logger:       logger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a session token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	return ts.Request(method, path, body, headers)
}

// LoginGoogle resolves a Google login through the API and returns the
// session token.
func (ts *TestServer) LoginGoogle(uid, email string) (string, error) {
	resp, err := ts.Request(http.MethodPost, "/auth/google", map[string]string{
		"subject_id":   uid,
		"display_name": "Test User",
		"email":        email,
	}, nil)
	if err != nil {
		return "", err
	}

	var login struct {
		Token string `json:"token"`
	}
	if err := ParseJSONResponse(resp, &login); err != nil {
		return "", err
	}
	return login.Token, nil
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorMessage extracts error message from error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
