package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/background"
	"github.com/elbekdev/atelier/internal/config"
	"github.com/elbekdev/atelier/internal/countries"
	"github.com/elbekdev/atelier/internal/database"
	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/geo"
	"github.com/elbekdev/atelier/internal/handlers"
	middlewareCustom "github.com/elbekdev/atelier/internal/middleware"
	"github.com/elbekdev/atelier/internal/models"
	"github.com/elbekdev/atelier/internal/repositories"
	"github.com/elbekdev/atelier/internal/routes"
	"github.com/elbekdev/atelier/internal/services"
	"github.com/elbekdev/atelier/internal/telegram"
	pkgauth "github.com/elbekdev/atelier/pkg/auth"
	pkghttp "github.com/elbekdev/atelier/pkg/http"
	pkglogger "github.com/elbekdev/atelier/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	securityRepo := repositories.NewSecurityRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	revocationRepo := repositories.NewSessionRevocationRepository(db)

	// Telegram bot
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error("failed to initialize telegram bot", slog.Any("error", err))
		os.Exit(1)
	}
	notifier := telegram.NewNotifier(bot, cfg.Telegram.OperatorChatID, cfg.Telegram.BotUsername, logger)

	// External geo data
	geocoder := geo.NewNominatimClient("atelier/1.0", logger)
	countryService := countries.NewService(logger)

	// Auth plumbing
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiry)
	totpManager := auth.NewTOTPManager(cfg.Auth.TOTPIssuer)
	auditLogger := pkglogger.NewAuditLogger(logger)
	flowStore := flow.NewStore()

	// Email, real or noop depending on config
	var emailService services.EmailService = services.NoopEmailService{}
	if cfg.Email.Enabled {
		sesService, err := services.NewAWSSESEmailService(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		emailService = sesService
	}

	// Services
	identityService := services.NewIdentityService(userRepo, securityRepo, revocationRepo, tokenManager, totpManager, flowStore, logger, auditLogger)
	banService := services.NewBanService(securityRepo, flowStore, revocationRepo, logger, auditLogger)
	locationService := services.NewLocationService(geocoder, countryService, banService, flowStore, revocationRepo, logger)
	verifyService := services.NewTelegramVerifyService(userRepo, identityService, notifier, logger)
	orderService := services.NewOrderService(orderRepo, notifier, flowStore, cfg.Orders.RecentWindow, logger)
	adminService := services.NewAdminService(orderRepo, userRepo, securityRepo, emailService, cfg.Orders.RecentWindow, logger, auditLogger)

	// Handlers
	authHandler := handlers.NewAuthHandler(identityService)
	verifyHandler := handlers.NewTelegramVerifyHandler(verifyService)
	locationHandler := handlers.NewLocationHandler(locationService)
	ordersHandler := handlers.NewOrdersHandler(orderService)
	adminHandler := handlers.NewAdminHandler(adminService, banService)
	countriesHandler := handlers.NewCountriesHandler(countryService)

	// Bootstrap the operator account if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureOperatorUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure operator user", slog.Any("error", err))
	}
	cancel()

	cleanupManager := background.NewCleanupManager(revocationRepo, verifyService, flowStore, logger, cfg.Auth.CleanupInterval)

	// Router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders())
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, verifyHandler, locationHandler, ordersHandler, adminHandler, countriesHandler, tokenManager, revocationRepo)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureOperatorUser creates the operator account if OPERATOR_EMAIL and
// OPERATOR_PASSWORD are set and no such account exists yet.
func ensureOperatorUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	operatorEmail := os.Getenv("OPERATOR_EMAIL")
	operatorPassword := os.Getenv("OPERATOR_PASSWORD")

	if operatorEmail == "" || operatorPassword == "" {
		logger.Info("no OPERATOR_EMAIL or OPERATOR_PASSWORD set, skipping operator bootstrap")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, operatorEmail)
	if err == nil {
		logger.Info("operator account already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check for operator account: %w", err)
	}

	if err := pkgauth.ValidatePassword(operatorPassword); err != nil {
		return fmt.Errorf("operator password rejected: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(operatorPassword)
	if err != nil {
		return fmt.Errorf("failed to hash operator password: %w", err)
	}

	operator := &models.User{
		UID:          "op_" + operatorEmail,
		DisplayName:  "Operator",
		Email:        operatorEmail,
		AuthMethod:   models.AuthMethodGoogle,
		Role:         "operator",
		PasswordHash: hashedPassword,
	}

	if _, err := userRepo.Create(ctx, operator); err != nil {
		return fmt.Errorf("failed to create operator account: %w", err)
	}

	logger.Info("operator account created")
	return nil
}
