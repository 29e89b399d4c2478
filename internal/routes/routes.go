package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/handlers"
	"github.com/elbekdev/atelier/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	verifyHandler *handlers.TelegramVerifyHandler,
	locationHandler *handlers.LocationHandler,
	ordersHandler *handlers.OrdersHandler,
	adminHandler *handlers.AdminHandler,
	countriesHandler *handlers.CountriesHandler,
	tokenManager *auth.TokenManager,
	revocations auth.RevocationChecker,
) {
	authLimit := middleware.DefaultAuthRateLimit()
	otpLimit := middleware.DefaultOTPRateLimit()

	// Public routes - no authentication required
	router.Get("/countries", countriesHandler.List)

	router.With(middleware.RateLimitByIP(authLimit)).Post("/auth/google", authHandler.GoogleLogin)
	router.With(middleware.RateLimitByIP(authLimit)).Post("/auth/operator/login", authHandler.OperatorLogin)

	// Telegram OTP login flow: no session exists yet.
	router.With(middleware.RateLimitByIP(otpLimit)).Post("/auth/telegram/start", verifyHandler.Start)
	router.With(middleware.RateLimitByIP(otpLimit)).Post("/auth/telegram/resend", verifyHandler.Resend)
	router.With(middleware.RateLimitByIP(authLimit)).Post("/auth/telegram/confirm", verifyHandler.Confirm)
	router.With(middleware.RateLimitByIP(authLimit)).Post("/auth/telegram/register", verifyHandler.Register)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager, revocations))

		r.Get("/auth/me", authHandler.Me)
		r.Post("/auth/logout", authHandler.Logout)

		// Telegram linking flow: same handshake, acting user from session.
		r.With(middleware.RateLimitByIP(otpLimit)).Post("/telegram/link/start", verifyHandler.Start)
		r.With(middleware.RateLimitByIP(otpLimit)).Post("/telegram/link/resend", verifyHandler.Resend)
		r.Post("/telegram/link/confirm", verifyHandler.Confirm)

		r.Post("/location/verify", locationHandler.Verify)

		r.Post("/orders", ordersHandler.Submit)
		r.Get("/orders/my", ordersHandler.MyOrders)

		// Operator-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireOperator())

			r.Post("/auth/operator/totp/enroll", authHandler.EnrollTOTP)

			r.Get("/admin/orders", adminHandler.ListOrders)
			r.Get("/admin/users", adminHandler.ListUsers)
			r.Patch("/admin/orders/{id}/status", adminHandler.UpdateStatus)
			r.Post("/admin/orders/{id}/result", adminHandler.DeliverResult)
			r.Post("/admin/users/{uid}/ban", adminHandler.BanUser)
			r.Delete("/admin/users/{uid}/ban", adminHandler.UnbanUser)
		})
	})
}
