package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/repositories"
	"github.com/elbekdev/atelier/internal/services"
)

// Lifetimes for the in-memory stores swept alongside the database
// blacklist. OTP sessions are short-lived by nature; flow sessions hang
// around as long as a session token could still be valid.
const (
	otpSessionMaxAge  = 15 * time.Minute
	flowSessionMaxAge = 48 * time.Hour
)

// CleanupManager periodically sweeps expired revoked sessions, abandoned
// OTP exchanges and idle flow sessions.
type CleanupManager struct {
	revocations *repositories.SessionRevocationRepository
	verify      *services.TelegramVerifyService
	flows       *flow.Store
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

func NewCleanupManager(
	revocations *repositories.SessionRevocationRepository,
	verify *services.TelegramVerifyService,
	flows *flow.Store,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		revocations: revocations,
		verify:      verify,
		flows:       flows,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.revocations.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired revocations", slog.Any("error", err))
	} else if rowsDeleted > 0 {
		cm.logger.Info("expired revocations removed", slog.Int64("rows_deleted", rowsDeleted))
	}

	if dropped := cm.verify.CleanupExpired(otpSessionMaxAge); dropped > 0 {
		cm.logger.Info("abandoned otp sessions removed", slog.Int("count", dropped))
	}

	if dropped := cm.flows.CleanupStale(flowSessionMaxAge); dropped > 0 {
		cm.logger.Info("idle flow sessions removed", slog.Int("count", dropped))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
