package services

import (
	"context"
	"log/slog"

	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/models"
	pkglogger "github.com/elbekdev/atelier/pkg/logger"
)

// BanService is the ban ledger: it owns strike accounting and the two
// operator actions, and keeps the flow store and session blacklist in sync
// so a banned user is locked out immediately, live token included.
type BanService struct {
	security    SecurityRepository
	flows       *flow.Store
	revocations SessionRevoker
	logger      *slog.Logger
	audit       *pkglogger.AuditLogger
}

func NewBanService(security SecurityRepository, flows *flow.Store, revocations SessionRevoker, logger *slog.Logger, audit *pkglogger.AuditLogger) *BanService {
	return &BanService{
		security:    security,
		flows:       flows,
		revocations: revocations,
		logger:      logger,
		audit:       audit,
	}
}

// GetStatus returns the ban status, defaulting to not-banned/zero strikes
// when no record exists.
func (s *BanService) GetStatus(ctx context.Context, uid string) (*models.BanStatus, error) {
	status, err := s.security.Get(ctx, uid)
	if err != nil {
		s.logger.Error("failed to read ban status", slog.String("uid", uid), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return status, nil
}

// IncrementStrike charges one strike and reports whether this strike
// crossed the ban threshold. A failed write surfaces as an error with the
// ledger unchanged, never as a silent false.
func (s *BanService) IncrementStrike(ctx context.Context, uid string) (*models.BanStatus, bool, error) {
	status, justBanned, err := s.security.IncrementStrike(ctx, uid)
	if err != nil {
		s.logger.Error("failed to record strike", slog.String("uid", uid), slog.Any("error", err))
		return nil, false, models.ErrInternalServer
	}

	if justBanned {
		s.flows.MarkBanned(uid)
		if err := s.revocations.RevokeUser(ctx, uid, models.AutoBanReason); err != nil {
			s.logger.Error("failed to revoke sessions on auto-ban", slog.String("uid", uid), slog.Any("error", err))
		}
		s.logger.Warn("user auto-banned",
			slog.String("uid", uid),
			slog.Int("attempts", status.Attempts),
		)
	}

	return status, justBanned, nil
}

// Ban marks a user banned with an operator-supplied reason. The user's live
// sessions are revoked in the same stroke; the forced logout must not wait
// for the old token to expire.
func (s *BanService) Ban(ctx context.Context, operatorUID, uid, reason string) error {
	if err := s.security.Ban(ctx, uid, reason); err != nil {
		s.logger.Error("failed to ban user", slog.String("uid", uid), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.flows.MarkBanned(uid)
	if err := s.revocations.RevokeUser(ctx, uid, reason); err != nil {
		s.logger.Error("failed to revoke sessions on ban", slog.String("uid", uid), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.LogAdminAction(pkglogger.AuditEvent{
		EventType: "ban_user",
		UserID:    operatorUID,
		Success:   true,
		Metadata:  map[string]string{"target_uid": uid, "reason": reason},
	})
	return nil
}

// Unban resets strikes, ban flag and reason in one write.
func (s *BanService) Unban(ctx context.Context, operatorUID, uid string) error {
	if err := s.security.Unban(ctx, uid); err != nil {
		s.logger.Error("failed to unban user", slog.String("uid", uid), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.flows.Drop(uid)
	if err := s.revocations.ClearUserRevocation(ctx, uid); err != nil {
		// Tokens issued after the unban postdate the cutoff and still pass.
		s.logger.Error("failed to clear session revocation on unban", slog.String("uid", uid), slog.Any("error", err))
	}
	s.audit.LogAdminAction(pkglogger.AuditEvent{
		EventType: "unban_user",
		UserID:    operatorUID,
		Success:   true,
		Metadata:  map[string]string{"target_uid": uid},
	})
	return nil
}
