package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/models"
	pkgauth "github.com/elbekdev/atelier/pkg/auth"
	pkglogger "github.com/elbekdev/atelier/pkg/logger"
)

// UserRepository defines the identity-side user data access
type UserRepository interface {
	GetByUID(ctx context.Context, uid string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpsertProfile(ctx context.Context, user *models.User) error
	SetTelegramID(ctx context.Context, uid, telegramID string) error
	SetTOTPSecret(ctx context.Context, uid, secret string) error
	Touch(ctx context.Context, uid string) error
	List(ctx context.Context) ([]*models.User, error)
}

// SecurityRepository defines ban-state data access
type SecurityRepository interface {
	Get(ctx context.Context, uid string) (*models.BanStatus, error)
	IncrementStrike(ctx context.Context, uid string) (*models.BanStatus, bool, error)
	Ban(ctx context.Context, uid, reason string) error
	Unban(ctx context.Context, uid string) error
}

// SessionRevoker blacklists live session tokens, either one token by its id
// or everything a user holds at once (operator ban).
type SessionRevoker interface {
	Revoke(ctx context.Context, jti, uid string, expiresAt time.Time, reason string) error
	RevokeUser(ctx context.Context, uid, reason string) error
	ClearUserRevocation(ctx context.Context, uid string) error
}

// GoogleProfile is the externally resolved OAuth identity posted by the
// client after a successful Google sign-in.
type GoogleProfile struct {
	SubjectID   string
	DisplayName string
	Email       string
	PhotoURL    string
}

// LoginResult is a resolved login: the canonical user plus either a session
// token or, for banned accounts, the ban details. A banned user still gets
// their profile back so the ban screen can greet them by name.
type LoginResult struct {
	User   *models.User
	Ban    *models.BanStatus
	Token  string
	Banned bool
}

// IdentityService normalizes the two login methods into canonical users,
// performs the login-time ban checkpoint and issues sessions.
type IdentityService struct {
	users       UserRepository
	security    SecurityRepository
	revocations SessionRevoker
	tokens      *auth.TokenManager
	totp        *auth.TOTPManager
	flows       *flow.Store
	logger      *slog.Logger
	audit       *pkglogger.AuditLogger
}

func NewIdentityService(
	users UserRepository,
	security SecurityRepository,
	revocations SessionRevoker,
	tokens *auth.TokenManager,
	totp *auth.TOTPManager,
	flows *flow.Store,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *IdentityService {
	return &IdentityService{
		users:       users,
		security:    security,
		revocations: revocations,
		tokens:      tokens,
		totp:        totp,
		flows:       flows,
		logger:      logger,
		audit:       audit,
	}
}

// ResolveGoogleLogin maps an OAuth identity to a canonical user. Profile
// fields are synced to the store on every login; a previously linked
// Telegram ID survives the sync. A sync failure is logged and swallowed:
// login proceeds with the in-memory user (availability over durability for
// this metadata).
func (s *IdentityService) ResolveGoogleLogin(ctx context.Context, profile GoogleProfile) (*LoginResult, error) {
	if profile.SubjectID == "" {
		return nil, models.ErrBadRequest
	}

	user := &models.User{
		UID:         profile.SubjectID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		PhotoURL:    profile.PhotoURL,
		AuthMethod:  models.AuthMethodGoogle,
		Role:        "user",
	}

	// Attach any previously linked Telegram ID before the sync so callers
	// see the complete canonical user.
	if existing, err := s.users.GetByUID(ctx, user.UID); err == nil {
		user.TelegramID = existing.TelegramID
		user.Role = existing.Role
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to read existing profile", slog.String("uid", user.UID), slog.Any("error", err))
	}

	if err := s.users.UpsertProfile(ctx, user); err != nil {
		s.logger.Error("failed to sync user profile", slog.String("uid", user.UID), slog.Any("error", err))
	}

	return s.finishLogin(ctx, user)
}

// ResolveTelegramLogin validates a previously registered Telegram-only
// account and issues a session for it. Registration itself happens in the
// Telegram OTP flow; an unknown uid here means the caller never completed
// it.
func (s *IdentityService) ResolveTelegramLogin(ctx context.Context, telegramID string) (*LoginResult, error) {
	uid := models.TelegramUID(telegramID)

	user, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load telegram account", slog.String("uid", uid), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.users.Touch(ctx, uid); err != nil {
		s.logger.Error("failed to touch last login", slog.String("uid", uid), slog.Any("error", err))
	}

	return s.finishLogin(ctx, user)
}

// OperatorLogin authenticates the allow-listed operator account with a
// password and, once enrolled, a TOTP code.
func (s *IdentityService) OperatorLogin(ctx context.Context, email, password, totpCode string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil || !user.IsOperator() || user.PasswordHash == "" {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType: "operator_login", Success: false, FailureReason: "unknown operator",
		})
		return nil, models.ErrUnauthorized
	}

	if !pkgauth.VerifyPassword(password, user.PasswordHash) {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType: "operator_login", UserID: user.UID, Success: false, FailureReason: "bad password",
		})
		return nil, models.ErrUnauthorized
	}

	if user.TOTPSecret != "" && !s.totp.Validate(user.TOTPSecret, totpCode) {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType: "operator_login", UserID: user.UID, Success: false, FailureReason: "bad totp code",
		})
		return nil, models.ErrUnauthorized
	}

	if err := s.users.Touch(ctx, user.UID); err != nil {
		s.logger.Error("failed to touch last login", slog.String("uid", user.UID), slog.Any("error", err))
	}

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "operator_login", UserID: user.UID, Success: true,
	})

	return s.finishLogin(ctx, user)
}

// finishLogin runs the login-time ban checkpoint and issues the session.
// Banned users are returned without a token and their flow is forced into
// the terminal banned state.
func (s *IdentityService) finishLogin(ctx context.Context, user *models.User) (*LoginResult, error) {
	ban, err := s.security.Get(ctx, user.UID)
	if err != nil {
		s.logger.Error("failed to read ban status", slog.String("uid", user.UID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if ban.IsBanned {
		s.flows.MarkBanned(user.UID)
		s.logger.Info("banned user attempted login", slog.String("uid", user.UID))
		return &LoginResult{User: user, Ban: ban, Banned: true}, nil
	}

	token, err := s.tokens.GenerateSession(user.UID, user.Role, user.AuthMethod)
	if err != nil {
		s.logger.Error("failed to issue session", slog.String("uid", user.UID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, models.ErrInternalServer
	}
	s.flows.Begin(user.UID, claims.ID)

	return &LoginResult{User: user, Ban: ban, Token: token}, nil
}

// Logout revokes the live session token and drops the flow state.
func (s *IdentityService) Logout(ctx context.Context, claims *auth.SessionClaims) error {
	if err := s.revocations.Revoke(ctx, claims.ID, claims.UID, claims.ExpiresAt.Time, "logout"); err != nil {
		s.logger.Error("failed to revoke session", slog.String("uid", claims.UID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.flows.Drop(claims.UID)
	return nil
}

// GetUser loads a canonical user with its ban status, for /auth/me.
func (s *IdentityService) GetUser(ctx context.Context, uid string) (*models.User, *models.BanStatus, error) {
	user, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrNotFound
		}
		return nil, nil, models.ErrInternalServer
	}

	ban, err := s.security.Get(ctx, uid)
	if err != nil {
		return nil, nil, models.ErrInternalServer
	}

	return user, ban, nil
}

// EnrollTOTP generates and stores a TOTP secret for the operator account
// and returns the provisioning QR data URL.
func (s *IdentityService) EnrollTOTP(ctx context.Context, uid string) (string, error) {
	user, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return "", models.ErrNotFound
	}
	if !user.IsOperator() {
		return "", models.ErrForbidden
	}

	secret, qr, err := s.totp.GenerateSecretWithQR(user.Email)
	if err != nil {
		s.logger.Error("failed to generate totp secret", slog.String("uid", uid), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.users.SetTOTPSecret(ctx, uid, secret); err != nil {
		s.logger.Error("failed to store totp secret", slog.String("uid", uid), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	return qr, nil
}
