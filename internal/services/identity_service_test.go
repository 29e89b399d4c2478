package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/models"
	pkgauth "github.com/elbekdev/atelier/pkg/auth"
	pkglogger "github.com/elbekdev/atelier/pkg/logger"
)

func newIdentityService(users UserRepository, security SecurityRepository, revoker SessionRevoker, flows *flow.Store) *IdentityService {
	logger := slog.Default()
	return NewIdentityService(
		users,
		security,
		revoker,
		auth.NewTokenManager("test-secret-32-characters-long-ok", time.Hour),
		auth.NewTOTPManager("Test"),
		flows,
		logger,
		pkglogger.NewAuditLogger(logger),
	)
}

func TestIdentityService_GoogleLogin_NewUser(t *testing.T) {
	var upserted *models.User
	users := &MockUserRepository{
		UpsertProfileFunc: func(ctx context.Context, user *models.User) error {
			upserted = user
			return nil
		},
	}
	flows := flow.NewStore()

	svc := newIdentityService(users, &MockSecurityRepository{}, &MockSessionRevoker{}, flows)
	result, err := svc.ResolveGoogleLogin(context.Background(), GoogleProfile{
		SubjectID:   "google-1",
		DisplayName: "Test User",
		Email:       "user@example.com",
	})

	assert.NoError(t, err)
	assert.False(t, result.Banned)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "google-1", result.User.UID)
	assert.Equal(t, models.AuthMethodGoogle, result.User.AuthMethod)
	assert.NotNil(t, upserted)

	// Logging in opens a fresh flow at the start step.
	sess := flows.Get("google-1", tokenSID(t, svc, result.Token))
	assert.Equal(t, flow.StepStart, sess.Step)
}

// tokenSID extracts the session id (jti) from an issued token.
func tokenSID(t *testing.T, svc *IdentityService, token string) string {
	t.Helper()
	claims, err := svc.tokens.ValidateToken(token)
	assert.NoError(t, err)
	return claims.ID
}

func TestIdentityService_GoogleLogin_KeepsLinkedTelegramID(t *testing.T) {
	existing := NewTestUser("google-1", "user@example.com", "Test User")
	existing.TelegramID = "123456789"

	users := &MockUserRepository{
		GetByUIDFunc: func(ctx context.Context, uid string) (*models.User, error) {
			return existing, nil
		},
	}

	svc := newIdentityService(users, &MockSecurityRepository{}, &MockSessionRevoker{}, flow.NewStore())
	result, err := svc.ResolveGoogleLogin(context.Background(), GoogleProfile{
		SubjectID:   "google-1",
		DisplayName: "Renamed User",
		Email:       "user@example.com",
	})

	assert.NoError(t, err)
	assert.Equal(t, "123456789", result.User.TelegramID)
	assert.Equal(t, "Renamed User", result.User.DisplayName)
}

func TestIdentityService_GoogleLogin_SyncFailureStillLogsIn(t *testing.T) {
	users := &MockUserRepository{
		UpsertProfileFunc: func(ctx context.Context, user *models.User) error {
			return models.ErrInternalServer
		},
	}

	svc := newIdentityService(users, &MockSecurityRepository{}, &MockSessionRevoker{}, flow.NewStore())
	result, err := svc.ResolveGoogleLogin(context.Background(), GoogleProfile{SubjectID: "google-1"})

	assert.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestIdentityService_GoogleLogin_BannedUserGetsNoToken(t *testing.T) {
	now := time.Now()
	security := &MockSecurityRepository{
		GetFunc: func(ctx context.Context, uid string) (*models.BanStatus, error) {
			return &models.BanStatus{IsBanned: true, Attempts: 3, Reason: models.AutoBanReason, BannedAt: &now}, nil
		},
	}
	flows := flow.NewStore()

	svc := newIdentityService(&MockUserRepository{}, security, &MockSessionRevoker{}, flows)
	result, err := svc.ResolveGoogleLogin(context.Background(), GoogleProfile{
		SubjectID:   "google-1",
		DisplayName: "Test User",
	})

	assert.NoError(t, err)
	assert.True(t, result.Banned)
	assert.Empty(t, result.Token)
	assert.Equal(t, models.AutoBanReason, result.Ban.Reason)

	// The profile still comes back so the ban screen can greet the user.
	assert.Equal(t, "Test User", result.User.DisplayName)
	assert.Equal(t, flow.StepBanned, flows.Get("google-1", "any").Step)
}

func TestIdentityService_TelegramLogin_UnregisteredID(t *testing.T) {
	svc := newIdentityService(&MockUserRepository{}, &MockSecurityRepository{}, &MockSessionRevoker{}, flow.NewStore())

	_, err := svc.ResolveTelegramLogin(context.Background(), "987654321")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestIdentityService_OperatorLogin(t *testing.T) {
	hash, err := pkgauth.HashPassword("Operator-Pass-1234")
	assert.NoError(t, err)

	operator := &models.User{
		UID:          "op_1",
		Email:        "op@example.com",
		AuthMethod:   models.AuthMethodGoogle,
		Role:         "operator",
		PasswordHash: hash,
	}
	users := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			if email == operator.Email {
				return operator, nil
			}
			return nil, models.ErrNotFound
		},
	}

	svc := newIdentityService(users, &MockSecurityRepository{}, &MockSessionRevoker{}, flow.NewStore())

	t.Run("valid password", func(t *testing.T) {
		result, err := svc.OperatorLogin(context.Background(), "op@example.com", "Operator-Pass-1234", "")
		assert.NoError(t, err)
		assert.NotEmpty(t, result.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.OperatorLogin(context.Background(), "op@example.com", "wrong", "")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.OperatorLogin(context.Background(), "nobody@example.com", "Operator-Pass-1234", "")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("non-operator role rejected", func(t *testing.T) {
		plain := *operator
		plain.Role = "user"
		usersPlain := &MockUserRepository{
			GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
				return &plain, nil
			},
		}
		svcPlain := newIdentityService(usersPlain, &MockSecurityRepository{}, &MockSessionRevoker{}, flow.NewStore())

		_, err := svcPlain.OperatorLogin(context.Background(), "op@example.com", "Operator-Pass-1234", "")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})
}

func TestIdentityService_Logout_RevokesAndDropsFlow(t *testing.T) {
	revoker := &MockSessionRevoker{}
	flows := flow.NewStore()
	flows.Begin("u1", "s1")

	svc := newIdentityService(&MockUserRepository{}, &MockSecurityRepository{}, revoker, flows)
	err := svc.Logout(context.Background(), testClaims("u1", "s1"))

	assert.NoError(t, err)
	assert.Contains(t, revoker.Revoked, "s1")
	assert.Equal(t, flow.StepStart, flows.Get("u1", "s1").Step)
}

func TestIdentityService_EnrollTOTP(t *testing.T) {
	operator := &models.User{UID: "op_1", Email: "op@example.com", Role: "operator"}
	stored := ""
	users := &MockUserRepository{
		GetByUIDFunc: func(ctx context.Context, uid string) (*models.User, error) {
			return operator, nil
		},
		SetTOTPSecretFunc: func(ctx context.Context, uid, secret string) error {
			stored = secret
			return nil
		},
	}

	svc := newIdentityService(users, &MockSecurityRepository{}, &MockSessionRevoker{}, flow.NewStore())
	qr, err := svc.EnrollTOTP(context.Background(), "op_1")

	assert.NoError(t, err)
	assert.Contains(t, qr, "data:image/png;base64,")
	assert.NotEmpty(t, stored)
}

func TestIdentityService_EnrollTOTP_NonOperatorForbidden(t *testing.T) {
	users := &MockUserRepository{
		GetByUIDFunc: func(ctx context.Context, uid string) (*models.User, error) {
			return NewTestUser("u1", "user@example.com", "Test User"), nil
		},
	}

	svc := newIdentityService(users, &MockSecurityRepository{}, &MockSessionRevoker{}, flow.NewStore())
	_, err := svc.EnrollTOTP(context.Background(), "u1")

	assert.ErrorIs(t, err, models.ErrForbidden)
}
