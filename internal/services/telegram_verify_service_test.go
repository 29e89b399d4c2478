package services

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/models"
	"github.com/elbekdev/atelier/internal/telegram"
	pkglogger "github.com/elbekdev/atelier/pkg/logger"
)

func newTestIdentityService(users UserRepository) *IdentityService {
	logger := slog.Default()
	return NewIdentityService(
		users,
		&MockSecurityRepository{},
		&MockSessionRevoker{},
		auth.NewTokenManager("test-secret-32-characters-long-ok", time.Hour),
		auth.NewTOTPManager("Test"),
		flow.NewStore(),
		logger,
		pkglogger.NewAuditLogger(logger),
	)
}

func newVerifyService(users UserRepository, sender CodeSender) *TelegramVerifyService {
	return NewTelegramVerifyService(users, newTestIdentityService(users), sender, slog.Default())
}

func TestTelegramVerify_Start_SendsSixDigitCode(t *testing.T) {
	sender := &MockCodeSender{}
	svc := newVerifyService(&MockUserRepository{}, sender)

	sessionID, err := svc.Start(context.Background(), "", "123456789")

	assert.NoError(t, err)
	assert.NotEmpty(t, sessionID)
	assert.Len(t, sender.SentCodes, 1)
	assert.Equal(t, "123456789", sender.SentTo[0])

	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), sender.SentCodes[0])
	n, _ := strconv.Atoi(sender.SentCodes[0])
	assert.GreaterOrEqual(t, n, 100000)
	assert.LessOrEqual(t, n, 999999)
}

func TestTelegramVerify_Resend_RepeatsSameCode(t *testing.T) {
	sender := &MockCodeSender{}
	svc := newVerifyService(&MockUserRepository{}, sender)

	sessionID, err := svc.Start(context.Background(), "", "123456789")
	assert.NoError(t, err)

	err = svc.Resend(context.Background(), sessionID)
	assert.NoError(t, err)

	assert.Len(t, sender.SentCodes, 2)
	assert.Equal(t, sender.SentCodes[0], sender.SentCodes[1])
}

func TestTelegramVerify_Start_BotNotStarted(t *testing.T) {
	sender := &MockCodeSender{
		SendFunc: func(telegramID, code string) error {
			return telegram.ErrBotNotStarted
		},
	}
	svc := newVerifyService(&MockUserRepository{}, sender)

	_, err := svc.Start(context.Background(), "", "123456789")

	assert.ErrorIs(t, err, telegram.ErrBotNotStarted)
}

func TestTelegramVerify_Confirm_WrongCode(t *testing.T) {
	sender := &MockCodeSender{}
	svc := newVerifyService(&MockUserRepository{}, sender)

	sessionID, _ := svc.Start(context.Background(), "", "123456789")

	wrong := "000000"
	if sender.SentCodes[0] == wrong {
		wrong = "000001"
	}

	result, err := svc.Confirm(context.Background(), sessionID, wrong)

	assert.ErrorIs(t, err, models.ErrCodeMismatch)
	assert.Nil(t, result)
}

func TestTelegramVerify_Confirm_CodeIsSessionScoped(t *testing.T) {
	sender := &MockCodeSender{}
	svc := newVerifyService(&MockUserRepository{}, sender)

	sessionA, _ := svc.Start(context.Background(), "", "111111111")
	_, _ = svc.Start(context.Background(), "", "222222222")

	codeB := sender.SentCodes[1]
	if codeB == sender.SentCodes[0] {
		t.Skip("codes collided, cannot distinguish sessions")
	}

	// Session B's code never confirms session A.
	result, err := svc.Confirm(context.Background(), sessionA, codeB)
	assert.ErrorIs(t, err, models.ErrCodeMismatch)
	assert.Nil(t, result)
}

func TestTelegramVerify_Start_SupersedesPendingSession(t *testing.T) {
	sender := &MockCodeSender{}
	svc := newVerifyService(&MockUserRepository{}, sender)

	first, _ := svc.Start(context.Background(), "", "123456789")
	second, err := svc.Start(context.Background(), "", "123456789")
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)

	// Asking for a new code kills the old session outright; only the most
	// recently sent code can still confirm.
	_, err = svc.Confirm(context.Background(), first, sender.SentCodes[0])
	assert.ErrorIs(t, err, models.ErrNoPendingCode)

	result, err := svc.Confirm(context.Background(), second, sender.SentCodes[1])
	assert.NoError(t, err)
	assert.True(t, result.NeedsNickname)
}

func TestTelegramVerify_Confirm_UnknownSession(t *testing.T) {
	svc := newVerifyService(&MockUserRepository{}, &MockCodeSender{})

	_, err := svc.Confirm(context.Background(), "no-such-session", "123456")

	assert.ErrorIs(t, err, models.ErrNoPendingCode)
}

func TestTelegramVerify_Confirm_ExistingAccountLogsIn(t *testing.T) {
	existing := &models.User{
		UID:         "tg_123456789",
		DisplayName: "Ali",
		TelegramID:  "123456789",
		AuthMethod:  models.AuthMethodTelegram,
		Role:        "user",
	}
	users := &MockUserRepository{
		GetByUIDFunc: func(ctx context.Context, uid string) (*models.User, error) {
			if uid == existing.UID {
				return existing, nil
			}
			return nil, models.ErrNotFound
		},
	}

	sender := &MockCodeSender{}
	svc := newVerifyService(users, sender)

	sessionID, _ := svc.Start(context.Background(), "", "123456789")
	result, err := svc.Confirm(context.Background(), sessionID, sender.SentCodes[0])

	assert.NoError(t, err)
	assert.False(t, result.NeedsNickname)
	assert.NotNil(t, result.Login)
	assert.NotEmpty(t, result.Login.Token)
	assert.Equal(t, "tg_123456789", result.Login.User.UID)

	// The session is consumed: the same code cannot confirm twice.
	_, err = svc.Confirm(context.Background(), sessionID, sender.SentCodes[0])
	assert.ErrorIs(t, err, models.ErrNoPendingCode)
}

func TestTelegramVerify_RegisterNewAccount(t *testing.T) {
	created := map[string]*models.User{}
	users := &MockUserRepository{
		GetByUIDFunc: func(ctx context.Context, uid string) (*models.User, error) {
			if u, ok := created[uid]; ok {
				return u, nil
			}
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			created[user.UID] = user
			return user, nil
		},
	}

	sender := &MockCodeSender{}
	svc := newVerifyService(users, sender)

	sessionID, _ := svc.Start(context.Background(), "", "123456789")

	// Unknown Telegram ID: confirmation asks for a nickname first.
	result, err := svc.Confirm(context.Background(), sessionID, sender.SentCodes[0])
	assert.NoError(t, err)
	assert.True(t, result.NeedsNickname)
	assert.Nil(t, result.Login)

	// Registration creates tg_<id> and signs it in.
	login, err := svc.Register(context.Background(), sessionID, "Ali")
	assert.NoError(t, err)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "tg_123456789", login.User.UID)
	assert.Equal(t, "Ali", login.User.DisplayName)
	assert.Equal(t, models.AuthMethodTelegram, login.User.AuthMethod)
}

func TestTelegramVerify_Register_RequiresConfirmedSession(t *testing.T) {
	sender := &MockCodeSender{}
	svc := newVerifyService(&MockUserRepository{}, sender)

	sessionID, _ := svc.Start(context.Background(), "", "123456789")

	_, err := svc.Register(context.Background(), sessionID, "Ali")

	assert.ErrorIs(t, err, models.ErrNoPendingCode)
}

func TestTelegramVerify_Confirm_LinksActingAccount(t *testing.T) {
	linkedTo := ""
	users := &MockUserRepository{
		SetTelegramIDFunc: func(ctx context.Context, uid, telegramID string) error {
			linkedTo = uid + ":" + telegramID
			return nil
		},
	}

	sender := &MockCodeSender{}
	svc := newVerifyService(users, sender)

	sessionID, _ := svc.Start(context.Background(), "google-uid-1", "123456789")
	result, err := svc.Confirm(context.Background(), sessionID, sender.SentCodes[0])

	assert.NoError(t, err)
	assert.True(t, result.Linked)
	assert.Nil(t, result.Login)
	assert.Equal(t, "google-uid-1:123456789", linkedTo)
}

func TestTelegramVerify_CleanupExpired(t *testing.T) {
	sender := &MockCodeSender{}
	svc := newVerifyService(&MockUserRepository{}, sender)

	_, _ = svc.Start(context.Background(), "", "123456789")

	assert.Equal(t, 0, svc.CleanupExpired(time.Minute))
	assert.Equal(t, 1, svc.CleanupExpired(0))
}
