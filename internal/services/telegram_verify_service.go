package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elbekdev/atelier/internal/models"
	"github.com/elbekdev/atelier/internal/telegram"
)

// CodeSender delivers one-time codes. Satisfied by *telegram.Notifier;
// tests supply a recorder.
type CodeSender interface {
	SendVerificationCode(telegramID, code string) error
	BotLink() string
}

// verifySession is one pending OTP exchange. The code is fixed for the
// session's lifetime: resends repeat it rather than minting a new one, so
// a user who receives two messages can type either.
type verifySession struct {
	id         string
	telegramID string
	code       string
	actingUID  string // non-empty when linking to an existing account
	confirmed  bool
	createdAt  time.Time
}

// ConfirmResult describes what confirming a code led to. Exactly one of:
// Login set (existing Telegram account signed in), Linked true (Telegram ID
// attached to the acting account), or NeedsNickname true (new Telegram user
// must register before a session can be issued).
type ConfirmResult struct {
	Login         *LoginResult
	Linked        bool
	NeedsNickname bool
	TelegramID    string
}

// TelegramVerifyService owns the OTP handshake: issue a code over the bot,
// confirm it by exact match, then either log in, link, or hand off to
// registration. Sessions live in memory only; a restart invalidates
// pending codes, which is acceptable for a sub-minute exchange.
type TelegramVerifyService struct {
	users    UserRepository
	identity *IdentityService
	sender   CodeSender
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*verifySession
}

func NewTelegramVerifyService(users UserRepository, identity *IdentityService, sender CodeSender, logger *slog.Logger) *TelegramVerifyService {
	return &TelegramVerifyService{
		users:    users,
		identity: identity,
		sender:   sender,
		logger:   logger,
		sessions: make(map[string]*verifySession),
	}
}

// BotLink exposes the bot deep link for the not-started error screen.
func (s *TelegramVerifyService) BotLink() string {
	return s.sender.BotLink()
}

// Start opens a verification session for the given Telegram ID and sends
// the code. actingUID is empty for the login flow and set when an
// authenticated user is linking their Telegram ID. The session id comes
// back to the caller; the code never does.
func (s *TelegramVerifyService) Start(ctx context.Context, actingUID, telegramID string) (string, error) {
	if telegramID == "" {
		return "", models.ErrBadRequest
	}

	code, err := generateCode()
	if err != nil {
		s.logger.Error("failed to generate verification code", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.sender.SendVerificationCode(telegramID, code); err != nil {
		if errors.Is(err, telegram.ErrBotNotStarted) {
			return "", err
		}
		return "", models.ErrInternalServer
	}

	sess := &verifySession{
		id:         uuid.New().String(),
		telegramID: telegramID,
		code:       code,
		actingUID:  actingUID,
		createdAt:  time.Now(),
	}

	// Only the most recently sent code stays valid: a new Start for the
	// same Telegram ID supersedes any pending session for it.
	s.mu.Lock()
	for id, prev := range s.sessions {
		if prev.telegramID == telegramID {
			delete(s.sessions, id)
		}
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Info("verification code sent", slog.String("telegram_id", telegramID))
	return sess.id, nil
}

// Resend redelivers the session's existing code.
func (s *TelegramVerifyService) Resend(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return models.ErrNoPendingCode
	}

	if err := s.sender.SendVerificationCode(sess.telegramID, sess.code); err != nil {
		if errors.Is(err, telegram.ErrBotNotStarted) {
			return err
		}
		return models.ErrInternalServer
	}
	return nil
}

// Confirm checks a submitted code against its session. On match it either
// links the Telegram ID to the acting account, logs an existing Telegram
// account in, or reports that registration is still needed. Codes only
// match within their own session; a code from a different session never
// confirms this one.
func (s *TelegramVerifyService) Confirm(ctx context.Context, sessionID, code string) (*ConfirmResult, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, models.ErrNoPendingCode
	}

	if code != sess.code {
		return nil, models.ErrCodeMismatch
	}

	// Linking flow: attach the verified ID to the already authenticated
	// account and close the session.
	if sess.actingUID != "" {
		if err := s.users.SetTelegramID(ctx, sess.actingUID, sess.telegramID); err != nil {
			s.logger.Error("failed to link telegram id",
				slog.String("uid", sess.actingUID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		s.drop(sessionID)
		s.logger.Info("telegram id linked", slog.String("uid", sess.actingUID))
		return &ConfirmResult{Linked: true, TelegramID: sess.telegramID}, nil
	}

	// Login flow: an existing Telegram account signs straight in; an
	// unknown ID stays in a confirmed session awaiting a nickname.
	login, err := s.identity.ResolveTelegramLogin(ctx, sess.telegramID)
	if err == nil {
		s.drop(sessionID)
		return &ConfirmResult{Login: login, TelegramID: sess.telegramID}, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	s.mu.Lock()
	sess.confirmed = true
	s.mu.Unlock()
	return &ConfirmResult{NeedsNickname: true, TelegramID: sess.telegramID}, nil
}

// Register creates a Telegram-only account for a confirmed session and
// signs it in. It refuses sessions whose code was never confirmed.
func (s *TelegramVerifyService) Register(ctx context.Context, sessionID, nickname string) (*LoginResult, error) {
	if nickname == "" {
		return nil, models.ErrBadRequest
	}

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok || !sess.confirmed {
		return nil, models.ErrNoPendingCode
	}

	user := &models.User{
		UID:         models.TelegramUID(sess.telegramID),
		DisplayName: nickname,
		TelegramID:  sess.telegramID,
		AuthMethod:  models.AuthMethodTelegram,
		Role:        "user",
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Registered concurrently; fall through to the normal login.
			s.logger.Info("telegram account already exists", slog.String("uid", user.UID))
		} else {
			s.logger.Error("failed to create telegram account", slog.String("uid", user.UID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	login, err := s.identity.ResolveTelegramLogin(ctx, sess.telegramID)
	if err != nil {
		return nil, err
	}

	s.drop(sessionID)
	return login, nil
}

// CleanupExpired drops verification sessions older than maxAge.
func (s *TelegramVerifyService) CleanupExpired(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, sess := range s.sessions {
		if sess.createdAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *TelegramVerifyService) drop(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// generateCode draws a uniform six digit code from crypto/rand. The range
// is 100000 through 999999 so every code is exactly six digits.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
