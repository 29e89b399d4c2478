package models

import (
	"fmt"
	"time"
)

// Auth methods supported by the storefront
const (
	AuthMethodGoogle   = "google"
	AuthMethodTelegram = "telegram"
)

type User struct {
	UID          string
	DisplayName  string
	Email        string // empty for Telegram-only accounts
	PhotoURL     string
	TelegramID   string // set once the Telegram OTP flow links an ID
	AuthMethod   string // "google" or "telegram"
	Role         string // "user", "operator"
	PasswordHash string // operators only, NULL otherwise
	TOTPSecret   string // operators only, empty until MFA is enrolled
	LastLogin    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsOperator reports whether the user may perform admin dashboard actions.
func (u *User) IsOperator() bool {
	return u.Role == "operator"
}

// TelegramUID builds the synthetic account id for a Telegram-only user.
func TelegramUID(telegramID string) string {
	return fmt.Sprintf("tg_%s", telegramID)
}

// FullUserData is the admin projection: profile joined with ban state.
// Recomputed on every admin fetch, never persisted as its own entity.
type FullUserData struct {
	UID      string
	Profile  *User
	Security *BanStatus
}
