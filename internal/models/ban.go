package models

import "time"

// BanThreshold is the number of verification strikes that triggers an
// automatic ban.
const BanThreshold = 3

// AutoBanReason is the fixed reason recorded on a threshold-triggered ban.
const AutoBanReason = "Location verification failed 3 times (system auto-ban)"

// BanStatus tracks verification-failure strikes and ban state per user.
// A missing row reads as the zero value: not banned, no strikes.
type BanStatus struct {
	IsBanned bool
	Attempts int
	Reason   string
	BannedAt *time.Time
}
