package models

import "time"

// Order statuses. Transitions are unordered: the operator may move an order
// from any status to any other.
const (
	OrderStatusSent       = "sent"
	OrderStatusProcessing = "processing"
	OrderStatusReviewing  = "reviewing"
	OrderStatusBusy       = "busy"
	OrderStatusCompleted  = "completed"
)

// OrderStatuses lists every valid status value.
var OrderStatuses = []string{
	OrderStatusSent,
	OrderStatusProcessing,
	OrderStatusReviewing,
	OrderStatusBusy,
	OrderStatusCompleted,
}

// IsValidOrderStatus reports whether s is one of the five order statuses.
func IsValidOrderStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// GameLabels maps the 13 supported game keys to the operator-facing labels
// used in Telegram notifications.
var GameLabels = map[string]string{
	"pubg":      "🔫 PUBG Mobile",
	"minecraft": "⛏ Minecraft",
	"csgo":      "🎯 CS:GO / CS2",
	"vlog":      "📹 Vlog / Lifestyle",
	"gta":       "🚔 GTA V",
	"valorant":  "💠 Valorant",
	"freefire":  "🔥 Free Fire",
	"roblox":    "🟥 Roblox",
	"fifa":      "⚽️ EA FC (FIFA)",
	"cod":       "🪖 Call of Duty",
	"dota":      "⚔️ Dota 2",
	"standoff":  "🔫 Standoff 2",
	"other":     "🎲 Boshqa",
}

// DesignLabels maps the 4 design types to operator-facing labels.
var DesignLabels = map[string]string{
	"preview": "🖼 YouTube Preview",
	"banner":  "🚩 Kanal Banneri",
	"avatar":  "👤 Avatarka",
	"logo":    "🎨 Logotip",
}

// OrderForm is the client-submitted portion of an order.
type OrderForm struct {
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	TelegramUsername string
	Comment          string
	SelectedGame     string
	SelectedDesign   string
	Location         *VerifiedLocation
}

// Order extends a submitted form with server-assigned fields. Orders are
// never deleted by the application; only their status and result fields
// change, and only through operator actions.
type Order struct {
	OrderForm
	ID                string
	UserID            string
	CreatedAt         time.Time
	Status            string
	ResultImage       string // populated only at "completed"
	ResultDescription string
}
