package handlers

import (
	"time"

	"github.com/elbekdev/atelier/internal/models"
)

// UserResponse is the wire shape of a canonical user.
type UserResponse struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	TelegramID  string `json:"telegram_id,omitempty"`
	AuthMethod  string `json:"auth_method"`
	Role        string `json:"role"`
}

func toUserResponse(u *models.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		UID:         u.UID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		PhotoURL:    u.PhotoURL,
		TelegramID:  u.TelegramID,
		AuthMethod:  u.AuthMethod,
		Role:        u.Role,
	}
}

// BanStatusResponse is the wire shape of a user's ban state.
type BanStatusResponse struct {
	IsBanned bool       `json:"is_banned"`
	Attempts int        `json:"attempts"`
	Reason   string     `json:"reason,omitempty"`
	BannedAt *time.Time `json:"banned_at,omitempty"`
}

func toBanStatusResponse(b *models.BanStatus) *BanStatusResponse {
	if b == nil {
		return nil
	}
	return &BanStatusResponse{
		IsBanned: b.IsBanned,
		Attempts: b.Attempts,
		Reason:   b.Reason,
		BannedAt: b.BannedAt,
	}
}

// OrderResponse is the wire shape of an order.
type OrderResponse struct {
	ID                string                   `json:"id"`
	UserID            string                   `json:"user_id"`
	FirstName         string                   `json:"first_name"`
	LastName          string                   `json:"last_name"`
	Email             string                   `json:"email,omitempty"`
	Phone             string                   `json:"phone"`
	TelegramUsername  string                   `json:"telegram_username"`
	Comment           string                   `json:"comment"`
	SelectedGame      string                   `json:"selected_game"`
	SelectedDesign    string                   `json:"selected_design"`
	Location          *models.VerifiedLocation `json:"location,omitempty"`
	Status            string                   `json:"status"`
	ResultImage       string                   `json:"result_image,omitempty"`
	ResultDescription string                   `json:"result_description,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
}

func toOrderResponse(o *models.Order) *OrderResponse {
	return &OrderResponse{
		ID:                o.ID,
		UserID:            o.UserID,
		FirstName:         o.FirstName,
		LastName:          o.LastName,
		Email:             o.Email,
		Phone:             o.Phone,
		TelegramUsername:  o.TelegramUsername,
		Comment:           o.Comment,
		SelectedGame:      o.SelectedGame,
		SelectedDesign:    o.SelectedDesign,
		Location:          o.Location,
		Status:            o.Status,
		ResultImage:       o.ResultImage,
		ResultDescription: o.ResultDescription,
		CreatedAt:         o.CreatedAt,
	}
}

func toOrderResponses(orders []*models.Order) []*OrderResponse {
	out := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

// LoginResponse is the wire shape of a resolved login. Banned accounts get
// their profile and ban details but no token.
type LoginResponse struct {
	Token  string             `json:"token,omitempty"`
	User   *UserResponse      `json:"user"`
	Banned bool               `json:"banned"`
	Ban    *BanStatusResponse `json:"ban,omitempty"`
}
