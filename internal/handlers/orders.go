package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/models"
	"github.com/elbekdev/atelier/internal/services"
	pkghttp "github.com/elbekdev/atelier/pkg/http"
)

// OrdersHandler handles order submission and the customer order list.
type OrdersHandler struct {
	orders *services.OrderService
}

func NewOrdersHandler(orders *services.OrderService) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

// SubmitOrderRequest is the order form. Email is the only optional field.
type SubmitOrderRequest struct {
	FirstName        string `json:"first_name" validate:"required,min=1,max=100"`
	LastName         string `json:"last_name" validate:"required,min=1,max=100"`
	Email            string `json:"email" validate:"omitempty,email"`
	Phone            string `json:"phone" validate:"required,uzphone"`
	TelegramUsername string `json:"telegram_username" validate:"required,min=1,max=64"`
	Comment          string `json:"comment" validate:"required,min=1,max=2000"`
	SelectedGame     string `json:"selected_game" validate:"required"`
	SelectedDesign   string `json:"selected_design" validate:"required"`
}

// Submit runs the submission pipeline for the calling session.
func (h *OrdersHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	form := &models.OrderForm{
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:            req.Phone,
		TelegramUsername: strings.TrimPrefix(strings.TrimSpace(req.TelegramUsername), "@"),
		Comment:          strings.TrimSpace(req.Comment),
		SelectedGame:     req.SelectedGame,
		SelectedDesign:   req.SelectedDesign,
	}

	order, err := h.orders.Submit(r.Context(), claims, form)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid order form")
		case errors.Is(err, models.ErrLocationNotVerified):
			pkghttp.WriteError(w, http.StatusPreconditionFailed, "location_not_verified",
				"Complete location verification before ordering")
		case errors.Is(err, models.ErrBanned):
			pkghttp.WriteForbidden(w, "Account is banned")
		case errors.Is(err, flow.ErrStaleSession):
			pkghttp.WriteConflict(w, "Session superseded by a newer login")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

// MyOrders returns the caller's orders, newest first.
func (h *OrdersHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	orders, err := h.orders.MyOrders(r.Context(), claims.UID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"orders": toOrderResponses(orders)})
}
