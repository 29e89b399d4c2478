package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/models"
	"github.com/elbekdev/atelier/internal/services"
	pkghttp "github.com/elbekdev/atelier/pkg/http"
)

// AdminHandler backs the operator dashboard. Every route here sits behind
// the operator-role middleware.
type AdminHandler struct {
	admin *services.AdminService
	bans  *services.BanService
}

func NewAdminHandler(admin *services.AdminService, bans *services.BanService) *AdminHandler {
	return &AdminHandler{admin: admin, bans: bans}
}

// UpdateStatusRequest moves an order to a new status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=sent processing reviewing busy completed"`
}

// DeliverResultRequest completes an order with its result.
type DeliverResultRequest struct {
	ResultImage       string `json:"result_image" validate:"required,url"`
	ResultDescription string `json:"result_description" validate:"required,min=1,max=2000"`
}

// BanUserRequest bans a user with an operator-supplied reason.
type BanUserRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// FullUserResponse is the admin roster row: profile joined with ban state.
type FullUserResponse struct {
	UID      string             `json:"uid"`
	Profile  *UserResponse      `json:"profile"`
	Security *BanStatusResponse `json:"security"`
}

// ListOrders returns the recent order window across all users.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.admin.ListOrders(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"orders": toOrderResponses(orders)})
}

// ListUsers returns every user joined with their ban state.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := make([]*FullUserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, &FullUserResponse{
			UID:      u.UID,
			Profile:  toUserResponse(u.Profile),
			Security: toBanStatusResponse(u.Security),
		})
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"users": resp})
}

// UpdateStatus moves an order to any of the five statuses.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	claims := auth.SessionFromContext(r.Context())
	if err := h.admin.UpdateStatus(r.Context(), claims.UID, orderID, req.Status); err != nil {
		h.writeAdminError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeliverResult completes an order with its result image and description.
func (h *AdminHandler) DeliverResult(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req DeliverResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	claims := auth.SessionFromContext(r.Context())
	if err := h.admin.DeliverResult(r.Context(), claims.UID, orderID, req.ResultImage, req.ResultDescription); err != nil {
		h.writeAdminError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BanUser bans a user with the given reason.
func (h *AdminHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	var req BanUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	claims := auth.SessionFromContext(r.Context())
	if err := h.bans.Ban(r.Context(), claims.UID, uid, req.Reason); err != nil {
		h.writeAdminError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnbanUser resets a user's ban state and strikes.
func (h *AdminHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	claims := auth.SessionFromContext(r.Context())
	if err := h.bans.Unban(r.Context(), claims.UID, uid); err != nil {
		h.writeAdminError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
