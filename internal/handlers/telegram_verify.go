package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/models"
	"github.com/elbekdev/atelier/internal/services"
	"github.com/elbekdev/atelier/internal/telegram"
	pkghttp "github.com/elbekdev/atelier/pkg/http"
)

// TelegramVerifyHandler drives the OTP handshake. The same handler backs
// two route sets: the public login flow and the authenticated linking
// flow; the acting user comes from the session when one is present.
type TelegramVerifyHandler struct {
	verify *services.TelegramVerifyService
}

func NewTelegramVerifyHandler(verify *services.TelegramVerifyService) *TelegramVerifyHandler {
	return &TelegramVerifyHandler{verify: verify}
}

// StartVerificationRequest opens an OTP session for a Telegram ID.
type StartVerificationRequest struct {
	TelegramID string `json:"telegram_id" validate:"required,numeric"`
}

// SessionRequest references an open OTP session.
type SessionRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
}

// ConfirmRequest submits the received code for a session.
type ConfirmRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
	Code      string `json:"code" validate:"required,len=6,numeric"`
}

// RegisterRequest completes registration for a confirmed session.
type RegisterRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
	Nickname  string `json:"nickname" validate:"required,min=1,max=64"`
}

// Start opens a verification session and sends the code.
func (h *TelegramVerifyHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	// Linking flow when a session is present, login flow otherwise.
	actingUID := ""
	if claims := auth.SessionFromContext(r.Context()); claims != nil {
		actingUID = claims.UID
	}

	sessionID, err := h.verify.Start(r.Context(), actingUID, req.TelegramID)
	if err != nil {
		h.writeDeliveryError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
}

// Resend redelivers the session's code.
func (h *TelegramVerifyHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	if err := h.verify.Resend(r.Context(), req.SessionID); err != nil {
		if errors.Is(err, models.ErrNoPendingCode) {
			pkghttp.WriteNotFound(w, "No pending verification")
			return
		}
		h.writeDeliveryError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Confirm checks the submitted code and reports what comes next.
func (h *TelegramVerifyHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	result, err := h.verify.Confirm(r.Context(), req.SessionID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoPendingCode):
			pkghttp.WriteNotFound(w, "No pending verification")
		case errors.Is(err, models.ErrCodeMismatch):
			pkghttp.WriteError(w, http.StatusUnprocessableEntity, "code_mismatch", "Wrong verification code")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	resp := map[string]any{
		"linked":         result.Linked,
		"needs_nickname": result.NeedsNickname,
	}
	if result.Login != nil {
		resp["login"] = toLoginResponse(result.Login)
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Register creates a Telegram-only account for a confirmed session.
func (h *TelegramVerifyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	login, err := h.verify.Register(r.Context(), req.SessionID, req.Nickname)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoPendingCode):
			pkghttp.WriteNotFound(w, "No confirmed verification")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Nickname is required")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toLoginResponse(login))
}

// writeDeliveryError distinguishes "user never started the bot" from a
// generic outage, attaching the bot link so the UI can point there.
func (h *TelegramVerifyHandler) writeDeliveryError(w http.ResponseWriter, err error) {
	if errors.Is(err, telegram.ErrBotNotStarted) {
		pkghttp.WriteErrorWithDetails(w, http.StatusConflict, "bot_not_started",
			"Start the bot first, then try again", h.verify.BotLink())
		return
	}
	if errors.Is(err, models.ErrBadRequest) {
		pkghttp.WriteBadRequest(w, "Invalid Telegram ID")
		return
	}
	pkghttp.WriteInternalError(w, "Failed to send verification code")
}
