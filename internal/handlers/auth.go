package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/models"
	"github.com/elbekdev/atelier/internal/services"
	pkghttp "github.com/elbekdev/atelier/pkg/http"
)

// AuthHandler handles login resolution, session introspection and logout.
type AuthHandler struct {
	identity *services.IdentityService
}

func NewAuthHandler(identity *services.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

// GoogleLoginRequest carries the externally resolved OAuth identity.
type GoogleLoginRequest struct {
	SubjectID   string `json:"subject_id" validate:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email" validate:"omitempty,email"`
	PhotoURL    string `json:"photo_url"`
}

// OperatorLoginRequest is the operator dashboard login.
type OperatorLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code"`
}

func toLoginResponse(result *services.LoginResult) *LoginResponse {
	resp := &LoginResponse{
		Token:  result.Token,
		User:   toUserResponse(result.User),
		Banned: result.Banned,
	}
	if result.Banned {
		resp.Ban = toBanStatusResponse(result.Ban)
	}
	return resp
}

// GoogleLogin resolves a Google OAuth identity into a session.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	result, err := h.identity.ResolveGoogleLogin(r.Context(), services.GoogleProfile{
		SubjectID:   req.SubjectID,
		DisplayName: req.DisplayName,
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Incomplete identity")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toLoginResponse(result))
}

// OperatorLogin authenticates the operator account with password and,
// once enrolled, a TOTP code.
func (h *AuthHandler) OperatorLogin(w http.ResponseWriter, r *http.Request) {
	var req OperatorLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	result, err := h.identity.OperatorLogin(r.Context(), email, req.Password, req.TOTPCode)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		} else {
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toLoginResponse(result))
}

// Me returns the caller's profile with ban state.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, ban, err := h.identity.GetUser(r.Context(), claims.UID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
		} else {
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"user": toUserResponse(user),
		"ban":  toBanStatusResponse(ban),
	})
}

// Logout revokes the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.identity.Logout(r.Context(), claims); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EnrollTOTP generates a TOTP secret for the operator and returns the
// provisioning QR code.
func (h *AuthHandler) EnrollTOTP(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	qr, err := h.identity.EnrollTOTP(r.Context(), claims.UID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Operator access required")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"qr_code": qr})
}
