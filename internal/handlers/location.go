package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/models"
	"github.com/elbekdev/atelier/internal/services"
	pkghttp "github.com/elbekdev/atelier/pkg/http"
)

// LocationHandler exposes the declared-vs-observed verification check.
type LocationHandler struct {
	location *services.LocationService
}

func NewLocationHandler(location *services.LocationService) *LocationHandler {
	return &LocationHandler{location: location}
}

// VerifyLocationRequest carries the declared location and the device fix.
type VerifyLocationRequest struct {
	Country string  `json:"country" validate:"required"`
	Region  string  `json:"region" validate:"required"`
	City    string  `json:"city" validate:"required"`
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
}

// VerifyLocationResponse reports one attempt's outcome.
type VerifyLocationResponse struct {
	Verified bool                     `json:"verified"`
	Location *models.VerifiedLocation `json:"location,omitempty"`
	Message  string                   `json:"message,omitempty"`
	Strikes  int                      `json:"strikes,omitempty"`
	Banned   bool                     `json:"banned,omitempty"`
}

// Verify runs the three-level location check for the calling session.
func (h *LocationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req VerifyLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	result, err := h.location.Verify(r.Context(), claims,
		models.DeclaredLocation{Country: req.Country, Region: req.Region, City: req.City},
		models.Coordinates{Lat: req.Lat, Lng: req.Lng},
	)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBanned):
			pkghttp.WriteForbidden(w, "Account is banned")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Country, region and city are required")
		case errors.Is(err, flow.ErrStaleSession):
			pkghttp.WriteConflict(w, "Session superseded by a newer login")
		default:
			// Geocoder or store outage. The client may retry without
			// penalty.
			pkghttp.WriteServiceUnavailable(w, "Verification temporarily unavailable, please retry")
		}
		return
	}

	resp := VerifyLocationResponse{
		Verified: result.Verified,
		Location: result.Location,
		Strikes:  result.Strikes,
		Banned:   result.Banned,
	}
	if !result.Verified {
		resp.Message = result.Message()
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
