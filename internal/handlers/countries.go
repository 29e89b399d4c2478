package handlers

import (
	"net/http"
	"strings"

	"github.com/elbekdev/atelier/internal/countries"
	pkghttp "github.com/elbekdev/atelier/pkg/http"
)

// CountriesHandler serves the reference list behind the country selector.
type CountriesHandler struct {
	countries *countries.Service
}

func NewCountriesHandler(countries *countries.Service) *CountriesHandler {
	return &CountriesHandler{countries: countries}
}

// CountryResponse is one selector entry.
type CountryResponse struct {
	Name    string `json:"name"`
	ISOCode string `json:"iso_code"`
	FlagURL string `json:"flag_url,omitempty"`
}

// List returns the full country list, or the subset matching ?q= when the
// selector is filtering.
func (h *CountriesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	var list []countries.Country
	if q != "" {
		list = h.countries.Search(r.Context(), q)
	} else {
		list = h.countries.List(r.Context())
	}

	resp := make([]CountryResponse, 0, len(list))
	for _, c := range list {
		resp = append(resp, CountryResponse{
			Name:    c.Name,
			ISOCode: c.ISOCode,
			FlagURL: c.FlagURL,
		})
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"countries": resp})
}
