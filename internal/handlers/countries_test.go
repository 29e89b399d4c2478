package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elbekdev/atelier/internal/countries"
)

func newCountriesHandler(t *testing.T) *CountriesHandler {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"name": {"common": "Uzbekistan"}, "cca2": "UZ", "flags": {"svg": "https://flags.example/uz.svg"}},
			{"name": {"common": "Kazakhstan"}, "cca2": "KZ", "flags": {"svg": "https://flags.example/kz.svg"}},
			{"name": {"common": "Russia"}, "cca2": "RU", "flags": {"svg": "https://flags.example/ru.svg"}}
		]`))
	}))
	t.Cleanup(upstream.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCountriesHandler(countries.NewServiceWithURL(upstream.URL, logger))
}

func decodeCountries(t *testing.T, rec *httptest.ResponseRecorder) []CountryResponse {
	t.Helper()

	var body struct {
		Countries []CountryResponse `json:"countries"`
	}
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Countries
}

func TestCountriesHandler_List(t *testing.T) {
	h := newCountriesHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/countries", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	list := decodeCountries(t, rec)
	assert.Len(t, list, 3)
	assert.Equal(t, "Kazakhstan", list[0].Name)
	assert.Equal(t, "UZ", list[2].ISOCode)
	assert.Equal(t, "https://flags.example/uz.svg", list[2].FlagURL)
}

func TestCountriesHandler_List_Search(t *testing.T) {
	h := newCountriesHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/countries?q=stan", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	list := decodeCountries(t, rec)
	assert.Len(t, list, 2)
}

func TestCountriesHandler_List_NoMatches(t *testing.T) {
	h := newCountriesHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/countries?q=atlantis", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCountries(t, rec))
}
