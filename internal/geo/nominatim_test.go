package geo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNominatimClient_Reverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "en", r.URL.Query().Get("accept-language"))
		assert.Equal(t, "atelier-test/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"address": {
				"country": "Uzbekistan",
				"country_code": "uz",
				"state": "Tashkent Region",
				"city": "Tashkent"
			}
		}`))
	}))
	defer server.Close()

	client := NewNominatimClientWithBaseURL(server.URL, "atelier-test/1.0", discardLogger())
	addr, err := client.Reverse(context.Background(), 41.3, 69.2)

	assert.NoError(t, err)
	assert.Equal(t, "Uzbekistan", addr.Country)
	assert.Equal(t, "UZ", addr.ISOCountryCode())
	assert.Equal(t, "Tashkent Region", addr.BestRegion())
	assert.Equal(t, "Tashkent", addr.BestLocality())
}

func TestNominatimClient_Reverse_ErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": "Unable to geocode"}`))
	}))
	defer server.Close()

	client := NewNominatimClientWithBaseURL(server.URL, "atelier-test/1.0", discardLogger())
	_, err := client.Reverse(context.Background(), 0, 0)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Unable to geocode")
}

func TestNominatimClient_Reverse_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewNominatimClientWithBaseURL(server.URL, "atelier-test/1.0", discardLogger())
	_, err := client.Reverse(context.Background(), 41.3, 69.2)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNominatimClient_Reverse_MissingAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewNominatimClientWithBaseURL(server.URL, "atelier-test/1.0", discardLogger())
	_, err := client.Reverse(context.Background(), 41.3, 69.2)

	assert.Error(t, err)
}

func TestNominatimClient_Reverse_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"address": {"country": "Uzbekistan"}}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewNominatimClientWithBaseURL(server.URL, "atelier-test/1.0", discardLogger())
	_, err := client.Reverse(ctx, 41.3, 69.2)

	assert.Error(t, err)
}

func TestAddress_FallbackChains(t *testing.T) {
	addr := &Address{Town: "Chirchiq", Province: "Tashkent Province"}
	assert.Equal(t, "Tashkent Province", addr.BestRegion())
	assert.Equal(t, "Chirchiq", addr.BestLocality())

	empty := &Address{}
	assert.Equal(t, "", empty.BestRegion())
	assert.Equal(t, "", empty.BestLocality())
	assert.Equal(t, "", empty.ISOCountryCode())
}
