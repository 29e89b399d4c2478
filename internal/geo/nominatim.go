package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultNominatimBaseURL = "https://nominatim.openstreetmap.org"

// Address is the administrative breakdown returned by the reverse geocoder.
// Which locality fields are populated varies wildly by area, hence the
// fallback chains in BestRegion/BestLocality.
type Address struct {
	Country       string `json:"country"`
	CountryCode   string `json:"country_code"`
	State         string `json:"state"`
	Region        string `json:"region"`
	Province      string `json:"province"`
	StateDistrict string `json:"state_district"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	County        string `json:"county"`
	District      string `json:"district"`
	Suburb        string `json:"suburb"`
}

// BestRegion returns the first non-empty state-level field.
func (a *Address) BestRegion() string {
	for _, v := range []string{a.State, a.Region, a.Province, a.StateDistrict} {
		if v != "" {
			return v
		}
	}
	return ""
}

// BestLocality returns the first non-empty city-level field, falling back
// through town, village, county, district and suburb.
func (a *Address) BestLocality() string {
	for _, v := range []string{a.City, a.Town, a.Village, a.County, a.District, a.Suburb} {
		if v != "" {
			return v
		}
	}
	return ""
}

// ISOCountryCode returns the upper-cased two-letter code, or "" if the
// geocoder did not provide one.
func (a *Address) ISOCountryCode() string {
	return strings.ToUpper(a.CountryCode)
}

// ReverseGeocoder resolves coordinates to an administrative address.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (*Address, error)
}

// NominatimClient reverse-geocodes through the OpenStreetMap Nominatim API.
// One request per verification attempt, no retry policy of its own.
type NominatimClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *slog.Logger
}

// NewNominatimClient creates a client against the public Nominatim endpoint.
// Nominatim's usage policy requires an identifying User-Agent.
func NewNominatimClient(userAgent string, logger *slog.Logger) *NominatimClient {
	return &NominatimClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultNominatimBaseURL,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// NewNominatimClientWithBaseURL is used by tests to point at a local server.
func NewNominatimClientWithBaseURL(baseURL, userAgent string, logger *slog.Logger) *NominatimClient {
	c := NewNominatimClient(userAgent, logger)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type reverseResponse struct {
	Address *Address `json:"address"`
	Error   string   `json:"error"`
}

// Reverse resolves (lat, lng) to an Address. Every failure mode here is an
// infrastructure error: callers must treat it as retryable and must not
// charge a verification strike for it.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lng float64) (*Address, error) {
	params := url.Values{
		"format":          {"json"},
		"lat":             {fmt.Sprintf("%f", lat)},
		"lon":             {fmt.Sprintf("%f", lng)},
		"accept-language": {"en"},
	}

	endpoint := fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create reverse geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read reverse geocode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reverse geocode returned status %d", resp.StatusCode)
	}

	var parsed reverseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse reverse geocode response: %w", err)
	}

	if parsed.Error != "" {
		return nil, fmt.Errorf("reverse geocode error: %s", parsed.Error)
	}
	if parsed.Address == nil {
		return nil, fmt.Errorf("reverse geocode response has no address")
	}

	c.logger.Debug("reverse geocode resolved",
		slog.String("country", parsed.Address.Country),
		slog.String("region", parsed.Address.BestRegion()),
		slog.String("locality", parsed.Address.BestLocality()),
	)

	return parsed.Address, nil
}
