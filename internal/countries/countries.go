package countries

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultRestCountriesURL = "https://restcountries.com/v3.1/all?fields=name,cca2,flags"

// Country is one entry of the reference list backing the country selector
// and the ISO-code-based country check.
type Country struct {
	Name     string `json:"name"`
	ISOCode  string `json:"iso_code"`
	FlagURL  string `json:"flag_url"`
}

// fallbackCountries is served when the reference fetch fails. Small on
// purpose: just enough for the storefront's primary audience.
var fallbackCountries = []Country{
	{Name: "Uzbekistan", ISOCode: "UZ"},
	{Name: "Russia", ISOCode: "RU"},
	{Name: "United States", ISOCode: "US"},
}

// Service exposes the country reference list. The upstream list is fetched
// once and cached for the process lifetime; a fetch failure downgrades to
// the fallback list without surfacing an error to callers.
type Service struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger

	mu      sync.Mutex
	cached  []Country
	fetched bool
}

func NewService(logger *slog.Logger) *Service {
	return &Service{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		url:        defaultRestCountriesURL,
		logger:     logger,
	}
}

// NewServiceWithURL is used by tests to point at a local server.
func NewServiceWithURL(url string, logger *slog.Logger) *Service {
	s := NewService(logger)
	s.url = url
	return s
}

// restcountries v3.1 wire shape
type restCountry struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	CCA2  string `json:"cca2"`
	Flags struct {
		SVG string `json:"svg"`
	} `json:"flags"`
}

// List returns the full reference list sorted by name. The first call
// fetches upstream; later calls reuse the cached result, including the
// fallback if the fetch failed.
func (s *Service) List(ctx context.Context) []Country {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetched {
		return s.cached
	}

	list, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("country reference fetch failed, using fallback list", slog.Any("error", err))
		list = fallbackCountries
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	s.cached = list
	s.fetched = true
	return s.cached
}

// FindByName looks up a country by its exact display name.
func (s *Service) FindByName(ctx context.Context, name string) (Country, bool) {
	for _, c := range s.List(ctx) {
		if c.Name == name {
			return c, true
		}
	}
	return Country{}, false
}

// Search returns countries whose name contains q, case-insensitively.
func (s *Service) Search(ctx context.Context, q string) []Country {
	q = strings.ToLower(q)
	var out []Country
	for _, c := range s.List(ctx) {
		if strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Service) fetch(ctx context.Context) ([]Country, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create countries request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("countries request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("countries fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read countries response: %w", err)
	}

	var raw []restCountry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse countries response: %w", err)
	}

	list := make([]Country, 0, len(raw))
	for _, rc := range raw {
		if rc.Name.Common == "" || rc.CCA2 == "" {
			continue
		}
		list = append(list, Country{
			Name:    rc.Name.Common,
			ISOCode: strings.ToUpper(rc.CCA2),
			FlagURL: rc.Flags.SVG,
		})
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("countries response was empty")
	}

	return list, nil
}
