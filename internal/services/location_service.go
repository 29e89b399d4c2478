package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/countries"
	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/geo"
	"github.com/elbekdev/atelier/internal/models"
)

// CountryResolver resolves a declared country name against the reference
// list, yielding its ISO code for the primary country check.
type CountryResolver interface {
	FindByName(ctx context.Context, name string) (countries.Country, bool)
}

// Mismatch fields reported to the user on a failed check.
const (
	MismatchCountry = "country"
	MismatchRegion  = "region"
	MismatchCity    = "city"
)

// VerifyResult is the outcome of one verification attempt. Exactly one of
// three shapes: verified (Location set), mismatch (MismatchField/Observed
// set, Strikes updated), or banned (Banned true after the final strike).
type VerifyResult struct {
	Verified      bool
	Location      *models.VerifiedLocation
	MismatchField string
	Observed      string
	Strikes       int
	Banned        bool
}

// Message renders the human-readable mismatch line, naming the observed
// value so the user understands what the system detected.
func (r *VerifyResult) Message() string {
	if r.Verified {
		return ""
	}
	observed := strings.ToUpper(r.Observed)
	if observed == "" {
		observed = "UNKNOWN"
	}
	switch r.MismatchField {
	case MismatchCountry:
		return fmt.Sprintf("Location mismatch. DETECTED: %s", observed)
	case MismatchRegion:
		return fmt.Sprintf("Region mismatch. DETECTED: %s", observed)
	case MismatchCity:
		return fmt.Sprintf("City mismatch. DETECTED: %s", observed)
	}
	return "Verification failed"
}

// LocationService runs the declared-vs-observed location check and drives
// the strike counter on mismatches.
//
// The error contract matters here: an error return is always an
// infrastructure failure (geocoder down, store unreachable) and charges no
// strike; only a substantive country/region/city mismatch — a nil-error
// result with Verified=false — progresses the ban ledger.
type LocationService struct {
	geocoder    geo.ReverseGeocoder
	countries   CountryResolver
	bans        *BanService
	flows       *flow.Store
	revocations SessionRevoker
	logger      *slog.Logger
}

func NewLocationService(
	geocoder geo.ReverseGeocoder,
	countryResolver CountryResolver,
	bans *BanService,
	flows *flow.Store,
	revocations SessionRevoker,
	logger *slog.Logger,
) *LocationService {
	return &LocationService{
		geocoder:    geocoder,
		countries:   countryResolver,
		bans:        bans,
		flows:       flows,
		revocations: revocations,
		logger:      logger,
	}
}

// Verify checks a declared location against the reverse-geocoded device
// coordinates. All three fields are required; the caller has already
// acquired GPS on-device (high accuracy, bounded timeout), so a missing or
// bogus fix never reaches this point.
func (s *LocationService) Verify(
	ctx context.Context,
	claims *auth.SessionClaims,
	declared models.DeclaredLocation,
	coords models.Coordinates,
) (*VerifyResult, error) {
	if declared.Country == "" || declared.Region == "" || declared.City == "" {
		return nil, models.ErrBadRequest
	}

	// Ban checkpoint: a banned user gets the terminal view, not a retry.
	status, err := s.bans.GetStatus(ctx, claims.UID)
	if err != nil {
		return nil, err
	}
	if status.IsBanned {
		s.flows.MarkBanned(claims.UID)
		return nil, models.ErrBanned
	}

	sess := s.flows.Get(claims.UID, claims.ID)
	if sess.Step == flow.StepStart {
		if err := s.flows.Advance(claims.UID, claims.ID, flow.StepLocationVerify); err != nil {
			return nil, err
		}
	}

	addr, err := s.geocoder.Reverse(ctx, coords.Lat, coords.Lng)
	if err != nil {
		// Third-party outage: retryable, no strike. The ban mechanism must
		// never penalize a user for infrastructure failure.
		s.logger.Warn("reverse geocoding failed", slog.String("uid", claims.UID), slog.Any("error", err))
		return nil, fmt.Errorf("reverse geocoding unavailable: %w", err)
	}

	// Level 1: country, by ISO code when possible, by normalized name
	// equality otherwise.
	countryMatch := false
	if ref, ok := s.countries.FindByName(ctx, declared.Country); ok && addr.ISOCountryCode() != "" {
		countryMatch = ref.ISOCode == addr.ISOCountryCode()
	}
	if !countryMatch && addr.Country != "" {
		countryMatch = geo.EqualNormalized(addr.Country, declared.Country)
	}
	if !countryMatch {
		observed := addr.Country
		if observed == "" {
			observed = addr.ISOCountryCode()
		}
		return s.fail(ctx, claims, MismatchCountry, observed)
	}

	// Level 2: region, fuzzy containment.
	if !geo.Matches(declared.Region, addr.BestRegion()) {
		return s.fail(ctx, claims, MismatchRegion, addr.BestRegion())
	}

	// Level 3: city, fuzzy containment against the best locality field.
	if !geo.Matches(declared.City, addr.BestLocality()) {
		return s.fail(ctx, claims, MismatchCity, addr.BestLocality())
	}

	loc := &models.VerifiedLocation{
		Country: declared.Country,
		Region:  declared.Region,
		City:    declared.City,
		Lat:     coords.Lat,
		Lng:     coords.Lng,
	}

	if err := s.flows.MarkVerified(claims.UID, claims.ID, loc); err != nil {
		if errors.Is(err, flow.ErrStaleSession) || errors.Is(err, models.ErrBanned) {
			return nil, err
		}
		return nil, models.ErrInternalServer
	}

	s.logger.Info("location verified", slog.String("uid", claims.UID))
	return &VerifyResult{Verified: true, Location: loc}, nil
}

// fail charges one strike for a substantive mismatch. Crossing the
// threshold revokes the live session and flips the flow to banned.
func (s *LocationService) fail(ctx context.Context, claims *auth.SessionClaims, field, observed string) (*VerifyResult, error) {
	status, justBanned, err := s.bans.IncrementStrike(ctx, claims.UID)
	if err != nil {
		// The strike never landed; surface it as retryable rather than
		// reporting a mismatch the ledger knows nothing about.
		return nil, err
	}

	result := &VerifyResult{
		MismatchField: field,
		Observed:      observed,
		Strikes:       status.Attempts,
	}

	if justBanned {
		result.Banned = true
		if err := s.revocations.Revoke(ctx, claims.ID, claims.UID, claims.ExpiresAt.Time, models.AutoBanReason); err != nil {
			s.logger.Error("failed to revoke session after auto-ban", slog.String("uid", claims.UID), slog.Any("error", err))
		}
	}

	s.logger.Info("location verification failed",
		slog.String("uid", claims.UID),
		slog.String("field", field),
		slog.Int("strikes", status.Attempts),
		slog.Bool("banned", result.Banned),
	)

	return result, nil
}
