package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/elbekdev/atelier/internal/auth"
	"github.com/elbekdev/atelier/internal/countries"
	"github.com/elbekdev/atelier/internal/flow"
	"github.com/elbekdev/atelier/internal/geo"
	"github.com/elbekdev/atelier/internal/models"
	pkglogger "github.com/elbekdev/atelier/pkg/logger"
)

func testClaims(uid, sid string) *auth.SessionClaims {
	return &auth.SessionClaims{
		UID:  uid,
		Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sid,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func tashkentAddress() *geo.Address {
	return &geo.Address{
		Country:     "Uzbekistan",
		CountryCode: "uz",
		State:       "Tashkent Region",
		City:        "Tashkent",
	}
}

func uzbekistanResolver() *MockCountryResolver {
	return &MockCountryResolver{
		Countries: map[string]countries.Country{
			"Uzbekistan": {Name: "Uzbekistan", ISOCode: "UZ"},
		},
	}
}

func newLocationService(
	geocoder geo.ReverseGeocoder,
	resolver CountryResolver,
	security SecurityRepository,
	flows *flow.Store,
	revoker *MockSessionRevoker,
) *LocationService {
	logger := slog.Default()
	bans := NewBanService(security, flows, revoker, logger, pkglogger.NewAuditLogger(logger))
	return NewLocationService(geocoder, resolver, bans, flows, revoker, logger)
}

func TestLocationService_Verify_Success(t *testing.T) {
	flows := flow.NewStore()
	flows.Begin("u1", "s1")

	svc := newLocationService(
		&MockGeocoder{Address: tashkentAddress()},
		uzbekistanResolver(),
		&MockSecurityRepository{},
		flows,
		&MockSessionRevoker{},
	)

	result, err := svc.Verify(context.Background(), testClaims("u1", "s1"),
		models.DeclaredLocation{Country: "Uzbekistan", Region: "Tashkent", City: "Tashkent"},
		models.Coordinates{Lat: 41.3, Lng: 69.2},
	)

	assert.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "Uzbekistan", result.Location.Country)
	assert.Equal(t, 41.3, result.Location.Lat)

	sess := flows.Get("u1", "s1")
	assert.Equal(t, flow.StepShop, sess.Step)
	assert.NotNil(t, sess.Location)
}

func TestLocationService_Verify_CountryMismatch_ChargesOneStrike(t *testing.T) {
	strikes := 0
	security := &MockSecurityRepository{
		IncrementStrikeFunc: func(ctx context.Context, uid string) (*models.BanStatus, bool, error) {
			strikes++
			return &models.BanStatus{Attempts: strikes}, false, nil
		},
	}

	flows := flow.NewStore()
	flows.Begin("u1", "s1")

	svc := newLocationService(
		&MockGeocoder{Address: &geo.Address{Country: "Russia", CountryCode: "ru", State: "Moscow Oblast", City: "Moscow"}},
		uzbekistanResolver(),
		security,
		flows,
		&MockSessionRevoker{},
	)

	result, err := svc.Verify(context.Background(), testClaims("u1", "s1"),
		models.DeclaredLocation{Country: "Uzbekistan", Region: "Tashkent", City: "Tashkent"},
		models.Coordinates{Lat: 55.7, Lng: 37.6},
	)

	assert.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, MismatchCountry, result.MismatchField)
	assert.Equal(t, "Russia", result.Observed)
	assert.Equal(t, 1, result.Strikes)
	assert.False(t, result.Banned)
	assert.Equal(t, 1, strikes)
	assert.Contains(t, result.Message(), "RUSSIA")
}

func TestLocationService_Verify_RegionFuzzyContainment(t *testing.T) {
	flows := flow.NewStore()
	flows.Begin("u1", "s1")

	strikes := 0
	// "Tashkent" is contained in "Tashkent Region", so the region check
	// must pass; the deliberately different city then charges the only
	// strike.
	svc := newLocationService(
		&MockGeocoder{Address: tashkentAddress()},
		uzbekistanResolver(),
		&MockSecurityRepository{
			IncrementStrikeFunc: func(ctx context.Context, uid string) (*models.BanStatus, bool, error) {
				strikes++
				return &models.BanStatus{Attempts: strikes}, false, nil
			},
		},
		flows,
		&MockSessionRevoker{},
	)

	result, err := svc.Verify(context.Background(), testClaims("u1", "s1"),
		models.DeclaredLocation{Country: "Uzbekistan", Region: "Tashkent", City: "Toshkent Shahri"},
		models.Coordinates{Lat: 41.3, Lng: 69.2},
	)

	assert.NoError(t, err)
	assert.False(t, result.Verified)
	// Region passed; only the city check fails here ("Toshkent Shahri"
	// does not contain "Tashkent" after normalization, nor vice versa).
	assert.Equal(t, MismatchCity, result.MismatchField)
	assert.Equal(t, 1, strikes)
}

func TestLocationService_Verify_GeocoderFailure_NoStrike(t *testing.T) {
	strikeCalled := false
	security := &MockSecurityRepository{
		IncrementStrikeFunc: func(ctx context.Context, uid string) (*models.BanStatus, bool, error) {
			strikeCalled = true
			return &models.BanStatus{Attempts: 1}, false, nil
		},
	}

	flows := flow.NewStore()
	flows.Begin("u1", "s1")

	svc := newLocationService(
		&MockGeocoder{Err: errors.New("nominatim timeout")},
		uzbekistanResolver(),
		security,
		flows,
		&MockSessionRevoker{},
	)

	result, err := svc.Verify(context.Background(), testClaims("u1", "s1"),
		models.DeclaredLocation{Country: "Uzbekistan", Region: "Tashkent", City: "Tashkent"},
		models.Coordinates{Lat: 41.3, Lng: 69.2},
	)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.False(t, strikeCalled)
}

func TestLocationService_Verify_ThirdStrikeBans(t *testing.T) {
	security := &MockSecurityRepository{
		IncrementStrikeFunc: func(ctx context.Context, uid string) (*models.BanStatus, bool, error) {
			now := time.Now()
			return &models.BanStatus{
				IsBanned: true,
				Attempts: models.BanThreshold,
				Reason:   models.AutoBanReason,
				BannedAt: &now,
			}, true, nil
		},
	}

	flows := flow.NewStore()
	flows.Begin("u1", "s1")
	revoker := &MockSessionRevoker{}

	svc := newLocationService(
		&MockGeocoder{Address: &geo.Address{Country: "Kazakhstan", CountryCode: "kz", State: "Almaty Region", City: "Almaty"}},
		uzbekistanResolver(),
		security,
		flows,
		revoker,
	)

	result, err := svc.Verify(context.Background(), testClaims("u1", "s1"),
		models.DeclaredLocation{Country: "Uzbekistan", Region: "Tashkent", City: "Tashkent"},
		models.Coordinates{Lat: 43.2, Lng: 76.8},
	)

	assert.NoError(t, err)
	assert.True(t, result.Banned)
	assert.Equal(t, models.BanThreshold, result.Strikes)

	// The live session is revoked and the flow lands in the terminal state.
	assert.Contains(t, revoker.Revoked, "s1")
	sess := flows.Get("u1", "s1")
	assert.Equal(t, flow.StepBanned, sess.Step)
}

func TestLocationService_Verify_BannedUserRejected(t *testing.T) {
	security := &MockSecurityRepository{
		GetFunc: func(ctx context.Context, uid string) (*models.BanStatus, error) {
			return &models.BanStatus{IsBanned: true, Attempts: 3}, nil
		},
	}

	flows := flow.NewStore()
	svc := newLocationService(
		&MockGeocoder{Address: tashkentAddress()},
		uzbekistanResolver(),
		security,
		flows,
		&MockSessionRevoker{},
	)

	result, err := svc.Verify(context.Background(), testClaims("u1", "s1"),
		models.DeclaredLocation{Country: "Uzbekistan", Region: "Tashkent", City: "Tashkent"},
		models.Coordinates{Lat: 41.3, Lng: 69.2},
	)

	assert.ErrorIs(t, err, models.ErrBanned)
	assert.Nil(t, result)
}

func TestLocationService_Verify_MissingFields(t *testing.T) {
	svc := newLocationService(
		&MockGeocoder{Address: tashkentAddress()},
		uzbekistanResolver(),
		&MockSecurityRepository{},
		flow.NewStore(),
		&MockSessionRevoker{},
	)

	_, err := svc.Verify(context.Background(), testClaims("u1", "s1"),
		models.DeclaredLocation{Country: "Uzbekistan"},
		models.Coordinates{Lat: 41.3, Lng: 69.2},
	)

	assert.ErrorIs(t, err, models.ErrBadRequest)
}
