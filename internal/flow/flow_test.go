package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/elbekdev/atelier/internal/models"
)

func tashkent() *models.VerifiedLocation {
	return &models.VerifiedLocation{
		Country: "Uzbekistan", Region: "Tashkent", City: "Tashkent",
		Lat: 41.3, Lng: 69.2,
	}
}

func TestStore_Begin_StartsAtStart(t *testing.T) {
	s := NewStore()

	sess := s.Begin("u1", "s1")

	assert.Equal(t, StepStart, sess.Step)
	assert.Equal(t, "s1", sess.SID)
	assert.Nil(t, sess.Location)
}

func TestStore_Get_NewSIDReplacesSession(t *testing.T) {
	s := NewStore()
	s.Begin("u1", "s1")
	_ = s.Advance("u1", "s1", StepLocationVerify)

	// A fresh login carries a new sid; the old position is discarded.
	sess := s.Get("u1", "s2")
	assert.Equal(t, StepStart, sess.Step)
	assert.Equal(t, "s2", sess.SID)
}

func TestStore_Advance_LegalAndIllegalTransitions(t *testing.T) {
	s := NewStore()
	s.Begin("u1", "s1")

	assert.NoError(t, s.Advance("u1", "s1", StepLocationVerify))
	assert.ErrorIs(t, s.Advance("u1", "s1", StepShop), ErrInvalidTransition)
	assert.ErrorIs(t, s.Advance("u1", "s1", StepComplete), ErrInvalidTransition)

	// Backing out to start is always allowed from location-verify.
	assert.NoError(t, s.Advance("u1", "s1", StepStart))
}

func TestStore_Advance_StaleSIDRejected(t *testing.T) {
	s := NewStore()
	s.Begin("u1", "s2")

	err := s.Advance("u1", "s1", StepLocationVerify)

	assert.ErrorIs(t, err, ErrStaleSession)
	assert.Equal(t, StepStart, s.Get("u1", "s2").Step)
}

func TestStore_MarkVerified(t *testing.T) {
	s := NewStore()
	s.Begin("u1", "s1")

	// Verification is only valid from the location-verify step.
	err := s.MarkVerified("u1", "s1", tashkent())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_ = s.Advance("u1", "s1", StepLocationVerify)
	assert.NoError(t, s.MarkVerified("u1", "s1", tashkent()))

	sess := s.Get("u1", "s1")
	assert.Equal(t, StepShop, sess.Step)
	assert.NotNil(t, sess.Location)
	assert.Equal(t, "Tashkent", sess.Location.City)
}

func TestStore_ConsumeLocation_OneShot(t *testing.T) {
	s := NewStore()
	s.Begin("u1", "s1")
	_ = s.Advance("u1", "s1", StepLocationVerify)
	_ = s.MarkVerified("u1", "s1", tashkent())

	loc, err := s.ConsumeLocation("u1", "s1")
	assert.NoError(t, err)
	assert.Equal(t, "Uzbekistan", loc.Country)
	assert.Equal(t, StepComplete, s.Get("u1", "s1").Step)

	// The location is gone after one consume.
	_, err = s.ConsumeLocation("u1", "s1")
	assert.ErrorIs(t, err, models.ErrLocationNotVerified)
}

func TestStore_ConsumeLocation_RequiresVerification(t *testing.T) {
	s := NewStore()
	s.Begin("u1", "s1")

	_, err := s.ConsumeLocation("u1", "s1")

	assert.ErrorIs(t, err, models.ErrLocationNotVerified)
}

func TestStore_ReturningToStartDropsLocation(t *testing.T) {
	s := NewStore()
	s.Begin("u1", "s1")
	_ = s.Advance("u1", "s1", StepLocationVerify)
	_ = s.MarkVerified("u1", "s1", tashkent())

	assert.NoError(t, s.Advance("u1", "s1", StepStart))

	sess := s.Get("u1", "s1")
	assert.Nil(t, sess.Location)

	// Back through verification again before the location can be consumed.
	_, err := s.ConsumeLocation("u1", "s1")
	assert.ErrorIs(t, err, models.ErrLocationNotVerified)
}

func TestStore_MarkBanned_WinsOverEverything(t *testing.T) {
	s := NewStore()
	s.Begin("u1", "s1")
	_ = s.Advance("u1", "s1", StepLocationVerify)
	_ = s.MarkVerified("u1", "s1", tashkent())

	s.MarkBanned("u1")

	sess := s.Get("u1", "s1")
	assert.Equal(t, StepBanned, sess.Step)
	assert.Nil(t, sess.Location)

	// No mutation leaves the banned state.
	assert.ErrorIs(t, s.Advance("u1", "s1", StepStart), models.ErrBanned)
	_, err := s.ConsumeLocation("u1", "s1")
	assert.ErrorIs(t, err, models.ErrBanned)

	// A new login does not reset it either.
	assert.Equal(t, StepBanned, s.Get("u1", "s2").Step)
}

func TestStore_MarkBanned_WithoutExistingSession(t *testing.T) {
	s := NewStore()

	s.MarkBanned("u1")

	assert.Equal(t, StepBanned, s.Get("u1", "s1").Step)
}

func TestStore_Drop(t *testing.T) {
	s := NewStore()
	s.Begin("u1", "s1")
	s.MarkBanned("u1")

	s.Drop("u1")

	assert.Equal(t, StepStart, s.Get("u1", "s1").Step)
}

func TestStore_CleanupStale_KeepsBannedSessions(t *testing.T) {
	s := NewStore()
	s.Begin("u1", "s1")
	s.Begin("u2", "s2")
	s.MarkBanned("u2")

	// Age both sessions past any cutoff.
	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.UpdatedAt = time.Now().Add(-72 * time.Hour)
	}
	s.mu.Unlock()

	removed := s.CleanupStale(48 * time.Hour)

	assert.Equal(t, 1, removed)
	assert.Equal(t, StepBanned, s.Get("u2", "s2").Step)
}

func TestStore_CleanupStale_KeepsFreshSessions(t *testing.T) {
	s := NewStore()
	s.Begin("u1", "s1")

	assert.Equal(t, 0, s.CleanupStale(48*time.Hour))
}
