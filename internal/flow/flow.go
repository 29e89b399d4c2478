package flow

import (
	"errors"
	"sync"
	"time"

	"github.com/elbekdev/atelier/internal/models"
)

// Step is a position in the order-intake flow. The sequence is linear:
// start → location-verify → shop → form → complete, with banned as a
// terminal state that preempts everything.
type Step string

const (
	StepStart          Step = "start"
	StepLocationVerify Step = "location-verify"
	StepShop           Step = "shop"
	StepOrderForm      Step = "form"
	StepComplete       Step = "complete"
	StepBanned         Step = "banned"
)

var (
	// ErrStaleSession means a mutation arrived for a session id that has
	// since been replaced by a newer login. The late update is discarded
	// instead of clobbering the current session's state.
	ErrStaleSession = errors.New("flow session is stale")

	// ErrInvalidTransition means the requested step cannot follow the
	// current one.
	ErrInvalidTransition = errors.New("invalid flow transition")
)

// transitions lists, for each step, the steps that may follow it through
// Advance. Banned has no outgoing edges; it is entered only via MarkBanned.
var transitions = map[Step][]Step{
	StepStart:          {StepLocationVerify},
	StepLocationVerify: {StepStart},
	StepShop:           {StepOrderForm, StepLocationVerify, StepStart},
	StepOrderForm:      {StepShop, StepStart},
	StepComplete:       {StepStart},
}

// Session is one user's position in the flow plus the ephemeral verified
// location the order step consumes.
type Session struct {
	UID       string
	SID       string // session token id; mutations with an older SID are stale
	Step      Step
	Location  *models.VerifiedLocation
	UpdatedAt time.Time
}

// Store keeps flow sessions in memory, one per user. The storefront is
// single-session per user: a new login replaces the previous session
// wholesale.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Begin starts (or restarts) a user's flow for the given session id.
func (s *Store) Begin(uid, sid string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		UID:       uid,
		SID:       sid,
		Step:      StepStart,
		UpdatedAt: time.Now(),
	}
	s.sessions[uid] = sess
	return sess
}

// Get returns the user's current session, or a fresh one at StepStart if
// none exists for this sid yet. A banned session is returned as is; a new
// sid never resets it.
func (s *Store) Get(uid, sid string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[uid]
	s.mu.RUnlock()

	if ok && sess.Step == StepBanned {
		return sess
	}
	if !ok || sess.SID != sid {
		return s.Begin(uid, sid)
	}
	return sess
}

// current returns the live session for a mutation, enforcing the stale
// guard. Caller holds the lock.
func (s *Store) current(uid, sid string) (*Session, error) {
	sess, ok := s.sessions[uid]
	if !ok {
		sess = &Session{UID: uid, SID: sid, Step: StepStart}
		s.sessions[uid] = sess
	}
	if sess.SID != sid {
		return nil, ErrStaleSession
	}
	if sess.Step == StepBanned {
		return nil, models.ErrBanned
	}
	return sess, nil
}

// Advance moves the session to the requested step if the transition is
// legal from the current one.
func (s *Store) Advance(uid, sid string, to Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.current(uid, sid)
	if err != nil {
		return err
	}

	for _, next := range transitions[sess.Step] {
		if next == to {
			sess.Step = to
			if to == StepStart {
				sess.Location = nil
			}
			sess.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrInvalidTransition
}

// MarkVerified records a successful location verification: the session
// holds the ephemeral VerifiedLocation and moves to the shop.
func (s *Store) MarkVerified(uid, sid string, loc *models.VerifiedLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.current(uid, sid)
	if err != nil {
		return err
	}
	if sess.Step != StepLocationVerify {
		return ErrInvalidTransition
	}

	sess.Step = StepShop
	sess.Location = loc
	sess.UpdatedAt = time.Now()
	return nil
}

// ConsumeLocation hands the verified location to the order pipeline and
// completes the flow. It fails if the session never reached verification.
func (s *Store) ConsumeLocation(uid, sid string) (*models.VerifiedLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.current(uid, sid)
	if err != nil {
		return nil, err
	}
	if (sess.Step != StepShop && sess.Step != StepOrderForm) || sess.Location == nil {
		return nil, models.ErrLocationNotVerified
	}

	loc := sess.Location
	sess.Location = nil
	sess.Step = StepComplete
	sess.UpdatedAt = time.Now()
	return loc, nil
}

// MarkBanned forces the session into the terminal banned state. Unlike
// other mutations this ignores the stale guard: a ban always wins.
func (s *Store) MarkBanned(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[uid]
	if !ok {
		sess = &Session{UID: uid}
		s.sessions[uid] = sess
	}
	sess.Step = StepBanned
	sess.Location = nil
	sess.UpdatedAt = time.Now()
}

// Drop removes a user's session entirely (unban, logout).
func (s *Store) Drop(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, uid)
}

// CleanupStale removes sessions idle longer than maxAge and returns how
// many were dropped. Banned sessions are kept; the ban screen must survive
// idleness.
func (s *Store) CleanupStale(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for uid, sess := range s.sessions {
		if sess.Step != StepBanned && sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, uid)
			removed++
		}
	}
	return removed
}
