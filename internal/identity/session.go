// Package identity tracks the authenticated principal of a client session and
// notifies subscribers when it changes.
package identity

import (
	"sync"

	"expenses/internal/log"
)

const (
	// StatusPending means the provider has not resolved its initial state yet.
	StatusPending Status = iota
	StatusSignedIn
	StatusSignedOut
)

type (
	Status int

	Principal struct {
		UserID        string
		Email         string
		DisplayName   string
		EmailVerified bool
	}

	// State is what subscribers receive. Principal is nil unless Status is StatusSignedIn.
	State struct {
		Status    Status
		Principal *Principal
	}
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSignedIn:
		return "signed_in"
	case StatusSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Name returns the display name, "Anonymous" when the provider has none.
func (p Principal) Name() string {
	if p.DisplayName == "" {
		return "Anonymous"
	}
	return p.DisplayName
}

// UserID returns the signed-in principal's id or "".
func (s State) UserID() string {
	if s.Status != StatusSignedIn || s.Principal == nil {
		return ""
	}
	return s.Principal.UserID
}

// Session holds the current principal. It starts pending; the composition
// root resolves it through SignIn, SignOut, Fail or SignInWithToken.
//
// Subscribers are called synchronously and in change order. A subscriber must
// not change the session from inside its callback.
type Session struct {
	notifyMu sync.Mutex
	mu       sync.Mutex
	state    State
	subs     map[uint64]func(State)
	nextID   uint64
	logger   *log.Logger
}

func NewSession(logger *log.Logger) *Session {
	return &Session{
		state:  State{Status: StatusPending},
		subs:   map[uint64]func(State){},
		logger: log.OrDiscard(logger).WithComponent(log.ComponentIdentity),
	}
}

// CurrentUserID returns the signed-in principal's id. ok is false while the
// session is pending or signed out.
func (s *Session) CurrentUserID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.state.UserID()
	return id, id != ""
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for identity changes. When the session is already
// resolved fn is called once immediately with the current state; while it is
// pending nothing is delivered until the provider resolves.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	current := s.state
	s.mu.Unlock()

	if current.Status != StatusPending {
		fn(current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) SignIn(p Principal) {
	if p.UserID == "" {
		s.SignOut()
		return
	}
	s.set(State{Status: StatusSignedIn, Principal: &p})
}

func (s *Session) SignOut() {
	s.set(State{Status: StatusSignedOut})
}

// Fail records a provider failure. At this boundary it is reported as signed out.
func (s *Session) Fail(err error) {
	s.logger.Warn("Identity provider failed, treating session as signed out", log.FieldError, err)
	s.SignOut()
}

// set installs next and notifies when the principal or status changed. A
// refreshed token for the same principal updates the profile silently.
func (s *Session) set(next State) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.state
	s.state = next
	changed := prev.Status != next.Status || prev.UserID() != next.UserID()
	var subs []func(State)
	if changed {
		subs = make([]func(State), 0, len(s.subs))
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	s.logger.Info("Identity changed",
		log.FieldStatus, next.Status.String(),
		log.FieldUserID, next.UserID())
	for _, fn := range subs {
		fn(next)
	}
}
