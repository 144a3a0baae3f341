// Package store keeps the client-side replica of the signed-in user's expenses
// collection and exposes its loading and error status to subscribers.
package store

import (
	"sync"

	"expenses/internal/core"
	"expenses/internal/identity"
	"expenses/internal/log"
	"expenses/internal/remote"
)

// Collection is the remote collection name the store reads and writes.
const Collection = "expenses"

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

type (
	Status int

	// State is the observable state. Items is the unfiltered list ordered as the
	// last fetch returned it; FilteredItems is what the category view shows.
	State struct {
		Items         []core.Expense
		FilteredItems []core.Expense
		Status        Status
		LastError     *Error
	}

	// Session is the identity the store is bound to.
	Session interface {
		CurrentUserID() (string, bool)
		Subscribe(fn func(identity.State)) (unsubscribe func())
	}

	// Filter selects the category view. An empty or "all" category means no
	// category predicate.
	Filter struct {
		Category core.Category
		UserID   string
	}
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Store is safe for concurrent use. Operations may overlap; the shared status
// and error reflect whichever operation completed last.
//
// A change of signed-in user empties the state. Operations issued before the
// change still complete against the remote collection but do not commit their
// results into the new user's state.
//
// Subscribers are called synchronously after every state change, in order, and
// must not call store operations from inside the callback.
type Store struct {
	notifyMu sync.Mutex
	mu       sync.Mutex
	state    State
	epoch    uint64
	user     string
	subs     map[uint64]func(State)
	nextSub  uint64

	session    Session
	remote     remote.Collection
	collection string
	logger     *log.Logger

	unsubscribe func()
}

// New binds a store to session and the remote collection client. Close
// releases the session subscription.
func New(session Session, coll remote.Collection, logger *log.Logger) *Store {
	s := &Store{
		state:      State{Status: StatusIdle},
		subs:       map[uint64]func(State){},
		session:    session,
		remote:     coll,
		collection: Collection,
		logger:     log.OrDiscard(logger).WithComponent(log.ComponentStore),
	}
	s.unsubscribe = session.Subscribe(s.identityChanged)
	return s
}

// WithCollection points the store at a different collection name. It must be
// called before the first operation.
func (s *Store) WithCollection(name string) *Store {
	s.collection = name
	return s
}

func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn for state changes and delivers the current state to it
// immediately.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	current := s.state.clone()
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) identityChanged(st identity.State) {
	if st.Status == identity.StatusPending {
		return
	}
	user := st.UserID()
	reset := false
	s.mutate(func(state *State) bool {
		if user == s.user {
			return false
		}
		s.user = user
		s.epoch++
		*state = State{Status: StatusIdle}
		reset = true
		return true
	})
	if reset {
		s.logger.Debug("Store state reset", log.FieldOperation, log.OpReset, log.FieldUserID, user)
	}
}

// mutate applies fn under the state lock and notifies subscribers when fn
// reports a change.
func (s *Store) mutate(fn func(*State) bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	snap := s.state.clone()
	subs := make([]func(State), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}

// begin clears the last error, optionally raises the loading flag, and returns
// the epoch the operation belongs to.
func (s *Store) begin(loading bool) uint64 {
	var epoch uint64
	s.mutate(func(state *State) bool {
		epoch = s.epoch
		state.LastError = nil
		if loading {
			state.Status = StatusLoading
		}
		return true
	})
	return epoch
}

// commit applies fn only if no identity reset happened since begin.
func (s *Store) commit(epoch uint64, fn func(*State)) bool {
	committed := false
	s.mutate(func(state *State) bool {
		if s.epoch != epoch {
			return false
		}
		fn(state)
		committed = true
		return true
	})
	return committed
}

// fail records err as the operation's outcome and returns it.
func (s *Store) fail(epoch uint64, err *Error, loading bool) *Error {
	s.commit(epoch, func(state *State) {
		state.LastError = err
		if loading {
			state.Status = StatusFailed
		}
	})
	s.logger.Warn("Expense operation failed",
		log.FieldOperation, err.Op,
		log.FieldErrorKind, err.Kind.String(),
		log.FieldError, err.Error())
	return err
}

func (st State) clone() State {
	return State{
		Items:         cloneExpenses(st.Items),
		FilteredItems: cloneExpenses(st.FilteredItems),
		Status:        st.Status,
		LastError:     st.LastError,
	}
}

func cloneExpenses(in []core.Expense) []core.Expense {
	if in == nil {
		return nil
	}
	out := make([]core.Expense, len(in))
	for i, e := range in {
		if e.CreatedAt != nil {
			t := *e.CreatedAt
			e.CreatedAt = &t
		}
		if e.Date != nil {
			t := *e.Date
			e.Date = &t
		}
		out[i] = e
	}
	return out
}
