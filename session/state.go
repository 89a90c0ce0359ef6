package session

import "sync"

// Identity is the currently authenticated subject.
type Identity struct {
	SubjectID   string
	DisplayName string
	Email       string
}

// Phase describes whether the identity is settled.
type Phase uint8

const (
	// PhaseAnonymous means no identity is present.
	PhaseAnonymous Phase = iota
	// PhaseResolving means startup restoration is in progress.
	PhaseResolving
	// PhaseAuthenticated means an identity is present.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseResolving:
		return "resolving"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Observer is notified with the new identity (nil when logged out).
type Observer func(*Identity)

// View is the read side of [State] handed to UI and routing collaborators.
type View interface {
	CurrentIdentity() *Identity
	IsAuthenticated() bool
	Phase() Phase
	Subscribe(Observer) (unsubscribe func())
}

// State is the observable current identity.
type State struct {
	mu        sync.RWMutex
	identity  *Identity
	resolving int
	observers map[uint64]Observer
	nextID    uint64
}

// NewState returns an anonymous State.
func NewState() *State {
	return &State{observers: make(map[uint64]Observer)}
}

// SetIdentity replaces the current identity. Setting an equal identity is a
// no-op; otherwise observers are notified before SetIdentity returns.
func (s *State) SetIdentity(id *Identity) {
	next := copyIdentity(id)

	s.mu.Lock()
	if equalIdentity(s.identity, next) {
		s.mu.Unlock()
		return
	}
	s.identity = next
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(copyIdentity(next))
	}
}

// CurrentIdentity returns a copy of the identity, or nil.
func (s *State) CurrentIdentity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyIdentity(s.identity)
}

// IsAuthenticated reports whether an identity is present.
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// SetResolving marks the start (true) or end (false) of a resolving section.
// Sections nest.
func (s *State) SetResolving(resolving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resolving {
		s.resolving++
		return
	}
	if s.resolving > 0 {
		s.resolving--
	}
}

// Phase reports the current phase. Resolving wins over the identity.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.resolving > 0:
		return PhaseResolving
	case s.identity != nil:
		return PhaseAuthenticated
	default:
		return PhaseAnonymous
	}
}

// Subscribe registers o and returns a function that removes it.
func (s *State) Subscribe(o Observer) func() {
	if o == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func equalIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
