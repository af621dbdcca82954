package family

import (
	"sync"

	"github.com/healixhq/healix/internal/model"
)

// Session holds one logged-in context's resolved family group and its acting
// profile selection. The selection is ephemeral: it defaults to the manager,
// may be switched to any fetched dependent, and falls back to the manager
// when the selected profile disappears on refresh.
type Session struct {
	mu       sync.Mutex
	resolver *Resolver
	identity string
	group    *Group
	current  *model.Profile

	// Monotonic refresh tokens. A refresh only applies if it is still the
	// most recently issued when its load completes, so overlapping refreshes
	// resolve last-issued-wins rather than last-resolved-wins.
	issued  uint64
	applied uint64
}

func NewSession(resolver *Resolver, identity string) *Session {
	return &Session{
		resolver: resolver,
		identity: identity,
		group:    &Group{},
	}
}

// Load performs the initial resolve and selects the manager.
func (s *Session) Load() error {
	return s.Refresh()
}

// Group returns the most recently applied family group.
func (s *Session) Group() *Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group
}

// Current returns the acting profile, or nil when the group is empty.
func (s *Session) Current() *model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Select switches the acting profile. An unknown ID is a silent no-op: the
// previous selection is retained.
func (s *Session) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.group.Member(id); p != nil {
		s.current = p
	}
}

// Refresh re-resolves the family group. If the load is stale (another refresh
// was issued while it was in flight), its result is discarded. On apply, the
// selection re-binds to the updated copy of the selected profile so inherited
// fields stay current, or falls back to the manager if it no longer exists.
func (s *Session) Refresh() error {
	s.mu.Lock()
	s.issued++
	token := s.issued
	identity := s.identity
	s.mu.Unlock()

	group, err := s.resolver.Load(identity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.issued {
		// A newer refresh is in flight or already applied; drop this result.
		return nil
	}
	s.applied = token
	s.group = group

	if s.current != nil {
		if p := group.Member(s.current.ID); p != nil {
			s.current = p
			return nil
		}
	}
	s.current = group.Manager
	return nil
}
