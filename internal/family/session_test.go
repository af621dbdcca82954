package family

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/healixhq/healix/internal/database"
	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/store"
)

func setupSessionTest(t *testing.T) (*Resolver, *store.ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ps := store.NewProfileStore(db)
	return NewResolver(ps, slog.Default()), ps
}

func TestSessionLoadSelectsManager(t *testing.T) {
	r, ps := setupSessionTest(t)

	mgr, _ := ps.CreateManager("user-1", "Alice")
	ps.CreateDependent(mgr.ID, "Bob")

	s := NewSession(r, mgr.ID)
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Current() == nil || s.Current().ID != mgr.ID {
		t.Fatalf("current = %v, want manager", s.Current())
	}
}

func TestSessionLoadEmptyGroup(t *testing.T) {
	r, _ := setupSessionTest(t)

	s := NewSession(r, "nobody")
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Current() != nil {
		t.Error("expected nil selection for empty group")
	}
	if !s.Group().Empty() {
		t.Error("expected empty group")
	}
}

func TestSessionSelect(t *testing.T) {
	r, ps := setupSessionTest(t)

	mgr, _ := ps.CreateManager("user-1", "Alice")
	dep, _ := ps.CreateDependent(mgr.ID, "Bob")

	s := NewSession(r, mgr.ID)
	s.Load()

	s.Select(dep.ID)
	if s.Current().ID != dep.ID {
		t.Errorf("current = %q, want %q", s.Current().ID, dep.ID)
	}

	// Unknown IDs are a silent no-op.
	s.Select("nope")
	if s.Current().ID != dep.ID {
		t.Errorf("current = %q after bad select, want %q", s.Current().ID, dep.ID)
	}
}

func TestSessionRefreshRebindsSelection(t *testing.T) {
	r, ps := setupSessionTest(t)

	mgr, _ := ps.CreateManager("user-1", "Alice")
	dep, _ := ps.CreateDependent(mgr.ID, "Bob")

	s := NewSession(r, mgr.ID)
	s.Load()
	s.Select(dep.ID)

	ps.UpdateDetails(dep.ID, "Bobby", "", "", 0, 0)
	if err := s.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if s.Current().ID != dep.ID {
		t.Errorf("current = %q, want selection retained", s.Current().ID)
	}
	if s.Current().Name != "Bobby" {
		t.Errorf("name = %q, want refreshed copy", s.Current().Name)
	}
}

// blockingLister parks its first ListFamily call on a channel so a test can
// interleave a second, faster refresh before the first one resolves.
type blockingLister struct {
	mu      sync.Mutex
	calls   int
	started chan struct{} // closed when the first call begins
	release chan struct{} // first call returns after this closes
	slow    []model.Profile
	fast    []model.Profile
}

func (l *blockingLister) ListFamily(identity string) ([]model.Profile, error) {
	l.mu.Lock()
	l.calls++
	first := l.calls == 1
	l.mu.Unlock()
	if first {
		close(l.started)
		<-l.release
		return l.slow, nil
	}
	return l.fast, nil
}

func TestSessionRefreshDiscardsStaleResult(t *testing.T) {
	lister := &blockingLister{
		started: make(chan struct{}),
		release: make(chan struct{}),
		slow:    []model.Profile{{ID: "user-1", Name: "Stale"}},
		fast:    []model.Profile{{ID: "user-1", Name: "Fresh"}},
	}
	s := NewSession(&Resolver{profiles: lister, logger: slog.Default()}, "user-1")

	done := make(chan error, 1)
	go func() { done <- s.Refresh() }()
	<-lister.started

	// A second refresh is issued while the first is still loading and
	// completes first. The first one must not overwrite it on return.
	if err := s.Refresh(); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	close(lister.release)
	if err := <-done; err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	if got := s.Group().Manager.Name; got != "Fresh" {
		t.Errorf("manager = %q, want the later refresh to win", got)
	}
	if got := s.Current().Name; got != "Fresh" {
		t.Errorf("current = %q, want selection bound to the later result", got)
	}
}

func TestSessionRefreshFallsBackToManager(t *testing.T) {
	r, ps := setupSessionTest(t)

	mgr, _ := ps.CreateManager("user-1", "Alice")
	dep, _ := ps.CreateDependent(mgr.ID, "Bob")

	s := NewSession(r, mgr.ID)
	s.Load()
	s.Select(dep.ID)

	ps.Delete(dep.ID)
	if err := s.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if s.Current() == nil || s.Current().ID != mgr.ID {
		t.Errorf("current = %v, want fallback to manager", s.Current())
	}
}
