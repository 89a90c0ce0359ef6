package session

import (
	"sync"
	"testing"
)

var _ View = (*State)(nil)

func TestStateStartsAnonymous(t *testing.T) {
	s := NewState()
	if s.IsAuthenticated() || s.CurrentIdentity() != nil {
		t.Fatal("expected anonymous state")
	}
	if s.Phase() != PhaseAnonymous {
		t.Fatalf("expected anonymous phase, got %s", s.Phase())
	}
}

func TestSetIdentityNotifiesOnChangeOnly(t *testing.T) {
	s := NewState()
	var seen []*Identity
	s.Subscribe(func(id *Identity) { seen = append(seen, id) })

	s.SetIdentity(&Identity{SubjectID: "1", DisplayName: "alice"})
	s.SetIdentity(&Identity{SubjectID: "1", DisplayName: "alice"})
	s.SetIdentity(nil)
	s.SetIdentity(nil)

	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if seen[0] == nil || seen[0].SubjectID != "1" {
		t.Fatalf("unexpected first notification %+v", seen[0])
	}
	if seen[1] != nil {
		t.Fatalf("expected nil on logout, got %+v", seen[1])
	}
}

func TestCurrentIdentityReturnsCopy(t *testing.T) {
	s := NewState()
	in := &Identity{SubjectID: "1"}
	s.SetIdentity(in)
	in.SubjectID = "changed"

	got := s.CurrentIdentity()
	got.DisplayName = "mutated"

	cur := s.CurrentIdentity()
	if cur.SubjectID != "1" || cur.DisplayName != "" {
		t.Fatalf("expected state isolated from caller mutation, got %+v", cur)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := NewState()
	calls := 0
	unsubscribe := s.Subscribe(func(*Identity) { calls++ })

	s.SetIdentity(&Identity{SubjectID: "1"})
	unsubscribe()
	unsubscribe()
	s.SetIdentity(nil)

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestNilObserverIgnored(t *testing.T) {
	s := NewState()
	s.Subscribe(nil)()
	s.SetIdentity(&Identity{SubjectID: "1"})
}

func TestPhaseResolvingNests(t *testing.T) {
	s := NewState()
	s.SetResolving(true)
	s.SetResolving(true)
	s.SetIdentity(&Identity{SubjectID: "1"})
	if s.Phase() != PhaseResolving {
		t.Fatalf("expected resolving, got %s", s.Phase())
	}
	s.SetResolving(false)
	if s.Phase() != PhaseResolving {
		t.Fatalf("expected still resolving, got %s", s.Phase())
	}
	s.SetResolving(false)
	s.SetResolving(false)
	if s.Phase() != PhaseAuthenticated {
		t.Fatalf("expected authenticated, got %s", s.Phase())
	}
}

func TestStateConcurrentAccess(t *testing.T) {
	s := NewState()
	s.Subscribe(func(*Identity) {})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if j%2 == 0 {
					s.SetIdentity(&Identity{SubjectID: "x"})
				} else {
					s.SetIdentity(nil)
				}
				_ = s.IsAuthenticated()
				_ = s.Phase()
			}
		}()
	}
	wg.Wait()
}
