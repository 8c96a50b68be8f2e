package livequery

import (
	"testing"

	"github.com/google/uuid"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	lq := uuid.New()
	conn := uuid.New()
	r.Register(lq, Entry{ConnectionID: conn})
	got, ok := r.Lookup(lq)
	if !ok || got.ConnectionID != conn {
		t.Fatalf("lookup failed: %#v", got)
	}
}

func TestKillRemovesEntry(t *testing.T) {
	r := NewRegistry()
	lq := uuid.New()
	r.Register(lq, Entry{ConnectionID: uuid.New()})
	if !r.Kill(lq) {
		t.Fatal("expected Kill to report the entry existed")
	}
	if _, ok := r.Lookup(lq); ok {
		t.Error("expected the entry to be gone after Kill")
	}
	if r.Kill(lq) {
		t.Error("expected a second Kill to report no entry")
	}
}

func TestKillForSessionScopesCorrectly(t *testing.T) {
	r := NewRegistry()
	conn := uuid.New()
	sess1, sess2 := uuid.New(), uuid.New()
	lqA, lqB, lqC := uuid.New(), uuid.New(), uuid.New()
	r.Register(lqA, Entry{ConnectionID: conn, SessionID: &sess1})
	r.Register(lqB, Entry{ConnectionID: conn, SessionID: &sess2})
	r.Register(lqC, Entry{ConnectionID: conn, SessionID: nil})

	killed := r.KillForSession(conn, &sess1)
	if len(killed) != 1 || killed[0] != lqA {
		t.Fatalf("expected only lqA to be killed, got %v", killed)
	}
	if _, ok := r.Lookup(lqB); !ok {
		t.Error("lqB should survive killing a different session")
	}
}

func TestKillForConnectionRemovesAllOwned(t *testing.T) {
	r := NewRegistry()
	connA, connB := uuid.New(), uuid.New()
	lq1, lq2, lq3 := uuid.New(), uuid.New(), uuid.New()
	r.Register(lq1, Entry{ConnectionID: connA})
	r.Register(lq2, Entry{ConnectionID: connA})
	r.Register(lq3, Entry{ConnectionID: connB})

	killed := r.KillForConnection(connA)
	if len(killed) != 2 {
		t.Fatalf("expected 2 killed, got %d", len(killed))
	}
	if _, ok := r.Lookup(lq3); !ok {
		t.Error("connB's live query should survive connA's teardown")
	}
}
