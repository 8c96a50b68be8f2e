package session

import (
	"testing"
	"time"

	"github.com/coredb/rpccore/internal/value"
)

func TestSetVariableRemovesOnNullish(t *testing.T) {
	s := New(nil)
	s.SetVariable("x", value.Int(1))
	if snap := s.Snapshot(); len(snap.Variables) != 1 {
		t.Fatalf("expected 1 variable, got %d", len(snap.Variables))
	}
	s.SetVariable("x", value.Null())
	if snap := s.Snapshot(); len(snap.Variables) != 0 {
		t.Fatalf("expected variable to be removed, got %d", len(snap.Variables))
	}
}

func TestSetNamespaceClearsDatabase(t *testing.T) {
	s := New(nil)
	ns, db := "test", "test"
	s.SetNamespace(&ns)
	s.SetDatabase(&db)
	s.SetNamespace(nil)
	snap := s.Snapshot()
	if snap.NS != nil || snap.DB != nil {
		t.Errorf("clearing namespace should also clear database, got ns=%v db=%v", snap.NS, snap.DB)
	}
}

func TestExpired(t *testing.T) {
	s := New(nil)
	past := time.Now().Add(-time.Hour)
	s.SetExpiredAt(&past)
	if !s.Expired(time.Now()) {
		t.Error("session with a past expiry should report expired")
	}
	future := time.Now().Add(time.Hour)
	s.SetExpiredAt(&future)
	if s.Expired(time.Now()) {
		t.Error("session with a future expiry should not report expired")
	}
}

func TestClearResetsAuthAndVariables(t *testing.T) {
	s := New(nil)
	s.SetAuth(Subject{Level: AuthRoot})
	s.SetVariable("x", value.Int(1))
	s.SetRealtime(true)
	s.Clear()
	snap := s.Snapshot()
	if snap.Auth.Level != AuthNone {
		t.Errorf("expected AuthNone after clear, got %v", snap.Auth.Level)
	}
	if len(snap.Variables) != 0 {
		t.Error("expected variables to be cleared")
	}
	if snap.Realtime {
		t.Error("expected realtime flag to be cleared")
	}
}

func TestIsProtectedVariable(t *testing.T) {
	if !IsProtectedVariable("auth") {
		t.Error("auth should be protected")
	}
	if IsProtectedVariable("myvar") {
		t.Error("myvar should not be protected")
	}
}
