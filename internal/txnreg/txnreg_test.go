package txnreg

import (
	"testing"

	"github.com/google/uuid"
)

type fakeTxn struct{ cancelled, committed bool }

func (f *fakeTxn) Commit() error { f.committed = true; return nil }
func (f *fakeTxn) Cancel() error { f.cancelled = true; return nil }

func TestReserveEnforcesLimit(t *testing.T) {
	r := NewRegistry(2)
	if err := r.Reserve("s1"); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := r.Reserve("s1"); err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if err := r.Reserve("s1"); err == nil {
		t.Fatal("expected third reserve to exceed quota")
	}
}

func TestReleaseFreesSlot(t *testing.T) {
	r := NewRegistry(1)
	if err := r.Reserve("s1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	r.Release("s1")
	if err := r.Reserve("s1"); err != nil {
		t.Fatalf("expected a freed slot to be reusable: %v", err)
	}
}

func TestRemoveReleasesQuota(t *testing.T) {
	r := NewRegistry(1)
	id := uuid.New()
	if err := r.Reserve("s1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	r.Put(&Handle{ID: id, ScopeID: "s1", Inner: &fakeTxn{}})
	r.Remove(id)
	if err := r.Reserve("s1"); err != nil {
		t.Fatalf("expected quota to be freed after remove: %v", err)
	}
}

func TestTeardownScopeCancelsOwnedTxns(t *testing.T) {
	r := NewRegistry(0)
	owned := &fakeTxn{}
	other := &fakeTxn{}
	r.Put(&Handle{ID: uuid.New(), ScopeID: "s1", Inner: owned})
	r.Put(&Handle{ID: uuid.New(), ScopeID: "s2", Inner: other})
	r.TeardownScope("s1")
	if !owned.cancelled {
		t.Error("expected the owned transaction to be cancelled")
	}
	if other.cancelled {
		t.Error("expected the other scope's transaction to survive")
	}
}

func TestTeardownAllCancelsEverything(t *testing.T) {
	r := NewRegistry(0)
	a, b := &fakeTxn{}, &fakeTxn{}
	r.Put(&Handle{ID: uuid.New(), ScopeID: "s1", Inner: a})
	r.Put(&Handle{ID: uuid.New(), ScopeID: "s2", Inner: b})
	r.TeardownAll()
	if !a.cancelled || !b.cancelled {
		t.Error("expected every transaction to be cancelled")
	}
}
