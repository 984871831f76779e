package ydoc

import "testing"

func TestAwarenessSetGetClear(t *testing.T) {
	a := NewAwareness()
	if _, ok := a.Get("alice"); ok {
		t.Fatal("expected no entry for unknown client")
	}

	a.Set("alice", []byte("online"))
	blob, ok := a.Get("alice")
	if !ok || string(blob) != "online" {
		t.Fatalf("Get(alice) = (%q, %v), want (\"online\", true)", blob, ok)
	}

	a.Clear("alice")
	if _, ok := a.Get("alice"); ok {
		t.Fatal("expected entry to be cleared")
	}
}

func TestAwarenessSnapshotIsolated(t *testing.T) {
	a := NewAwareness()
	a.Set("alice", []byte("x"))

	snap := a.Snapshot()
	snap["alice"][0] = 'y'

	blob, _ := a.Get("alice")
	if blob[0] != 'x' {
		t.Fatal("Snapshot should return a copy, mutation leaked into live state")
	}
}
