package ystore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/collabdocs/yroomd/internal/ydoc"
)

func TestSQLiteStoreWriteReadRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ystore.db")
	s := NewSQLiteStore(dbPath, 0, nil, nil, nil)
	defer s.Close()
	ctx := context.Background()

	if err := s.Write(ctx, "doc-a", []byte("u1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(ctx, "doc-a", []byte("u2")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var got [][]byte
	for u, err := range s.Read(ctx, "doc-a") {
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, u.Update)
	}
	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2", len(got))
	}
	if !bytes.Equal(got[0], []byte("u1")) || !bytes.Equal(got[1], []byte("u2")) {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestSQLiteStoreReadMissingDoc(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ystore.db")
	s := NewSQLiteStore(dbPath, 0, nil, nil, nil)
	defer s.Close()
	ctx := context.Background()

	found := false
	for _, err := range s.Read(ctx, "nope") {
		found = true
		if err == nil {
			t.Fatal("expected an error for a missing document")
		}
	}
	if !found {
		t.Fatal("expected Read to yield once even for a missing document")
	}
}

func TestSQLiteStoreSquashesOnTTLExpiry(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ystore.db")
	squashCalls := 0
	squash := func(updates [][]byte) ([]byte, error) {
		squashCalls++
		var out []byte
		for _, u := range updates {
			out = append(out, u...)
		}
		return out, nil
	}
	s := NewSQLiteStore(dbPath, time.Millisecond, squash, nil, nil)
	defer s.Close()
	ctx := context.Background()

	if err := s.Write(ctx, "doc-a", []byte("u1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := s.Write(ctx, "doc-a", []byte("u2")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if squashCalls != 1 {
		t.Fatalf("squash called %d times, want 1", squashCalls)
	}

	var got [][]byte
	for u, err := range s.Read(ctx, "doc-a") {
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, u.Update)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows after squash, want 2 (squashed snapshot + new update)", len(got))
	}
	if !bytes.Equal(got[0], []byte("u1")) {
		t.Fatalf("squashed row = %q, want %q", got[0], "u1")
	}
	if !bytes.Equal(got[1], []byte("u2")) {
		t.Fatalf("appended row = %q, want %q", got[1], "u2")
	}
}

// TestSQLiteStoreSquashRoundTripWithMultiUpdateRow exercises squash against a
// row that is itself a multi-update diff (what Room.PublishUpdate persists
// when the triggering frame was a SyncStep2 reply carrying more than one
// outstanding update, not a single SyncUpdate), and checks that replaying
// the store after squashing reaches the same document state as applying the
// original, never-squashed sequence of updates directly.
func TestSQLiteStoreSquashRoundTripWithMultiUpdateRow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ystore.db")

	squash := func(updates [][]byte) ([]byte, error) {
		doc := ydoc.NewDocument()
		for _, u := range updates {
			if err := doc.ApplyUpdate("", u); err != nil {
				return nil, err
			}
		}
		return doc.EncodeStateAsUpdate(nil), nil
	}

	s := NewSQLiteStore(dbPath, time.Millisecond, squash, nil, nil)
	defer s.Close()
	ctx := context.Background()

	origin := ydoc.NewDocument()
	origin.ApplyUpdate("alice", []byte("op1"))
	origin.ApplyUpdate("alice", []byte("op2"))
	diffRow := origin.EncodeStateAsUpdate(nil)

	if err := s.Write(ctx, "doc-a", diffRow); err != nil {
		t.Fatalf("Write diff row: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := s.Write(ctx, "doc-a", []byte("op3")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	origin.ApplyUpdate("alice", []byte("op3"))

	replayed := ydoc.NewDocument()
	for u, err := range s.Read(ctx, "doc-a") {
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if err := replayed.ApplyUpdate("", u.Update); err != nil {
			t.Fatalf("ApplyUpdate: %v", err)
		}
	}

	if !bytes.Equal(replayed.EncodeStateAsUpdate(nil), origin.EncodeStateAsUpdate(nil)) {
		t.Fatal("replaying squashed rows diverged from the unsquashed original sequence")
	}
}

func TestSQLiteStoreRemoveAndList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ystore.db")
	s := NewSQLiteStore(dbPath, 0, nil, nil, nil)
	defer s.Close()
	ctx := context.Background()

	s.Write(ctx, "doc-a", []byte("x"))
	s.Write(ctx, "doc-b", []byte("y"))

	var paths []string
	for p, err := range s.List(ctx) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		paths = append(paths, p)
	}
	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2: %v", len(paths), paths)
	}

	if err := s.Remove(ctx, "doc-a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	exists, err := s.Exists(ctx, "doc-a")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("expected doc-a removed")
	}
}
