package syncproto

import (
	"testing"

	"github.com/collabdocs/yroomd/internal/wire"
	"github.com/collabdocs/yroomd/internal/ydoc"
)

func TestHandshakeBringsPeerUpToDate(t *testing.T) {
	server := ydoc.NewDocument()
	server.ApplyUpdate("alice", []byte("op1"))
	server.ApplyUpdate("alice", []byte("op2"))

	client := ydoc.NewDocument()

	step1 := WriteSyncStep1(client)

	res, err := HandleSyncMessage(server, "", step1)
	if err != nil {
		t.Fatalf("HandleSyncMessage(step1): %v", err)
	}
	if res.Reply == nil {
		t.Fatal("expected a SyncStep2 reply")
	}

	if _, err := HandleSyncMessage(client, "server", res.Reply); err != nil {
		t.Fatalf("HandleSyncMessage(step2): %v", err)
	}

	if client.Len() != server.Len() {
		t.Fatalf("client has %d updates, server has %d", client.Len(), server.Len())
	}
}

func TestHandleSyncUpdateApplies(t *testing.T) {
	doc := ydoc.NewDocument()
	msg := wire.CreateUpdateMessage([]byte("incoming"))

	res, err := HandleSyncMessage(doc, "bob", msg)
	if err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}
	if !res.Applied {
		t.Fatal("expected Applied=true")
	}
	if res.Reply != nil {
		t.Fatal("SyncUpdate should produce no reply")
	}
	if doc.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", doc.Len())
	}
}

func TestHandleSyncMessageRejectsAwareness(t *testing.T) {
	doc := ydoc.NewDocument()
	msg := wire.CreateAwarenessMessage([]byte("presence"))

	if _, err := HandleSyncMessage(doc, "bob", msg); err == nil {
		t.Fatal("expected error dispatching an awareness frame to HandleSyncMessage")
	}
}
