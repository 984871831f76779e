package wire

import (
	"bytes"
	"testing"
)

func TestCreateSyncMessagesRoundTrip(t *testing.T) {
	sv := []byte{1, 2, 3}
	msg := CreateSyncStep1Message(sv)

	msgType, payload, err := SplitMessage(msg)
	if err != nil {
		t.Fatalf("SplitMessage: %v", err)
	}
	if msgType != MessageSync {
		t.Fatalf("msgType = %d, want MessageSync", msgType)
	}

	subType, data, err := SplitSyncMessage(payload)
	if err != nil {
		t.Fatalf("SplitSyncMessage: %v", err)
	}
	if subType != SyncStep1 {
		t.Fatalf("subType = %d, want SyncStep1", subType)
	}
	if !bytes.Equal(data, sv) {
		t.Fatalf("data = % x, want % x", data, sv)
	}
}

func TestCreateUpdateMessageRoundTrip(t *testing.T) {
	update := bytes.Repeat([]byte{0xab}, 500)
	msg := CreateUpdateMessage(update)

	msgType, payload, err := SplitMessage(msg)
	if err != nil {
		t.Fatalf("SplitMessage: %v", err)
	}
	if msgType != MessageSync {
		t.Fatalf("msgType = %d, want MessageSync", msgType)
	}
	subType, data, err := SplitSyncMessage(payload)
	if err != nil {
		t.Fatalf("SplitSyncMessage: %v", err)
	}
	if subType != SyncUpdate {
		t.Fatalf("subType = %d, want SyncUpdate", subType)
	}
	if !bytes.Equal(data, update) {
		t.Fatal("update payload mismatch")
	}
}

func TestCreateAwarenessMessage(t *testing.T) {
	update := []byte("presence-blob")
	msg := CreateAwarenessMessage(update)
	msgType, payload, err := SplitMessage(msg)
	if err != nil {
		t.Fatalf("SplitMessage: %v", err)
	}
	if msgType != MessageAwareness {
		t.Fatalf("msgType = %d, want MessageAwareness", msgType)
	}
	if !bytes.Equal(payload, update) {
		t.Fatal("awareness payload mismatch")
	}
}

func TestKnownMessageType(t *testing.T) {
	if !KnownMessageType(MessageSync) || !KnownMessageType(MessageAwareness) {
		t.Fatal("expected sync/awareness to be known")
	}
	if KnownMessageType(0x7f) {
		t.Fatal("expected unknown type to be reported as unknown")
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	_, _, err := SplitMessage(nil)
	if err == nil {
		t.Fatal("expected error splitting empty message")
	}
}
