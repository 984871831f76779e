// Package syncproto implements the two-step Yjs sync handshake on top of
// internal/wire framing and an internal/ydoc.Document. It is transport
// agnostic: callers hand it raw message bytes and get back raw message
// bytes to send, with no assumption about the connection carrying them.
package syncproto

import (
	"fmt"

	"github.com/collabdocs/yroomd/internal/wire"
	"github.com/collabdocs/yroomd/internal/ydoc"
)

// WriteSyncStep1 builds the opening handshake message: this side's state
// vector, so the peer can compute a minimal diff.
func WriteSyncStep1(doc *ydoc.Document) []byte {
	return wire.CreateSyncStep1Message(doc.StateVector())
}

// Result describes how HandleSyncMessage processed an incoming frame.
type Result struct {
	// Reply is non-nil when the handshake requires sending a message back
	// to the peer that sent the input (e.g. SyncStep1 -> SyncStep2).
	Reply []byte
	// Applied is true when an update was applied to doc as a result of this
	// message (SyncStep2 or SyncUpdate).
	Applied bool
}

// HandleSyncMessage processes one MessageSync frame (as produced by
// wire.Create*Message) against doc, originated by origin. It dispatches on
// the sync sub-type:
//
//   - SyncStep1: the payload is the peer's state vector; the reply is this
//     document's diff relative to it (SyncStep2).
//   - SyncStep2: the payload is a diff to apply; produces no reply.
//   - SyncUpdate: the payload is an incremental update to apply; produces no
//     reply (broadcast fan-out is the caller's responsibility).
func HandleSyncMessage(doc *ydoc.Document, origin string, msg []byte) (Result, error) {
	msgType, payload, err := wire.SplitMessage(msg)
	if err != nil {
		return Result{}, err
	}
	if msgType != wire.MessageSync {
		return Result{}, fmt.Errorf("syncproto: not a sync message (type %#x)", msgType)
	}

	subType, data, err := wire.SplitSyncMessage(payload)
	if err != nil {
		return Result{}, err
	}

	switch subType {
	case wire.SyncStep1:
		diff := doc.EncodeStateAsUpdate(data)
		return Result{Reply: wire.CreateSyncStep2Message(diff)}, nil
	case wire.SyncStep2:
		if err := doc.ApplyUpdate(origin, data); err != nil {
			return Result{}, err
		}
		return Result{Applied: true}, nil
	case wire.SyncUpdate:
		if err := doc.ApplyUpdate(origin, data); err != nil {
			return Result{}, err
		}
		return Result{Applied: true}, nil
	default:
		return Result{}, fmt.Errorf("syncproto: unknown sync sub-type %#x", subType)
	}
}
