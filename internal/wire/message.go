package wire

// Top-level message types. Every frame on the wire begins with one of these.
const (
	MessageSync      byte = 0x00
	MessageAwareness byte = 0x01
)

// Sync sub-message types, carried as the first byte of a MessageSync frame's
// payload.
const (
	SyncStep1  byte = 0x00
	SyncStep2  byte = 0x01
	SyncUpdate byte = 0x02
)

// KnownMessageType reports whether t is a top-level type this codec
// understands. Callers should drop and log frames that fail this check
// rather than treat them as a protocol error: future message types are
// expected to appear on the wire before this implementation knows about
// them.
func KnownMessageType(t byte) bool {
	return t == MessageSync || t == MessageAwareness
}

// CreateSyncStep1Message builds a MessageSync/SyncStep1 frame carrying a
// state vector.
func CreateSyncStep1Message(stateVector []byte) []byte {
	return createSyncMessage(SyncStep1, stateVector)
}

// CreateSyncStep2Message builds a MessageSync/SyncStep2 frame carrying an
// update (the diff of the sender's state against the peer's state vector).
func CreateSyncStep2Message(update []byte) []byte {
	return createSyncMessage(SyncStep2, update)
}

// CreateUpdateMessage builds a MessageSync/SyncUpdate frame carrying an
// incremental update to broadcast to already-synced peers.
func CreateUpdateMessage(update []byte) []byte {
	return createSyncMessage(SyncUpdate, update)
}

func createSyncMessage(subType byte, data []byte) []byte {
	body := make([]byte, 0, 1+len(data))
	body = append(body, subType)
	body = AppendVarUint(body, uint64(len(data)))
	body = append(body, data...)

	out := make([]byte, 0, 1+len(body))
	out = append(out, MessageSync)
	return append(out, body...)
}

// CreateAwarenessMessage builds a MessageAwareness frame carrying an
// awareness update payload (format opaque to this package).
func CreateAwarenessMessage(update []byte) []byte {
	out := make([]byte, 0, 1+len(update))
	out = append(out, MessageAwareness)
	return append(out, update...)
}

// SplitMessage separates a top-level frame into its type byte and payload.
// It returns a *ProtocolError wrapping ErrProtocol if b is empty.
func SplitMessage(b []byte) (msgType byte, payload []byte, err error) {
	if len(b) == 0 {
		return 0, nil, protoErr("empty top-level message", nil)
	}
	return b[0], b[1:], nil
}

// SplitSyncMessage decodes a MessageSync payload (as returned by
// SplitMessage) into its sub-type and the length-prefixed data that follows.
func SplitSyncMessage(payload []byte) (subType byte, data []byte, err error) {
	if len(payload) == 0 {
		return 0, nil, protoErr("empty sync message", nil)
	}
	subType = payload[0]
	r := NewReader(payload[1:])
	n, err := r.ReadVarUint()
	if err != nil {
		return 0, nil, err
	}
	if uint64(r.Remaining()) < n {
		return 0, nil, protoErr("declared sync payload length exceeds remaining bytes", nil)
	}
	rest := payload[1:]
	start := len(rest) - r.Remaining()
	data = rest[start : start+int(n)]
	return subType, data, nil
}
