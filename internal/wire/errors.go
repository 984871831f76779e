package wire

import (
	"errors"
	"fmt"
)

// ErrProtocol is the sentinel wrapped by every malformed-framing error this
// package returns.
var ErrProtocol = errors.New("wire: protocol error")

// ProtocolError reports malformed framing: varint overflow/truncation, a
// declared frame length exceeding the remaining bytes, or an empty message.
// An unknown top-level message type is not a ProtocolError (see
// KnownMessageType).
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("wire: %s", e.Reason)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

func (e *ProtocolError) Unwrap() error { return e.Err }

func protoErr(reason string, err error) error {
	return &ProtocolError{Reason: reason, Err: err}
}
