package wire

import (
	"bytes"
	"io"
	"iter"
)

// Reader decodes a sequence of length-prefixed frames out of an in-memory
// byte slice: varuint(len) || bytes, repeated until the input is exhausted.
type Reader struct {
	buf *bytes.Reader
}

// NewReader wraps b for frame-at-a-time decoding.
func NewReader(b []byte) *Reader {
	return &Reader{buf: bytes.NewReader(b)}
}

// Remaining reports how many bytes are left unconsumed.
func (r *Reader) Remaining() int { return r.buf.Len() }

// ReadVarUint reads a single varuint off the front of the buffer.
func (r *Reader) ReadVarUint() (uint64, error) {
	n, err := ReadVarUint(r.buf)
	if err != nil {
		if err == io.EOF {
			return 0, protoErr("truncated varint", err)
		}
		return 0, protoErr("malformed varint", err)
	}
	return n, nil
}

// ReadMessage reads one length-prefixed frame. It returns (nil, nil) once the
// buffer is exhausted (mirrors the Python decoder's "return None").
func (r *Reader) ReadMessage() ([]byte, error) {
	if r.buf.Len() == 0 {
		return nil, nil
	}
	n, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if uint64(r.buf.Len()) < n {
		return nil, protoErr("declared frame length exceeds remaining bytes", nil)
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r.buf, out); err != nil {
		return nil, protoErr("truncated frame body", err)
	}
	return out, nil
}

// ReadMessages drains every remaining frame in arrival order.
func (r *Reader) ReadMessages() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			msg, err := r.ReadMessage()
			if err != nil {
				yield(nil, err)
				return
			}
			if msg == nil {
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// WriteFrame writes a single length-prefixed frame: varuint(len(b)) || b.
func WriteFrame(w io.Writer, b []byte) error {
	if err := WriteVarUint(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// AppendFrame appends a length-prefixed frame to dst.
func AppendFrame(dst, b []byte) []byte {
	dst = AppendVarUint(dst, uint64(len(b)))
	return append(dst, b...)
}
