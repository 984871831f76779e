package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	msgs := [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte{0xff}, 300),
	}
	var buf bytes.Buffer
	for _, m := range msgs {
		if err := WriteFrame(&buf, m); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	r := NewReader(buf.Bytes())
	var got [][]byte
	for msg, err := range r.ReadMessages() {
		if err != nil {
			t.Fatalf("ReadMessages: %v", err)
		}
		got = append(got, msg)
	}
	if len(got) != len(msgs) {
		t.Fatalf("got %d messages, want %d", len(got), len(msgs))
	}
	for i := range msgs {
		if !bytes.Equal(got[i], msgs[i]) {
			t.Fatalf("message %d: got % x, want % x", i, got[i], msgs[i])
		}
	}
}

func TestReadMessageEmptyBuffer(t *testing.T) {
	r := NewReader(nil)
	msg, err := r.ReadMessage()
	if err != nil || msg != nil {
		t.Fatalf("ReadMessage on empty buffer = (%v, %v), want (nil, nil)", msg, err)
	}
}

func TestReadMessageTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	WriteVarUint(&buf, 10)
	buf.Write([]byte("short"))

	r := NewReader(buf.Bytes())
	_, err := r.ReadMessage()
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestAppendFrameMatchesWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, []byte("payload"))
	got := AppendFrame(nil, []byte("payload"))
	if !bytes.Equal(buf.Bytes(), got) {
		t.Fatalf("AppendFrame = % x, want % x", got, buf.Bytes())
	}
}
