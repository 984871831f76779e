package wire

import (
	"bytes"
	"math"
	"testing"
)

func TestVarUintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 129, 16383, 16384, 65535, 1 << 20, math.MaxUint32, math.MaxUint64}
	for _, v := range values {
		var buf bytes.Buffer
		if err := WriteVarUint(&buf, v); err != nil {
			t.Fatalf("WriteVarUint(%d): %v", v, err)
		}
		got, err := ReadVarUint(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("ReadVarUint(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: wrote %d, read %d", v, got)
		}
	}
}

func TestVarUintKnownEncoding(t *testing.T) {
	cases := []struct {
		n    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		if err := WriteVarUint(&buf, c.n); err != nil {
			t.Fatalf("WriteVarUint(%d): %v", c.n, err)
		}
		if !bytes.Equal(buf.Bytes(), c.want) {
			t.Fatalf("WriteVarUint(%d) = % x, want % x", c.n, buf.Bytes(), c.want)
		}
	}
}

func TestReadVarUintTruncated(t *testing.T) {
	_, err := ReadVarUint(bytes.NewReader([]byte{0x80}))
	if err == nil {
		t.Fatal("expected error reading truncated varint")
	}
}

func TestAppendVarUintMatchesWrite(t *testing.T) {
	var buf bytes.Buffer
	WriteVarUint(&buf, 123456)
	got := AppendVarUint(nil, 123456)
	if !bytes.Equal(buf.Bytes(), got) {
		t.Fatalf("AppendVarUint = % x, want % x", got, buf.Bytes())
	}
}
