// Package wire implements the varint and length-prefixed frame codec shared
// by every message on the sync wire.
package wire

import (
	"errors"
	"io"
)

// ErrOverflow is returned by ReadVarUint when the encoded value does not fit
// in 64 bits.
var ErrOverflow = errors.New("wire: varint overflows uint64")

// WriteVarUint writes n to w using unsigned LEB128: little-endian base-128
// with the continuation bit in the MSB of every byte but the last.
func WriteVarUint(w io.Writer, n uint64) error {
	buf := make([]byte, 0, 10)
	for n > 0x7f {
		buf = append(buf, byte(n&0x7f)|0x80)
		n >>= 7
	}
	buf = append(buf, byte(n))
	_, err := w.Write(buf)
	return err
}

// AppendVarUint appends the LEB128 encoding of n to dst and returns the
// extended slice.
func AppendVarUint(dst []byte, n uint64) []byte {
	for n > 0x7f {
		dst = append(dst, byte(n&0x7f)|0x80)
		n >>= 7
	}
	return append(dst, byte(n))
}

// ReadVarUint reads an unsigned LEB128 varint from r.
func ReadVarUint(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift >= 64 || (shift == 63 && b&0x7f > 1) {
			return 0, ErrOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return result, nil
		}
		shift += 7
	}
}
