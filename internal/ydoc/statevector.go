package ydoc

import (
	"bytes"
	"sort"

	"github.com/collabdocs/yroomd/internal/wire"
)

// encodeStateVector serializes an origin->counter map as a sequence of
// (varuint origin-length, origin bytes, varuint counter) triples, sorted by
// origin so that two equal maps always encode to identical bytes.
func encodeStateVector(clocks map[string]uint64) []byte {
	origins := make([]string, 0, len(clocks))
	for o := range clocks {
		origins = append(origins, o)
	}
	sort.Strings(origins)

	var buf bytes.Buffer
	for _, o := range origins {
		wire.WriteVarUint(&buf, uint64(len(o)))
		buf.WriteString(o)
		wire.WriteVarUint(&buf, clocks[o])
	}
	return buf.Bytes()
}

// decodeStateVector is the inverse of encodeStateVector. Malformed input
// decodes to whatever prefix was readable; the caller only uses the result
// for diffing, so a truncated state vector just yields a more conservative
// (larger) diff rather than an error.
func decodeStateVector(b []byte) map[string]uint64 {
	out := map[string]uint64{}
	r := bytes.NewReader(b)
	for r.Len() > 0 {
		n, err := wire.ReadVarUint(r)
		if err != nil {
			break
		}
		name := make([]byte, n)
		if _, err := r.Read(name); err != nil {
			break
		}
		counter, err := wire.ReadVarUint(r)
		if err != nil {
			break
		}
		out[string(name)] = counter
	}
	return out
}

// appendUpdateFrame appends one length-prefixed update to dst, the same
// framing used elsewhere on the wire.
func appendUpdateFrame(dst, data []byte) []byte {
	return wire.AppendFrame(dst, data)
}
