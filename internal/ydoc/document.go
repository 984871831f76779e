// Package ydoc adapts the externally-owned CRDT document contract (state
// vectors, diff-based updates, after-transaction notification) into a
// concrete Go type the sync core can drive. It is a stand-in for a real
// Yjs-compatible engine: it preserves the contract's observable semantics
// (convergence, diff-by-state-vector, at-most-once apply) without
// implementing the CRDT's merge algorithm itself.
package ydoc

import (
	"bytes"
	"crypto/sha256"
	"sort"
	"sync"

	"github.com/collabdocs/yroomd/internal/wire"
)

// update is one applied change, keyed by its content hash for dedup and
// tagged with the origin's Lamport counter at the time it was applied.
type update struct {
	id      [32]byte
	origin  string
	counter uint64
	data    []byte
}

// Document is a thread-safe, append-only update log. Two documents that hold
// the same set of updates produce the same EncodeStateAsUpdate(nil) output,
// whatever order or origin the updates were applied under. Their state
// vectors are equal only when each origin label contributed the same number
// of updates to both.
type Document struct {
	mu      sync.RWMutex
	updates []update
	seen    map[[32]byte]struct{}
	clocks  map[string]uint64 // per-origin Lamport counter, next to assign
	onApply []func([]byte)
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		seen:   make(map[[32]byte]struct{}),
		clocks: make(map[string]uint64),
	}
}

// OnUpdate registers a callback invoked synchronously, after the update has
// been applied, with the raw update bytes. This mirrors the CRDT contract's
// after-transaction event.
func (d *Document) OnUpdate(fn func(update []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onApply = append(d.onApply, fn)
}

// ApplyUpdate applies update, authored by origin, to the document. update is
// either a single opaque update (as produced by whatever generates local
// changes) or a diff previously returned by EncodeStateAsUpdate, which
// concatenates zero or more such updates as individual length-prefixed
// frames; ApplyUpdate tells the two apart by trying to decode update as a
// frame stream and falls back to treating it as one atomic update if that
// fails, so either shape decomposes into the same per-update records this
// document would have produced had it applied each constituent update
// directly. Applying the same update bytes twice (from any origin) is a
// no-op for that update: it neither mutates state nor fires OnUpdate
// callbacks. origin may be empty for updates with no attributable author
// (e.g. replayed from a store).
func (d *Document) ApplyUpdate(origin string, upd []byte) error {
	if len(upd) == 0 {
		return nil
	}
	for _, part := range decomposeUpdate(upd) {
		d.applyOne(origin, part)
	}
	return nil
}

// decomposeUpdate splits upd into its constituent updates if it parses
// cleanly as a length-prefixed frame stream with no leftover bytes (the
// shape EncodeStateAsUpdate produces); otherwise it returns upd unchanged as
// the sole element, treating it as one atomic update.
func decomposeUpdate(upd []byte) [][]byte {
	r := wire.NewReader(upd)
	var frames [][]byte
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			return [][]byte{upd}
		}
		if msg == nil {
			break
		}
		frames = append(frames, msg)
	}
	if len(frames) == 0 || r.Remaining() != 0 {
		return [][]byte{upd}
	}
	return frames
}

func (d *Document) applyOne(origin string, part []byte) {
	if len(part) == 0 {
		return
	}
	id := sha256.Sum256(part)

	d.mu.Lock()
	if _, dup := d.seen[id]; dup {
		d.mu.Unlock()
		return
	}
	counter := d.clocks[origin]
	d.clocks[origin] = counter + 1

	stored := make([]byte, len(part))
	copy(stored, part)

	d.seen[id] = struct{}{}
	d.updates = append(d.updates, update{id: id, origin: origin, counter: counter, data: stored})
	callbacks := append([]func([]byte){}, d.onApply...)
	d.mu.Unlock()

	for _, cb := range callbacks {
		cb(stored)
	}
}

// StateVector returns an opaque encoding of every origin's Lamport clock,
// i.e. how many distinct updates were applied under each origin label. It
// records counts only, not which updates were applied.
func (d *Document) StateVector() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return encodeStateVector(d.clocks)
}

// EncodeStateAsUpdate returns the updates this document holds that are not
// reflected in base, a state vector previously produced by StateVector. If
// base is nil, it returns every update applied so far, concatenated as one
// update blob. Updates are framed in content-hash order, not application
// order. The returned bytes can be applied to a remote document via
// ApplyUpdate to bring it up to date with this one's omissions relative to
// base.
func (d *Document) EncodeStateAsUpdate(base []byte) []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	remote := map[string]uint64{}
	if len(base) > 0 {
		remote = decodeStateVector(base)
	}

	var sel []update
	for _, u := range d.updates {
		if u.counter < remote[u.origin] {
			continue
		}
		sel = append(sel, u)
	}
	// Order by content hash so that documents holding the same updates
	// encode them identically, whatever order they were applied in.
	sort.Slice(sel, func(i, j int) bool { return bytes.Compare(sel[i].id[:], sel[j].id[:]) < 0 })

	var out []byte
	for _, u := range sel {
		out = appendUpdateFrame(out, u.data)
	}
	return out
}

// Updates returns every applied update in application order, each as a
// standalone update blob suitable for ApplyUpdate.
func (d *Document) Updates() [][]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([][]byte, len(d.updates))
	for i, u := range d.updates {
		out[i] = append([]byte(nil), u.data...)
	}
	return out
}

// Len reports the number of distinct updates applied.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.updates)
}
