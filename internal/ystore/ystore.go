// Package ystore implements the durable update log behind a room's
// document: every applied update is appended to a per-document log keyed by
// an opaque path string, with optional TTL-triggered compaction. Two
// backends are provided: a file-per-document store and a shared SQLite
// store.
package ystore

import (
	"context"
	"errors"
	"iter"
)

// SchemaVersion is written into the header of every store file and into
// PRAGMA user_version of every SQLite database this package creates. Bumping
// it invalidates stores created by older versions of this package, which are
// migrated aside rather than overwritten; see the FileStore/SQLiteStore
// version-mismatch handling.
const SchemaVersion = 3

// ErrDocNotFound is returned by Read when the requested document has no
// stored updates.
var ErrDocNotFound = errors.New("ystore: document not found")

// ErrDocExists reports that a document already exists. No Store method in
// this package returns it; the Store interface has no create operation.
var ErrDocExists = errors.New("ystore: document already exists")

// MetadataFunc produces the metadata blob attached to each stored update,
// e.g. the ID of the client that authored it. A nil MetadataFunc yields
// empty metadata.
type MetadataFunc func(ctx context.Context) ([]byte, error)

// StoredUpdate is one row of a document's update log.
type StoredUpdate struct {
	Update    []byte
	Metadata  []byte
	Timestamp float64 // unix seconds, matching the wire's little-endian float64 timestamp
}

// Store is the durable update log contract shared by both backends.
type Store interface {
	// Exists reports whether path has any stored updates.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns every document path known to the store.
	List(ctx context.Context) iter.Seq2[string, error]

	// Read lazily yields every stored update for path in insertion order.
	// It yields a single (zero, ErrDocNotFound) pair if the document does
	// not exist.
	Read(ctx context.Context, path string) iter.Seq2[StoredUpdate, error]

	// Write appends data as a new update for path. If a TTL is configured
	// and the gap since the last write exceeds it, the implementation first
	// squashes the document's history into one update before appending.
	Write(ctx context.Context, path string, data []byte) error

	// Remove deletes every stored update for path. Removing a document that
	// does not exist is not an error.
	Remove(ctx context.Context, path string) error

	// Close releases any resources (open files, database handles) held by
	// the store.
	Close() error
}
