// Package metadata provides MetadataFunc implementations consumed by
// internal/ystore's metadata_callback contract: the bytes attached to each
// stored update (e.g. who authored it), opaque to the store itself.
package metadata

import "context"

// Static always returns the same fixed blob. Useful for tests and for
// deployments that don't need per-update attribution.
func Static(blob []byte) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		return blob, nil
	}
}

// None returns empty metadata for every update, equivalent to the store's
// own default when no MetadataFunc is configured.
func None() func(ctx context.Context) ([]byte, error) {
	return Static(nil)
}
