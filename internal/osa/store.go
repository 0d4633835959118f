// Package osa is a thin, typed facade over a content-addressed blob store
// with hierarchical string keys. It is the Object Store Adapter: every
// read/write of a day's harvest blobs or derived artifacts goes through a
// Store, never through a concrete backend directly, so the rest of the
// module (Incremental Publisher, Day Loader) is backend-agnostic.
package osa

import "context"

// Store is the OSA contract. Writes are at-least-once and idempotent by
// key: a caller that retries a Put after an ambiguous failure is guaranteed
// the final object reflects the last successful write, never a partial or
// duplicated one.
type Store interface {
	// Put replaces any prior value at key. Fails with a *TransientError
	// (retryable) or *PermanentError (auth/permission).
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// List returns every key with the given prefix, lexicographically
	// ordered. Order within an internally-paginated backend is stable but
	// otherwise unspecified by callers.
	List(ctx context.Context, prefix string) ([]string, error)

	// Get returns the bytes at key, or ErrNotFound, *TransientError, or
	// *PermanentError.
	Get(ctx context.Context, key string) ([]byte, error)
}
