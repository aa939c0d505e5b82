// Package nodeseq defines the pull-based node-sequence and target-hash
// iterator contracts consumed by Ingest and Merge (spec §6). The bundle
// engine depends only on these narrow interfaces; concrete producers
// (text tokenizer, bundle-backed sequences used by Merge) live in their
// own packages.
package nodeseq

import "errors"

// TargetIter produces the target hashes of a single source node. Each
// returned slice has length HashLen and must not be retained past the
// next call to Next.
type TargetIter interface {
	// Next returns the next target hash, or io.EOF when exhausted.
	Next() ([]byte, error)
}

// Sequence is a pull-based producer of (hash, target-hash-sequence)
// pairs: one source node at a time.
type Sequence interface {
	// HashLen returns the fixed hash length for the whole sequence.
	HashLen() uint16

	// Next returns the next source node's hash and its target-hash
	// iterator, or io.EOF when the sequence is exhausted. The returned
	// hash must not be retained past the next call to Next.
	Next() ([]byte, TargetIter, error)

	// Resettable reports whether Reset is supported.
	Resettable() bool

	// Reset rewinds the sequence to its start. It returns an error if
	// Resettable() is false.
	Reset() error
}

// ErrNotResettable is returned by Reset on sequences that cannot be
// replayed.
var ErrNotResettable = errors.New("nodeseq: sequence is not resettable")
