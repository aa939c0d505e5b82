// Package organize glues the bundle engine's pipeline stages into the
// single entry point used both for fresh ingestion and for Merge:
// Ingest -> Sort & dedup -> Fanout fill -> Compact -> Enumerate.
package organize

import (
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/compact"
	"github.com/spbnick/hdag-go/enumerate"
	"github.com/spbnick/hdag-go/fanout"
	"github.com/spbnick/hdag-go/ingest"
	"github.com/spbnick/hdag-go/nodeseq"
	"github.com/spbnick/hdag-go/sortdedup"
)

var log = logging.Logger("hdag/organize")

// Organize drains seq and runs the full pipeline, returning a fully
// organized bundle: sorted, deduped, fanout-filled, compacted and
// enumerated. Any stage failure discards the in-progress bundle and
// returns the error wrapped with the failing stage's name, so errors.Is
// still matches its kind (NodeConflict and GraphCycle are terminal
// per spec §7).
func Organize(seq nodeseq.Sequence) (*bundle.Bundle, error) {
	b, err := ingest.Ingest(seq)
	if err != nil {
		return nil, fmt.Errorf("organize: ingest: %w", err)
	}
	if err := organizeInPlace(b); err != nil {
		return nil, err
	}
	return b, nil
}

// organizeInPlace runs Sort&Dedup -> Fanout -> Compact -> Enumerate over
// an already-ingested bundle.
func organizeInPlace(b *bundle.Bundle) error {
	if err := sortdedup.Sort(b); err != nil {
		return fmt.Errorf("organize: sort: %w", err)
	}
	if err := sortdedup.Dedup(b); err != nil {
		return fmt.Errorf("organize: dedup: %w", err)
	}
	if err := fanout.Fill(b); err != nil {
		return fmt.Errorf("organize: fanout: %w", err)
	}
	if err := compact.Compact(b); err != nil {
		return fmt.Errorf("organize: compact: %w", err)
	}
	if err := enumerate.Enumerate(b); err != nil {
		return fmt.Errorf("organize: enumerate: %w", err)
	}
	log.Infow("organize complete", "nodes", b.Nodes.Len(), "unknown_hashes", b.UnknownHashes.Len())
	return nil
}

// OrganizeInPlace exposes organizeInPlace for callers that build a
// bundle by means other than draining a single Sequence. Merge does not
// use it: it concatenates sequences and calls Organize.
func OrganizeInPlace(b *bundle.Bundle) error { return organizeInPlace(b) }
