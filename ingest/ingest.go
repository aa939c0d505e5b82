// Package ingest implements the Ingest pipeline stage: draining a node
// sequence into an unsorted bundle (spec §4.3).
package ingest

import (
	"fmt"
	"io"

	logging "github.com/ipfs/go-log/v2"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/node"
	"github.com/spbnick/hdag-go/nodeseq"
	"github.com/spbnick/hdag-go/target"
)

var log = logging.Logger("hdag/ingest")

// Ingest drains seq into a freshly created, unsorted bundle. Every hash
// mentioned anywhere (as a source or as a target) becomes a node record:
// target hashes get a synthetic (hash, UNKNOWN) placeholder, collapsed
// against any real definition later by sort & dedup.
//
// On error Ingest returns nil and the partial bundle is discarded.
func Ingest(seq nodeseq.Sequence) (*bundle.Bundle, error) {
	b := bundle.New(seq.HashLen())
	for {
		hash, targets, err := seq.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}

		first := uint32(b.TargetHashes.Len())
		for {
			th, err := targets.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("ingest: target hash: %w", err)
			}
			thCopy := make([]byte, len(th))
			copy(thCopy, th)
			b.TargetHashes.Append(thCopy)
			b.Nodes.Append(node.Node{
				Hash:    thCopy,
				Targets: target.Pair{First: target.Unknown, Last: target.Unknown},
			})
		}
		last := uint32(b.TargetHashes.Len())

		hashCopy := make([]byte, len(hash))
		copy(hashCopy, hash)
		var pair target.Pair
		if last > first {
			pair = target.Pair{First: target.FromIndirect(first), Last: target.FromIndirect(last - 1)}
		} else {
			pair = target.Pair{First: target.Absent, Last: target.Absent}
		}
		b.Nodes.Append(node.Node{Hash: hashCopy, Targets: pair})
	}

	log.Debugw("ingest complete", "nodes", b.Nodes.Len(), "target_hashes", b.TargetHashes.Len())
	return b, nil
}
