// Package compact implements the Compact pipeline stage (spec §4.6):
// replacing target-hash references with node-index references, spilling
// overflow edges (more than two) into the bundle's extra-edges array.
package compact

import (
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/hdagarray"
	"github.com/spbnick/hdag-go/hdagerr"
	"github.com/spbnick/hdag-go/target"
)

var log = logging.Logger("hdag/compact")

// Compact resolves every indirect target-hash range into direct node
// indices (for 1 or 2 edges) or an indirect range over a freshly built
// ExtraEdges array (for 3+ edges), then drops TargetHashes. The bundle
// must already be sorted, deduped and fanout-filled.
//
// A failed FindNodeIdx lookup indicates a violated pipeline invariant
// (the bundle was not properly sorted/deduped/fanned-out before Compact)
// and is a programming error: it panics rather than returning an error.
func Compact(b *bundle.Bundle) error {
	if !b.FanoutFilled() {
		return fmt.Errorf("%w: compact: bundle has no fanout table", hdagerr.ErrInvalid)
	}
	if b.ExtraEdges.Len() > 0 {
		return fmt.Errorf("%w: compact: extra_edges already populated", hdagerr.ErrInvalid)
	}
	if b.TargetHashes.Len() == 0 {
		// Nothing to resolve (e.g. re-compacting an already-compact
		// bundle, or one with only absent/unknown targets); a no-op.
		return nil
	}

	var extra hdagarray.Array[uint32]
	nodes := b.Nodes.Slice()
	for i := range nodes {
		if !nodes[i].Targets.IsIndirect() {
			continue
		}
		p := nodes[i].Targets
		first := p.First.ToIndirect()
		last := p.Last.ToIndirect()
		k := last - first + 1

		switch {
		case k >= 3:
			start := extra.AppendN(int(k))
			for slot := uint32(0); slot < k; slot++ {
				hash := b.TargetHashes.At(int(first + slot))
				idx := mustFind(b, hash)
				extra.Set(start+int(slot), idx)
			}
			nodes[i].Targets = target.Pair{
				First: target.FromIndirect(uint32(start)),
				Last:  target.FromIndirect(uint32(start + int(k) - 1)),
			}
		case k == 2:
			d1 := mustFind(b, b.TargetHashes.At(int(first)))
			d2 := mustFind(b, b.TargetHashes.At(int(first+1)))
			nodes[i].Targets = target.Pair{First: target.FromDirect(d1), Last: target.FromDirect(d2)}
		case k == 1:
			d1 := mustFind(b, b.TargetHashes.At(int(first)))
			nodes[i].Targets = target.Pair{First: target.FromDirect(d1), Last: target.Absent}
		default:
			panic(fmt.Sprintf("compact: node %d has indirect range with zero-length count", i))
		}
	}

	b.TargetHashes.Reset()
	b.ExtraEdges = extra
	log.Debugw("compact complete", "nodes", b.Nodes.Len(), "extra_edges", b.ExtraEdges.Len())
	return nil
}

func mustFind(b *bundle.Bundle, hash []byte) uint32 {
	idx := b.FindNodeIdx(hash)
	if idx == bundle.NotFound {
		panic(fmt.Sprintf("compact: find_node_idx failed for hash %x: sort/dedup/fanout invariant violated", hash))
	}
	return idx
}
