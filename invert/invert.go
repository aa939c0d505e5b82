// Package invert implements the Invert pipeline stage (spec §4.7):
// producing the reverse-edge bundle in two linear passes plus a final
// re-traversal that fills the reversed edges.
package invert

import (
	logging "github.com/ipfs/go-log/v2"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/hdagarray"
	"github.com/spbnick/hdag-go/node"
	"github.com/spbnick/hdag-go/target"
)

var log = logging.Logger("hdag/invert")

// Invert builds the reverse-edge bundle of a compacted src: same node
// set (same positions, same hashes unless hashless is requested), edges
// reversed. src must already be compacted (no indirect *hash* targets).
//
// Rather than overloading the Generation/Component fields as scratch (as
// a size-constrained systems implementation would), this keeps the
// out-degree counts, extra-edges start offsets, and fill cursors in
// explicit local slices — the spec's own §9 design note flags this as
// the natural systems-language tradeoff (memory for clarity).
func Invert(src *bundle.Bundle, hashless bool) *bundle.Bundle {
	n := src.Nodes.Len()
	hashLen := src.HashLen()
	if hashless {
		hashLen = 0
	}
	inv := bundle.New(hashLen)
	inv.Nodes.AppendN(n)

	// Pass 1: copy hashes, count each node's inverted out-degree (its
	// in-degree in src).
	counts := make([]uint32, n)
	for i := 0; i < n; i++ {
		var h []byte
		if !hashless {
			srcHash := src.Nodes.At(i).Hash
			h = append([]byte(nil), srcHash...)
		}
		inv.Nodes.Set(i, node.Node{Hash: h})
	}
	for i := 0; i < n; i++ {
		cnt := src.TargetsCount(uint32(i))
		for k := uint32(0); k < cnt; k++ {
			dst := src.TargetsNodeIdx(uint32(i), k)
			counts[dst]++
		}
	}

	// Pass 2: allocate direct slots or an exact-size ExtraEdges range per
	// inverted node, based on its final out-degree.
	starts := make([]uint32, n)
	var extra hdagarray.Array[uint32]
	for i := 0; i < n; i++ {
		if counts[i] <= 2 {
			inv.Nodes.Slice()[i].Targets = target.Pair{First: target.Absent, Last: target.Absent}
			continue
		}
		start := extra.AppendN(int(counts[i]))
		starts[i] = uint32(start)
		inv.Nodes.Slice()[i].Targets = target.Pair{
			First: target.FromIndirect(uint32(start)),
			Last:  target.FromIndirect(uint32(start) + counts[i] - 1),
		}
	}
	inv.ExtraEdges = extra

	// Pass 3: re-traverse src's edges, writing each dst->src reversal
	// into its designated slot.
	filled := make([]uint32, n)
	for i := 0; i < n; i++ {
		cnt := src.TargetsCount(uint32(i))
		for k := uint32(0); k < cnt; k++ {
			dst := src.TargetsNodeIdx(uint32(i), k)
			if counts[dst] <= 2 {
				if filled[dst] == 0 {
					inv.Nodes.Slice()[dst].Targets.First = target.FromDirect(uint32(i))
				} else {
					inv.Nodes.Slice()[dst].Targets.Last = target.FromDirect(uint32(i))
				}
			} else {
				pos := starts[dst] + filled[dst]
				inv.ExtraEdges.Set(int(pos), uint32(i))
			}
			filled[dst]++
		}
	}

	// Node set, order and hashes are unchanged, so a non-hashless
	// source's fanout table carries over unmodified.
	if !hashless && src.FanoutFilled() {
		inv.Fanout = src.Fanout
		inv.MarkFanoutFilled()
	}

	log.Debugw("invert complete", "nodes", n, "extra_edges", extra.Len())
	return inv
}
