// Package bundle implements the Bundle container: the owning aggregate of
// a hash DAG's node array, target-hash array, extra-edges array, fanout
// table, and unknown-hash array (spec §3).
package bundle

import (
	"fmt"
	"math"

	logging "github.com/ipfs/go-log/v2"

	"github.com/spbnick/hdag-go/hdagarray"
	"github.com/spbnick/hdag-go/node"
	"github.com/spbnick/hdag-go/target"
)

var log = logging.Logger("hdag/bundle")

// NotFound is returned by FindNodeIdx on a miss.
const NotFound = uint32(math.MaxUint32)

// Bundle is the top-level, self-contained in-memory HDAG aggregate.
type Bundle struct {
	hashLen uint16

	Nodes         hdagarray.Array[node.Node]
	Fanout        [256]uint32
	TargetHashes  hdagarray.Array[[]byte]
	ExtraEdges    hdagarray.Array[uint32] // node index
	UnknownHashes hdagarray.Array[[]byte]

	fanoutFilled bool
}

// New creates an empty bundle for the given hash length. H=0 denotes a
// hashless bundle, used transiently by Invert when only topology matters.
func New(hashLen uint16) *Bundle {
	log.Debugw("new bundle", "hash_len", hashLen)
	return &Bundle{hashLen: hashLen}
}

// HashLen returns the fixed hash length for this bundle.
func (b *Bundle) HashLen() uint16 { return b.hashLen }

// FanoutFilled reports whether Fanout has been computed for the current
// node set.
func (b *Bundle) FanoutFilled() bool { return b.fanoutFilled }

// MarkFanoutFilled records that Fanout now reflects the current node set.
// Called by the fanout package after it fills the table; any subsequent
// mutation of Nodes must call ClearFanout.
func (b *Bundle) MarkFanoutFilled() { b.fanoutFilled = true }

// ClearFanout invalidates the fanout table, e.g. before further node
// dedup/sort passes.
func (b *Bundle) ClearFanout() { b.fanoutFilled = false }

// Node returns the node record at index i.
func (b *Bundle) Node(i uint32) *node.Node {
	n := b.Nodes.At(int(i))
	return &n
}

// NodeRef returns a pointer into the backing array, for in-place mutation
// by pipeline stages.
func (b *Bundle) NodeRef(i uint32) *node.Node {
	return &b.Nodes.Slice()[i]
}

// Targets returns the targets pair of node i.
func (b *Bundle) Targets(i uint32) target.Pair {
	return b.Nodes.At(int(i)).Targets
}

// TargetsCount returns the number of outgoing edges of node i.
func (b *Bundle) TargetsCount(i uint32) uint32 {
	return b.Targets(i).Count()
}

// TargetsNodeIdx returns the node index of the k-th target of node i.
// Valid only after Compact (targets are direct/extra-edges indices, not
// target-hash indices).
func (b *Bundle) TargetsNodeIdx(i uint32, k uint32) uint32 {
	p := b.Targets(i)
	switch {
	case p.First.IsDirect() && k == 0:
		return p.First.ToDirect()
	case p.First.IsDirect() && k == 1:
		return p.Last.ToDirect()
	case p.First.IsIndirect():
		pos := p.First.ToIndirect() + k
		return b.ExtraEdges.At(int(pos))
	default:
		panic(fmt.Sprintf("bundle: TargetsNodeIdx(%d,%d) out of range for %v", i, k, p))
	}
}

// TargetsNodeHash returns the hash of the k-th target of node i. Before
// Compact this reads the stored target hash from TargetHashes; after
// Compact it dispatches through the resolved node index.
func (b *Bundle) TargetsNodeHash(i uint32, k uint32) []byte {
	p := b.Targets(i)
	if p.First.IsIndirect() && b.TargetHashes.Len() > 0 {
		pos := p.First.ToIndirect() + k
		return b.TargetHashes.At(int(pos))
	}
	idx := b.TargetsNodeIdx(i, k)
	return b.Nodes.At(int(idx)).Hash
}

// FindNodeIdx locates hash among the sorted nodes, using the fanout
// table to narrow the search range when filled, else a full binary
// search. Returns NotFound on a miss.
func (b *Bundle) FindNodeIdx(hash []byte) uint32 {
	lo, hi := 0, b.Nodes.Len()
	if b.fanoutFilled && len(hash) > 0 {
		bucket := int(hash[0])
		hi = int(b.Fanout[bucket])
		if bucket > 0 {
			lo = int(b.Fanout[bucket-1])
		}
	}
	idx, found := searchRange(b.Nodes.Slice(), lo, hi, hash)
	if !found {
		return NotFound
	}
	return uint32(idx)
}

func searchRange(nodes []node.Node, lo, hi int, hash []byte) (int, bool) {
	for lo < hi {
		mid := lo + (hi-lo)/2
		c := node.CompareHash(nodes[mid].Hash, hash)
		switch {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}

// Reset empties the bundle back to a "clean" state with no backing
// allocation, per spec §5's memory discipline.
func (b *Bundle) Reset() {
	b.Nodes.Reset()
	b.TargetHashes.Reset()
	b.ExtraEdges.Reset()
	b.UnknownHashes.Reset()
	b.Fanout = [256]uint32{}
	b.fanoutFilled = false
}

// Deflate trims every backing array to its exact current length.
func (b *Bundle) Deflate() {
	b.Nodes.Deflate()
	b.TargetHashes.Deflate()
	b.ExtraEdges.Deflate()
	b.UnknownHashes.Deflate()
}

// CheckInvariants verifies spec §3's invariants 1-4 (the ones that hold
// regardless of pipeline stage) and returns the first violation found, or
// nil. Stage-specific invariants (5-8) are not checked here.
func (b *Bundle) CheckInvariants() error {
	if b.Nodes.Len() >= 1<<31 {
		return fmt.Errorf("bundle: nodes.len %d exceeds 2^31", b.Nodes.Len())
	}
	if b.ExtraEdges.Len() >= 1<<31 {
		return fmt.Errorf("bundle: extra_edges.len %d exceeds 2^31", b.ExtraEdges.Len())
	}
	if b.TargetHashes.Len() >= 1<<31 {
		return fmt.Errorf("bundle: target_hashes.len %d exceeds 2^31", b.TargetHashes.Len())
	}
	if b.TargetHashes.Len() > 0 && b.ExtraEdges.Len() > 0 {
		return fmt.Errorf("bundle: target_hashes and extra_edges both non-empty")
	}
	if b.UnknownHashes.Len() >= b.Nodes.Len() && b.Nodes.Len() > 0 {
		return fmt.Errorf("bundle: unknown_hashes.len %d not < nodes.len %d", b.UnknownHashes.Len(), b.Nodes.Len())
	}
	if b.fanoutFilled {
		prev := uint32(0)
		for i, f := range b.Fanout {
			if f < prev {
				return fmt.Errorf("bundle: fanout not monotonic at bucket %d", i)
			}
			prev = f
		}
		if b.Fanout[255] != uint32(b.Nodes.Len()) {
			return fmt.Errorf("bundle: fanout[255]=%d != nodes.len=%d", b.Fanout[255], b.Nodes.Len())
		}
	}
	return nil
}
