// Package fanout implements the Fanout fill pipeline stage (spec §4.5):
// building the 256-entry prefix table over sorted nodes' first hash byte.
package fanout

import (
	"fmt"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/hdagerr"
)

// Fill computes b.Fanout in a single pass over the (already sorted,
// deduped) node array. It rejects hashless bundles and bundles that
// still carry indirect *hash* targets (pre-compact ranges into
// TargetHashes), since the fanout table is meaningless for the former
// and premature for the latter.
func Fill(b *bundle.Bundle) error {
	if b.HashLen() == 0 {
		return fmt.Errorf("%w: fanout: cannot fill a hashless bundle", hdagerr.ErrInvalid)
	}
	if b.TargetHashes.Len() > 0 {
		return fmt.Errorf("%w: fanout: cannot fill before edge resolution", hdagerr.ErrInvalid)
	}

	nodes := b.Nodes.Slice()
	bCursor := 0
	for i := range nodes {
		for bCursor < 256 && int(nodes[i].Hash[0]) > bCursor {
			b.Fanout[bCursor] = uint32(i)
			bCursor++
		}
	}
	for ; bCursor < 256; bCursor++ {
		b.Fanout[bCursor] = uint32(len(nodes))
	}
	b.MarkFanoutFilled()
	return nil
}

// CorrectFanout reports whether b.Fanout[n] equals the count of nodes
// whose first hash byte is <= n, for every n, the §8 fanout-correctness
// property. Used by tests and by the hdagctl verify command.
func CorrectFanout(b *bundle.Bundle) bool {
	nodes := b.Nodes.Slice()
	for n := 0; n < 256; n++ {
		want := uint32(0)
		for i := range nodes {
			if int(nodes[i].Hash[0]) <= n {
				want++
			}
		}
		if b.Fanout[n] != want {
			return false
		}
	}
	return true
}
