package hdagdb

import (
	"bytes"
	"io"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/hdagerr"
	"github.com/spbnick/hdag-go/node"
	"github.com/spbnick/hdag-go/nodeseq"
)

// sameKnownTargets reports whether node bNewIdx of bNew and node
// existingIdx of existing carry identical known target-hash sets, the
// content-equality check spec §4.9 requires before a node can be dropped
// as a known duplicate instead of raising NodeConflict.
func sameKnownTargets(bNew *bundle.Bundle, bNewIdx uint32, existing *bundle.Bundle, existingIdx uint32) bool {
	count := bNew.TargetsCount(bNewIdx)
	if count != existing.TargetsCount(existingIdx) {
		return false
	}
	for k := uint32(0); k < count; k++ {
		if !bytes.Equal(bNew.TargetsNodeHash(bNewIdx, k), existing.TargetsNodeHash(existingIdx, k)) {
			return false
		}
	}
	return true
}

// unknownHashContains reports whether hash appears in b's (sorted)
// unknown-hashes array.
func unknownHashContains(b *bundle.Bundle, hash []byte) bool {
	u := b.UnknownHashes.Slice()
	lo, hi := 0, len(u)
	for lo < hi {
		mid := lo + (hi-lo)/2
		c := node.CompareHash(u[mid], hash)
		switch {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid
		default:
			return true
		}
	}
	return false
}

// closeRebuildSet extends rebuild to its transitive closure (spec §4.9
// step 3): any bundle holding a known node whose hash another rebuild
// bundle currently lists as unknown must itself be rebuilt too, since
// the merged graph may now be able to resolve that edge.
func closeRebuildSet(entries []*entry, rebuild []bool) {
	for {
		changed := false
		for bi, e := range entries {
			if rebuild[bi] {
				continue
			}
			if bundleFeedsRebuiltUnknown(e.b, entries, rebuild) {
				rebuild[bi] = true
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func bundleFeedsRebuiltUnknown(b *bundle.Bundle, entries []*entry, rebuild []bool) bool {
	nodes := b.Nodes.Slice()
	for i := range nodes {
		if !nodes[i].Known() {
			continue
		}
		for bi, e := range entries {
			if !rebuild[bi] {
				continue
			}
			if unknownHashContains(e.b, nodes[i].Hash) {
				return true
			}
		}
	}
	return false
}

// validateAgainstContext implements spec §4.9's re-validation of the
// re-organized rebuild set against the bundles left untouched: any known
// node of bMerged that a non-rebuilt bundle also defines, with
// disagreeing targets, is a conflict even though it was never looked up
// during the initial classification pass (it may have been introduced by
// concatenating a rebuilt bundle's own nodes, not just bNew's).
func validateAgainstContext(bMerged *bundle.Bundle, entries []*entry, rebuild []bool) error {
	nodes := bMerged.Nodes.Slice()
	for i := range nodes {
		if !nodes[i].Known() {
			continue
		}
		for bi, e := range entries {
			if rebuild[bi] {
				continue
			}
			idx := e.b.FindNodeIdx(nodes[i].Hash)
			if idx == bundle.NotFound {
				continue
			}
			existing := e.b.Node(idx)
			if !existing.Known() {
				continue
			}
			if !sameKnownTargets(bMerged, uint32(i), e.b, idx) {
				return hdagerr.NewNodeConflict(nodes[i].Hash)
			}
		}
	}
	return nil
}

// concatenateRebuildSet builds the node sequence Merge re-organizes:
// bNew's known nodes minus the ones dropped as already-known-elsewhere,
// followed by each rebuild bundle's known nodes.
func concatenateRebuildSet(bNew *bundle.Bundle, dropped []bool, entries []*entry, rebuild []bool) nodeseq.Sequence {
	seqs := []nodeseq.Sequence{newBundleSeq(bNew, dropped)}
	for bi, e := range entries {
		if rebuild[bi] {
			seqs = append(seqs, newBundleSeq(e.b, nil))
		}
	}
	return newConcatSeq(seqs)
}

// bundleSeq replays a bundle's known, non-skipped nodes as a
// nodeseq.Sequence, the adapter Merge uses to feed bundle content back
// through Organize.
type bundleSeq struct {
	b    *bundle.Bundle
	skip []bool
	idx  int
}

func newBundleSeq(b *bundle.Bundle, skip []bool) *bundleSeq {
	return &bundleSeq{b: b, skip: skip}
}

func (s *bundleSeq) HashLen() uint16 { return s.b.HashLen() }

func (s *bundleSeq) Next() ([]byte, nodeseq.TargetIter, error) {
	for s.idx < s.b.Nodes.Len() {
		i := s.idx
		s.idx++
		n := s.b.Node(uint32(i))
		if !n.Known() {
			continue
		}
		if s.skip != nil && s.skip[i] {
			continue
		}
		return n.Hash, &bundleTargetIter{b: s.b, idx: uint32(i), count: s.b.TargetsCount(uint32(i))}, nil
	}
	return nil, nil, io.EOF
}

func (s *bundleSeq) Resettable() bool { return true }

func (s *bundleSeq) Reset() error {
	s.idx = 0
	return nil
}

type bundleTargetIter struct {
	b     *bundle.Bundle
	idx   uint32
	k     uint32
	count uint32
}

func (it *bundleTargetIter) Next() ([]byte, error) {
	if it.k >= it.count {
		return nil, io.EOF
	}
	h := it.b.TargetsNodeHash(it.idx, it.k)
	it.k++
	return h, nil
}

// concatSeq chains several sequences into one, draining each in turn.
type concatSeq struct {
	seqs []nodeseq.Sequence
	cur  int
}

func newConcatSeq(seqs []nodeseq.Sequence) *concatSeq { return &concatSeq{seqs: seqs} }

func (c *concatSeq) HashLen() uint16 {
	if len(c.seqs) == 0 {
		return 0
	}
	return c.seqs[0].HashLen()
}

func (c *concatSeq) Next() ([]byte, nodeseq.TargetIter, error) {
	for c.cur < len(c.seqs) {
		h, it, err := c.seqs[c.cur].Next()
		if err == io.EOF {
			c.cur++
			continue
		}
		return h, it, err
	}
	return nil, nil, io.EOF
}

func (c *concatSeq) Resettable() bool {
	for _, s := range c.seqs {
		if !s.Resettable() {
			return false
		}
	}
	return true
}

func (c *concatSeq) Reset() error {
	for _, s := range c.seqs {
		if err := s.Reset(); err != nil {
			return err
		}
	}
	c.cur = 0
	return nil
}
