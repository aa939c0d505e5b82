// Package sortdedup implements the Sort & dedup pipeline stage (spec
// §4.4): lexicographic node ordering, per-node target-hash ordering,
// duplicate-edge collapsing, and duplicate-node collapsing with content
// consistency checks.
package sortdedup

import (
	"bytes"
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/hdagarray"
	"github.com/spbnick/hdag-go/hdagerr"
	"github.com/spbnick/hdag-go/node"
	"github.com/spbnick/hdag-go/target"
)

var log = logging.Logger("hdag/sortdedup")

// Sort orders b's nodes lexicographically ascending by hash, and sorts
// each indirect-targets node's slice of TargetHashes ascending. It
// refuses to run if any node already carries an indirect *index* target
// (i.e. the bundle has been compacted): node order would invalidate
// those indices.
func Sort(b *bundle.Bundle) error {
	if hasIndirectIndexTargets(b) {
		return fmt.Errorf("%w: sortdedup: cannot sort a compacted bundle", hdagerr.ErrInvalid)
	}

	nodes := b.Nodes.Slice()
	for i := range nodes {
		if nodes[i].Targets.IsIndirect() {
			sortTargetHashSlice(b, nodes[i].Targets)
		}
	}

	b.Nodes.Sort(func(x, y node.Node) bool { return node.CompareHash(x.Hash, y.Hash) < 0 })
	b.ClearFanout()
	log.Debugw("sort complete", "nodes", b.Nodes.Len())
	return nil
}

// IsSorted reports whether b's nodes are currently in ascending hash
// order, the property `sort` establishes.
func IsSorted(b *bundle.Bundle) bool {
	return b.Nodes.IsSortedFunc(func(x, y node.Node) bool { return node.CompareHash(x.Hash, y.Hash) < 0 })
}

func hasIndirectIndexTargets(b *bundle.Bundle) bool {
	if b.TargetHashes.Len() > 0 {
		return false
	}
	nodes := b.Nodes.Slice()
	for i := range nodes {
		if nodes[i].Targets.IsIndirect() {
			return true
		}
	}
	return false
}

func sortTargetHashSlice(b *bundle.Bundle, p target.Pair) {
	first := int(p.First.ToIndirect())
	last := int(p.Last.ToIndirect())
	slice := b.TargetHashes.Slice()[first : last+1]
	// Small per-node slices; insertion sort keeps this allocation-free and
	// is plenty fast given each node typically has few edges.
	for i := 1; i < len(slice); i++ {
		for j := i; j > 0 && bytes.Compare(slice[j], slice[j-1]) < 0; j-- {
			slice[j], slice[j-1] = slice[j-1], slice[j]
		}
	}
}

// Dedup runs edge dedup followed by node dedup on a sorted bundle.
func Dedup(b *bundle.Bundle) error {
	dedupEdges(b)
	if err := dedupNodes(b); err != nil {
		return err
	}
	b.ClearFanout()
	log.Debugw("dedup complete", "nodes", b.Nodes.Len(), "unknown_hashes", b.UnknownHashes.Len())
	return nil
}

// dedupEdges collapses runs of equal adjacent target hashes within each
// node's own (already sorted) slice. Per-node slices are disjoint, so
// this rebuilds TargetHashes once, linear in total edge count.
func dedupEdges(b *bundle.Bundle) {
	if b.TargetHashes.Len() == 0 {
		return
	}
	var newTH hdagarray.Array[[]byte]
	nodes := b.Nodes.Slice()
	for i := range nodes {
		if !nodes[i].Targets.IsIndirect() {
			continue
		}
		first := int(nodes[i].Targets.First.ToIndirect())
		last := int(nodes[i].Targets.Last.ToIndirect())
		newFirst := newTH.Len()
		var prev []byte
		for idx := first; idx <= last; idx++ {
			h := b.TargetHashes.At(idx)
			if prev != nil && bytes.Equal(prev, h) {
				continue
			}
			newTH.Append(h)
			prev = h
		}
		newLast := newTH.Len() - 1
		nodes[i].Targets = target.Pair{
			First: target.FromIndirect(uint32(newFirst)),
			Last:  target.FromIndirect(uint32(newLast)),
		}
	}
	b.TargetHashes = newTH
}

// dedupNodes collapses runs of equal-hash nodes, keeping one
// representative per run and validating that all known nodes in a run
// agree on their target sets.
func dedupNodes(b *bundle.Bundle) error {
	old := append([]node.Node(nil), b.Nodes.Slice()...)
	var newNodes hdagarray.Array[node.Node]

	i := 0
	for i < len(old) {
		j := i + 1
		for j < len(old) && node.CompareHash(old[j].Hash, old[i].Hash) == 0 {
			j++
		}
		rep, err := pickRepresentative(b, old, i, j)
		if err != nil {
			return err
		}
		newNodes.Append(rep)
		i = j
	}

	b.Nodes = newNodes
	return nil
}

func pickRepresentative(b *bundle.Bundle, run []node.Node, lo, hi int) (node.Node, error) {
	knownIdx := -1
	for k := lo; k < hi; k++ {
		if !run[k].Known() {
			continue
		}
		if knownIdx == -1 {
			knownIdx = k
			continue
		}
		if !equalTargets(b, run[knownIdx].Targets, run[k].Targets) {
			return node.Node{}, hdagerr.NewNodeConflict(run[k].Hash)
		}
	}
	if knownIdx != -1 {
		return run[knownIdx], nil
	}
	rep := run[lo]
	hashCopy := make([]byte, len(rep.Hash))
	copy(hashCopy, rep.Hash)
	b.UnknownHashes.Append(hashCopy)
	return rep, nil
}

func equalTargets(b *bundle.Bundle, a, c target.Pair) bool {
	ca, cc := a.Count(), c.Count()
	if ca != cc {
		return false
	}
	for k := uint32(0); k < ca; k++ {
		if !bytes.Equal(targetHashAt(b, a, k), targetHashAt(b, c, k)) {
			return false
		}
	}
	return true
}

func targetHashAt(b *bundle.Bundle, p target.Pair, k uint32) []byte {
	if !p.First.IsIndirect() {
		panic("sortdedup: targetHashAt called on non-indirect pair")
	}
	return b.TargetHashes.At(int(p.First.ToIndirect() + k))
}
