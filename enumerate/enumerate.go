// Package enumerate implements the Enumerate pipeline stage (spec §4.8):
// assigning each node a generation (longest path length to a sink) and a
// component (undirected connected-component id) via iterative DFS.
//
// The spec's reference encodes DFS state by biasing the Component and
// Generation fields themselves (a value >= 2^31 means "in progress").
// Per spec §9's own design note, this implementation instead allocates an
// explicit per-node state vector and explicit DFS frames/stacks, trading
// a byte of memory per node for code that a reviewer can check writes
// each result field exactly once.
package enumerate

import (
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/hdagerr"
	"github.com/spbnick/hdag-go/invert"
)

var log = logging.Logger("hdag/enumerate")

const (
	stateUnvisited uint8 = iota
	stateOnStack
	stateDone
)

// Enumerate runs the generation pass followed by the component pass over
// b, which must already be compacted with every node's Component and
// Generation fields at zero.
func Enumerate(b *bundle.Bundle) error {
	if err := generation(b); err != nil {
		return err
	}
	component(b)
	log.Debugw("enumerate complete", "nodes", b.Nodes.Len())
	return nil
}

type frame struct {
	idx    uint32
	cursor uint32
}

// generation assigns generation = 1 + max(target.generation), 0 for
// sinks read as "no targets" (so sinks get generation 1). A target
// found on the current DFS stack is a back-edge: GraphCycle.
func generation(b *bundle.Bundle) error {
	n := b.Nodes.Len()
	state := make([]uint8, n)

	for start := 0; start < n; start++ {
		if state[start] != stateUnvisited {
			continue
		}
		stack := []frame{{idx: uint32(start)}}
		state[start] = stateOnStack

		for len(stack) > 0 {
			top := len(stack) - 1
			idx := stack[top].idx
			cnt := b.TargetsCount(idx)

			if stack[top].cursor >= cnt {
				maxGen := uint32(0)
				for k := uint32(0); k < cnt; k++ {
					t := b.TargetsNodeIdx(idx, k)
					if g := b.NodeRef(t).Generation; g > maxGen {
						maxGen = g
					}
				}
				b.NodeRef(idx).Generation = 1 + maxGen
				state[idx] = stateDone
				stack = stack[:top]
				continue
			}

			k := stack[top].cursor
			stack[top].cursor++
			tgt := b.TargetsNodeIdx(idx, k)

			switch state[tgt] {
			case stateOnStack:
				return fmt.Errorf("%w: back-edge to node %d", hdagerr.ErrGraphCycle, tgt)
			case stateUnvisited:
				state[tgt] = stateOnStack
				stack = append(stack, frame{idx: tgt})
			case stateDone:
				// already resolved; cursor already advanced, loop again.
			}
		}
	}
	return nil
}

// component assigns a 1-based connected-component id over the undirected
// projection of the DAG: the union of forward edges and the (hashless)
// inverted bundle's edges.
func component(b *bundle.Bundle) {
	inv := invert.Invert(b, true)
	n := b.Nodes.Len()
	visited := make([]bool, n)
	compID := uint32(0)

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		compID++
		stack := []uint32{uint32(start)}
		visited[start] = true

		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			b.NodeRef(cur).Component = compID

			cnt := b.TargetsCount(cur)
			for k := uint32(0); k < cnt; k++ {
				t := b.TargetsNodeIdx(cur, k)
				if !visited[t] {
					visited[t] = true
					stack = append(stack, t)
				}
			}
			icnt := inv.TargetsCount(cur)
			for k := uint32(0); k < icnt; k++ {
				t := inv.TargetsNodeIdx(cur, k)
				if !visited[t] {
					visited[t] = true
					stack = append(stack, t)
				}
			}
		}
	}
}
