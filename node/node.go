// Package node defines the fixed-width node record shared by every bundle:
// a hash, its (first, last) target pair, and the two enumeration fields
// (component, generation) filled in by the enumerate stage.
package node

import (
	"encoding/binary"

	"github.com/spbnick/hdag-go/target"
)

// FixedSize is the number of bytes a Node occupies on disk or in memory,
// excluding the hash (targets(8) + component(4) + generation(4)).
const FixedSize = 16

// Node is a single record: a hash plus its targets and enumeration state.
type Node struct {
	Hash       []byte
	Targets    target.Pair
	Component  uint32
	Generation uint32
}

// Known reports whether the node's targets are defined (not UNKNOWN).
func (n *Node) Known() bool { return !n.Targets.IsUnknown() }

// AbsentTargets reports whether the node has no outgoing edges at all.
func (n *Node) AbsentTargets() bool {
	return n.Targets.First.IsAbsent() && n.Targets.Last.IsAbsent()
}

// Indirect reports whether the node's targets are an indirect range.
func (n *Node) Indirect() bool { return n.Targets.IsIndirect() }

// Size returns the on-disk size of a node record for a given hash length.
func Size(hashLen uint16) int { return int(hashLen) + FixedSize }

// Marshal writes n into buf, which must be at least Size(len(n.Hash))
// bytes long.
func (n *Node) Marshal(buf []byte) {
	h := len(n.Hash)
	copy(buf[:h], n.Hash)
	binary.LittleEndian.PutUint32(buf[h:h+4], uint32(n.Targets.First))
	binary.LittleEndian.PutUint32(buf[h+4:h+8], uint32(n.Targets.Last))
	binary.LittleEndian.PutUint32(buf[h+8:h+12], n.Component)
	binary.LittleEndian.PutUint32(buf[h+12:h+16], n.Generation)
}

// Unmarshal populates n from buf, which must contain at least
// Size(hashLen) bytes. The hash is copied into a freshly allocated slice.
func Unmarshal(buf []byte, hashLen uint16) Node {
	h := int(hashLen)
	hash := make([]byte, h)
	copy(hash, buf[:h])
	return Node{
		Hash: hash,
		Targets: target.Pair{
			First: target.Target(binary.LittleEndian.Uint32(buf[h : h+4])),
			Last:  target.Target(binary.LittleEndian.Uint32(buf[h+4 : h+8])),
		},
		Component:  binary.LittleEndian.Uint32(buf[h+8 : h+12]),
		Generation: binary.LittleEndian.Uint32(buf[h+12 : h+16]),
	}
}

// CompareHash performs a bytewise comparison of two node hashes, the
// canonical ordering used throughout the bundle engine.
func CompareHash(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
