package node_test

import (
	"testing"

	"github.com/spbnick/hdag-go/node"
	"github.com/spbnick/hdag-go/target"

	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	n := node.Node{
		Hash:       []byte{1, 2, 3, 4},
		Targets:    target.Pair{First: target.FromDirect(5), Last: target.FromDirect(6)},
		Component:  7,
		Generation: 8,
	}
	buf := make([]byte, node.Size(uint16(len(n.Hash))))
	n.Marshal(buf)

	got := node.Unmarshal(buf, uint16(len(n.Hash)))
	require.Equal(t, n.Hash, got.Hash)
	require.Equal(t, n.Targets, got.Targets)
	require.Equal(t, n.Component, got.Component)
	require.Equal(t, n.Generation, got.Generation)
}

func TestKnownAndAbsent(t *testing.T) {
	unknown := node.Node{Targets: target.Pair{First: target.Unknown, Last: target.Unknown}}
	require.False(t, unknown.Known())

	absent := node.Node{Targets: target.Pair{First: target.Absent, Last: target.Absent}}
	require.True(t, absent.Known())
	require.True(t, absent.AbsentTargets())

	direct := node.Node{Targets: target.Pair{First: target.FromDirect(1), Last: target.Absent}}
	require.True(t, direct.Known())
	require.False(t, direct.AbsentTargets())
	require.False(t, direct.Indirect())
}

func TestCompareHash(t *testing.T) {
	require.Equal(t, 0, node.CompareHash([]byte{1, 2}, []byte{1, 2}))
	require.Equal(t, -1, node.CompareHash([]byte{1, 2}, []byte{1, 3}))
	require.Equal(t, 1, node.CompareHash([]byte{1, 3}, []byte{1, 2}))
	require.Equal(t, -1, node.CompareHash([]byte{1}, []byte{1, 0}))
}
