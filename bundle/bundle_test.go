package bundle_test

import (
	"testing"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/node"
	"github.com/spbnick/hdag-go/target"

	"github.com/stretchr/testify/require"
)

func sortedBundle() *bundle.Bundle {
	b := bundle.New(1)
	for i := 0; i < 4; i++ {
		b.Nodes.Append(node.Node{
			Hash:    []byte{byte(i * 2)},
			Targets: target.Pair{First: target.Absent, Last: target.Absent},
		})
	}
	return b
}

func TestFindNodeIdxWithoutFanout(t *testing.T) {
	b := sortedBundle()
	require.Equal(t, uint32(2), b.FindNodeIdx([]byte{4}))
	require.Equal(t, bundle.NotFound, b.FindNodeIdx([]byte{5}))
}

func TestFindNodeIdxWithFanout(t *testing.T) {
	b := sortedBundle()
	for i := range b.Fanout {
		count := uint32(0)
		for j := 0; j < b.Nodes.Len(); j++ {
			if int(b.Nodes.At(j).Hash[0]) <= i {
				count++
			}
		}
		b.Fanout[i] = count
	}
	b.MarkFanoutFilled()
	require.Equal(t, uint32(3), b.FindNodeIdx([]byte{6}))
	require.Equal(t, bundle.NotFound, b.FindNodeIdx([]byte{7}))
}

func TestCheckInvariantsRejectsBothAuxArrays(t *testing.T) {
	b := bundle.New(1)
	b.TargetHashes.Append([]byte{1})
	b.ExtraEdges.Append(0)
	require.Error(t, b.CheckInvariants())
}

func TestResetClearsBundle(t *testing.T) {
	b := sortedBundle()
	b.Reset()
	require.Equal(t, 0, b.Nodes.Len())
	require.False(t, b.FanoutFilled())
}
