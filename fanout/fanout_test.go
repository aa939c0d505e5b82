package fanout_test

import (
	"testing"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/fanout"
	"github.com/spbnick/hdag-go/node"
	"github.com/spbnick/hdag-go/target"

	"github.com/stretchr/testify/require"
)

func TestFillMatchesCorrectFanout(t *testing.T) {
	b := bundle.New(1)
	for _, h := range []byte{0x00, 0x01, 0x10, 0x10, 0xFF} {
		b.Nodes.Append(node.Node{
			Hash:    []byte{h},
			Targets: target.Pair{First: target.Absent, Last: target.Absent},
		})
	}
	require.NoError(t, fanout.Fill(b))
	require.True(t, fanout.CorrectFanout(b))
	require.Equal(t, uint32(5), b.Fanout[255])
	require.Equal(t, uint32(1), b.Fanout[0])
	require.Equal(t, uint32(2), b.Fanout[1])
}

func TestFillRejectsHashless(t *testing.T) {
	b := bundle.New(0)
	require.Error(t, fanout.Fill(b))
}

func TestFillRejectsUnresolvedHashTargets(t *testing.T) {
	b := bundle.New(1)
	b.TargetHashes.Append([]byte{1})
	require.Error(t, fanout.Fill(b))
}
