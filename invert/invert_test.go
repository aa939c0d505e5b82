package invert_test

import (
	"io"
	"strings"
	"testing"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/compact"
	"github.com/spbnick/hdag-go/fanout"
	"github.com/spbnick/hdag-go/ingest"
	"github.com/spbnick/hdag-go/invert"
	"github.com/spbnick/hdag-go/sortdedup"
	"github.com/spbnick/hdag-go/textseq"

	"github.com/stretchr/testify/require"
)

func organize(t *testing.T, text string) *bundle.Bundle {
	t.Helper()
	opener := func() (io.Reader, error) { return strings.NewReader(text), nil }
	seq, err := textseq.New(4, opener)
	require.NoError(t, err)
	b, err := ingest.Ingest(seq)
	require.NoError(t, err)
	require.NoError(t, sortdedup.Sort(b))
	require.NoError(t, sortdedup.Dedup(b))
	require.NoError(t, fanout.Fill(b))
	require.NoError(t, compact.Compact(b))
	return b
}

func TestInvertFanIn(t *testing.T) {
	b := organize(t, "00000001 00000000\n00000002 00000000\n00000003 00000000\n00000004 00000001 00000002 00000003\n")
	inv := invert.Invert(b, false)

	idx0 := inv.FindNodeIdx([]byte{0, 0, 0, 0})
	require.Equal(t, uint32(3), inv.TargetsCount(idx0))
}

func TestInvertInvolutionOnTopology(t *testing.T) {
	b := organize(t, "00000001 00000000\n00000002 00000000\n00000003 00000000\n00000004 00000001 00000002 00000003\n")
	inv1 := invert.Invert(b, true)
	inv2 := invert.Invert(inv1, true)

	// inv2's node order matches b's (index-preserving reversal), hashless
	// throughout, so compare by node position rather than by hash.
	for i := 0; i < b.Nodes.Len(); i++ {
		wantCount := b.TargetsCount(uint32(i))
		gotCount := inv2.TargetsCount(uint32(i))
		require.Equal(t, wantCount, gotCount, "node %d", i)

		want := map[uint32]int{}
		for k := uint32(0); k < wantCount; k++ {
			want[b.TargetsNodeIdx(uint32(i), k)]++
		}
		got := map[uint32]int{}
		for k := uint32(0); k < gotCount; k++ {
			got[inv2.TargetsNodeIdx(uint32(i), k)]++
		}
		require.Equal(t, want, got, "node %d", i)
	}
}
