package compact_test

import (
	"io"
	"strings"
	"testing"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/compact"
	"github.com/spbnick/hdag-go/fanout"
	"github.com/spbnick/hdag-go/ingest"
	"github.com/spbnick/hdag-go/sortdedup"
	"github.com/spbnick/hdag-go/textseq"

	"github.com/stretchr/testify/require"
)

func build(t *testing.T, text string) *bundle.Bundle {
	t.Helper()
	opener := func() (io.Reader, error) { return strings.NewReader(text), nil }
	seq, err := textseq.New(4, opener)
	require.NoError(t, err)
	b, err := ingest.Ingest(seq)
	require.NoError(t, err)
	require.NoError(t, sortdedup.Sort(b))
	require.NoError(t, sortdedup.Dedup(b))
	require.NoError(t, fanout.Fill(b))
	return b
}

func TestCompactFanIn(t *testing.T) {
	b := build(t, "00000001 00000000\n00000002 00000000\n00000003 00000000\n00000004 00000001 00000002 00000003\n")
	require.NoError(t, compact.Compact(b))
	require.Equal(t, 0, b.TargetHashes.Len())

	idx4 := b.FindNodeIdx([]byte{0, 0, 0, 4})
	require.NotEqual(t, bundle.NotFound, idx4)
	require.True(t, b.Targets(idx4).IsIndirect())
	require.Equal(t, uint32(3), b.TargetsCount(idx4))

	idx1 := b.FindNodeIdx([]byte{0, 0, 0, 1})
	require.True(t, b.Targets(idx1).First.IsDirect())
	require.Equal(t, uint32(1), b.TargetsCount(idx1))
	require.Equal(t, b.FindNodeIdx([]byte{0, 0, 0, 0}), b.TargetsNodeIdx(idx1, 0))
}

func TestCompactTwoEdgesInline(t *testing.T) {
	b := build(t, "00000001 00000002 00000003\n")
	require.NoError(t, compact.Compact(b))
	idx1 := b.FindNodeIdx([]byte{0, 0, 0, 1})
	p := b.Targets(idx1)
	require.True(t, p.First.IsDirect())
	require.True(t, p.Last.IsDirect())
	require.Equal(t, uint32(2), p.Count())
}
