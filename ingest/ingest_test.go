package ingest_test

import (
	"io"
	"strings"
	"testing"

	"github.com/spbnick/hdag-go/ingest"
	"github.com/spbnick/hdag-go/textseq"

	"github.com/stretchr/testify/require"
)

func seqFromText(t *testing.T, hashLen uint16, text string) *textseq.Sequence {
	t.Helper()
	opener := func() (io.Reader, error) { return strings.NewReader(text), nil }
	seq, err := textseq.New(hashLen, opener)
	require.NoError(t, err)
	return seq
}

func TestIngestCreatesSyntheticUnknownTargets(t *testing.T) {
	b, err := ingest.Ingest(seqFromText(t, 1, "01 02\n"))
	require.NoError(t, err)
	require.Equal(t, 2, b.Nodes.Len())

	nodes := b.Nodes.Slice()
	var sawKnown, sawUnknown bool
	for i := range nodes {
		switch {
		case nodes[i].Hash[0] == 1:
			require.True(t, nodes[i].Known())
			sawKnown = true
		case nodes[i].Hash[0] == 2:
			require.False(t, nodes[i].Known())
			sawUnknown = true
		}
	}
	require.True(t, sawKnown)
	require.True(t, sawUnknown)
}

func TestIngestAbsentTargetsForSourceOnlyLine(t *testing.T) {
	b, err := ingest.Ingest(seqFromText(t, 1, "01\n"))
	require.NoError(t, err)
	require.Equal(t, 1, b.Nodes.Len())
	n := b.Nodes.Slice()[0]
	require.True(t, n.Known())
	require.True(t, n.AbsentTargets())
}

func TestIngestPropagatesTargetIterError(t *testing.T) {
	_, err := ingest.Ingest(seqFromText(t, 1, "01 zz\n"))
	require.Error(t, err)
}

func TestIngestEmptySequence(t *testing.T) {
	b, err := ingest.Ingest(seqFromText(t, 1, ""))
	require.NoError(t, err)
	require.Equal(t, 0, b.Nodes.Len())
}
