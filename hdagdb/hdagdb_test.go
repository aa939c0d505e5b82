package hdagdb_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spbnick/hdag-go/hdagdb"
	"github.com/spbnick/hdag-go/hdagerr"
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

func bundleFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.hdag"))
	require.NoError(t, err)
	return matches
}

func TestMergeStandaloneWritesNewBundle(t *testing.T) {
	dir := t.TempDir()
	db, err := hdagdb.Open(dir, 1)
	require.NoError(t, err)

	require.NoError(t, db.Merge(seqFromText(t, 1, "01 02\n")))

	bundles := db.Bundles()
	require.Len(t, bundles, 1)
	require.Equal(t, 2, bundles[0].Nodes.Len())
	require.Equal(t, 1, bundles[0].UnknownHashes.Len())
	require.Len(t, bundleFiles(t, dir), 1)
}

func TestMergeRebuildsBundleOnNewlyKnownNode(t *testing.T) {
	dir := t.TempDir()
	db, err := hdagdb.Open(dir, 1)
	require.NoError(t, err)

	require.NoError(t, db.Merge(seqFromText(t, 1, "01 02\n")))
	firstFiles := bundleFiles(t, dir)
	require.Len(t, firstFiles, 1)

	require.NoError(t, db.Merge(seqFromText(t, 1, "02\n")))

	bundles := db.Bundles()
	require.Len(t, bundles, 1)
	require.Equal(t, 2, bundles[0].Nodes.Len())
	require.Equal(t, 0, bundles[0].UnknownHashes.Len())

	secondFiles := bundleFiles(t, dir)
	require.Len(t, secondFiles, 1)
	require.NotEqual(t, firstFiles[0], secondFiles[0])
	_, err = os.Stat(firstFiles[0])
	require.True(t, os.IsNotExist(err))

	_, _, found := db.Find([]byte{1})
	require.True(t, found)
	_, _, found = db.Find([]byte{2})
	require.True(t, found)
}

func TestMergeDropsAlreadyKnownIdenticalNode(t *testing.T) {
	dir := t.TempDir()
	db, err := hdagdb.Open(dir, 1)
	require.NoError(t, err)

	require.NoError(t, db.Merge(seqFromText(t, 1, "01 02\n02\n")))
	require.NoError(t, db.Merge(seqFromText(t, 1, "01 02\n")))

	bundles := db.Bundles()
	require.Len(t, bundles, 1)
	require.Equal(t, 2, bundles[0].Nodes.Len())
}

func TestMergeDetectsNodeConflict(t *testing.T) {
	dir := t.TempDir()
	db, err := hdagdb.Open(dir, 1)
	require.NoError(t, err)

	require.NoError(t, db.Merge(seqFromText(t, 1, "01 02\n02\n")))

	err = db.Merge(seqFromText(t, 1, "01 03\n03\n"))
	require.Error(t, err)
	require.True(t, errors.Is(err, hdagerr.ErrNodeConflictSentinel))

	bundles := db.Bundles()
	require.Len(t, bundles, 1)
	require.Equal(t, 2, bundles[0].Nodes.Len())
}

func TestOpenLoadsExistingBundleFiles(t *testing.T) {
	dir := t.TempDir()
	db, err := hdagdb.Open(dir, 1)
	require.NoError(t, err)
	require.NoError(t, db.Merge(seqFromText(t, 1, "01 02\n02\n")))

	reopened, err := hdagdb.Open(dir, 1)
	require.NoError(t, err)
	require.Len(t, reopened.Bundles(), 1)
	require.Equal(t, 2, reopened.Bundles()[0].Nodes.Len())
}
