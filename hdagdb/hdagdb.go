// Package hdagdb implements the database of bundle files and the Merge
// control flow (spec §4.9): given an existing ordered list of organized
// bundles and a new node sequence, determine which bundles must be
// rebuilt, concatenate their node sequences, re-organize, and atomically
// replace them on disk.
//
// Grounded on store/index/index.go's remap-then-rename file-replacement
// sequence and store/freelist/freelist.go's ToGC (rename current file
// aside, open a fresh one); directory-wide writer exclusivity is a plain
// create-exclusive lock file, since the corpus does not import a flock
// library and the teacher's own in-process exclusivity is likewise a
// bare sync primitive (store.Store's stateLk).
package hdagdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/bundlefile"
	"github.com/spbnick/hdag-go/hdagerr"
	"github.com/spbnick/hdag-go/nodeseq"
	"github.com/spbnick/hdag-go/organize"
)

var log = logging.Logger("hdag/hdagdb")

// entry pairs a loaded bundle with the file it was loaded from.
type entry struct {
	path string
	b    *bundle.Bundle
}

// DB is a directory-backed collection of organized bundle files.
type DB struct {
	dir     string
	hashLen uint16

	mu      sync.Mutex
	entries []*entry

	lockPath string
}

// Open loads every "*.hdag" file in dir (creating dir if it does not
// exist) as a bundle, all of which must share hashLen.
func Open(dir string, hashLen uint16) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: hdagdb: mkdir %s: %w", hdagerr.ErrIoResource, dir, err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.hdag"))
	if err != nil {
		return nil, fmt.Errorf("%w: hdagdb: glob: %w", hdagerr.ErrIoResource, err)
	}
	sort.Strings(paths)

	db := &DB{dir: dir, hashLen: hashLen, lockPath: filepath.Join(dir, ".hdagdb.lock")}
	for _, p := range paths {
		b, err := loadBundleFile(p)
		if err != nil {
			return nil, fmt.Errorf("hdagdb: loading %s: %w", p, err)
		}
		if b.HashLen() != hashLen {
			return nil, fmt.Errorf("%w: hdagdb: %s has hash_len %d, want %d", hdagerr.ErrInvalidFormat, p, b.HashLen(), hashLen)
		}
		db.entries = append(db.entries, &entry{path: p, b: b})
	}
	log.Infow("database opened", "dir", dir, "bundles", len(db.entries))
	return db, nil
}

func loadBundleFile(path string) (*bundle.Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hdagerr.ErrIoResource, err)
	}
	defer f.Close()
	return bundlefile.Decode(f)
}

// Bundles returns the currently loaded bundles in database order. The
// returned slice and bundles must be treated as read-only.
func (db *DB) Bundles() []*bundle.Bundle {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]*bundle.Bundle, len(db.entries))
	for i, e := range db.entries {
		out[i] = e.b
	}
	return out
}

// Find locates hash across every bundle in the database, returning the
// owning bundle's index and the node's index within it.
func (db *DB) Find(hash []byte) (bundleIdx int, nodeIdx uint32, found bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i, e := range db.entries {
		if idx := e.b.FindNodeIdx(hash); idx != bundle.NotFound {
			return i, idx, true
		}
	}
	return 0, 0, false
}

// Close is currently a no-op placeholder: bundles are held entirely in
// memory once loaded and there is no background goroutine or open file
// descriptor to release between merges.
func (db *DB) Close() error { return nil }

// lock acquires the directory-wide writer-exclusive lock required
// around Merge (spec §5): readers must never observe the gap between
// unlinking rebuilt files and the merged file's rename landing.
func (db *DB) lock() (unlock func(), err error) {
	f, err := os.OpenFile(db.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: hdagdb: database is locked by another writer", hdagerr.ErrIoResource)
		}
		return nil, fmt.Errorf("%w: hdagdb: lock: %w", hdagerr.ErrIoResource, err)
	}
	return func() {
		f.Close()
		os.Remove(db.lockPath)
	}, nil
}

// Merge organizes the new-node sequence seq against the database,
// determines which existing bundles must be rebuilt, and atomically
// replaces them with a single re-organized bundle (spec §4.9). D is
// left completely unchanged if Merge returns an error.
func (db *DB) Merge(seq nodeseq.Sequence) error {
	unlock, err := db.lock()
	if err != nil {
		return err
	}
	defer unlock()

	db.mu.Lock()
	defer db.mu.Unlock()

	bNew, err := organize.Organize(seq)
	if err != nil {
		return fmt.Errorf("hdagdb: merge: organizing new nodes: %w", err)
	}

	rebuild := make([]bool, len(db.entries))
	dropped, err := db.classifyAgainstExisting(bNew, rebuild)
	if err != nil {
		return err
	}
	closeRebuildSet(db.entries, rebuild)

	if !anyTrue(rebuild) {
		return db.writeFiltered(bNew, dropped)
	}

	concatenated := concatenateRebuildSet(bNew, dropped, db.entries, rebuild)
	bMerged, err := organize.Organize(concatenated)
	if err != nil {
		return fmt.Errorf("hdagdb: merge: re-organizing rebuild set: %w", err)
	}
	if err := validateAgainstContext(bMerged, db.entries, rebuild); err != nil {
		return err
	}

	return db.replaceRebuiltBundles(bMerged, rebuild)
}

// classifyAgainstExisting implements spec §4.9 step 2: for each known
// node of bNew, locate it across every database bundle (concurrently,
// since lookups are independent read-only work) and either mark it to be
// dropped (equal content already known), fail with NodeConflict
// (disagreeing content), or mark the owning bundle for rebuild
// (currently unknown there).
func (db *DB) classifyAgainstExisting(bNew *bundle.Bundle, rebuild []bool) ([]bool, error) {
	n := bNew.Nodes.Len()
	dropped := make([]bool, n)
	nodes := bNew.Nodes.Slice()

	var mu sync.Mutex
	var g errgroup.Group
	for i := range nodes {
		if !nodes[i].Known() {
			continue
		}
		i := i
		g.Go(func() error {
			hash := nodes[i].Hash
			for bi, e := range db.entries {
				idx := e.b.FindNodeIdx(hash)
				if idx == bundle.NotFound {
					continue
				}
				existing := e.b.Node(idx)
				if !existing.Known() {
					mu.Lock()
					rebuild[bi] = true
					mu.Unlock()
					continue
				}
				if !sameKnownTargets(bNew, uint32(i), e.b, idx) {
					return hdagerr.NewNodeConflict(hash)
				}
				mu.Lock()
				dropped[i] = true
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dropped, nil
}

func anyTrue(bs []bool) bool {
	for _, v := range bs {
		if v {
			return true
		}
	}
	return false
}

// writeFiltered handles the case where no existing bundle needs
// rebuilding: bNew, re-organized once more with already-known-elsewhere
// nodes dropped, is written as a brand new bundle file.
func (db *DB) writeFiltered(bNew *bundle.Bundle, dropped []bool) error {
	final := bNew
	if anyTrue(dropped) {
		var err error
		final, err = organize.Organize(newBundleSeq(bNew, dropped))
		if err != nil {
			return fmt.Errorf("hdagdb: merge: re-organizing after database dedup: %w", err)
		}
	}
	if final.Nodes.Len() == 0 {
		return nil
	}
	path := filepath.Join(db.dir, uuid.NewString()+".hdag")
	if err := writeBundleAtomic(path, final); err != nil {
		return err
	}
	db.entries = append(db.entries, &entry{path: path, b: final})
	log.Infow("merge wrote standalone bundle", "path", path, "nodes", final.Nodes.Len())
	return nil
}

// replaceRebuiltBundles writes bMerged, fsyncs and renames it into place,
// then updates the in-memory entry list and unlinks every rebuilt
// bundle's file, in that order, so a crash before the rename leaves the
// database untouched.
func (db *DB) replaceRebuiltBundles(bMerged *bundle.Bundle, rebuild []bool) error {
	path := filepath.Join(db.dir, uuid.NewString()+".hdag")
	if err := writeBundleAtomic(path, bMerged); err != nil {
		return err
	}

	var kept []*entry
	var removedPaths []string
	for i, e := range db.entries {
		if rebuild[i] {
			removedPaths = append(removedPaths, e.path)
			continue
		}
		kept = append(kept, e)
	}
	kept = append(kept, &entry{path: path, b: bMerged})
	db.entries = kept

	for _, p := range removedPaths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Errorw("failed to unlink rebuilt bundle file", "path", p, "err", err)
		}
	}
	log.Infow("merge replaced rebuilt bundles", "rebuilt", len(removedPaths), "path", path, "nodes", bMerged.Nodes.Len())
	return nil
}

// writeBundleAtomic implements the write-new/fsync/rename/fsync-dir
// pattern resolving spec §9's file-atomicity open question.
func writeBundleAtomic(finalPath string, b *bundle.Bundle) error {
	tmpPath := finalPath + ".new"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: hdagdb: create %s: %w", hdagerr.ErrIoResource, tmpPath, err)
	}
	if err := bundlefile.Encode(f, b); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: hdagdb: fsync %s: %w", hdagerr.ErrIoResource, tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: hdagdb: close %s: %w", hdagerr.ErrIoResource, tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: hdagdb: rename %s to %s: %w", hdagerr.ErrIoResource, tmpPath, finalPath, err)
	}
	if dir, err := os.Open(filepath.Dir(finalPath)); err == nil {
		dir.Sync()
		dir.Close()
	}
	return nil
}
