// Package bundlefile implements the bit-exact on-disk bundle layout of
// spec §6: magic/version/hash_len header, 256-entry fanout table, node
// records, extra edges, unknown hashes, and a counts-plus-checksum
// trailer. All multi-byte integers are little-endian.
//
// Grounded on compactindexsized's Header.Bytes/Load (magic + LE header
// fields) and store/freelist's buffered little-endian record writer.
package bundlefile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/hdagarray"
	"github.com/spbnick/hdag-go/hdagerr"
	"github.com/spbnick/hdag-go/node"
)

// Magic are the first eight bytes of a bundle file.
var Magic = [8]byte{'h', 'd', 'a', 'g', 'b', 'n', 'd', 'l'}

// Version is the current bundle file format version.
const Version = uint8(1)

// HeaderSize is the fixed size of the magic+version+hash_len header.
const HeaderSize = 8 + 1 + 2

// FanoutSize is the fixed size of the 256-entry fanout table.
const FanoutSize = 256 * 4

// TrailerSize is the fixed size of the counts-plus-checksum trailer:
// (nodes, extra_edges, unknown_hashes) counts, duplicated, plus an
// xxhash64 checksum over the node records.
const TrailerSize = 3*4*2 + 8

// Encode writes b's byte image to w: header, fanout, nodes, extra edges,
// unknown hashes, trailer. b must already be organized (sorted, deduped,
// fanout-filled, compacted, enumerated); Encode does not re-check every
// invariant, only the structural ones it needs to size the layout.
func Encode(w io.Writer, b *bundle.Bundle) error {
	if b.TargetHashes.Len() > 0 {
		return fmt.Errorf("%w: bundlefile: cannot encode an uncompacted bundle", hdagerr.ErrInvalid)
	}

	bw := bufio.NewWriter(w)
	var hdr [HeaderSize]byte
	copy(hdr[0:8], Magic[:])
	hdr[8] = Version
	binary.LittleEndian.PutUint16(hdr[9:11], b.HashLen())
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("%w: bundlefile: header: %w", hdagerr.ErrIoResource, err)
	}

	var fanoutBuf [FanoutSize]byte
	for i, f := range b.Fanout {
		binary.LittleEndian.PutUint32(fanoutBuf[i*4:i*4+4], f)
	}
	if _, err := bw.Write(fanoutBuf[:]); err != nil {
		return fmt.Errorf("%w: bundlefile: fanout: %w", hdagerr.ErrIoResource, err)
	}

	checksum := xxhash.New()
	nodeSize := node.Size(b.HashLen())
	buf := make([]byte, nodeSize)
	nodes := b.Nodes.Slice()
	for i := range nodes {
		nodes[i].Marshal(buf)
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("%w: bundlefile: node %d: %w", hdagerr.ErrIoResource, i, err)
		}
		checksum.Write(buf)
	}

	var edgeBuf [4]byte
	extra := b.ExtraEdges.Slice()
	for _, e := range extra {
		binary.LittleEndian.PutUint32(edgeBuf[:], e)
		if _, err := bw.Write(edgeBuf[:]); err != nil {
			return fmt.Errorf("%w: bundlefile: extra edges: %w", hdagerr.ErrIoResource, err)
		}
	}

	unknown := b.UnknownHashes.Slice()
	for _, h := range unknown {
		if _, err := bw.Write(h); err != nil {
			return fmt.Errorf("%w: bundlefile: unknown hashes: %w", hdagerr.ErrIoResource, err)
		}
	}

	var trailer [TrailerSize]byte
	putCounts(trailer[:24], uint32(len(nodes)), uint32(len(extra)), uint32(len(unknown)))
	binary.LittleEndian.PutUint64(trailer[24:32], checksum.Sum64())
	if _, err := bw.Write(trailer[:]); err != nil {
		return fmt.Errorf("%w: bundlefile: trailer: %w", hdagerr.ErrIoResource, err)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: bundlefile: flush: %w", hdagerr.ErrIoResource, err)
	}
	return nil
}

func putCounts(buf []byte, n, e, u uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], n)
	binary.LittleEndian.PutUint32(buf[4:8], e)
	binary.LittleEndian.PutUint32(buf[8:12], u)
	binary.LittleEndian.PutUint32(buf[12:16], n)
	binary.LittleEndian.PutUint32(buf[16:20], e)
	binary.LittleEndian.PutUint32(buf[20:24], u)
}

// Decode reads a bundle file from r, which must support seeking so the
// trailer (at the end) can be read before the variable-length sections
// that precede it.
func Decode(r io.ReadSeeker) (*bundle.Bundle, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: bundlefile: seek end: %w", hdagerr.ErrIoResource, err)
	}
	if size < HeaderSize+FanoutSize+TrailerSize {
		return nil, fmt.Errorf("%w: bundlefile: file too small", hdagerr.ErrInvalidFormat)
	}

	var trailer [TrailerSize]byte
	if _, err := r.Seek(size-TrailerSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: bundlefile: seek trailer: %w", hdagerr.ErrIoResource, err)
	}
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, fmt.Errorf("%w: bundlefile: read trailer: %w", hdagerr.ErrIoResource, err)
	}
	n1 := binary.LittleEndian.Uint32(trailer[0:4])
	e1 := binary.LittleEndian.Uint32(trailer[4:8])
	u1 := binary.LittleEndian.Uint32(trailer[8:12])
	n2 := binary.LittleEndian.Uint32(trailer[12:16])
	e2 := binary.LittleEndian.Uint32(trailer[16:20])
	u2 := binary.LittleEndian.Uint32(trailer[20:24])
	wantChecksum := binary.LittleEndian.Uint64(trailer[24:32])
	if n1 != n2 || e1 != e2 || u1 != u2 {
		return nil, fmt.Errorf("%w: bundlefile: trailer count mismatch", hdagerr.ErrInvalidFormat)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: bundlefile: seek start: %w", hdagerr.ErrIoResource, err)
	}
	br := bufio.NewReader(r)

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: bundlefile: read header: %w", hdagerr.ErrIoResource, err)
	}
	if [8]byte(hdr[0:8]) != Magic {
		return nil, fmt.Errorf("%w: bundlefile: bad magic", hdagerr.ErrInvalidFormat)
	}
	if hdr[8] != Version {
		return nil, fmt.Errorf("%w: bundlefile: unsupported version %d", hdagerr.ErrInvalidFormat, hdr[8])
	}
	hashLen := binary.LittleEndian.Uint16(hdr[9:11])

	b := bundle.New(hashLen)

	var fanoutBuf [FanoutSize]byte
	if _, err := io.ReadFull(br, fanoutBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: bundlefile: read fanout: %w", hdagerr.ErrIoResource, err)
	}
	for i := 0; i < 256; i++ {
		b.Fanout[i] = binary.LittleEndian.Uint32(fanoutBuf[i*4 : i*4+4])
	}
	if b.Fanout[255] != n1 {
		return nil, fmt.Errorf("%w: bundlefile: fanout[255]=%d != node count %d", hdagerr.ErrInvalidFormat, b.Fanout[255], n1)
	}

	checksum := xxhash.New()
	nodeSize := node.Size(hashLen)
	buf := make([]byte, nodeSize)
	start := b.Nodes.AppendN(int(n1))
	for i := 0; i < int(n1); i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: bundlefile: read node %d: %w", hdagerr.ErrIoResource, i, err)
		}
		checksum.Write(buf)
		b.Nodes.Set(start+i, node.Unmarshal(buf, hashLen))
	}
	if hashLen > 0 {
		b.MarkFanoutFilled()
	}

	var extra hdagarray.Array[uint32]
	var edgeBuf [4]byte
	for i := 0; i < int(e1); i++ {
		if _, err := io.ReadFull(br, edgeBuf[:]); err != nil {
			return nil, fmt.Errorf("%w: bundlefile: read extra edge %d: %w", hdagerr.ErrIoResource, i, err)
		}
		extra.Append(binary.LittleEndian.Uint32(edgeBuf[:]))
	}
	b.ExtraEdges = extra

	var unknown hdagarray.Array[[]byte]
	for i := 0; i < int(u1); i++ {
		h := make([]byte, hashLen)
		if _, err := io.ReadFull(br, h); err != nil {
			return nil, fmt.Errorf("%w: bundlefile: read unknown hash %d: %w", hdagerr.ErrIoResource, i, err)
		}
		unknown.Append(h)
	}
	b.UnknownHashes = unknown

	if checksum.Sum64() != wantChecksum {
		return nil, fmt.Errorf("%w: bundlefile: checksum mismatch", hdagerr.ErrInvalidFormat)
	}
	return b, nil
}
