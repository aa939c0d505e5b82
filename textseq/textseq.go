// Package textseq implements nodeseq.Sequence over the adjacency-list
// text format: one logical record per line, whitespace-separated hex
// byte pairs, first token the source hash, remaining tokens its target
// hashes. This is an external collaborator per spec §1/§6, kept separate
// from the core bundle engine.
package textseq

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spbnick/hdag-go/hdagerr"
	"github.com/spbnick/hdag-go/nodeseq"
)

// Sequence reads adjacency-list text from the io.Reader returned by its
// open function; Reset calls open again for a fresh reader.
type Sequence struct {
	hashLen uint16
	open    func() (io.Reader, error)
	cur     io.Reader
	scanner *bufio.Scanner
}

// New builds a Sequence with a fixed hash length, reading from whatever
// open returns. open is called once up front and again on every Reset;
// passing a function (rather than a single io.Reader) is what makes
// Reset possible.
func New(hashLen uint16, open func() (io.Reader, error)) (*Sequence, error) {
	if hashLen == 0 {
		return nil, fmt.Errorf("%w: hash_len must be > 0", hdagerr.ErrInvalid)
	}
	s := &Sequence{hashLen: hashLen, open: open}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// HashLen implements nodeseq.Sequence.
func (s *Sequence) HashLen() uint16 { return s.hashLen }

// Resettable implements nodeseq.Sequence; text sequences are always
// resettable since open can be called again.
func (s *Sequence) Resettable() bool { return true }

// Reset implements nodeseq.Sequence.
func (s *Sequence) Reset() error {
	r, err := s.open()
	if err != nil {
		return fmt.Errorf("%w: %w", hdagerr.ErrIoResource, err)
	}
	s.cur = r
	s.scanner = bufio.NewScanner(r)
	s.scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return nil
}

// Next implements nodeseq.Sequence, skipping blank lines.
func (s *Sequence) Next() ([]byte, nodeseq.TargetIter, error) {
	for {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, nil, fmt.Errorf("%w: %w", hdagerr.ErrIoResource, err)
			}
			return nil, nil, io.EOF
		}
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		hash, err := DecodeHex(fields[0], s.hashLen)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: source hash: %w", hdagerr.ErrInvalidFormat, err)
		}
		return hash, &lineTargets{hashLen: s.hashLen, tokens: fields[1:]}, nil
	}
}

type lineTargets struct {
	hashLen uint16
	tokens  []string
	pos     int
}

func (it *lineTargets) Next() ([]byte, error) {
	if it.pos >= len(it.tokens) {
		return nil, io.EOF
	}
	tok := it.tokens[it.pos]
	it.pos++
	hash, err := DecodeHex(tok, it.hashLen)
	if err != nil {
		return nil, fmt.Errorf("%w: target hash: %w", hdagerr.ErrInvalidFormat, err)
	}
	return hash, nil
}

// DecodeHex decodes a hex token into exactly hashLen bytes: shorter
// tokens are zero-extended on the left, longer tokens or odd digit
// counts are errors, per spec §6. Exported for reuse by hash-argument
// parsing outside the tokenizer (e.g. the CLI's find command).
func DecodeHex(tok string, hashLen uint16) ([]byte, error) {
	if len(tok)%2 != 0 {
		return nil, fmt.Errorf("odd hex digit count in %q", tok)
	}
	n := len(tok) / 2
	if n > int(hashLen) {
		return nil, fmt.Errorf("hex token %q longer than hash_len %d", tok, hashLen)
	}
	out := make([]byte, hashLen)
	pad := int(hashLen) - n
	for i := 0; i < n; i++ {
		hi, err := hexNibble(tok[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(tok[2*i+1])
		if err != nil {
			return nil, err
		}
		out[pad+i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}
