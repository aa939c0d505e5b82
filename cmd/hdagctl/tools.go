package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spbnick/hdag-go/hdagerr"
)

func isDirectory(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// fileOpener builds the open func textseq.New needs to (re)read path on
// every Reset.
func fileOpener(path string) func() (io.Reader, error) {
	return func() (io.Reader, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", hdagerr.ErrIoResource, err)
		}
		return f, nil
	}
}

func hashLenFlag(c interface{ Uint64(string) uint64 }) (uint16, error) {
	v := c.Uint64("hash-len")
	if v == 0 || v > 0xFFFF {
		return 0, fmt.Errorf("%w: hash-len %d out of range", hdagerr.ErrInvalid, v)
	}
	return uint16(v), nil
}
