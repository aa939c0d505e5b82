package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/spbnick/hdag-go/bundlefile"
	"github.com/spbnick/hdag-go/fanout"
	"github.com/spbnick/hdag-go/sortdedup"
)

// newCmd_Verify reloads a bundle file and re-checks the invariants an
// organized bundle must satisfy: this is the natural complement to
// Merge's write-new/fsync/rename sequence, useful for confirming a
// bundle file survived a crash mid-write uncorrupted.
func newCmd_Verify() *cli.Command {
	return &cli.Command{
		Name:        "verify",
		Usage:       "Re-check an organized bundle file's invariants.",
		Description: "Decodes a bundle file (checking its magic, version and checksum) and verifies it is sorted, fanout-correct, and internally consistent.",
		ArgsUsage:   "<bundle-file>",
		Action: func(c *cli.Context) error {
			path := c.Args().Get(0)
			if path == "" {
				return cli.Exit("usage: hdagctl verify <bundle-file>", 1)
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			b, err := bundlefile.Decode(f)
			if err != nil {
				return fmt.Errorf("verify: %s failed to decode: %w", path, err)
			}

			if err := b.CheckInvariants(); err != nil {
				return fmt.Errorf("verify: %s: %w", path, err)
			}
			if !sortdedup.IsSorted(b) {
				return fmt.Errorf("verify: %s: nodes are not sorted", path)
			}
			if !fanout.CorrectFanout(b) {
				return fmt.Errorf("verify: %s: fanout table is incorrect", path)
			}

			klog.Infof("%s OK: %s nodes, %s extra edges, %s unknown hashes", path,
				humanize.Comma(int64(b.Nodes.Len())),
				humanize.Comma(int64(b.ExtraEdges.Len())),
				humanize.Comma(int64(b.UnknownHashes.Len())))
			return nil
		},
	}
}
