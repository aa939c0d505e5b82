package main

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/spbnick/hdag-go/hdagdb"
	"github.com/spbnick/hdag-go/textseq"
)

func newCmd_Merge() *cli.Command {
	return &cli.Command{
		Name:        "merge",
		Usage:       "Merge adjacency-list text files into a bundle database.",
		Description: "Organizes each input file's new nodes and merges them into the bundle database directory, rebuilding any existing bundle that can now resolve a previously unknown node.",
		ArgsUsage:   "<db-dir> <input-text>...",
		Action: func(c *cli.Context) error {
			dbDir := c.Args().Get(0)
			inputPaths := c.Args().Slice()[1:]
			if dbDir == "" || len(inputPaths) == 0 {
				return cli.Exit("usage: hdagctl merge <db-dir> <input-text>...", 1)
			}
			hashLen, err := hashLenFlag(c)
			if err != nil {
				return err
			}

			db, err := hdagdb.Open(dbDir, hashLen)
			if err != nil {
				return err
			}
			defer db.Close()

			for _, path := range inputPaths {
				startedAt := time.Now()
				seq, err := textseq.New(hashLen, fileOpener(path))
				if err != nil {
					return err
				}
				if err := db.Merge(seq); err != nil {
					return err
				}
				klog.Infof("merged %s in %s", path, time.Since(startedAt))
			}

			bundles := db.Bundles()
			total := 0
			for _, b := range bundles {
				total += b.Nodes.Len()
			}
			klog.Infof("database now holds %s bundle(s), %s node(s)",
				humanize.Comma(int64(len(bundles))), humanize.Comma(int64(total)))
			return nil
		},
	}
}
