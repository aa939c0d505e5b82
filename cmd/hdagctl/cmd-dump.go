package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/spbnick/hdag-go/bundlefile"
)

func newCmd_Dump() *cli.Command {
	var listNodes bool
	return &cli.Command{
		Name:        "dump",
		Usage:       "Print summary information about a bundle file.",
		Description: "Decodes a bundle file and prints its node/edge/unknown-hash counts, plus optionally every node hash.",
		ArgsUsage:   "<bundle-file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "list-nodes",
				Usage:       "print every node hash and its target count",
				Destination: &listNodes,
			},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().Get(0)
			if path == "" {
				return cli.Exit("usage: hdagctl dump <bundle-file>", 1)
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			b, err := bundlefile.Decode(f)
			if err != nil {
				return err
			}

			fmt.Printf("hash_len:       %d\n", b.HashLen())
			fmt.Printf("nodes:          %s\n", humanize.Comma(int64(b.Nodes.Len())))
			fmt.Printf("extra_edges:    %s\n", humanize.Comma(int64(b.ExtraEdges.Len())))
			fmt.Printf("unknown_hashes: %s\n", humanize.Comma(int64(b.UnknownHashes.Len())))

			if listNodes {
				for i := 0; i < b.Nodes.Len(); i++ {
					n := b.Node(uint32(i))
					fmt.Printf("%s  targets=%d  component=%d  generation=%d\n",
						hex.EncodeToString(n.Hash), b.TargetsCount(uint32(i)), n.Component, n.Generation)
				}
			}
			return nil
		},
	}
}
