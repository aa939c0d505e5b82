package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/spbnick/hdag-go/bundle"
	"github.com/spbnick/hdag-go/hdagdb"
	"github.com/spbnick/hdag-go/textseq"
)

func newCmd_Find() *cli.Command {
	return &cli.Command{
		Name:        "find",
		Usage:       "Locate a node hash across every bundle in a database.",
		Description: "Prints the index (in database order) of the bundle holding the given hash and the node index within it, or reports it absent from the database.",
		ArgsUsage:   "<db-dir> <hash-hex>",
		Action: func(c *cli.Context) error {
			dbDir := c.Args().Get(0)
			hashHex := c.Args().Get(1)
			if dbDir == "" || hashHex == "" {
				return cli.Exit("usage: hdagctl find <db-dir> <hash-hex>", 1)
			}
			hashLen, err := hashLenFlag(c)
			if err != nil {
				return err
			}

			hash, err := textseq.DecodeHex(hashHex, hashLen)
			if err != nil {
				return err
			}

			db, err := hdagdb.Open(dbDir, hashLen)
			if err != nil {
				return err
			}
			defer db.Close()

			bi, idx, found := db.Find(hash)
			if !found {
				fmt.Println("not found")
				return cli.Exit("", 1)
			}
			b := db.Bundles()[bi]
			n := b.Node(idx)
			status := "known"
			if !n.Known() {
				status = "unknown"
			}
			fmt.Printf("bundle=%d node=%d status=%s targets=%d component=%d generation=%d\n",
				bi, idx, status, bundleTargetsCount(b, idx), n.Component, n.Generation)
			return nil
		},
	}
}

func bundleTargetsCount(b *bundle.Bundle, idx uint32) uint32 {
	if !b.Node(idx).Known() {
		return 0
	}
	return b.TargetsCount(idx)
}
