package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"k8s.io/klog/v2"

	"github.com/spbnick/hdag-go/bundlefile"
	"github.com/spbnick/hdag-go/compact"
	"github.com/spbnick/hdag-go/enumerate"
	"github.com/spbnick/hdag-go/fanout"
	"github.com/spbnick/hdag-go/ingest"
	"github.com/spbnick/hdag-go/sortdedup"
	"github.com/spbnick/hdag-go/textseq"
)

func newCmd_Organize() *cli.Command {
	return &cli.Command{
		Name:        "organize",
		Usage:       "Organize adjacency-list text into a bundle file.",
		Description: "Reads a whitespace-separated hex adjacency list and writes a single organized bundle file.",
		ArgsUsage:   "<input-text> <output.hdag>",
		Action: func(c *cli.Context) error {
			inputPath := c.Args().Get(0)
			outputPath := c.Args().Get(1)
			if inputPath == "" || outputPath == "" {
				return cli.Exit("usage: hdagctl organize <input-text> <output.hdag>", 1)
			}
			hashLen, err := hashLenFlag(c)
			if err != nil {
				return err
			}

			startedAt := time.Now()
			defer func() { klog.Infof("organize finished in %s", time.Since(startedAt)) }()

			seq, err := textseq.New(hashLen, fileOpener(inputPath))
			if err != nil {
				return err
			}

			p := mpb.New(mpb.WithWidth(40))
			bar := p.AddBar(6,
				mpb.PrependDecorators(decor.Name("organize")),
				mpb.AppendDecorators(decor.CountersNoUnit("%d / %d stages")),
			)

			b, err := ingest.Ingest(seq)
			if err != nil {
				return err
			}
			bar.Increment()
			if err := sortdedup.Sort(b); err != nil {
				return err
			}
			bar.Increment()
			if err := sortdedup.Dedup(b); err != nil {
				return err
			}
			bar.Increment()
			if err := fanout.Fill(b); err != nil {
				return err
			}
			bar.Increment()
			if err := compact.Compact(b); err != nil {
				return err
			}
			bar.Increment()
			if err := enumerate.Enumerate(b); err != nil {
				return err
			}
			bar.Increment()
			p.Wait()

			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("organize: creating %s: %w", outputPath, err)
			}
			defer f.Close()
			if err := bundlefile.Encode(f, b); err != nil {
				return err
			}
			klog.Infof("wrote %s: %d nodes, %d unknown hashes", outputPath, b.Nodes.Len(), b.UnknownHashes.Len())
			return nil
		},
	}
}
