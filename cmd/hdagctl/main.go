// Command hdagctl is the CLI front-end for the hash-DAG bundle engine:
// organizing adjacency-list text into bundle files, merging new nodes
// into a bundle database, and inspecting bundles on disk.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}

		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "hdagctl",
		Description: "Build and inspect hash-addressed DAG bundle files.",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "hash-len",
				Usage: "fixed hash length in bytes shared by every node",
				Value: 32,
			},
		},
		Commands: []*cli.Command{
			newCmd_Organize(),
			newCmd_Merge(),
			newCmd_Dump(),
			newCmd_Find(),
			newCmd_Verify(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}
