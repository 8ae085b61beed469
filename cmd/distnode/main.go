// Command distnode is a minimal listener binary exercising the
// distribution core end-to-end: it accepts peer connections, runs the
// handshake, and hands accepted sessions to a registry stand-in (the
// real actor registry is out of scope, spec.md §1).
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "distnode"
	app.Usage = "run a standalone distribution protocol listener"
	app.Version = "0.1.0"
	app.Commands = NewCommands()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
