// Command vvharness runs end-to-end scenarios against a VOICEVOX CORE
// shared library and reports a verdict for each.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/vvharness/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	// Commands in json mode have already written their error envelope.
	if err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, "Error:", msg)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
