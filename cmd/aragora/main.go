// Command aragora is the thin client CLI mirroring the HTTP API (spec
// §6): start a debate, replay one by slug, export transcripts.
package main

import (
	"fmt"
	"os"

	"github.com/an0mium/aragora/internal/cli"
)

func main() {
	err := cli.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(cli.ExitCodeFor(err))
}
