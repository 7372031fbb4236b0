// Command stemma tracks the provenance of generative-audio artifacts.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/stemma/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		code := cli.GetExitCode(err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(code)
	}
}
