// Package main is the entry point for the autodev orchestrator binary.
package main

import (
	"fmt"
	"os"

	"github.com/kilnworks/autodev/cmd/autodev/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
