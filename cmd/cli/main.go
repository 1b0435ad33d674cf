// Package main is the entry point for the air2graph CLI binary.
package main

import (
	"os"

	cli "air2graph/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
