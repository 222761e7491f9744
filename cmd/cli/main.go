// Package main is the entry point for the starquery CLI binary.
package main

import (
	"os"

	cli "starquery/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
