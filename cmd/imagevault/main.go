// Package main provides the entry point for the imagevault CLI.
package main

import (
	"os"

	"github.com/imagevault/imagevault/cmd/imagevault/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
