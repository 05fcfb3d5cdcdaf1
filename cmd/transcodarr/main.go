// Package main is the entry point for the transcodarr server.
package main

import (
	"os"

	"github.com/transcodarr/transcodarr/cmd/transcodarr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
