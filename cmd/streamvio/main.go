// Package main is the entry point for the streamvio application.
package main

import (
	"os"

	"github.com/streamvio/streamvio/cmd/streamvio/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
