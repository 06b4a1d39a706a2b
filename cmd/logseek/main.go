// Package main provides the entry point for the logseek CLI.
package main

import (
	"os"

	"github.com/logseek/logseek/cmd/logseek/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
