// Package main provides the entry point for the feedsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/feedsearch/cmd/feedsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
