// Package main is the entry point for the ledgerctl admin CLI.
package main

import (
	"os"

	"github.com/example/ledger-core/cmd/ledgerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
