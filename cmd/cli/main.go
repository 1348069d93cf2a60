// Package main is the entry point for the fluma command line client.
package main

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/fluma/internal/client/cli"
)

// Version information set at build time.
var (
	buildVersion = "N/A"
	buildCommit  = "N/A"
	buildDate    = "N/A"
)

func main() {
	cmd := cli.NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", buildVersion, buildCommit, buildDate)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
