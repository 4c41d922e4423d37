// Command dutyrecon automates duty reconciliation against the customs
// brokerage portal: it parses a batch of MAWBs, authenticates per broker,
// scrapes the AMS, entries, and Custom Report regions, reconciles the
// figures, and persists results and artifacts.
package main

import (
	"os"

	"github.com/fteops/dutyrecon/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
