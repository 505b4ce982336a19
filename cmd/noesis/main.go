// noesis is the research reasoning CLI: it runs the nine-stage pipeline over
// a task description and writes the final analysis.
//
// Usage:
//
//	noesis run "why are coral reefs declining" -o report.md
//	noesis run --config config/config.toml --export "..."
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
