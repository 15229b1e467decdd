// Command pipelinectl loads, drives, and inspects a hailopipe pipeline
// from the command line: running it against a real or simulated
// accelerator, and reporting its live statistics.
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
