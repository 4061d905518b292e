// Package main provides the ivsim command: it assembles a simulated system,
// configures the CPU pipelines, and runs the simulation in fixed-size cycle
// intervals, archiving a statistics snapshot after every interval.
package main

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
