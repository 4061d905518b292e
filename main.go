// Package main provides the entry point for ivsim.
// ivsim runs a CPU pipeline simulation in fixed-size cycle intervals and
// archives a statistics snapshot after every interval. It is built on Akita.
//
// For the full CLI, use: go run ./cmd/ivsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("ivsim - interval-driven CPU pipeline statistics")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: ivsim --cmd <workload[;workload...]> [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  --cpu-type         CPU model (DerivO3CPU, MinorCPU, TimingSimpleCPU, AtomicSimpleCPU)")
	fmt.Println("  --interval         Cycles per statistics interval")
	fmt.Println("  --total-cycles     Total cycles to simulate")
	fmt.Println("  --pipeline-config  Pipeline config file (JSON or YAML)")
	fmt.Println("  --outdir           Output directory")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/ivsim --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/ivsim' instead.")
	}
}
