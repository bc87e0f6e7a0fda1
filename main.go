// Package main provides the entry point for mipsim.
// mipsim is a functional and cycle-accurate simulator for a MIPS-derived
// 32-bit instruction set.
//
// For the full CLI, use: go run ./cmd/mipsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("mipsim - MIPS-derived 32-bit ISA simulator")
	fmt.Println("Functional core and 5-stage pipelined core")
	fmt.Println("")
	fmt.Println("Usage: mipsim [options] <program.json>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -timing       Run on the pipelined core")
	fmt.Println("  -config       Path to timing configuration JSON file")
	fmt.Println("  -max-steps    Step budget")
	fmt.Println("  -halt-on      Exceptions that stop the program")
	fmt.Println("  -i            Start the interactive monitor")
	fmt.Println("  -v            Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/mipsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/mipsim' instead.")
	}
}
