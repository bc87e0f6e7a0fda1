// Command benchmark runs the timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv       Output results in CSV format (default: human-readable)
//	-json      Output results in JSON format
//	-core      Run only the 3 core benchmarks
//	-config    Path to timing configuration JSON file
//	-dcache    Enable the data cache timing model
//	-unified   Share one memory port between fetch and data accesses
//	-latency   Memory latency in cycles
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Compare a slow unified memory in CSV
//	go run ./cmd/benchmark -unified -latency 4 -csv > results.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/mipsim/benchmarks"
	"github.com/sarchlab/mipsim/timing/cache"
	"github.com/sarchlab/mipsim/timing/latency"
)

func main() {
	// Parse flags
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	configPath := flag.String("config", "", "Path to timing configuration JSON file")
	dcache := flag.Bool("dcache", false, "Enable the data cache timing model")
	unified := flag.Bool("unified", false, "Share one memory port between fetch and data")
	memLatency := flag.Uint("latency", 0, "Memory latency in cycles (0 = keep configured)")
	verbose := flag.Bool("v", false, "Log every cycle")
	flag.Parse()

	// Configure harness
	config := benchmarks.DefaultConfig()
	if *configPath != "" {
		timing, err := latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
		config.Timing = timing
	}
	if *dcache {
		l1d := cache.DefaultL1DConfig()
		config.Timing.DCache = &l1d
	}
	if *unified {
		config.Timing.UnifiedMemory = true
	}
	if *memLatency > 0 {
		config.Timing.MemoryLatency = uint32(*memLatency)
	}
	config.Verbose = *verbose
	config.Output = os.Stdout

	if err := config.Timing.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid timing config: %v\n", err)
		os.Exit(1)
	}

	// Create harness and add benchmarks
	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	// Print configuration
	if !*csvOutput && !*jsonOutput {
		fmt.Println("Timing Benchmark Harness")
		fmt.Println("========================")
		fmt.Printf("Memory latency: %d\n", config.Timing.MemoryLatency)
		fmt.Printf("Unified memory: %v\n", config.Timing.UnifiedMemory)
		fmt.Printf("D-Cache:        %v\n", config.Timing.DCache != nil)
		fmt.Println("")
	}

	// Run benchmarks
	results := harness.RunAll()
	summary := benchmarks.Summarize(results)

	// Output results
	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		// Print summary
		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Printf("Benchmarks:   %d (%d failed)\n", summary.TotalBenchmarks, summary.Failed)
		fmt.Printf("Cycles:       %d\n", summary.TotalCycles)
		fmt.Printf("Instructions: %d\n", summary.TotalInstructions)
		fmt.Printf("CPI:          %.3f\n", summary.AverageCPI)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
