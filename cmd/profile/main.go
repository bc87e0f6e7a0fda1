// Package main provides a profiling wrapper for mipsim to identify performance bottlenecks.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/loader"
	"github.com/sarchlab/mipsim/sim"
	"github.com/sarchlab/mipsim/timing/latency"
)

var (
	timing     = flag.Bool("timing", false, "Enable timing simulation mode")
	configPath = flag.String("config", "", "Path to timing configuration JSON file")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	maxSteps   = flag.Uint64("max-steps", 1000000, "max steps to execute (0 = unlimited)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.json>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	timingConfig := latency.DefaultTimingConfig()
	if *configPath != "" {
		timingConfig, err = latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Text: 0x%08X (%d bytes)\n", prog.TextStart, prog.TextSize)

	mode := sim.ModeFunctional
	if *timing {
		mode = sim.ModePipelined
	}

	// Logging stays off the hot path.
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.ErrorLevel)

	s, err := sim.New(prog,
		sim.WithMode(mode),
		sim.WithTimingConfig(timingConfig),
		sim.WithMaxSteps(*maxSteps),
		sim.WithLogger(log),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()

	// Set timeout
	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", *duration)
		os.Exit(2)
	}()

	result, err := s.Run()
	if err != nil {
		fmt.Printf("Stopped: %v\n", err)
	}

	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Mode: %s\n", result.Mode)
	fmt.Printf("Exceptions: %s\n", result.Exceptions)
	fmt.Printf("Instructions executed: %d\n", result.Instructions)
	if mode == sim.ModePipelined {
		fmt.Printf("Cycles simulated: %d\n", result.Cycles)
	}
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if result.Instructions > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(result.Instructions)/elapsed.Seconds())
	}
}
