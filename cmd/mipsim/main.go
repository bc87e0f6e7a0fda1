// Package main provides the entry point for mipsim.
// mipsim runs a program image on a functional or a cycle-accurate
// 5-stage pipelined core.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/loader"
	"github.com/sarchlab/mipsim/monitor"
	"github.com/sarchlab/mipsim/sim"
	"github.com/sarchlab/mipsim/timing/latency"
)

// Exit codes.
const (
	exitOK = iota
	exitError
	exitBudget
	exitHalted
)

type options struct {
	timing      bool
	configPath  string
	saveConfig  string
	maxSteps    uint64
	haltOn      string
	verbose     bool
	interactive bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts options

	flags := flag.NewFlagSet("mipsim", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.BoolVar(&opts.timing, "timing", false, "Enable timing simulation mode (pipelined core)")
	flags.StringVar(&opts.configPath, "config", "", "Path to timing configuration JSON file")
	flags.StringVar(&opts.saveConfig, "save-config", "", "Write the effective timing configuration to this path and exit")
	flags.Uint64Var(&opts.maxSteps, "max-steps", 10_000_000, "Step budget (instructions or cycles, 0 = unlimited)")
	flags.StringVar(&opts.haltOn, "halt-on", "break", "Exceptions that stop the program (comma separated, all or none)")
	flags.BoolVar(&opts.verbose, "v", false, "Verbose output")
	flags.BoolVar(&opts.interactive, "i", false, "Start the interactive monitor")
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: mipsim [options] <program.json>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return exitError
	}

	timingConfig, err := loadTimingConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading timing config: %v\n", err)
		return exitError
	}

	if opts.saveConfig != "" {
		if err := timingConfig.SaveConfig(opts.saveConfig); err != nil {
			fmt.Fprintf(stderr, "Error saving timing config: %v\n", err)
			return exitError
		}
		return exitOK
	}

	if flags.NArg() < 1 {
		flags.Usage()
		return exitError
	}
	programPath := flags.Arg(0)

	haltOn, err := emu.ParseException(opts.haltOn)
	if err != nil {
		fmt.Fprintf(stderr, "Error parsing -halt-on: %v\n", err)
		return exitError
	}

	// Load the program image
	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return exitError
	}

	log := logrus.New()
	log.SetOutput(stderr)
	log.SetLevel(logrus.WarnLevel)
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
		fmt.Fprintf(stdout, "Loaded: %s\n", programPath)
		fmt.Fprintf(stdout, "Text: 0x%08X (%d bytes)\n", prog.TextStart, prog.TextSize)
		fmt.Fprintf(stdout, "Data: 0x%08X (%d bytes)\n", prog.DataStart, prog.DataSize)
	}

	mode := sim.ModeFunctional
	if opts.timing {
		mode = sim.ModePipelined
	}

	s, err := sim.New(prog,
		sim.WithMode(mode),
		sim.WithTimingConfig(timingConfig),
		sim.WithHaltOn(haltOn),
		sim.WithMaxSteps(opts.maxSteps),
		sim.WithLogger(log),
		sim.WithPrintSink(emu.WriterSink(stdout)),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if opts.interactive {
		monitor.New(s).RunCommands(stdin, stdout, true)
		return exitOK
	}

	result, err := s.Run()
	report(stdout, programPath, result)

	switch {
	case errors.Is(err, sim.ErrBudgetExhausted):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitBudget
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	case result.Halted:
		return exitHalted
	}
	return exitOK
}

func loadTimingConfig(path string) (*latency.TimingConfig, error) {
	if path == "" {
		return latency.DefaultTimingConfig(), nil
	}
	return latency.LoadConfig(path)
}

// report prints the run summary and, for the pipelined core, the cycle
// breakdown.
func report(w io.Writer, programPath string, r sim.Result) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Program: %s\n", programPath)
	fmt.Fprintf(w, "Mode: %s\n", r.Mode)
	fmt.Fprintf(w, "Exceptions: %s\n", r.Exceptions)
	if r.Halted {
		fmt.Fprintf(w, "Halted: yes\n")
	}
	fmt.Fprintf(w, "Total Instructions: %d\n", r.Instructions)

	if r.Mode != sim.ModePipelined {
		return
	}

	stats := r.Stats
	fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	fmt.Fprintf(w, "CPI: %.2f\n", stats.CPI())

	totalCycles := stats.Cycles
	if totalCycles == 0 {
		totalCycles = 1 // Avoid division by zero
	}
	fill := min(stats.Cycles, uint64(4))
	pct := func(n uint64) float64 {
		return 100.0 * float64(n) / float64(totalCycles)
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Breakdown:\n")
	fmt.Fprintf(w, "  Retire:          %6d cycles (%5.1f%%)\n", stats.Instructions, pct(stats.Instructions))
	fmt.Fprintf(w, "  Hazard stalls:   %6d cycles (%5.1f%%)\n", stats.Stalls, pct(stats.Stalls))
	fmt.Fprintf(w, "  Fetch stalls:    %6d cycles (%5.1f%%)\n", stats.FetchStalls, pct(stats.FetchStalls))
	fmt.Fprintf(w, "  Pipeline fill:   %6d cycles (%5.1f%%)\n", fill, pct(fill))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Pipeline Events:\n")
	fmt.Fprintf(w, "  Stalls:         %d\n", stats.Stalls)
	fmt.Fprintf(w, "  Branches taken: %d\n", stats.BranchesTaken)
}
