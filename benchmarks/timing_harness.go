// Package benchmarks provides timing benchmark infrastructure for the
// pipelined core.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/loader"
	"github.com/sarchlab/mipsim/sim"
	"github.com/sarchlab/mipsim/timing/latency"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// StallCycles is the number of decode stall cycles
	StallCycles uint64 `json:"stall_cycles"`

	// FetchStalls is the number of cycles fetch waited for a busy memory
	FetchStalls uint64 `json:"fetch_stalls"`

	// BranchesTaken is the number of confirmed control transfers
	BranchesTaken uint64 `json:"branches_taken"`

	// DCacheHits/Misses (if cache enabled)
	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	// Result is the final value of the benchmark's result register
	Result uint32 `json:"result"`

	// Correct reports whether Result matched the expected value and the
	// functional core agreed on the final registers
	Correct bool `json:"correct"`

	// Exceptions lists the exceptions raised during the run
	Exceptions string `json:"exceptions"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Program is the machine code loaded at the start of the text section
	Program []uint32

	// Data is the initial content of the data section
	Data []uint32

	// ResultReg holds the value checked against Expected after the run
	ResultReg uint8

	// Expected is the expected final value of ResultReg
	Expected uint32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Timing is the timing configuration of the pipelined core
	Timing *latency.TimingConfig

	// MaxCycles bounds every run (0 = unlimited)
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables per-cycle logging to Output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Timing:    latency.DefaultTimingConfig(),
		MaxCycles: 1_000_000,
		Output:    os.Stdout,
		Verbose:   false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
	log        *logrus.Logger
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	if config.Verbose {
		log.SetOutput(config.Output)
		log.SetLevel(logrus.DebugLevel)
	}

	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
		log:        log,
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		results = append(results, result)
	}

	return results
}

func (b Benchmark) program() *loader.Program {
	return loader.FromImage(emu.Image{
		TextStart: emu.TextStart,
		TextSize:  uint32(len(b.Program) * 4),
		TextWords: b.Program,
		DataStart: emu.DataStart,
		DataSize:  uint32(len(b.Data) * 4),
		DataWords: b.Data,
	})
}

func (h *Harness) simulator(bench Benchmark, mode sim.Mode) (*sim.Simulator, error) {
	return sim.New(bench.program(),
		sim.WithMode(mode),
		sim.WithTimingConfig(h.config.Timing.Clone()),
		sim.WithMaxSteps(h.config.MaxCycles),
		sim.WithLogger(h.log.WithField("benchmark", bench.Name)),
	)
}

// runBenchmark executes a single benchmark on the pipelined core and checks
// it against the functional core.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	pipelined, err := h.simulator(bench, sim.ModePipelined)
	if err != nil {
		h.log.WithError(err).WithField("benchmark", bench.Name).Error("Cannot build simulator")
		return result
	}

	// Run simulation and measure time
	start := time.Now()
	run, err := pipelined.Run()
	result.WallTime = time.Since(start)
	if err != nil {
		h.log.WithError(err).WithField("benchmark", bench.Name).Warn("Benchmark did not complete")
	}

	// Collect statistics
	result.SimulatedCycles = run.Stats.Cycles
	result.InstructionsRetired = run.Stats.Instructions
	result.CPI = run.Stats.CPI()
	result.StallCycles = run.Stats.Stalls
	result.FetchStalls = run.Stats.FetchStalls
	result.BranchesTaken = run.Stats.BranchesTaken
	result.Exceptions = run.Exceptions.String()

	// Collect cache stats if enabled
	if pipe := pipelined.Core().Pipeline; pipe.UseDCache() {
		dcStats := pipe.DCacheStats()
		result.DCacheHits = dcStats.Hits
		result.DCacheMisses = dcStats.Misses
	}

	regs := pipelined.Registers()
	result.Result = regs[bench.ResultReg]
	result.Correct = err == nil && result.Result == bench.Expected && h.agrees(bench, regs)

	return result
}

// agrees reports whether the functional core ends with the same registers.
func (h *Harness) agrees(bench Benchmark, regs [32]uint32) bool {
	functional, err := h.simulator(bench, sim.ModeFunctional)
	if err != nil {
		return false
	}
	if _, err := functional.Run(); err != nil {
		return false
	}
	return functional.Registers() == regs
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Result: %d (correct: %v)\n", r.Result, r.Correct)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Fetch Stalls:         %d\n", r.FetchStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Branches Taken:       %d\n", r.BranchesTaken)
		if r.Exceptions != emu.ExcNone.String() {
			_, _ = fmt.Fprintf(h.config.Output, "  Exceptions:           %s\n", r.Exceptions)
		}

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.DCacheMisses)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,stalls,fetch_stalls,branches_taken,dcache_hits,dcache_misses,result,correct")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%v\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.FetchStalls,
			r.BranchesTaken,
			r.DCacheHits,
			r.DCacheMisses,
			r.Result,
			r.Correct,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Config is the timing configuration used
	Config *latency.TimingConfig `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Failed is the number of benchmarks with a wrong result
	Failed int `json:"failed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the aggregate cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	var s ReportSummary
	s.TotalBenchmarks = len(results)
	for _, r := range results {
		s.TotalCycles += r.SimulatedCycles
		s.TotalInstructions += r.InstructionsRetired
		s.TotalWallTime += r.WallTime
		if !r.Correct {
			s.Failed++
		}
	}
	if s.TotalInstructions > 0 {
		s.AverageCPI = float64(s.TotalCycles) / float64(s.TotalInstructions)
	}
	return s
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Config:    h.config.Timing,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
