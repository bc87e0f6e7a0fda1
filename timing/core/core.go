// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline implementation to provide a high-level interface.
package core

import (
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/timing/latency"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of hazard stall cycles.
	Stalls uint64
	// FetchStalls is the number of cycles fetch waited on memory.
	FetchStalls uint64
	// BranchesTaken is the number of confirmed control transfers.
	BranchesTaken uint64
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core represents a cycle-accurate CPU core model.
// It wraps a 5-stage pipeline and stops it precisely on halting exceptions.
type Core struct {
	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory

	config *latency.TimingConfig

	haltOn     emu.Exception
	exceptions emu.Exception
	halted     bool
}

// NewCore creates a new Core with the given register file, memory and
// timing configuration. A nil config selects the defaults.
func NewCore(
	regFile *emu.RegFile,
	memory *emu.Memory,
	config *latency.TimingConfig,
	opts ...pipeline.PipelineOption,
) *Core {
	if config == nil {
		config = latency.DefaultTimingConfig()
	}

	config.ConfigureMemory(memory)
	opts = append(config.PipelineOptions(), opts...)

	return &Core{
		Pipeline: pipeline.NewPipeline(regFile, memory, opts...),
		regFile:  regFile,
		memory:   memory,
		config:   config,
	}
}

// Config returns the timing configuration of the core.
func (c *Core) Config() *latency.TimingConfig {
	return c.config
}

// SetHaltOn sets the exceptions that stop the core. The pipeline retires
// the instructions older than the faulting one before halting.
func (c *Core) SetHaltOn(mask emu.Exception) {
	c.haltOn = mask
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// PC returns the fetch program counter.
func (c *Core) PC() uint32 {
	return c.Pipeline.PC()
}

// Tick executes one pipeline cycle and returns its exceptions.
func (c *Core) Tick() emu.Exception {
	if c.halted {
		return emu.ExcNone
	}

	exc := c.Pipeline.Tick()
	c.exceptions |= exc

	if exc&c.haltOn != 0 && !c.Pipeline.Draining() {
		c.Pipeline.Drain()
	}
	if c.Pipeline.Draining() && c.Pipeline.Empty() {
		c.halted = true
	}

	return exc
}

// Halted returns true if the core stopped on a halting exception.
func (c *Core) Halted() bool {
	return c.halted
}

// Exceptions returns every exception raised since the last Reset.
func (c *Core) Exceptions() emu.Exception {
	return c.exceptions
}

// Done reports whether fetch has left [lo, hi) and no instruction from
// that range is still in flight.
func (c *Core) Done(lo, hi uint32) bool {
	if c.halted {
		return true
	}
	pc := c.Pipeline.PC()
	return (pc < lo || pc >= hi) && !c.Pipeline.InFlight(lo, hi)
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:        pipeStats.Cycles,
		Instructions:  pipeStats.Instructions,
		Stalls:        pipeStats.Stalls,
		FetchStalls:   pipeStats.FetchStalls,
		BranchesTaken: pipeStats.BranchesTaken,
	}
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !c.halted; i++ {
		c.Tick()
	}
	return !c.halted
}

// Reset clears all core state. Memory contents are kept.
func (c *Core) Reset() {
	c.Pipeline.Reset()
	c.exceptions = emu.ExcNone
	c.halted = false
}
