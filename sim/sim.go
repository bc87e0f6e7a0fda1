// Package sim runs a loaded program on either the functional or the
// pipelined core, applying a halt policy and a step budget.
package sim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/loader"
	"github.com/sarchlab/mipsim/timing/core"
	"github.com/sarchlab/mipsim/timing/latency"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

// ErrBudgetExhausted is returned by Run when the step budget runs out
// before the program completes.
var ErrBudgetExhausted = errors.New("step budget exhausted")

// Mode selects the core model.
type Mode int

// Core models.
const (
	ModeFunctional Mode = iota
	ModePipelined
)

func (m Mode) String() string {
	switch m {
	case ModeFunctional:
		return "functional"
	case ModePipelined:
		return "pipelined"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "functional", "f":
		return ModeFunctional, nil
	case "pipelined", "pipeline", "timing", "p":
		return ModePipelined, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Result summarizes a run.
type Result struct {
	Mode Mode
	// Steps is the number of Step calls: instructions in functional mode,
	// cycles in pipelined mode.
	Steps        uint64
	Instructions uint64
	Cycles       uint64
	// Exceptions accumulates every exception raised.
	Exceptions emu.Exception
	// Halted is set when a halting exception stopped the program.
	Halted bool
	// Stats is filled in pipelined mode.
	Stats core.Stats
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithMode selects the core model. The default is ModeFunctional.
func WithMode(mode Mode) Option {
	return func(s *Simulator) {
		s.mode = mode
	}
}

// WithTimingConfig sets the pipelined core's timing configuration.
func WithTimingConfig(config *latency.TimingConfig) Option {
	return func(s *Simulator) {
		s.config = config
	}
}

// WithHaltOn sets the exceptions that stop the program. The default is
// emu.ExcBreakpoint.
func WithHaltOn(mask emu.Exception) Option {
	return func(s *Simulator) {
		s.haltOn = mask
	}
}

// WithMaxSteps bounds the number of steps Run may take. Zero means no
// bound.
func WithMaxSteps(n uint64) Option {
	return func(s *Simulator) {
		s.maxSteps = n
	}
}

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Simulator) {
		s.log = log
	}
}

// WithPrintSink sets the receiver of print notifications.
func WithPrintSink(sink emu.PrintSink) Option {
	return func(s *Simulator) {
		s.sink = sink
	}
}

// Simulator owns the architectural state of one program run.
type Simulator struct {
	prog *loader.Program

	mode     Mode
	config   *latency.TimingConfig
	haltOn   emu.Exception
	maxSteps uint64
	log      logrus.FieldLogger
	sink     emu.PrintSink

	regFile  *emu.RegFile
	memory   *emu.Memory
	emulator *emu.Emulator
	core     *core.Core

	steps      uint64
	exceptions emu.Exception
	halted     bool
}

// New builds a simulator for prog.
func New(prog *loader.Program, opts ...Option) (*Simulator, error) {
	s := &Simulator{
		prog:   prog,
		mode:   ModeFunctional,
		haltOn: emu.ExcBreakpoint,
		log:    logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := prog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid program: %w", err)
	}

	if s.config == nil {
		s.config = latency.DefaultTimingConfig()
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config: %w", err)
	}

	s.build()

	return s, nil
}

func (s *Simulator) build() {
	s.regFile = emu.NewRegFile()
	s.memory = emu.NewMemory()
	s.prog.LoadInto(s.memory)

	s.emulator = nil
	s.core = nil

	switch s.mode {
	case ModePipelined:
		opts := []pipeline.PipelineOption{pipeline.WithEntry(s.prog.TextStart)}
		if s.sink != nil {
			opts = append(opts, pipeline.WithPrintSink(s.sink))
		}
		s.core = core.NewCore(s.regFile, s.memory, s.config, opts...)
		s.core.SetHaltOn(s.haltOn)
	default:
		opts := []emu.EmulatorOption{emu.WithEntry(s.prog.TextStart)}
		if s.sink != nil {
			opts = append(opts, emu.WithPrintSink(s.sink))
		}
		opts = append(opts, emu.WithMaxPC(s.config.MaxPC))
		s.emulator = emu.NewEmulator(s.regFile, s.memory, opts...)
	}

	s.steps = 0
	s.exceptions = emu.ExcNone
	s.halted = false

	s.log.WithFields(logrus.Fields{
		"mode":       s.mode.String(),
		"text_start": fmt.Sprintf("0x%08x", s.prog.TextStart),
		"text_size":  s.prog.TextSize,
		"data_size":  s.prog.DataSize,
	}).Debug("Program loaded")
}

// Reset reloads the program and restores the reset state.
func (s *Simulator) Reset() {
	s.build()
}

// Mode returns the core model in use.
func (s *Simulator) Mode() Mode {
	return s.mode
}

// Program returns the loaded program.
func (s *Simulator) Program() *loader.Program {
	return s.prog
}

// Core returns the pipelined core, nil in functional mode.
func (s *Simulator) Core() *core.Core {
	return s.core
}

// Emulator returns the functional core, nil in pipelined mode.
func (s *Simulator) Emulator() *emu.Emulator {
	return s.emulator
}

// Registers returns a copy of the register file.
func (s *Simulator) Registers() [32]uint32 {
	return s.regFile.Snapshot()
}

// RegFile returns the register file.
func (s *Simulator) RegFile() *emu.RegFile {
	return s.regFile
}

// Memory returns the memory.
func (s *Simulator) Memory() *emu.Memory {
	return s.memory
}

// PC returns the next instruction address in functional mode and the fetch
// address in pipelined mode.
func (s *Simulator) PC() uint32 {
	if s.core != nil {
		return s.core.PC()
	}
	return s.emulator.PC()
}

// Halted reports whether a halting exception stopped the program.
func (s *Simulator) Halted() bool {
	return s.halted
}

// Done reports whether the program has completed or halted.
func (s *Simulator) Done() bool {
	if s.halted {
		return true
	}

	lo, hi := s.prog.TextStart, s.prog.TextEnd()
	if s.core != nil {
		return s.core.Done(lo, hi)
	}

	pc := s.emulator.PC()
	_, pending := s.emulator.PendingBranch()
	return (pc < lo || pc >= hi) && !pending
}

// Step executes one instruction (functional) or one cycle (pipelined) and
// returns the exceptions raised.
func (s *Simulator) Step() emu.Exception {
	if s.halted {
		return emu.ExcNone
	}

	pc := s.PC()

	var exc emu.Exception
	if s.core != nil {
		exc = s.core.Tick()
		s.halted = s.core.Halted()
	} else {
		exc = s.emulator.Step()
		s.halted = exc&s.haltOn != 0
	}

	s.steps++
	s.exceptions |= exc

	fields := logrus.Fields{
		"step": s.steps,
		"pc":   fmt.Sprintf("0x%08x", pc),
	}
	s.log.WithFields(fields).Debug("Step")

	if exc != emu.ExcNone {
		fields["exception"] = exc.String()
		s.log.WithFields(fields).Warn("Exception raised")
	}
	if s.halted {
		s.log.WithFields(fields).Info("Halted")
	}

	return exc
}

// Run steps until the program completes, halts or exhausts the budget.
func (s *Simulator) Run() (Result, error) {
	for !s.Done() {
		if s.maxSteps > 0 && s.steps >= s.maxSteps {
			s.log.WithFields(logrus.Fields{
				"steps": s.steps,
				"pc":    fmt.Sprintf("0x%08x", s.PC()),
			}).Error("Step budget exhausted")
			return s.Result(), fmt.Errorf("after %d steps: %w", s.steps, ErrBudgetExhausted)
		}
		s.Step()
	}

	return s.Result(), nil
}

// Result returns the summary of the run so far.
func (s *Simulator) Result() Result {
	r := Result{
		Mode:       s.mode,
		Steps:      s.steps,
		Exceptions: s.exceptions,
		Halted:     s.halted,
	}

	if s.core != nil {
		r.Stats = s.core.Stats()
		r.Instructions = r.Stats.Instructions
		r.Cycles = r.Stats.Cycles
	} else {
		r.Instructions = s.emulator.InstructionCount()
		r.Cycles = r.Instructions
	}

	return r
}
