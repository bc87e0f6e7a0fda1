// Package monitor implements an interactive command shell over a simulator.
//
// The monitor reads one command per line, for example:
//
//	step 4
//	registers
//	memory dump data 32
//	disassemble loop 8
//
// Addresses are numbers (0x-prefixed for hex) or program labels; a label
// may be abbreviated to any unambiguous prefix. An empty line repeats the
// previous command.
package monitor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/cmd"
	"github.com/beevik/prefixtree/v2"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
	"github.com/sarchlab/mipsim/sim"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

var errQuit = errors.New("exiting monitor")

// Monitor drives a simulator from text commands.
type Monitor struct {
	sim     *sim.Simulator
	set     *insts.Set
	symbols *prefixtree.Tree[uint32]
	labels  map[string]uint32

	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	lastCmd     *cmd.Selection

	nextDisasm uint32
	nextDump   uint32
}

// New creates a monitor over s.
func New(s *sim.Simulator) *Monitor {
	m := &Monitor{
		sim:     s,
		set:     insts.NewSet(),
		symbols: prefixtree.New[uint32](),
		labels:  make(map[string]uint32),
		output:  bufio.NewWriter(io.Discard),
	}

	prog := s.Program()
	for name, addr := range prog.Symbols {
		m.symbols.Add(strings.ToLower(name), addr)
		m.labels[strings.ToLower(name)] = addr
	}
	m.nextDisasm = prog.TextStart
	m.nextDump = prog.DataStart

	return m
}

// RunCommands accepts commands from r and writes the results to w until the
// input ends or a quit command is read. When interactive is set, a prompt
// is displayed before each command.
func (m *Monitor) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	m.input = bufio.NewScanner(r)
	m.output = bufio.NewWriter(w)
	m.interactive = interactive

	m.displayPC()

	for {
		m.prompt()

		line, err := m.getLine()
		if err != nil {
			break
		}

		if err := m.exec(line); err != nil {
			break
		}
	}

	m.flush()
}

// Exec runs a single command line, writing its output to w. It reports
// whether the command asked the monitor to quit.
func (m *Monitor) Exec(line string, w io.Writer) (quit bool) {
	m.output = bufio.NewWriter(w)
	err := m.exec(line)
	m.flush()
	return errors.Is(err, errQuit)
}

func (m *Monitor) exec(line string) error {
	var sel cmd.Selection
	if strings.TrimSpace(line) != "" {
		var err error
		sel, err = cmds.Lookup(line)
		switch {
		case errors.Is(err, cmd.ErrNotFound):
			m.println("Command not found.")
			return nil
		case errors.Is(err, cmd.ErrAmbiguous):
			m.println("Command is ambiguous.")
			return nil
		case err != nil:
			m.printf("ERROR: %v.\n", err)
			return nil
		}
	} else if m.lastCmd != nil {
		sel = *m.lastCmd
	}

	if sel.Command == nil {
		return nil
	}

	c, ok := sel.Command.Data.(*command)
	if !ok {
		// A subtree was selected without a command.
		m.println("Command is incomplete.")
		return nil
	}

	m.lastCmd = &sel
	return c.run(m, sel)
}

func (m *Monitor) printf(format string, args ...any) {
	fmt.Fprintf(m.output, format, args...)
	m.flush()
}

func (m *Monitor) println(args ...any) {
	fmt.Fprintln(m.output, args...)
	m.flush()
}

func (m *Monitor) flush() {
	m.output.Flush()
}

func (m *Monitor) getLine() (string, error) {
	if m.input.Scan() {
		return m.input.Text(), nil
	}
	if m.input.Err() != nil {
		return "", m.input.Err()
	}
	return "", io.EOF
}

func (m *Monitor) prompt() {
	if m.interactive {
		m.printf("* ")
	}
}

func (m *Monitor) displayPC() {
	if m.sim.Done() {
		return
	}
	line, _ := m.disassemble(m.sim.PC())
	m.println(line)
}

func (m *Monitor) displayUsage(c cmd.Selection) {
	if cc, ok := c.Command.Data.(*command); ok {
		m.printf("Syntax: %s\n", cc.desc.Usage)
	}
}

// parseAddr resolves a number or a program label.
func (m *Monitor) parseAddr(s string) (uint32, error) {
	if v, err := strconv.ParseUint(s, 0, 32); err == nil {
		return uint32(v), nil
	}

	key := strings.ToLower(s)
	if addr, ok := m.labels[key]; ok {
		return addr, nil
	}

	addr, err := m.symbols.FindValue(key)
	switch {
	case errors.Is(err, prefixtree.ErrPrefixAmbiguous):
		return 0, fmt.Errorf("label %q is ambiguous", s)
	case err != nil:
		return 0, fmt.Errorf("unknown address %q", s)
	}
	return addr, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return n, nil
}

// disassemble renders the instruction at addr with its label and source
// line, and returns the address of the next instruction.
func (m *Monitor) disassemble(addr uint32) (string, uint32) {
	prog := m.sim.Program()
	word := m.sim.Memory().Read32(addr)

	var b strings.Builder
	if label, ok := prog.Label(addr); ok {
		fmt.Fprintf(&b, "%s:\n", label)
	}
	fmt.Fprintf(&b, "  %08x: %08x  %s", addr, word, m.set.Disassemble(word))
	if line, ok := prog.Line(addr); ok {
		fmt.Fprintf(&b, "    ; line %d", line)
	}

	return b.String(), addr + 4
}

func (m *Monitor) cmdHelp(c cmd.Selection) error {
	if len(c.Args) == 0 {
		m.println("Commands:")
		for _, cc := range commands {
			m.printf("    %-16s %s\n", cc.desc.Usage, cc.desc.Brief)
		}
		return nil
	}

	s, err := cmds.Lookup(strings.Join(c.Args, " "))
	if err != nil {
		m.printf("%v\n", err)
		return nil
	}
	cc, ok := s.Command.Data.(*command)
	if !ok {
		m.println("No help available.")
		return nil
	}

	m.printf("Syntax: %s\n\n", cc.desc.Usage)
	m.printf("Description:\n   %s\n", cc.desc.Description)
	return nil
}

func (m *Monitor) cmdStep(c cmd.Selection) error {
	count := 1
	if len(c.Args) > 0 {
		n, err := parseCount(c.Args[0])
		if err != nil {
			m.displayUsage(c)
			return nil
		}
		count = n
	}

	for i := 0; i < count && !m.sim.Done(); i++ {
		if exc := m.sim.Step(); exc != emu.ExcNone {
			m.printf("Exception: %s\n", exc)
		}
	}

	m.displayStatus()
	return nil
}

func (m *Monitor) displayStatus() {
	switch {
	case m.sim.Halted():
		m.println("Halted.")
	case m.sim.Done():
		m.println("Program complete.")
	default:
		m.displayPC()
	}
}

func (m *Monitor) cmdRun(c cmd.Selection) error {
	_, err := m.sim.Run()
	if errors.Is(err, sim.ErrBudgetExhausted) {
		m.println("Step budget exhausted.")
		m.displayPC()
		return nil
	}

	m.displayStatus()
	return m.cmdStats(c)
}

func (m *Monitor) cmdRegisters(c cmd.Selection) error {
	regs := m.sim.Registers()

	m.printf("PC  %08x\n", m.sim.PC())
	for i := 0; i < len(regs); i += 4 {
		for j := i; j < i+4; j++ {
			fmt.Fprintf(m.output, "$%-2d %08x  ", j, regs[j])
		}
		m.println()
	}
	return nil
}

func (m *Monitor) cmdPipeline(c cmd.Selection) error {
	core := m.sim.Core()
	if core == nil {
		m.println("Pipeline view requires the pipelined core.")
		return nil
	}
	p := core.Pipeline

	stage := func(name string, valid bool, pc, word uint32) {
		if !valid {
			m.printf("%-7s bubble\n", name)
			return
		}
		m.printf("%-7s %08x  %s\n", name, pc, m.set.Disassemble(word))
	}

	ifid, idex, exmem, memwb := p.GetIFID(), p.GetIDEX(), p.GetEXMEM(), p.GetMEMWB()
	stage("IF/ID", ifid.Valid, ifid.PC, ifid.InstructionWord)
	stage("ID/EX", idex.Valid, idex.PC, idex.InstructionWord)
	stage("EX/MEM", exmem.Valid, exmem.PC, exmem.InstructionWord)
	stage("MEM/WB", memwb.Valid, memwb.PC, memwb.InstructionWord)

	t := p.LastTrace()
	m.printf("Cycle %d: %s\n", t.Cycle, describeTrace(t))
	return nil
}

func describeTrace(t pipeline.TraceInfo) string {
	var notes []string
	if t.Fetched {
		notes = append(notes, fmt.Sprintf("fetched %08x", t.FetchPC))
	}
	if t.FetchStall {
		notes = append(notes, "fetch stall")
	}
	if t.LoadUseHazard {
		notes = append(notes, "load-use stall")
	}
	if t.BranchHazard {
		notes = append(notes, "branch stall")
	}
	if t.BranchTaken {
		notes = append(notes, fmt.Sprintf("branch to %08x", t.BranchTarget))
	}
	if t.Retired {
		notes = append(notes, fmt.Sprintf("retired %08x", t.RetiredPC))
	}
	if t.Exception != emu.ExcNone {
		notes = append(notes, fmt.Sprintf("%s in %s", t.Exception, t.FaultStage))
	}
	if len(notes) == 0 {
		return "idle"
	}
	return strings.Join(notes, ", ")
}

func (m *Monitor) cmdDisassemble(c cmd.Selection) error {
	addr, lines := m.nextDisasm, 10

	if len(c.Args) > 0 {
		a, err := m.parseAddr(c.Args[0])
		if err != nil {
			m.printf("%v\n", err)
			return nil
		}
		addr = a &^ 3
	}
	if len(c.Args) > 1 {
		n, err := parseCount(c.Args[1])
		if err != nil {
			m.displayUsage(c)
			return nil
		}
		lines = n
	}

	for i := 0; i < lines; i++ {
		var line string
		line, addr = m.disassemble(addr)
		m.println(line)
	}

	m.nextDisasm = addr
	m.lastCmd.Args = nil
	return nil
}

func (m *Monitor) cmdSymbols(c cmd.Selection) error {
	type symbol struct {
		name string
		addr uint32
	}

	var syms []symbol
	for name, addr := range m.sim.Program().Symbols {
		syms = append(syms, symbol{name, addr})
	}
	if len(syms) == 0 {
		m.println("No symbols.")
		return nil
	}

	sort.Slice(syms, func(i, j int) bool {
		if syms[i].addr != syms[j].addr {
			return syms[i].addr < syms[j].addr
		}
		return syms[i].name < syms[j].name
	})
	for _, s := range syms {
		m.printf("%08x  %s\n", s.addr, s.name)
	}
	return nil
}

func (m *Monitor) cmdStats(c cmd.Selection) error {
	r := m.sim.Result()

	m.printf("Mode:         %s\n", r.Mode)
	m.printf("Steps:        %d\n", r.Steps)
	m.printf("Instructions: %d\n", r.Instructions)
	m.printf("Cycles:       %d\n", r.Cycles)
	if r.Mode == sim.ModePipelined {
		m.printf("CPI:          %.3f\n", r.Stats.CPI())
		m.printf("Stalls:       %d\n", r.Stats.Stalls)
		m.printf("Fetch stalls: %d\n", r.Stats.FetchStalls)
		m.printf("Branches:     %d\n", r.Stats.BranchesTaken)

		if p := m.sim.Core().Pipeline; p.UseDCache() {
			cs := p.DCacheStats()
			m.printf("D-cache:      %d hits, %d misses (%.1f%%)\n",
				cs.Hits, cs.Misses, 100*cs.HitRate())
		}
	}
	m.printf("Exceptions:   %s\n", r.Exceptions)
	return nil
}

func (m *Monitor) cmdReset(c cmd.Selection) error {
	m.sim.Reset()
	m.nextDisasm = m.sim.Program().TextStart
	m.nextDump = m.sim.Program().DataStart
	m.displayPC()
	return nil
}

func (m *Monitor) cmdMemoryDump(c cmd.Selection) error {
	addr, n := m.nextDump, 64

	if len(c.Args) > 0 {
		a, err := m.parseAddr(c.Args[0])
		if err != nil {
			m.printf("%v\n", err)
			return nil
		}
		addr = a
	}
	if len(c.Args) > 1 {
		v, err := parseCount(c.Args[1])
		if err != nil {
			m.displayUsage(c)
			return nil
		}
		n = v
	}

	data := m.sim.Memory().Dump(addr, n)
	for i := 0; i < len(data); i += 16 {
		end := min(i+16, len(data))

		var b strings.Builder
		fmt.Fprintf(&b, "%08x:", addr+uint32(i))
		for _, v := range data[i:end] {
			fmt.Fprintf(&b, " %02x", v)
		}
		m.println(b.String())
	}

	m.nextDump = addr + uint32(n)
	m.lastCmd.Args = nil
	return nil
}

func (m *Monitor) cmdMemorySet(c cmd.Selection) error {
	if len(c.Args) < 2 {
		m.displayUsage(c)
		return nil
	}

	addr, err := m.parseAddr(c.Args[0])
	if err != nil {
		m.printf("%v\n", err)
		return nil
	}
	if addr&3 != 0 {
		m.printf("Address %08x is not word aligned.\n", addr)
		return nil
	}

	var words []uint32
	for _, s := range c.Args[1:] {
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			m.printf("Invalid word %q.\n", s)
			return nil
		}
		words = append(words, uint32(v))
	}

	for i, w := range words {
		m.sim.Memory().Write32(addr+uint32(4*i), w)
	}
	m.printf("Stored %d word(s) at %08x.\n", len(words), addr)
	return nil
}

func (m *Monitor) cmdQuit(c cmd.Selection) error {
	return errQuit
}
