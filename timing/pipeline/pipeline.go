package pipeline

import (
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/timing/cache"
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions completed (retired).
	Instructions uint64
	// Stalls is the number of cycles decode held its instruction for a hazard.
	Stalls uint64
	// FetchStalls is the number of cycles fetch waited on a busy unified memory.
	FetchStalls uint64
	// DataHazards is the number of instructions that took an operand from the
	// forwarding network in execute.
	DataHazards uint64
	// BranchesTaken is the number of confirmed control transfers.
	BranchesTaken uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Stage identifies a pipeline stage.
type Stage uint8

// Pipeline stages.
const (
	StageNone Stage = iota
	StageIF
	StageID
	StageEX
	StageMEM
	StageWB
)

func (s Stage) String() string {
	switch s {
	case StageIF:
		return "IF"
	case StageID:
		return "ID"
	case StageEX:
		return "EX"
	case StageMEM:
		return "MEM"
	case StageWB:
		return "WB"
	default:
		return "-"
	}
}

// TraceInfo describes what happened during one cycle.
type TraceInfo struct {
	Cycle uint64

	// FetchPC is the address fetch read from, or tried to.
	FetchPC    uint32
	Fetched    bool
	FetchStall bool

	// Decode stall and its cause.
	Stall         bool
	LoadUseHazard bool
	BranchHazard  bool

	// Control transfer resolved in decode.
	Cond         emu.BranchCond
	BranchTaken  bool
	BranchTarget uint32

	// Forwarding provenance of the instruction in execute.
	ForwardA     ForwardSource
	ForwardB     ForwardSource
	ForwardStore ForwardSource

	// Forwarding provenance of the branch operands in decode.
	ForwardBranchA ForwardSource
	ForwardBranchB ForwardSource

	// Instruction leaving writeback.
	Retired   bool
	RetiredPC uint32

	// Exceptions raised this cycle. FaultStage is the oldest stage that
	// raised one.
	Exception  emu.Exception
	FaultStage Stage
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithPrintSink sets the receiver of print notifications.
func WithPrintSink(sink emu.PrintSink) PipelineOption {
	return func(p *Pipeline) {
		p.memoryStage.sink = sink
	}
}

// WithMaxPC sets the highest address the sequential fetch PC may reach.
func WithMaxPC(pc uint32) PipelineOption {
	return func(p *Pipeline) {
		p.maxPC = pc
	}
}

// WithEntry sets the fetch PC used on construction and Reset.
func WithEntry(pc uint32) PipelineOption {
	return func(p *Pipeline) {
		p.entry = pc
	}
}

// WithDCache enables the L1 data cache timing model with the given
// configuration. Data accesses then keep the memory busy for the cache hit
// or miss latency.
func WithDCache(config cache.Config) PipelineOption {
	return func(p *Pipeline) {
		p.memoryStage.dcache = cache.New(config)
	}
}

// Pipeline implements a 5-stage pipelined CPU model with one branch delay
// slot.
// Stages: Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MEM) -> Writeback (WB)
type Pipeline struct {
	// Pipeline registers
	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister

	// Pipeline stages
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	// Hazard detection
	hazardUnit *HazardUnit

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory

	// Program counter
	pc    uint32
	entry uint32
	maxPC uint32

	// inDelaySlot is set while the next decoded instruction is the delay
	// slot of a confirmed control transfer.
	inDelaySlot bool

	// Redirect confirmed while fetch was blocked, applied after the delay
	// slot is fetched.
	redirect       bool
	redirectTarget uint32

	// draining stops fetch and decode so in-flight instructions can retire.
	draining bool

	stats Statistics
	trace TraceInfo
}

// NewPipeline creates a new 5-stage pipeline. The register file is not
// reset.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetchStage:     NewFetchStage(memory),
		decodeStage:    NewDecodeStage(),
		executeStage:   NewExecuteStage(),
		memoryStage:    NewMemoryStage(memory),
		writebackStage: NewWritebackStage(regFile),
		hazardUnit:     NewHazardUnit(),
		regFile:        regFile,
		memory:         memory,
		entry:          emu.TextStart,
		maxPC:          emu.MaxPC,
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	p.clearRegisters()
	p.pc = p.entry

	return p
}

func (p *Pipeline) clearRegisters() {
	p.ifid.Clear()
	p.idex.Clear()
	p.exmem.Clear()
	p.memwb.Clear()
}

// RegFile returns the pipeline's register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// Memory returns the pipeline's memory.
func (p *Pipeline) Memory() *emu.Memory {
	return p.memory
}

// PC returns the current fetch program counter.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// SetPC sets the fetch program counter and drops any latched redirect.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
	p.redirect = false
}

// GetIFID returns the IF/ID pipeline register.
func (p *Pipeline) GetIFID() *IFIDRegister {
	return &p.ifid
}

// GetIDEX returns the ID/EX pipeline register.
func (p *Pipeline) GetIDEX() *IDEXRegister {
	return &p.idex
}

// GetEXMEM returns the EX/MEM pipeline register.
func (p *Pipeline) GetEXMEM() *EXMEMRegister {
	return &p.exmem
}

// GetMEMWB returns the MEM/WB pipeline register.
func (p *Pipeline) GetMEMWB() *MEMWBRegister {
	return &p.memwb
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// LastTrace returns the trace of the most recent cycle.
func (p *Pipeline) LastTrace() TraceInfo {
	return p.trace
}

// DCacheStats returns data cache statistics, zero when no cache is
// configured.
func (p *Pipeline) DCacheStats() cache.Statistics {
	if p.memoryStage.dcache == nil {
		return cache.Statistics{}
	}
	return p.memoryStage.dcache.Stats()
}

// UseDCache reports whether the data cache timing model is enabled.
func (p *Pipeline) UseDCache() bool {
	return p.memoryStage.dcache != nil
}

// Draining reports whether fetch and decode have been stopped by Drain.
func (p *Pipeline) Draining() bool {
	return p.draining
}

// Empty reports whether no instruction is in flight.
func (p *Pipeline) Empty() bool {
	return !p.ifid.Valid && !p.idex.Valid && !p.exmem.Valid && !p.memwb.Valid
}

// InFlight reports whether an instruction with PC in [lo, hi) occupies any
// pipeline register.
func (p *Pipeline) InFlight(lo, hi uint32) bool {
	in := func(valid bool, pc uint32) bool {
		return valid && pc >= lo && pc < hi
	}
	return in(p.ifid.Valid, p.ifid.PC) ||
		in(p.idex.Valid, p.idex.PC) ||
		in(p.exmem.Valid, p.exmem.PC) ||
		in(p.memwb.Valid, p.memwb.PC)
}

// Reset empties the pipeline, restores the reset register state and entry
// PC, and clears statistics. Memory contents are kept.
func (p *Pipeline) Reset() {
	p.clearRegisters()
	p.regFile.Reset()
	p.memory.ResetTiming()
	p.pc = p.entry
	p.inDelaySlot = false
	p.redirect = false
	p.draining = false
	p.stats = Statistics{}
	p.trace = TraceInfo{}
	if p.memoryStage.dcache != nil {
		p.memoryStage.dcache.Reset()
	}
}

// Drain stops fetch and decode and discards the instructions younger than
// the one that faulted in the last cycle, so that older instructions can
// retire with Tick until Empty.
func (p *Pipeline) Drain() {
	p.draining = true
	p.redirect = false
	p.ifid.Clear()

	switch p.trace.FaultStage {
	case StageEX:
		p.idex.Clear()
	case StageMEM:
		p.idex.Clear()
		p.exmem.Clear()
	}
}

// Tick executes one pipeline cycle and returns the exceptions raised in it.
//
// Stages are evaluated in reverse order (WB→MEM→EX→ID→IF). Each stage reads
// the pipeline registers as they were at the start of the cycle and the new
// values are latched together at cycle end.
//
// Hazard handling:
//   - Data forwarding from EX/MEM and MEM/WB resolves ALU, store data and
//     branch operands
//   - A load feeding the next instruction stalls decode for one cycle
//   - A branch in decode waits for results still being computed in execute
//     and for loads that have not reached writeback
//   - Control transfers resolve in decode; the delay slot is always fetched
func (p *Pipeline) Tick() emu.Exception {
	p.stats.Cycles++
	p.trace = TraceInfo{Cycle: p.stats.Cycles}

	var exc emu.Exception
	raise := func(stage Stage, e emu.Exception) {
		if e == emu.ExcNone {
			return
		}
		exc |= e
		if stage > p.trace.FaultStage {
			p.trace.FaultStage = stage
		}
	}

	// Snapshot of the registers at the start of the cycle.
	oldIFID := p.ifid
	oldIDEX := p.idex
	oldEXMEM := p.exmem
	oldMEMWB := p.memwb

	// Writeback
	if p.writebackStage.Writeback(&oldMEMWB) {
		p.stats.Instructions++
		p.trace.Retired = true
		p.trace.RetiredPC = oldMEMWB.PC
	}

	// Memory
	newMEMWB := bubbleMEMWB()
	if oldEXMEM.Valid {
		storeValue := oldEXMEM.StoreValue
		if oldEXMEM.MemOp.IsStore() && IsReg(oldEXMEM.StoreSrc) &&
			oldMEMWB.Valid && oldMEMWB.Rd == oldEXMEM.StoreSrc {
			storeValue = oldMEMWB.Value
		}

		var e emu.Exception
		newMEMWB, e = p.memoryStage.Access(&oldEXMEM, storeValue)
		raise(StageMEM, e)
	}

	// Execute
	newEXMEM := bubbleEXMEM()
	if oldIDEX.Valid {
		fwd := p.hazardUnit.DetectForwarding(&oldIDEX, &oldEXMEM, &oldMEMWB)
		a := p.hazardUnit.GetForwardedValue(fwd.ForwardA, oldIDEX.OprA, &oldEXMEM, &oldMEMWB)
		b := p.hazardUnit.GetForwardedValue(fwd.ForwardB, oldIDEX.OprB, &oldEXMEM, &oldMEMWB)
		sv := p.hazardUnit.GetForwardedValue(fwd.ForwardStore, oldIDEX.StoreValue, &oldEXMEM, &oldMEMWB)

		p.trace.ForwardA = fwd.ForwardA
		p.trace.ForwardB = fwd.ForwardB
		p.trace.ForwardStore = fwd.ForwardStore
		if fwd.Any() {
			p.stats.DataHazards++
		}

		var e emu.Exception
		newEXMEM, e = p.executeStage.Execute(&oldIDEX, a, b, sv)
		raise(StageEX, e)
	}

	// Decode
	newIDEX := bubbleIDEX()
	stall := false
	confirmed := false
	var target uint32

	if oldIFID.Valid && !p.draining {
		res := p.decodeStage.Decode(oldIFID.PC, oldIFID.InstructionWord)

		p.trace.LoadUseHazard = p.hazardUnit.DetectLoadUseHazard(&oldIDEX, res.Sources)
		p.trace.BranchHazard = p.hazardUnit.DetectBranchHazard(&oldIDEX, &oldEXMEM, res.Sources)
		stall = p.hazardUnit.ComputeStalls(p.trace.LoadUseHazard || p.trace.BranchHazard).InsertBubbleEX

		if stall {
			p.stats.Stalls++
		} else {
			newIDEX = p.resolveOperands(res, &oldEXMEM, &oldMEMWB)
			raise(StageID, res.Exception)

			inSlot := p.inDelaySlot
			p.inDelaySlot = false

			if res.IsControl() {
				taken, t := p.evaluateBranch(res, &oldEXMEM, &oldMEMWB)
				p.trace.Cond = res.Cond
				p.trace.BranchTarget = t

				switch {
				case !taken:
				case inSlot:
					raise(StageID, emu.ExcBranchInDelaySlot)
				case t&3 != 0:
					raise(StageID, emu.ExcPCAlign)
				default:
					confirmed = true
					target = t
					p.inDelaySlot = true
					p.stats.BranchesTaken++
					p.trace.BranchTaken = true
				}
			}
		}
	}
	p.trace.Stall = stall

	// Fetch
	newIFID := oldIFID
	if !stall {
		newIFID = p.fetch(confirmed, target, raise)
	}

	p.ifid = newIFID
	p.idex = newIDEX
	p.exmem = newEXMEM
	p.memwb = newMEMWB

	p.memory.Step()

	p.trace.Exception = exc
	return exc
}

// resolveOperands fills in the register operand values of a decoded
// instruction.
func (p *Pipeline) resolveOperands(res DecodeResult, exmem *EXMEMRegister, memwb *MEMWBRegister) IDEXRegister {
	d := res.IDEX

	if IsReg(d.SrcA) {
		d.OprA, _ = p.hazardUnit.Forward(d.SrcA, p.regFile.ReadReg(d.SrcA), exmem, memwb)
	}
	if IsReg(d.SrcB) {
		d.OprB, _ = p.hazardUnit.Forward(d.SrcB, p.regFile.ReadReg(d.SrcB), exmem, memwb)
	}
	if IsReg(d.StoreSrc) {
		d.StoreValue, _ = p.hazardUnit.Forward(d.StoreSrc, p.regFile.ReadReg(d.StoreSrc), exmem, memwb)
	}

	return d
}

// evaluateBranch resolves the branch operands through the forwarding network
// and returns whether the transfer is taken and its target.
func (p *Pipeline) evaluateBranch(res DecodeResult, exmem *EXMEMRegister, memwb *MEMWBRegister) (bool, uint32) {
	read := func(reg uint8) (uint32, ForwardSource) {
		if !IsReg(reg) {
			return 0, ForwardNone
		}
		return p.hazardUnit.Forward(reg, p.regFile.ReadReg(reg), exmem, memwb)
	}

	a, fa := read(res.Sources.BranchA)
	b, fb := read(res.Sources.BranchB)
	p.trace.ForwardBranchA = fa
	p.trace.ForwardBranchB = fb

	target := res.Target
	if res.TargetKind == TargetRegister {
		target = a
	}

	return res.Cond.Taken(a, b), target
}

// fetch loads the next IF/ID record and advances the PC.
func (p *Pipeline) fetch(confirmed bool, target uint32, raise func(Stage, emu.Exception)) IFIDRegister {
	out := IFIDRegister{}
	p.trace.FetchPC = p.pc

	if p.draining {
		return out
	}

	word, ok := p.fetchStage.Fetch(p.pc)
	if !ok {
		p.stats.FetchStalls++
		p.trace.FetchStall = true
		if confirmed {
			p.redirect = true
			p.redirectTarget = target
		}
		return out
	}

	out.Valid = true
	out.PC = p.pc
	out.InstructionWord = word
	p.trace.Fetched = true

	switch {
	case confirmed:
		p.pc = target
	case p.redirect:
		p.pc = p.redirectTarget
		p.redirect = false
	default:
		p.pc += 4
		if p.pc > p.maxPC {
			p.pc = p.maxPC
			raise(StageIF, emu.ExcPCLimit)
		}
	}

	return out
}

// Run ticks the pipeline for at most cycles cycles and returns the
// accumulated exceptions. It stops early after the first cycle that raises
// any exception in stop.
func (p *Pipeline) Run(cycles uint64, stop emu.Exception) emu.Exception {
	var all emu.Exception
	for i := uint64(0); i < cycles; i++ {
		exc := p.Tick()
		all |= exc
		if exc&stop != 0 {
			break
		}
	}
	return all
}
