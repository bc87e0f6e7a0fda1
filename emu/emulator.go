// Package emu provides functional MIPS emulation.
package emu

import "github.com/sarchlab/mipsim/insts"

// Emulator executes MIPS instructions functionally, one architectural
// instruction per Step, with one delay slot after every control transfer.
type Emulator struct {
	regFile *RegFile
	memory  *Memory

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	printSink PrintSink

	pc    uint32
	entry uint32
	maxPC uint32

	// Target of a taken control transfer whose delay slot runs next.
	pending       bool
	pendingTarget uint32

	instructionCount uint64
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithPrintSink sets the receiver of print notifications.
func WithPrintSink(sink PrintSink) EmulatorOption {
	return func(e *Emulator) {
		e.printSink = sink
	}
}

// WithMaxPC sets the highest address the sequential PC may reach.
func WithMaxPC(pc uint32) EmulatorOption {
	return func(e *Emulator) {
		e.maxPC = pc
	}
}

// WithEntry sets the PC used on construction and Reset.
func WithEntry(pc uint32) EmulatorOption {
	return func(e *Emulator) {
		e.entry = pc
	}
}

// NewEmulator creates an emulator bound to the given register file and
// memory. The register file is not reset; call Reset for the reset state.
func NewEmulator(regFile *RegFile, memory *Memory, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: regFile,
		memory:  memory,
		entry:   TextStart,
		maxPC:   MaxPC,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.alu = NewALU(regFile)
	e.lsu = NewLoadStoreUnit(regFile, memory)
	e.branchUnit = NewBranchUnit(regFile)
	e.pc = e.entry

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// PC returns the address of the next instruction to execute.
func (e *Emulator) PC() uint32 {
	return e.pc
}

// SetPC redirects execution and drops any pending branch.
func (e *Emulator) SetPC(pc uint32) {
	e.pc = pc
	e.pending = false
}

// PendingBranch returns the target that commits after the current delay
// slot, if any.
func (e *Emulator) PendingBranch() (uint32, bool) {
	return e.pendingTarget, e.pending
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Reset restores the reset register state and entry PC. Memory is kept.
func (e *Emulator) Reset() {
	e.regFile.Reset()
	e.pc = e.entry
	e.pending = false
	e.pendingTarget = 0
	e.instructionCount = 0
}

// Step executes the instruction at PC and returns the exceptions it raised.
func (e *Emulator) Step() Exception {
	pc := e.pc
	word := e.memory.Read32(pc)

	exc, taken, target := e.execute(pc, word)
	e.instructionCount++

	// Delay slot of the previous control transfer: commit its target.
	if e.pending {
		if taken {
			exc |= ExcBranchInDelaySlot
		}
		e.pc = e.pendingTarget
		e.pending = false
		return exc
	}

	if taken {
		if target&3 != 0 {
			exc |= ExcPCAlign
			target += 4 - target&3
		}
		e.pending = true
		e.pendingTarget = target
	}

	e.pc = pc + 4
	if e.pc > e.maxPC {
		e.pc = e.maxPC
		exc |= ExcPCLimit
	}

	return exc
}

// execute decodes word inline and applies it. Control transfers report
// whether they are taken and their target instead of changing the PC.
func (e *Emulator) execute(pc, word uint32) (exc Exception, taken bool, target uint32) {
	rs := insts.RsOf(word)
	rt := insts.RtOf(word)
	simm := insts.SImm16Of(word)
	uimm := insts.Imm16Of(word)

	switch insts.OpcodeOf(word) {
	case insts.OpSpecial:
		return e.executeSpecial(word)

	case insts.OpRegImm:
		switch rt {
		case insts.RtBLTZ:
			taken, target = e.branchUnit.Branch(pc, CondLTZ, rs, 0, simm, false)
		case insts.RtBGEZ:
			taken, target = e.branchUnit.Branch(pc, CondGEZ, rs, 0, simm, false)
		case insts.RtBLTZAL:
			taken, target = e.branchUnit.Branch(pc, CondLTZ, rs, 0, simm, true)
		case insts.RtBGEZAL:
			taken, target = e.branchUnit.Branch(pc, CondGEZ, rs, 0, simm, true)
		default:
			exc |= ExcInvalidInstruction
		}

	case insts.OpJ:
		taken, target = e.branchUnit.Jump(pc, insts.Imm26Of(word), false)
	case insts.OpJAL:
		taken, target = e.branchUnit.Jump(pc, insts.Imm26Of(word), true)
	case insts.OpBEQ:
		taken, target = e.branchUnit.Branch(pc, CondEQ, rs, rt, simm, false)
	case insts.OpBNE:
		taken, target = e.branchUnit.Branch(pc, CondNE, rs, rt, simm, false)
	case insts.OpBLEZ:
		taken, target = e.branchUnit.Branch(pc, CondLEZ, rs, 0, simm, false)
	case insts.OpBGTZ:
		taken, target = e.branchUnit.Branch(pc, CondGTZ, rs, 0, simm, false)

	case insts.OpADDI:
		exc |= e.alu.RegImm(ALUAdd, rt, rs, simm, true)
	case insts.OpADDIU:
		exc |= e.alu.RegImm(ALUAdd, rt, rs, simm, false)
	case insts.OpSLTI:
		exc |= e.alu.RegImm(ALUSlt, rt, rs, simm, false)
	case insts.OpSLTIU:
		exc |= e.alu.RegImm(ALUSltu, rt, rs, simm, false)
	case insts.OpANDI:
		exc |= e.alu.RegImm(ALUAnd, rt, rs, uimm, false)
	case insts.OpORI:
		exc |= e.alu.RegImm(ALUOr, rt, rs, uimm, false)
	case insts.OpXORI:
		exc |= e.alu.RegImm(ALUXor, rt, rs, uimm, false)
	case insts.OpLUI:
		exc |= e.alu.Exec(ALULui, rt, 0, uimm, false)

	case insts.OpLB:
		exc |= e.lsu.Load(MemLoadByte, true, rt, rs, simm)
	case insts.OpLBU:
		exc |= e.lsu.Load(MemLoadByte, false, rt, rs, simm)
	case insts.OpLH:
		exc |= e.lsu.Load(MemLoadHalf, true, rt, rs, simm)
	case insts.OpLHU:
		exc |= e.lsu.Load(MemLoadHalf, false, rt, rs, simm)
	case insts.OpLW:
		exc |= e.lsu.Load(MemLoadWord, false, rt, rs, simm)
	case insts.OpSB:
		exc |= e.lsu.Store(MemStoreByte, rt, rs, simm)
	case insts.OpSH:
		exc |= e.lsu.Store(MemStoreHalf, rt, rs, simm)
	case insts.OpSW:
		exc |= e.lsu.Store(MemStoreWord, rt, rs, simm)

	case insts.OpPrint:
		exc |= e.executePrint(pc, word, rs)

	default:
		exc |= ExcInvalidInstruction
	}

	return exc, taken, target
}

func (e *Emulator) executeSpecial(word uint32) (exc Exception, taken bool, target uint32) {
	rs := insts.RsOf(word)
	rt := insts.RtOf(word)
	rd := insts.RdOf(word)
	sa := uint32(insts.ShamtOf(word))

	switch insts.FunctOf(word) {
	case insts.FnSLL:
		e.alu.Shift(ALUSll, rd, rt, sa)
	case insts.FnSRL:
		e.alu.Shift(ALUSrl, rd, rt, sa)
	case insts.FnSRA:
		e.alu.Shift(ALUSra, rd, rt, sa)
	case insts.FnSLLV:
		e.alu.Shift(ALUSll, rd, rt, e.regFile.ReadReg(rs))
	case insts.FnSRLV:
		e.alu.Shift(ALUSrl, rd, rt, e.regFile.ReadReg(rs))
	case insts.FnSRAV:
		e.alu.Shift(ALUSra, rd, rt, e.regFile.ReadReg(rs))
	case insts.FnJR:
		taken, target = e.branchUnit.JumpReg(rs)
	case insts.FnBREAK:
		exc |= ExcBreakpoint
	case insts.FnMUL:
		exc |= e.alu.RegReg(ALUMul, rd, rs, rt, true)
	case insts.FnMULU:
		exc |= e.alu.RegReg(ALUMul, rd, rs, rt, false)
	case insts.FnDIV:
		exc |= e.alu.RegReg(ALUDiv, rd, rs, rt, true)
	case insts.FnDIVU:
		exc |= e.alu.RegReg(ALUDivu, rd, rs, rt, false)
	case insts.FnADD:
		exc |= e.alu.RegReg(ALUAdd, rd, rs, rt, true)
	case insts.FnADDU:
		exc |= e.alu.RegReg(ALUAdd, rd, rs, rt, false)
	case insts.FnSUB:
		exc |= e.alu.RegReg(ALUSub, rd, rs, rt, true)
	case insts.FnSUBU:
		exc |= e.alu.RegReg(ALUSub, rd, rs, rt, false)
	case insts.FnAND:
		exc |= e.alu.RegReg(ALUAnd, rd, rs, rt, false)
	case insts.FnOR:
		exc |= e.alu.RegReg(ALUOr, rd, rs, rt, false)
	case insts.FnXOR:
		exc |= e.alu.RegReg(ALUXor, rd, rs, rt, false)
	case insts.FnNOR:
		exc |= e.alu.RegReg(ALUNor, rd, rs, rt, false)
	case insts.FnSLT:
		exc |= e.alu.RegReg(ALUSlt, rd, rs, rt, false)
	case insts.FnSLTU:
		exc |= e.alu.RegReg(ALUSltu, rd, rs, rt, false)
	default:
		exc |= ExcInvalidInstruction
	}

	return exc, taken, target
}

func (e *Emulator) executePrint(pc, word uint32, rs uint8) Exception {
	var kind PrintKind
	switch insts.FunctOf(word) {
	case insts.FnPrintReg:
		kind = PrintRegister
	case insts.FnPrintMem:
		kind = PrintMemory
	case insts.FnPrintStr:
		kind = PrintString
	default:
		return ExcInvalidInstruction
	}

	ev := NewPrintEvent(pc, kind, rs, e.regFile.ReadReg(rs), e.memory)
	if e.printSink != nil {
		e.printSink(ev)
	}
	return ExcNone
}
