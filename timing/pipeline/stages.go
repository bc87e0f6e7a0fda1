// Package pipeline provides a 5-stage pipeline model for cycle-accurate timing simulation.
package pipeline

import (
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
	"github.com/sarchlab/mipsim/timing/cache"
)

// FetchStage handles instruction fetch from memory.
type FetchStage struct {
	memory *emu.Memory
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(memory *emu.Memory) *FetchStage {
	return &FetchStage{memory: memory}
}

// Fetch reads the instruction at the given PC. It reports false when the
// memory is unified and still busy with an earlier access.
func (s *FetchStage) Fetch(pc uint32) (uint32, bool) {
	if s.memory.Unified() && s.memory.Busy() {
		return 0, false
	}
	return s.memory.Read32(pc), true
}

// TargetKind tells how a control transfer computes its target.
type TargetKind uint8

// Target kinds.
const (
	TargetNone     TargetKind = iota
	TargetRelative            // PC + (offset << 2)
	TargetRegion              // (PC & 0xF0000000) | (index << 2)
	TargetRegister            // value of BranchA
)

// DecodeResult holds the result of the decode stage before operand
// resolution.
type DecodeResult struct {
	// IDEX is the control record with operand tags filled in. Register
	// operand values are resolved by the pipeline.
	IDEX IDEXRegister

	// Sources lists every register the instruction reads.
	Sources Sources

	// Branch control.
	Cond       emu.BranchCond
	TargetKind TargetKind
	Target     uint32 // for relative and region targets

	// Exception raised by decoding alone (invalid instruction, break).
	Exception emu.Exception
}

// IsControl reports whether the instruction may redirect the PC.
func (r *DecodeResult) IsControl() bool {
	return r.Cond != emu.CondNone
}

// DecodeStage re-decodes the raw instruction held in IF/ID.
type DecodeStage struct{}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage() *DecodeStage {
	return &DecodeStage{}
}

// Decode determines the control record of word fetched at pc.
func (s *DecodeStage) Decode(pc, word uint32) DecodeResult {
	res := DecodeResult{IDEX: bubbleIDEX(), Sources: NoSources()}
	d := &res.IDEX
	d.Valid = true
	d.PC = pc
	d.InstructionWord = word

	rs := insts.RsOf(word)
	rt := insts.RtOf(word)
	simm := insts.SImm16Of(word)
	uimm := insts.Imm16Of(word)

	switch insts.OpcodeOf(word) {
	case insts.OpSpecial:
		s.decodeSpecial(word, &res)

	case insts.OpRegImm:
		switch rt {
		case insts.RtBLTZ:
			s.branch(&res, emu.CondLTZ, rs, NoReg, pc, simm)
		case insts.RtBGEZ:
			s.branch(&res, emu.CondGEZ, rs, NoReg, pc, simm)
		case insts.RtBLTZAL:
			s.branch(&res, emu.CondLTZ, rs, NoReg, pc, simm)
			s.link(&res, pc)
		case insts.RtBGEZAL:
			s.branch(&res, emu.CondGEZ, rs, NoReg, pc, simm)
			s.link(&res, pc)
		default:
			res.Exception |= emu.ExcInvalidInstruction
		}

	case insts.OpJ:
		res.Cond = emu.CondAlways
		res.TargetKind = TargetRegion
		res.Target = emu.RegionTarget(pc, insts.Imm26Of(word))
	case insts.OpJAL:
		res.Cond = emu.CondAlways
		res.TargetKind = TargetRegion
		res.Target = emu.RegionTarget(pc, insts.Imm26Of(word))
		s.link(&res, pc)
	case insts.OpBEQ:
		s.branch(&res, emu.CondEQ, rs, rt, pc, simm)
	case insts.OpBNE:
		s.branch(&res, emu.CondNE, rs, rt, pc, simm)
	case insts.OpBLEZ:
		s.branch(&res, emu.CondLEZ, rs, NoReg, pc, simm)
	case insts.OpBGTZ:
		s.branch(&res, emu.CondGTZ, rs, NoReg, pc, simm)

	case insts.OpADDI:
		s.aluImm(&res, emu.ALUAdd, true, rt, rs, simm)
	case insts.OpADDIU:
		s.aluImm(&res, emu.ALUAdd, false, rt, rs, simm)
	case insts.OpSLTI:
		s.aluImm(&res, emu.ALUSlt, false, rt, rs, simm)
	case insts.OpSLTIU:
		s.aluImm(&res, emu.ALUSltu, false, rt, rs, simm)
	case insts.OpANDI:
		s.aluImm(&res, emu.ALUAnd, false, rt, rs, uimm)
	case insts.OpORI:
		s.aluImm(&res, emu.ALUOr, false, rt, rs, uimm)
	case insts.OpXORI:
		s.aluImm(&res, emu.ALUXor, false, rt, rs, uimm)
	case insts.OpLUI:
		s.aluImm(&res, emu.ALULui, false, rt, NoReg, uimm)

	case insts.OpLB:
		s.load(&res, emu.MemLoadByte, true, rt, rs, simm)
	case insts.OpLBU:
		s.load(&res, emu.MemLoadByte, false, rt, rs, simm)
	case insts.OpLH:
		s.load(&res, emu.MemLoadHalf, true, rt, rs, simm)
	case insts.OpLHU:
		s.load(&res, emu.MemLoadHalf, false, rt, rs, simm)
	case insts.OpLW:
		s.load(&res, emu.MemLoadWord, false, rt, rs, simm)
	case insts.OpSB:
		s.store(&res, emu.MemStoreByte, rt, rs, simm)
	case insts.OpSH:
		s.store(&res, emu.MemStoreHalf, rt, rs, simm)
	case insts.OpSW:
		s.store(&res, emu.MemStoreWord, rt, rs, simm)

	case insts.OpPrint:
		s.decodePrint(word, &res)

	default:
		res.Exception |= emu.ExcInvalidInstruction
	}

	return res
}

func (s *DecodeStage) decodeSpecial(word uint32, res *DecodeResult) {
	rs := insts.RsOf(word)
	rt := insts.RtOf(word)
	rd := insts.RdOf(word)
	sa := uint32(insts.ShamtOf(word))

	switch insts.FunctOf(word) {
	case insts.FnSLL:
		s.aluImm(res, emu.ALUSll, false, rd, rt, sa)
	case insts.FnSRL:
		s.aluImm(res, emu.ALUSrl, false, rd, rt, sa)
	case insts.FnSRA:
		s.aluImm(res, emu.ALUSra, false, rd, rt, sa)
	case insts.FnSLLV:
		s.aluReg(res, emu.ALUSll, false, rd, rt, rs)
	case insts.FnSRLV:
		s.aluReg(res, emu.ALUSrl, false, rd, rt, rs)
	case insts.FnSRAV:
		s.aluReg(res, emu.ALUSra, false, rd, rt, rs)
	case insts.FnJR:
		res.Cond = emu.CondAlways
		res.TargetKind = TargetRegister
		res.Sources.BranchA = rs
	case insts.FnBREAK:
		res.Exception |= emu.ExcBreakpoint
	case insts.FnMUL:
		s.aluReg(res, emu.ALUMul, true, rd, rs, rt)
	case insts.FnMULU:
		s.aluReg(res, emu.ALUMul, false, rd, rs, rt)
	case insts.FnDIV:
		s.aluReg(res, emu.ALUDiv, true, rd, rs, rt)
	case insts.FnDIVU:
		s.aluReg(res, emu.ALUDivu, false, rd, rs, rt)
	case insts.FnADD:
		s.aluReg(res, emu.ALUAdd, true, rd, rs, rt)
	case insts.FnADDU:
		s.aluReg(res, emu.ALUAdd, false, rd, rs, rt)
	case insts.FnSUB:
		s.aluReg(res, emu.ALUSub, true, rd, rs, rt)
	case insts.FnSUBU:
		s.aluReg(res, emu.ALUSub, false, rd, rs, rt)
	case insts.FnAND:
		s.aluReg(res, emu.ALUAnd, false, rd, rs, rt)
	case insts.FnOR:
		s.aluReg(res, emu.ALUOr, false, rd, rs, rt)
	case insts.FnXOR:
		s.aluReg(res, emu.ALUXor, false, rd, rs, rt)
	case insts.FnNOR:
		s.aluReg(res, emu.ALUNor, false, rd, rs, rt)
	case insts.FnSLT:
		s.aluReg(res, emu.ALUSlt, false, rd, rs, rt)
	case insts.FnSLTU:
		s.aluReg(res, emu.ALUSltu, false, rd, rs, rt)
	default:
		res.Exception |= emu.ExcInvalidInstruction
	}
}

func (s *DecodeStage) decodePrint(word uint32, res *DecodeResult) {
	rs := insts.RsOf(word)
	d := &res.IDEX

	switch insts.FunctOf(word) {
	case insts.FnPrintReg:
		d.PrintKind = emu.PrintRegister
	case insts.FnPrintMem:
		d.PrintKind = emu.PrintMemory
	case insts.FnPrintStr:
		d.PrintKind = emu.PrintString
	default:
		res.Exception |= emu.ExcInvalidInstruction
		return
	}

	d.IsPrint = true
	d.PrintReg = rs
	d.ALUOp = emu.ALUNop
	d.SrcA = rs
	res.Sources.A = rs
}

// dest converts a destination field to a tag; register 0 is never written.
func dest(reg uint8) uint8 {
	if reg == 0 {
		return NoReg
	}
	return reg
}

func (s *DecodeStage) aluReg(res *DecodeResult, op emu.ALUOp, checked bool, rd, a, b uint8) {
	d := &res.IDEX
	d.ALUOp = op
	d.CheckOverflow = checked
	d.SrcA, d.SrcB = a, b
	d.Rd = dest(rd)
	res.Sources.A, res.Sources.B = a, b
}

func (s *DecodeStage) aluImm(res *DecodeResult, op emu.ALUOp, checked bool, rt, a uint8, imm uint32) {
	d := &res.IDEX
	d.ALUOp = op
	d.CheckOverflow = checked
	d.SrcA = a
	d.SrcB = ImmReg
	d.OprB = imm
	d.Rd = dest(rt)
	res.Sources.A = a
}

func (s *DecodeStage) load(res *DecodeResult, op emu.MemOp, signed bool, rt, base uint8, offset uint32) {
	s.aluImm(res, emu.ALUAdd, false, rt, base, offset)
	res.IDEX.MemOp = op
	res.IDEX.MemSigned = signed
}

func (s *DecodeStage) store(res *DecodeResult, op emu.MemOp, rt, base uint8, offset uint32) {
	s.aluImm(res, emu.ALUAdd, false, 0, base, offset)
	res.IDEX.MemOp = op
	res.IDEX.StoreSrc = rt
	res.Sources.Store = rt
}

func (s *DecodeStage) branch(res *DecodeResult, cond emu.BranchCond, a, b uint8, pc, offset uint32) {
	res.Cond = cond
	res.TargetKind = TargetRelative
	res.Target = emu.RelativeTarget(pc, offset)
	res.Sources.BranchA = a
	res.Sources.BranchB = b
}

// link makes the instruction write the return address to $ra through the
// ALU.
func (s *DecodeStage) link(res *DecodeResult, pc uint32) {
	d := &res.IDEX
	d.ALUOp = emu.ALUAdd
	d.SrcA = NoReg
	d.OprA = 0
	d.SrcB = ImmReg
	d.OprB = emu.LinkAddress(pc)
	d.Rd = emu.RegRA
}

// ExecuteStage applies the ALU operation of ID/EX.
type ExecuteStage struct{}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage() *ExecuteStage {
	return &ExecuteStage{}
}

// Execute computes the EX/MEM record from idex and the resolved operand and
// store values.
func (s *ExecuteStage) Execute(idex *IDEXRegister, a, b, storeValue uint32) (EXMEMRegister, emu.Exception) {
	result, overflow := emu.Compute(idex.ALUOp, a, b)

	out := EXMEMRegister{
		Valid:           true,
		PC:              idex.PC,
		InstructionWord: idex.InstructionWord,
		ALUResult:       result,
		StoreValue:      storeValue,
		StoreSrc:        idex.StoreSrc,
		MemOp:           idex.MemOp,
		MemSigned:       idex.MemSigned,
		Rd:              idex.Rd,
		IsPrint:         idex.IsPrint,
		PrintKind:       idex.PrintKind,
		PrintReg:        idex.PrintReg,
	}

	if idex.CheckOverflow && overflow {
		out.Rd = NoReg
		return out, emu.ExcOverflow
	}

	return out, emu.ExcNone
}

// MemoryStage performs loads, stores and print notifications.
type MemoryStage struct {
	memory *emu.Memory
	dcache *cache.Tags
	sink   emu.PrintSink
}

// NewMemoryStage creates a new memory stage.
func NewMemoryStage(memory *emu.Memory) *MemoryStage {
	return &MemoryStage{memory: memory}
}

// Access performs the memory operation of exmem. storeValue is the store
// data after forwarding.
func (s *MemoryStage) Access(exmem *EXMEMRegister, storeValue uint32) (MEMWBRegister, emu.Exception) {
	out := MEMWBRegister{
		Valid:           true,
		PC:              exmem.PC,
		InstructionWord: exmem.InstructionWord,
		Value:           exmem.ALUResult,
		Rd:              exmem.Rd,
	}

	addr := exmem.ALUResult
	op := exmem.MemOp

	if op != emu.MemNone {
		if !op.Aligned(addr) {
			if op.IsLoad() {
				out.Rd = NoReg
			}
			return out, emu.ExcDataAlign
		}

		if op.IsLoad() {
			out.Value = s.memory.Load(op, addr, exmem.MemSigned)
		} else {
			s.memory.Store(op, addr, storeValue)
		}

		if s.dcache != nil {
			res := s.dcache.Access(addr, op.IsStore())
			s.memory.Hold(res.Latency)
		}
	}

	if exmem.IsPrint {
		ev := emu.NewPrintEvent(exmem.PC, exmem.PrintKind, exmem.PrintReg, exmem.ALUResult, s.memory)
		if s.sink != nil {
			s.sink(ev)
		}
	}

	return out, emu.ExcNone
}

// WritebackStage commits results to the register file.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback commits memwb and reports whether an instruction retired.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) bool {
	if !memwb.Valid {
		return false
	}
	s.regFile.WriteReg(memwb.Rd, memwb.Value)
	return true
}
