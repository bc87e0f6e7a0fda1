// Package pipeline provides the 5-stage pipeline implementation for timing simulation.
package pipeline

import "github.com/sarchlab/mipsim/emu"

// Register tag sentinels. Real register numbers are 0-31.
const (
	// NoReg marks an absent source or destination register.
	NoReg uint8 = 0xFF
	// ImmReg marks an operand that comes from the carried immediate.
	ImmReg uint8 = 0xFE
)

// IsReg reports whether tag names a real, non-zero register. Register 0 is
// never forwarded or waited on since it always reads as zero.
func IsReg(tag uint8) bool {
	return tag != 0 && tag < 32
}

// IFIDRegister holds state between Fetch and Decode stages.
type IFIDRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the fetched instruction.
	PC uint32

	// InstructionWord is the raw 32-bit instruction word.
	InstructionWord uint32
}

// Clear resets the IF/ID register to empty state.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{}
}

// IDEXRegister holds state between Decode and Execute stages.
type IDEXRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// InstructionWord is the raw instruction, kept for tracing.
	InstructionWord uint32

	// ALU control.
	ALUOp         emu.ALUOp
	CheckOverflow bool // suppress the write and raise overflow on signed overflow

	// Operand values resolved in decode and their source tags. A register
	// tag is forwarded again in execute.
	OprA, OprB uint32
	SrcA, SrcB uint8

	// Memory control.
	MemOp      emu.MemOp
	MemSigned  bool
	StoreSrc   uint8
	StoreValue uint32

	// Rd is the destination register, NoReg when nothing is written.
	Rd uint8

	// Print control. The ALU passes the rs value through in OprA.
	IsPrint   bool
	PrintKind emu.PrintKind
	PrintReg  uint8
}

// Clear resets the ID/EX register to empty state (a bubble).
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{SrcA: NoReg, SrcB: NoReg, StoreSrc: NoReg, Rd: NoReg}
}

// IsLoad reports whether the instruction is a valid pending load.
func (r *IDEXRegister) IsLoad() bool {
	return r.Valid && r.MemOp.IsLoad()
}

// Writes reports whether the instruction writes a forwardable register.
func (r *IDEXRegister) Writes() bool {
	return r.Valid && IsReg(r.Rd)
}

// EXMEMRegister holds state between Execute and Memory stages.
type EXMEMRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// InstructionWord is the raw instruction, kept for tracing.
	InstructionWord uint32

	// ALUResult is the address for loads and stores and the result otherwise.
	ALUResult uint32

	// Store data and its source tag.
	StoreValue uint32
	StoreSrc   uint8

	// Memory control (propagated from ID/EX).
	MemOp     emu.MemOp
	MemSigned bool

	// Rd is the destination register, NoReg when nothing is written.
	Rd uint8

	// Print control (propagated from ID/EX).
	IsPrint   bool
	PrintKind emu.PrintKind
	PrintReg  uint8
}

// Clear resets the EX/MEM register to empty state (a bubble).
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{StoreSrc: NoReg, Rd: NoReg}
}

// MemToReg reports whether the result comes from memory and is therefore not
// available for forwarding yet.
func (r *EXMEMRegister) MemToReg() bool {
	return r.MemOp.IsLoad()
}

// IsLoad reports whether the instruction is a valid pending load.
func (r *EXMEMRegister) IsLoad() bool {
	return r.Valid && r.MemOp.IsLoad()
}

// MEMWBRegister holds state between Memory and Writeback stages.
type MEMWBRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// InstructionWord is the raw instruction, kept for tracing.
	InstructionWord uint32

	// Value is the loaded data or the ALU result.
	Value uint32

	// Rd is the destination register, NoReg when nothing is written.
	Rd uint8
}

// Clear resets the MEM/WB register to empty state (a bubble).
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{Rd: NoReg}
}

func bubbleIDEX() IDEXRegister {
	var r IDEXRegister
	r.Clear()
	return r
}

func bubbleEXMEM() EXMEMRegister {
	var r EXMEMRegister
	r.Clear()
	return r
}

func bubbleMEMWB() MEMWBRegister {
	var r MEMWBRegister
	r.Clear()
	return r
}
