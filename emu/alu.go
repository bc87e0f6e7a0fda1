// Package emu provides functional MIPS emulation.
package emu

import "math"

// ALUOp selects an ALU operation. The pipelined core carries it in ID/EX.
type ALUOp uint8

// ALU operations. Shifts shift A by the low five bits of B.
const (
	ALUNop ALUOp = iota // result is A
	ALUAdd
	ALUSub
	ALUAnd
	ALUOr
	ALUXor
	ALUNor
	ALUSll
	ALUSrl
	ALUSra
	ALUSlt
	ALUSltu
	ALULui // B << 16
	ALUMul
	ALUDiv
	ALUDivu
)

var aluOpNames = [...]string{
	"nop", "add", "sub", "and", "or", "xor", "nor", "sll", "srl", "sra",
	"slt", "sltu", "lui", "mul", "div", "divu",
}

func (op ALUOp) String() string {
	if int(op) < len(aluOpNames) {
		return aluOpNames[op]
	}
	return "?"
}

// Compute applies op to a and b. The overflow result reports signed 32-bit
// overflow for add, sub and mul, and a zero or overflowing divisor for div.
// Callers that do not check overflow ignore it.
func Compute(op ALUOp, a, b uint32) (result uint32, overflow bool) {
	switch op {
	case ALUNop:
		return a, false
	case ALUAdd:
		r := a + b
		return r, int32(a^r)&int32(b^r) < 0
	case ALUSub:
		r := a - b
		return r, int32(a^b)&int32(a^r) < 0
	case ALUAnd:
		return a & b, false
	case ALUOr:
		return a | b, false
	case ALUXor:
		return a ^ b, false
	case ALUNor:
		return ^(a | b), false
	case ALUSll:
		return a << (b & 31), false
	case ALUSrl:
		return a >> (b & 31), false
	case ALUSra:
		return uint32(int32(a) >> (b & 31)), false
	case ALUSlt:
		if int32(a) < int32(b) {
			return 1, false
		}
		return 0, false
	case ALUSltu:
		if a < b {
			return 1, false
		}
		return 0, false
	case ALULui:
		return b << 16, false
	case ALUMul:
		p := int64(int32(a)) * int64(int32(b))
		return uint32(p), p < math.MinInt32 || p > math.MaxInt32
	case ALUDiv:
		if b == 0 {
			return 0, true
		}
		if int32(a) == math.MinInt32 && int32(b) == -1 {
			return a, true
		}
		return uint32(int32(a) / int32(b)), false
	case ALUDivu:
		if b == 0 {
			return 0, false
		}
		return a / b, false
	}
	return 0, false
}

// ALU executes register-writing arithmetic and logic instructions.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Exec computes op on a and b and writes the result to dst. When checked is
// set and the operation overflows, dst is left unchanged and ExcOverflow is
// returned.
func (a *ALU) Exec(op ALUOp, dst uint8, x, y uint32, checked bool) Exception {
	r, ov := Compute(op, x, y)
	if checked && ov {
		return ExcOverflow
	}
	a.regFile.WriteReg(dst, r)
	return ExcNone
}

// RegReg executes rd = rs op rt.
func (a *ALU) RegReg(op ALUOp, rd, rs, rt uint8, checked bool) Exception {
	return a.Exec(op, rd, a.regFile.ReadReg(rs), a.regFile.ReadReg(rt), checked)
}

// RegImm executes rt = rs op imm.
func (a *ALU) RegImm(op ALUOp, rt, rs uint8, imm uint32, checked bool) Exception {
	return a.Exec(op, rt, a.regFile.ReadReg(rs), imm, checked)
}

// Shift executes rd = rt shifted by amount.
func (a *ALU) Shift(op ALUOp, rd, rt uint8, amount uint32) {
	a.Exec(op, rd, a.regFile.ReadReg(rt), amount, false)
}
