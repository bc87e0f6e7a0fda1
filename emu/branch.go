// Package emu provides functional MIPS emulation.
package emu

// BranchCond is the condition a control-transfer instruction tests.
type BranchCond uint8

// Branch conditions. Unary conditions test A only.
const (
	CondNone BranchCond = iota
	CondAlways
	CondEQ  // A == B
	CondNE  // A != B
	CondLEZ // A <= 0
	CondGTZ // A > 0
	CondLTZ // A < 0
	CondGEZ // A >= 0
)

var condNames = [...]string{"-", "al", "eq", "ne", "lez", "gtz", "ltz", "gez"}

func (c BranchCond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return "?"
}

// Binary reports whether the condition reads a second operand.
func (c BranchCond) Binary() bool {
	return c == CondEQ || c == CondNE
}

// Unary reports whether the condition reads only the first operand.
func (c BranchCond) Unary() bool {
	return c >= CondLEZ
}

// Taken evaluates the condition on a and b.
func (c BranchCond) Taken(a, b uint32) bool {
	switch c {
	case CondAlways:
		return true
	case CondEQ:
		return a == b
	case CondNE:
		return a != b
	case CondLEZ:
		return int32(a) <= 0
	case CondGTZ:
		return int32(a) > 0
	case CondLTZ:
		return int32(a) < 0
	case CondGEZ:
		return int32(a) >= 0
	}
	return false
}

// RelativeTarget returns the target of a PC-relative branch at pc whose
// sign-extended word offset is offset.
func RelativeTarget(pc, offset uint32) uint32 {
	return pc + offset<<2
}

// RegionTarget returns the target of j/jal at pc with 26-bit index index.
func RegionTarget(pc, index uint32) uint32 {
	return pc&0xF0000000 | index<<2
}

// LinkAddress returns the return address stored by a linking instruction
// at pc. The delay slot at pc+4 is skipped.
func LinkAddress(pc uint32) uint32 {
	return pc + 8
}

// BranchUnit resolves control-transfer instructions for the functional core.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// Branch evaluates cond on rs and rt. When link is set, $ra receives the
// link address whether or not the branch is taken.
func (b *BranchUnit) Branch(pc uint32, cond BranchCond, rs, rt uint8, offset uint32, link bool) (bool, uint32) {
	taken := cond.Taken(b.regFile.ReadReg(rs), b.regFile.ReadReg(rt))
	if link {
		b.regFile.WriteReg(RegRA, LinkAddress(pc))
	}
	return taken, RelativeTarget(pc, offset)
}

// Jump resolves j and jal.
func (b *BranchUnit) Jump(pc, index uint32, link bool) (bool, uint32) {
	if link {
		b.regFile.WriteReg(RegRA, LinkAddress(pc))
	}
	return true, RegionTarget(pc, index)
}

// JumpReg resolves jr.
func (b *BranchUnit) JumpReg(rs uint8) (bool, uint32) {
	return true, b.regFile.ReadReg(rs)
}
