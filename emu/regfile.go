// Package emu provides functional MIPS emulation.
package emu

// Register conventions used by the reset state and link instructions.
const (
	RegZero = 0
	RegGP   = 28 // global pointer
	RegSP   = 29 // stack pointer
	RegRA   = 31 // return address
)

// RegFile represents the 32 general-purpose registers.
// Register 0 always reads as 0 and writes to it are discarded.
type RegFile struct {
	r [32]uint32
}

// NewRegFile creates a register file in the reset state.
func NewRegFile() *RegFile {
	rf := &RegFile{}
	rf.Reset()
	return rf
}

// Reset zeroes every register and presets the global and stack pointers.
func (r *RegFile) Reset() {
	r.r = [32]uint32{}
	r.r[RegGP] = GlobalPointer
	r.r[RegSP] = StackPointer
}

// ReadReg reads a register value. Register 0 and indices >= 32 (pipeline
// sentinels for "no register") return 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.r[reg]
}

// WriteReg writes a register value. Writes to register 0 or to indices >= 32
// are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.r[reg] = value
}

// Snapshot returns a copy of all 32 registers.
func (r *RegFile) Snapshot() [32]uint32 {
	return r.r
}
