// Package emu provides functional MIPS emulation.
package emu

// MemOp selects a memory access. The pipelined core carries it from ID/EX to
// EX/MA.
type MemOp uint8

// Memory operations.
const (
	MemNone MemOp = iota
	MemLoadByte
	MemLoadHalf
	MemLoadWord
	MemStoreByte
	MemStoreHalf
	MemStoreWord
)

var memOpNames = [...]string{"-", "lb", "lh", "lw", "sb", "sh", "sw"}

func (op MemOp) String() string {
	if int(op) < len(memOpNames) {
		return memOpNames[op]
	}
	return "?"
}

// IsLoad reports whether op reads memory.
func (op MemOp) IsLoad() bool {
	return op >= MemLoadByte && op <= MemLoadWord
}

// IsStore reports whether op writes memory.
func (op MemOp) IsStore() bool {
	return op >= MemStoreByte && op <= MemStoreWord
}

// Size returns the access width in bytes, or 0 for MemNone.
func (op MemOp) Size() uint32 {
	switch op {
	case MemLoadByte, MemStoreByte:
		return 1
	case MemLoadHalf, MemStoreHalf:
		return 2
	case MemLoadWord, MemStoreWord:
		return 4
	}
	return 0
}

// Aligned reports whether addr is naturally aligned for op.
func (op MemOp) Aligned(addr uint32) bool {
	s := op.Size()
	return s == 0 || addr&(s-1) == 0
}

// Load performs a load and extends the result to 32 bits.
func (m *Memory) Load(op MemOp, addr uint32, signed bool) uint32 {
	switch op {
	case MemLoadByte:
		v := m.Read8(addr)
		if signed {
			return uint32(int32(int8(v)))
		}
		return uint32(v)
	case MemLoadHalf:
		v := m.Read16(addr)
		if signed {
			return uint32(int32(int16(v)))
		}
		return uint32(v)
	case MemLoadWord:
		return m.Read32(addr)
	}
	return 0
}

// Store performs a store of the low bytes of value.
func (m *Memory) Store(op MemOp, addr, value uint32) {
	switch op {
	case MemStoreByte:
		m.Write8(addr, uint8(value))
	case MemStoreHalf:
		m.Write16(addr, uint16(value))
	case MemStoreWord:
		m.Write32(addr, value)
	}
}

// LoadStoreUnit executes loads and stores against the register file.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// Load performs rt = mem[rs + offset]. A misaligned address skips the access
// and leaves rt unchanged.
func (lsu *LoadStoreUnit) Load(op MemOp, signed bool, rt, rs uint8, offset uint32) Exception {
	addr := lsu.regFile.ReadReg(rs) + offset
	if !op.Aligned(addr) {
		return ExcDataAlign
	}
	lsu.regFile.WriteReg(rt, lsu.memory.Load(op, addr, signed))
	return ExcNone
}

// Store performs mem[rs + offset] = rt. A misaligned address skips the
// access.
func (lsu *LoadStoreUnit) Store(op MemOp, rt, rs uint8, offset uint32) Exception {
	addr := lsu.regFile.ReadReg(rs) + offset
	if !op.Aligned(addr) {
		return ExcDataAlign
	}
	lsu.memory.Store(op, addr, lsu.regFile.ReadReg(rt))
	return ExcNone
}
