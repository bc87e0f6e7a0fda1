package insts

// Identify returns the instruction whose template matches word, or nil.
func (s *Set) Identify(word uint32) *Instruction {
	for _, inst := range s.byOpcode[word>>26] {
		if word&inst.FixedMask == inst.FixedBits {
			return inst
		}
	}
	return nil
}

// Decode identifies word and extracts its operands. It is the exact inverse of
// Encode. The boolean result is false if no instruction matches.
func (s *Set) Decode(word uint32) (*Instruction, Operands, bool) {
	inst := s.Identify(word)
	if inst == nil {
		return nil, Operands{}, false
	}
	return inst, inst.Operands(word), true
}

// Operands extracts the operand fields of word according to the
// instruction's layout. Signed immediates are sign-extended.
func (i *Instruction) Operands(word uint32) Operands {
	var ops Operands

	if l := i.fields[FieldRs]; l.present {
		ops.Rs = uint8(word>>l.offset) & 0x1F
	}
	if l := i.fields[FieldRt]; l.present {
		ops.Rt = uint8(word>>l.offset) & 0x1F
	}
	if l := i.fields[FieldRd]; l.present {
		ops.Rd = uint8(word>>l.offset) & 0x1F
	}

	if l := i.immField(); l != nil {
		raw := (word >> l.offset) & (uint32(1)<<l.width - 1)
		if i.Sign == Signed {
			shift := 32 - l.width
			ops.Imm = int64(int32(raw<<shift) >> shift)
		} else {
			ops.Imm = int64(raw)
		}
	}

	return ops
}

// Field extraction helpers shared by the cores' inline decoders.

// OpcodeOf returns bits 31-26.
func OpcodeOf(word uint32) uint8 { return uint8(word >> 26) }

// RsOf returns bits 25-21.
func RsOf(word uint32) uint8 { return uint8(word>>21) & 0x1F }

// RtOf returns bits 20-16.
func RtOf(word uint32) uint8 { return uint8(word>>16) & 0x1F }

// RdOf returns bits 15-11.
func RdOf(word uint32) uint8 { return uint8(word>>11) & 0x1F }

// ShamtOf returns bits 10-6.
func ShamtOf(word uint32) uint8 { return uint8(word>>6) & 0x1F }

// FunctOf returns bits 5-0.
func FunctOf(word uint32) uint8 { return uint8(word) & 0x3F }

// Imm16Of returns the low 16 bits zero-extended.
func Imm16Of(word uint32) uint32 { return word & 0xFFFF }

// SImm16Of returns the low 16 bits sign-extended.
func SImm16Of(word uint32) uint32 { return uint32(int32(int16(word))) }

// Imm26Of returns the low 26 bits.
func Imm26Of(word uint32) uint32 { return word & 0x03FFFFFF }
