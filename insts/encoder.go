package insts

import "fmt"

// Encode assembles the named instruction with the given operands.
func (s *Set) Encode(name string, ops Operands) (uint32, error) {
	inst, ok := s.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownInstruction, name)
	}
	return inst.Encode(ops)
}

// MustEncode is like Encode but panics on error. It is meant for building
// fixed programs in tests and benchmarks.
func (s *Set) MustEncode(name string, ops Operands) uint32 {
	w, err := s.Encode(name, ops)
	if err != nil {
		panic(err)
	}
	return w
}

// Encode returns the machine word for the instruction with the given operands.
// Register fields must be below 32 and the immediate must lie in ImmRange.
func (i *Instruction) Encode(ops Operands) (uint32, error) {
	word := i.FixedBits

	regs := [...]struct {
		f   Field
		val uint8
		tag string
	}{
		{FieldRs, ops.Rs, "rs"},
		{FieldRt, ops.Rt, "rt"},
		{FieldRd, ops.Rd, "rd"},
	}
	for _, r := range regs {
		l := i.fields[r.f]
		if !l.present {
			continue
		}
		if r.val >= 32 {
			return 0, fmt.Errorf("%s: %s=%d: %w", i.Name, r.tag, r.val, ErrOperandRange)
		}
		word |= uint32(r.val) << l.offset
	}

	if l := i.immField(); l != nil {
		lo, hi := i.ImmRange()
		if ops.Imm < lo || ops.Imm > hi {
			return 0, fmt.Errorf("%s: immediate %d not in [%d, %d]: %w",
				i.Name, ops.Imm, lo, hi, ErrOperandRange)
		}
		mask := uint32(1)<<l.width - 1
		word |= (uint32(ops.Imm) & mask) << l.offset
	}

	return word, nil
}
