package insts

import "fmt"

// Builder assembles a sequence of instruction words. It is a small helper for
// tests, benchmarks and tools that need machine code without a full
// assembler. The first error sticks and is returned by Words.
type Builder struct {
	set    *Set
	words  []uint32
	labels map[string]int
	fixups []fixup
	err    error
}

type fixup struct {
	index int
	name  string
	ops   Operands
	label string
}

// NewBuilder returns an empty Builder using the set's encodings.
func (s *Set) NewBuilder() *Builder {
	return &Builder{set: s, labels: make(map[string]int)}
}

// Len returns the number of words emitted so far.
func (b *Builder) Len() int {
	return len(b.words)
}

// Emit appends one instruction.
func (b *Builder) Emit(name string, ops Operands) *Builder {
	if b.err != nil {
		return b
	}
	w, err := b.set.Encode(name, ops)
	if err != nil {
		b.err = fmt.Errorf("word %d: %w", len(b.words), err)
		return b
	}
	b.words = append(b.words, w)
	return b
}

// Word appends a raw word.
func (b *Builder) Word(w uint32) *Builder {
	b.words = append(b.words, w)
	return b
}

// Op appends an instruction without operands, such as nop or break.
func (b *Builder) Op(name string) *Builder {
	return b.Emit(name, Operands{})
}

// RRR appends a three-register instruction: name rd, rs, rt.
func (b *Builder) RRR(name string, rd, rs, rt uint8) *Builder {
	return b.Emit(name, Operands{Rd: rd, Rs: rs, Rt: rt})
}

// RRI appends a register-immediate instruction: name rt, rs, imm.
func (b *Builder) RRI(name string, rt, rs uint8, imm int64) *Builder {
	return b.Emit(name, Operands{Rt: rt, Rs: rs, Imm: imm})
}

// Shift appends a shift-immediate instruction: name rd, rt, sa.
func (b *Builder) Shift(name string, rd, rt uint8, sa int64) *Builder {
	return b.Emit(name, Operands{Rd: rd, Rt: rt, Imm: sa})
}

// Mem appends a load or store: name rt, offset(base).
func (b *Builder) Mem(name string, rt uint8, offset int64, base uint8) *Builder {
	return b.Emit(name, Operands{Rt: rt, Rs: base, Imm: offset})
}

// Lui appends lui rt, imm.
func (b *Builder) Lui(rt uint8, imm int64) *Builder {
	return b.Emit("lui", Operands{Rt: rt, Imm: imm})
}

// Reg appends a single-register instruction such as jr or print.
func (b *Builder) Reg(name string, rs uint8) *Builder {
	return b.Emit(name, Operands{Rs: rs})
}

// Label names the address of the next emitted word.
func (b *Builder) Label(label string) *Builder {
	if _, dup := b.labels[label]; dup && b.err == nil {
		b.err = fmt.Errorf("label %q redefined", label)
	}
	b.labels[label] = len(b.words)
	return b
}

// Branch appends a PC-relative branch to label, resolved by Words.
// Unary branches ignore rt.
func (b *Builder) Branch(name string, rs, rt uint8, label string) *Builder {
	b.fixups = append(b.fixups, fixup{
		index: len(b.words),
		name:  name,
		ops:   Operands{Rs: rs, Rt: rt},
		label: label,
	})
	return b.Word(0)
}

// Words resolves branch labels and returns the program.
func (b *Builder) Words() ([]uint32, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, f := range b.fixups {
		target, ok := b.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("word %d: undefined label %q", f.index, f.label)
		}
		ops := f.ops
		ops.Imm = int64(target - f.index)
		w, err := b.set.Encode(f.name, ops)
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", f.index, err)
		}
		b.words[f.index] = w
	}
	return append([]uint32(nil), b.words...), nil
}

// MustWords is like Words but panics on error.
func (b *Builder) MustWords() []uint32 {
	w, err := b.Words()
	if err != nil {
		panic(err)
	}
	return w
}
