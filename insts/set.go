package insts

import (
	"errors"
	"fmt"
	"math/bits"
	"slices"
	"sort"
	"strings"

	"github.com/beevik/prefixtree/v2"
)

// Errors returned by the instruction set.
var (
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrOperandRange       = errors.New("operand out of range")
	ErrAmbiguous          = errors.New("ambiguous instruction prefix")
)

// Field names a variable operand field of an instruction word.
type Field uint8

// Operand fields.
const (
	FieldRs Field = iota
	FieldRt
	FieldRd
	FieldImm   // 'i' bits
	FieldShamt // 'a' bits, carried in Operands.Imm
	numFields
)

type fieldLayout struct {
	present bool
	offset  uint8
	width   uint8
}

// Instruction is the derived description of one table entry. Instructions are
// created by NewSet and must not be modified.
type Instruction struct {
	Name     string
	Template string
	Format   Format
	Sign     Signedness
	Syntax   string

	Opcode   uint8 // bits 31-26
	Funct    uint8 // bits 5-0, valid when HasFunct
	HasFunct bool

	FixedMask uint32 // bits that must match FixedBits
	FixedBits uint32

	RelativePC bool // immediate is a word offset from the instruction's PC
	ShiftImm   bool // immediate is a shift amount

	fields [numFields]fieldLayout
}

// Uses reports whether the instruction carries the given operand field.
func (i *Instruction) Uses(f Field) bool {
	return i.fields[f].present
}

// ImmBits returns the width of the immediate or shift-amount field, or 0.
func (i *Instruction) ImmBits() uint8 {
	if l := i.immField(); l != nil {
		return l.width
	}
	return 0
}

func (i *Instruction) immField() *fieldLayout {
	if i.fields[FieldImm].present {
		return &i.fields[FieldImm]
	}
	if i.fields[FieldShamt].present {
		return &i.fields[FieldShamt]
	}
	return nil
}

// ImmRange returns the inclusive range of immediate values accepted by the
// encoder.
func (i *Instruction) ImmRange() (lo, hi int64) {
	w := i.ImmBits()
	if w == 0 {
		return 0, 0
	}
	if i.Sign == Signed {
		return -(int64(1) << (w - 1)), int64(1)<<(w-1) - 1
	}
	return 0, int64(1)<<w - 1
}

// Operands holds the operand values of one instruction. Fields that the
// instruction's format does not use are ignored by Encode and zero after
// Decode.
type Operands struct {
	Rs, Rt, Rd uint8
	Imm        int64
}

// Set is an immutable instruction table with derived lookup structures.
type Set struct {
	all      []*Instruction
	byName   map[string]*Instruction
	byOpcode [64][]*Instruction
	byFormat map[Format][]*Instruction
	bySign   map[Signedness][]*Instruction
	relPC    []*Instruction
	shiftImm []*Instruction
	names    *prefixtree.Tree[*Instruction]
}

// NewSet parses the instruction table and returns the resulting Set.
func NewSet() *Set {
	s := &Set{
		byName:   make(map[string]*Instruction, len(definitions)),
		byFormat: make(map[Format][]*Instruction),
		bySign:   make(map[Signedness][]*Instruction),
		names:    prefixtree.New[*Instruction](),
	}

	for _, d := range definitions {
		inst := parseDefinition(d)

		s.all = append(s.all, inst)
		s.byName[inst.Name] = inst
		s.names.Add(inst.Name, inst)
		s.byOpcode[inst.Opcode] = append(s.byOpcode[inst.Opcode], inst)
		s.byFormat[inst.Format] = append(s.byFormat[inst.Format], inst)
		s.bySign[inst.Sign] = append(s.bySign[inst.Sign], inst)

		if inst.RelativePC {
			s.relPC = append(s.relPC, inst)
		}
		if inst.ShiftImm {
			s.shiftImm = append(s.shiftImm, inst)
		}
	}

	// Most specific template first so that nop wins over sll.
	for op := range s.byOpcode {
		sort.SliceStable(s.byOpcode[op], func(a, b int) bool {
			ma := bits.OnesCount32(s.byOpcode[op][a].FixedMask)
			mb := bits.OnesCount32(s.byOpcode[op][b].FixedMask)
			return ma > mb
		})
	}

	return s
}

func parseDefinition(d definition) *Instruction {
	tmpl := strings.ReplaceAll(d.template, " ", "")
	if len(tmpl) != 32 {
		panic(fmt.Sprintf("insts: template of %q has %d bits", d.name, len(tmpl)))
	}

	inst := &Instruction{
		Name:     d.name,
		Template: d.template,
		Format:   d.format,
		Sign:     d.sign,
		Syntax:   d.syntax,
	}

	for idx, c := range tmpl {
		pos := uint8(31 - idx)
		var f Field
		switch c {
		case '0':
			inst.FixedMask |= 1 << pos
			continue
		case '1':
			inst.FixedMask |= 1 << pos
			inst.FixedBits |= 1 << pos
			continue
		case 'c':
			continue
		case 's':
			f = FieldRs
		case 't':
			f = FieldRt
		case 'd':
			f = FieldRd
		case 'i':
			f = FieldImm
		case 'a':
			f = FieldShamt
		default:
			panic(fmt.Sprintf("insts: bad template character %q in %q", c, d.name))
		}

		l := &inst.fields[f]
		l.present = true
		l.offset = pos
		l.width++
	}

	inst.Opcode = uint8(inst.FixedBits >> 26)
	if inst.FixedMask&0x3F == 0x3F {
		inst.HasFunct = true
		inst.Funct = uint8(inst.FixedBits & 0x3F)
	}
	inst.ShiftImm = inst.fields[FieldShamt].present
	inst.RelativePC = strings.HasPrefix(inst.Name, "b") && inst.fields[FieldImm].present

	return inst
}

// Instruction returns the instruction with the exact given name.
func (s *Set) Instruction(name string) (*Instruction, bool) {
	inst, ok := s.byName[name]
	return inst, ok
}

// Lookup resolves a mnemonic or an unambiguous prefix of one.
func (s *Set) Lookup(prefix string) (*Instruction, error) {
	prefix = strings.ToLower(prefix)
	if inst, ok := s.byName[prefix]; ok {
		return inst, nil
	}

	inst, err := s.names.FindValue(prefix)
	switch {
	case errors.Is(err, prefixtree.ErrPrefixAmbiguous):
		return nil, fmt.Errorf("%w: %q", ErrAmbiguous, prefix)
	case err != nil:
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstruction, prefix)
	}

	return inst, nil
}

// All returns every instruction in table order.
func (s *Set) All() []*Instruction {
	return slices.Clone(s.all)
}

// ByFormat returns the instructions of the given operand format.
func (s *Set) ByFormat(f Format) []*Instruction {
	return slices.Clone(s.byFormat[f])
}

// BySign returns the instructions with the given immediate signedness.
func (s *Set) BySign(sign Signedness) []*Instruction {
	return slices.Clone(s.bySign[sign])
}

// RelativePC returns the instructions whose immediate is PC-relative.
func (s *Set) RelativePC() []*Instruction {
	return slices.Clone(s.relPC)
}

// ShiftImmediate returns the instructions whose immediate is a shift amount.
func (s *Set) ShiftImmediate() []*Instruction {
	return slices.Clone(s.shiftImm)
}
