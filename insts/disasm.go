package insts

import (
	"fmt"
	"strings"
)

// Disassemble renders word as assembly text, for example "addi $8, $0, -1".
// Unrecognized words render as a ".word" directive.
func (s *Set) Disassemble(word uint32) string {
	inst, ops, ok := s.Decode(word)
	if !ok {
		return fmt.Sprintf(".word 0x%08x", word)
	}
	if inst.Syntax == "" {
		return inst.Name
	}

	var b strings.Builder
	b.WriteString(inst.Name)
	b.WriteByte(' ')
	for _, c := range inst.Syntax {
		switch c {
		case 's':
			fmt.Fprintf(&b, "$%d", ops.Rs)
		case 't':
			fmt.Fprintf(&b, "$%d", ops.Rt)
		case 'd':
			fmt.Fprintf(&b, "$%d", ops.Rd)
		case 'a':
			fmt.Fprintf(&b, "%d", ops.Imm)
		case 'i':
			if inst.Sign == Signed {
				fmt.Fprintf(&b, "%d", ops.Imm)
			} else {
				fmt.Fprintf(&b, "0x%x", ops.Imm)
			}
		default:
			b.WriteRune(c)
		}
	}

	return b.String()
}
