// Package insts provides the MIPS-derived instruction set definition.
//
// Every instruction is declared once as a 32-bit bit template together with
// its operand format class and immediate signedness. NewSet parses the
// templates a single time and derives, per instruction, the fixed bits, the
// operand field offsets and the classification flags used by the encoder,
// the decoder and the tooling:
//   - Formats: RRR, RRI, RRA, RC, RI, R, I and N operand classes
//   - Encoding: one generic encoder driven by the derived field layout
//   - Decoding: template matching that inverts the encoder exactly
//
// Usage:
//
//	set := insts.NewSet()
//	word, err := set.Encode("addi", insts.Operands{Rt: 8, Rs: 0, Imm: -1})
//	inst, ops, ok := set.Decode(word)
//	fmt.Println(inst.Name, ops.Rt, ops.Imm, ok) // addi 8 -1 true
package insts
