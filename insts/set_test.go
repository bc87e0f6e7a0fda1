package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipsim/insts"
)

func names(list []*insts.Instruction) []string {
	out := make([]string, 0, len(list))
	for _, i := range list {
		out = append(out, i.Name)
	}
	return out
}

var _ = Describe("Set", func() {
	var set *insts.Set

	BeforeEach(func() {
		set = insts.NewSet()
	})

	Describe("derived layout", func() {
		It("should derive opcode and function code", func() {
			add, ok := set.Instruction("add")
			Expect(ok).To(BeTrue())
			Expect(add.Opcode).To(Equal(uint8(0)))
			Expect(add.HasFunct).To(BeTrue())
			Expect(add.Funct).To(Equal(uint8(insts.FnADD)))
			Expect(add.Format).To(Equal(insts.FormatRRR))
		})

		It("should not treat immediate bits as a function code", func() {
			lw, _ := set.Instruction("lw")
			Expect(lw.Opcode).To(Equal(uint8(insts.OpLW)))
			Expect(lw.HasFunct).To(BeFalse())
			Expect(lw.ImmBits()).To(Equal(uint8(16)))
		})

		It("should report operand fields in use", func() {
			sll, _ := set.Instruction("sll")
			Expect(sll.Uses(insts.FieldRd)).To(BeTrue())
			Expect(sll.Uses(insts.FieldRt)).To(BeTrue())
			Expect(sll.Uses(insts.FieldRs)).To(BeFalse())
			Expect(sll.Uses(insts.FieldShamt)).To(BeTrue())
			Expect(sll.ImmBits()).To(Equal(uint8(5)))
		})

		It("should give jumps a 26-bit immediate", func() {
			j, _ := set.Instruction("jal")
			Expect(j.ImmBits()).To(Equal(uint8(26)))
			lo, hi := j.ImmRange()
			Expect(lo).To(Equal(int64(0)))
			Expect(hi).To(Equal(int64(1<<26 - 1)))
		})
	})

	Describe("classification", func() {
		It("should index relative-PC instructions by branch prefix", func() {
			Expect(names(set.RelativePC())).To(ConsistOf(
				"beq", "bne", "blez", "bgtz", "bltz", "bgez", "bltzal", "bgezal"))
		})

		It("should not classify break as relative-PC", func() {
			Expect(names(set.RelativePC())).ToNot(ContainElement("break"))
		})

		It("should index shift-immediate instructions", func() {
			Expect(names(set.ShiftImmediate())).To(ConsistOf("sll", "srl", "sra"))
		})

		It("should index by format", func() {
			Expect(names(set.ByFormat(insts.FormatI))).To(ConsistOf("j", "jal"))
			Expect(names(set.ByFormat(insts.FormatR))).To(
				ConsistOf("jr", "print", "printm", "prints"))
			Expect(names(set.ByFormat(insts.FormatN))).To(ConsistOf("nop", "break"))
		})

		It("should index by signedness", func() {
			unsigned := names(set.BySign(insts.Unsigned))
			Expect(unsigned).To(ContainElements("addiu", "andi", "ori", "xori", "sltiu", "lui", "j", "jal"))
			Expect(unsigned).ToNot(ContainElement("addi"))
		})

		It("should keep every table entry", func() {
			Expect(set.All()).To(HaveLen(52))
		})

		It("should return copies of its indexes", func() {
			list := set.ByFormat(insts.FormatI)
			list[0] = nil
			Expect(set.ByFormat(insts.FormatI)[0]).ToNot(BeNil())
		})
	})

	Describe("Lookup", func() {
		It("should prefer an exact name", func() {
			inst, err := set.Lookup("add")
			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Name).To(Equal("add"))
		})

		It("should resolve an unambiguous prefix", func() {
			inst, err := set.Lookup("bgeza")
			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Name).To(Equal("bgezal"))
		})

		It("should be case-insensitive", func() {
			inst, err := set.Lookup("LUI")
			Expect(err).ToNot(HaveOccurred())
			Expect(inst.Name).To(Equal("lui"))
		})

		It("should report ambiguous prefixes", func() {
			_, err := set.Lookup("sr")
			Expect(err).To(MatchError(insts.ErrAmbiguous))
		})

		It("should report unknown names", func() {
			_, err := set.Lookup("mfhi")
			Expect(err).To(MatchError(insts.ErrUnknownInstruction))
		})
	})

	Describe("Decode", func() {
		It("should decode zero as nop rather than sll", func() {
			inst, _, ok := set.Decode(0)
			Expect(ok).To(BeTrue())
			Expect(inst.Name).To(Equal("nop"))
		})

		It("should accept any break code", func() {
			inst, _, ok := set.Decode(0x03FFFFCD)
			Expect(ok).To(BeTrue())
			Expect(inst.Name).To(Equal("break"))
		})

		It("should reject unknown function codes", func() {
			_, _, ok := set.Decode(0x0000003F)
			Expect(ok).To(BeFalse())
		})

		It("should reject unknown opcodes", func() {
			Expect(set.Identify(0x7C000000)).To(BeNil())
		})

		It("should sign-extend signed immediates", func() {
			_, ops, _ := set.Decode(0x8C41FFFC) // lw $1, -4($2)
			Expect(ops.Imm).To(Equal(int64(-4)))
		})

		It("should zero-extend unsigned immediates", func() {
			_, ops, _ := set.Decode(0x3421FFFF) // ori $1, $1, 0xffff
			Expect(ops.Imm).To(Equal(int64(0xFFFF)))
		})
	})

	Describe("field helpers", func() {
		It("should extract fields of an R-type word", func() {
			w := set.MustEncode("sra", insts.Operands{Rd: 3, Rt: 4, Imm: 5})
			Expect(insts.OpcodeOf(w)).To(Equal(uint8(0)))
			Expect(insts.RtOf(w)).To(Equal(uint8(4)))
			Expect(insts.RdOf(w)).To(Equal(uint8(3)))
			Expect(insts.ShamtOf(w)).To(Equal(uint8(5)))
			Expect(insts.FunctOf(w)).To(Equal(uint8(insts.FnSRA)))
		})

		It("should sign-extend 16-bit immediates", func() {
			Expect(insts.SImm16Of(0x0000FFFF)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(insts.Imm16Of(0xFFFF8000)).To(Equal(uint32(0x8000)))
		})
	})
})
