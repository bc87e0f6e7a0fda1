package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipsim/insts"
)

var _ = Describe("Builder", func() {
	var set *insts.Set

	BeforeEach(func() {
		set = insts.NewSet()
	})

	It("should resolve backward and forward branch labels", func() {
		words, err := set.NewBuilder().
			Label("top").
			RRI("addi", 1, 1, -1).
			Branch("bne", 1, 0, "top").
			Op("nop").
			Branch("beq", 0, 0, "end").
			Op("nop").
			Label("end").
			Op("break").
			Words()
		Expect(err).ToNot(HaveOccurred())
		Expect(words).To(HaveLen(6))

		_, ops, _ := set.Decode(words[1])
		Expect(ops.Imm).To(Equal(int64(-1)))
		_, ops, _ = set.Decode(words[3])
		Expect(ops.Imm).To(Equal(int64(2)))
	})

	It("should report undefined labels", func() {
		_, err := set.NewBuilder().Branch("beq", 0, 0, "nowhere").Words()
		Expect(err).To(MatchError(ContainSubstring("undefined label")))
	})

	It("should keep the first encoding error", func() {
		_, err := set.NewBuilder().RRI("addi", 1, 0, 1<<20).Op("nop").Words()
		Expect(err).To(MatchError(insts.ErrOperandRange))
	})
})
