package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
	"github.com/sarchlab/mipsim/timing/cache"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

var _ = Describe("Pipeline Stages", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		memory = emu.NewMemory()
	})

	Describe("FetchStage", func() {
		var fetchStage *pipeline.FetchStage

		BeforeEach(func() {
			fetchStage = pipeline.NewFetchStage(memory)
		})

		It("should fetch instruction from memory", func() {
			memory.Write32(0x1000, 0x2008FFFF) // addi $8, $0, -1

			word, ok := fetchStage.Fetch(0x1000)

			Expect(ok).To(BeTrue())
			Expect(word).To(Equal(uint32(0x2008FFFF)))
		})

		It("should ignore busy memory when not unified", func() {
			memory.Write32(0x1000, 0x00221820)
			Expect(memory.Busy()).To(BeTrue())

			word, ok := fetchStage.Fetch(0x1000)

			Expect(ok).To(BeTrue())
			Expect(word).To(Equal(uint32(0x00221820)))
		})

		It("should wait for a busy unified memory", func() {
			memory.SetUnified(true)
			memory.Write32(0x1000, 0x00221820)

			_, ok := fetchStage.Fetch(0x1000)
			Expect(ok).To(BeFalse())

			memory.Step()
			word, ok := fetchStage.Fetch(0x1000)
			Expect(ok).To(BeTrue())
			Expect(word).To(Equal(uint32(0x00221820)))
		})
	})

	Describe("DecodeStage", func() {
		var decodeStage *pipeline.DecodeStage

		BeforeEach(func() {
			decodeStage = pipeline.NewDecodeStage()
		})

		decode := func(name string, ops insts.Operands) pipeline.DecodeResult {
			return decodeStage.Decode(0x1000, set.MustEncode(name, ops))
		}

		Context("arithmetic", func() {
			It("should decode a register-register add", func() {
				result := decode("add", insts.Operands{Rd: 3, Rs: 1, Rt: 2})

				Expect(result.IDEX.Valid).To(BeTrue())
				Expect(result.IDEX.ALUOp).To(Equal(emu.ALUAdd))
				Expect(result.IDEX.CheckOverflow).To(BeTrue())
				Expect(result.IDEX.SrcA).To(Equal(uint8(1)))
				Expect(result.IDEX.SrcB).To(Equal(uint8(2)))
				Expect(result.IDEX.Rd).To(Equal(uint8(3)))
				Expect(result.IDEX.MemOp).To(Equal(emu.MemNone))
				Expect(result.IsControl()).To(BeFalse())
				Expect(result.Exception).To(Equal(emu.ExcNone))
			})

			It("should not check overflow on addu", func() {
				result := decode("addu", insts.Operands{Rd: 3, Rs: 1, Rt: 2})
				Expect(result.IDEX.CheckOverflow).To(BeFalse())
			})

			It("should sign-extend addi immediates", func() {
				result := decode("addi", insts.Operands{Rt: 8, Rs: 0, Imm: -1})

				Expect(result.IDEX.SrcB).To(Equal(pipeline.ImmReg))
				Expect(result.IDEX.OprB).To(Equal(uint32(0xFFFFFFFF)))
				Expect(result.IDEX.Rd).To(Equal(uint8(8)))
			})

			It("should zero-extend ori immediates", func() {
				result := decode("ori", insts.Operands{Rt: 8, Rs: 0, Imm: 0xFFFF})
				Expect(result.IDEX.OprB).To(Equal(uint32(0xFFFF)))
			})

			It("should read the shifted register from rt", func() {
				result := decode("sll", insts.Operands{Rd: 2, Rt: 3, Imm: 4})

				Expect(result.IDEX.ALUOp).To(Equal(emu.ALUSll))
				Expect(result.IDEX.SrcA).To(Equal(uint8(3)))
				Expect(result.IDEX.OprB).To(Equal(uint32(4)))
			})

			It("should not write when the destination is register 0", func() {
				result := decode("add", insts.Operands{Rd: 0, Rs: 1, Rt: 2})
				Expect(result.IDEX.Rd).To(Equal(pipeline.NoReg))
			})
		})

		Context("memory", func() {
			It("should decode lbu as an unsigned byte load", func() {
				result := decode("lbu", insts.Operands{Rt: 1, Rs: 2, Imm: -4})

				Expect(result.IDEX.MemOp).To(Equal(emu.MemLoadByte))
				Expect(result.IDEX.MemSigned).To(BeFalse())
				Expect(result.IDEX.SrcA).To(Equal(uint8(2)))
				Expect(result.IDEX.OprB).To(Equal(uint32(0xFFFFFFFC)))
				Expect(result.IDEX.Rd).To(Equal(uint8(1)))
				Expect(result.IDEX.IsLoad()).To(BeTrue())
			})

			It("should decode sw with a store source and no destination", func() {
				result := decode("sw", insts.Operands{Rt: 5, Rs: 29, Imm: 8})

				Expect(result.IDEX.MemOp).To(Equal(emu.MemStoreWord))
				Expect(result.IDEX.StoreSrc).To(Equal(uint8(5)))
				Expect(result.IDEX.Rd).To(Equal(pipeline.NoReg))
				Expect(result.Sources.Store).To(Equal(uint8(5)))
			})
		})

		Context("control transfers", func() {
			It("should decode beq with a relative target", func() {
				result := decode("beq", insts.Operands{Rs: 1, Rt: 2, Imm: -2})

				Expect(result.Cond).To(Equal(emu.CondEQ))
				Expect(result.TargetKind).To(Equal(pipeline.TargetRelative))
				Expect(result.Target).To(Equal(uint32(0x0FF8)))
				Expect(result.Sources.BranchA).To(Equal(uint8(1)))
				Expect(result.Sources.BranchB).To(Equal(uint8(2)))
				Expect(result.IDEX.Rd).To(Equal(pipeline.NoReg))
			})

			It("should decode jal as a region jump that links", func() {
				result := decode("jal", insts.Operands{Imm: 0x100})

				Expect(result.Cond).To(Equal(emu.CondAlways))
				Expect(result.TargetKind).To(Equal(pipeline.TargetRegion))
				Expect(result.Target).To(Equal(uint32(0x400)))
				Expect(result.IDEX.Rd).To(Equal(emu.RegRA))
				Expect(result.IDEX.OprB).To(Equal(uint32(0x1008)))
			})

			It("should decode bltzal with an unconditional link", func() {
				result := decode("bltzal", insts.Operands{Rs: 3, Imm: 4})

				Expect(result.Cond).To(Equal(emu.CondLTZ))
				Expect(result.IDEX.Rd).To(Equal(emu.RegRA))
			})

			It("should decode jr as a register target", func() {
				result := decode("jr", insts.Operands{Rs: 31})

				Expect(result.TargetKind).To(Equal(pipeline.TargetRegister))
				Expect(result.Sources.BranchA).To(Equal(uint8(31)))
			})
		})

		Context("special instructions", func() {
			It("should raise breakpoint for break", func() {
				result := decode("break", insts.Operands{})
				Expect(result.Exception).To(Equal(emu.ExcBreakpoint))
				Expect(result.IDEX.Valid).To(BeTrue())
			})

			It("should raise invalid instruction for unknown opcodes", func() {
				result := decodeStage.Decode(0x1000, 0xFC000005)
				Expect(result.Exception).To(Equal(emu.ExcInvalidInstruction))
			})

			It("should decode prints with the register as operand A", func() {
				result := decode("prints", insts.Operands{Rs: 4})

				Expect(result.IDEX.IsPrint).To(BeTrue())
				Expect(result.IDEX.PrintKind).To(Equal(emu.PrintString))
				Expect(result.IDEX.SrcA).To(Equal(uint8(4)))
				Expect(result.IDEX.Rd).To(Equal(pipeline.NoReg))
			})
		})
	})

	Describe("ExecuteStage", func() {
		var executeStage *pipeline.ExecuteStage
		var idex pipeline.IDEXRegister

		BeforeEach(func() {
			executeStage = pipeline.NewExecuteStage()
			idex.Clear()
			idex.Valid = true
			idex.PC = 0x1000
			idex.Rd = 3
		})

		It("should compute the ALU result", func() {
			idex.ALUOp = emu.ALUSub

			exmem, exc := executeStage.Execute(&idex, 10, 3, 0)

			Expect(exc).To(Equal(emu.ExcNone))
			Expect(exmem.Valid).To(BeTrue())
			Expect(exmem.PC).To(Equal(uint32(0x1000)))
			Expect(exmem.ALUResult).To(Equal(uint32(7)))
			Expect(exmem.Rd).To(Equal(uint8(3)))
		})

		It("should suppress the destination on checked overflow", func() {
			idex.ALUOp = emu.ALUAdd
			idex.CheckOverflow = true

			exmem, exc := executeStage.Execute(&idex, 0x7FFFFFFF, 1, 0)

			Expect(exc).To(Equal(emu.ExcOverflow))
			Expect(exmem.Rd).To(Equal(pipeline.NoReg))
		})

		It("should wrap silently without overflow checking", func() {
			idex.ALUOp = emu.ALUAdd

			exmem, exc := executeStage.Execute(&idex, 0x7FFFFFFF, 1, 0)

			Expect(exc).To(Equal(emu.ExcNone))
			Expect(exmem.ALUResult).To(Equal(uint32(0x80000000)))
		})

		It("should carry store data and memory control", func() {
			idex.ALUOp = emu.ALUAdd
			idex.MemOp = emu.MemStoreHalf
			idex.Rd = pipeline.NoReg

			exmem, _ := executeStage.Execute(&idex, 0x100, 2, 0xBEEF)

			Expect(exmem.ALUResult).To(Equal(uint32(0x102)))
			Expect(exmem.StoreValue).To(Equal(uint32(0xBEEF)))
			Expect(exmem.MemOp).To(Equal(emu.MemStoreHalf))
		})
	})

	Describe("MemoryStage", func() {
		var memoryStage *pipeline.MemoryStage
		var exmem pipeline.EXMEMRegister

		BeforeEach(func() {
			memoryStage = pipeline.NewMemoryStage(memory)
			exmem.Clear()
			exmem.Valid = true
		})

		It("should perform a signed byte load", func() {
			memory.Write8(0x2000, 0x80)
			exmem.MemOp = emu.MemLoadByte
			exmem.MemSigned = true
			exmem.ALUResult = 0x2000
			exmem.Rd = 1

			memwb, exc := memoryStage.Access(&exmem, 0)

			Expect(exc).To(Equal(emu.ExcNone))
			Expect(memwb.Value).To(Equal(uint32(0xFFFFFF80)))
			Expect(memwb.Rd).To(Equal(uint8(1)))
		})

		It("should perform a word store with the given data", func() {
			exmem.MemOp = emu.MemStoreWord
			exmem.ALUResult = 0x2000
			exmem.StoreValue = 1

			_, exc := memoryStage.Access(&exmem, 0xCAFEBABE)

			Expect(exc).To(Equal(emu.ExcNone))
			Expect(memory.Read32(0x2000)).To(Equal(uint32(0xCAFEBABE)))
		})

		It("should skip a misaligned load and drop its destination", func() {
			exmem.MemOp = emu.MemLoadWord
			exmem.ALUResult = 0x2001
			exmem.Rd = 1
			memory.ResetTiming()

			memwb, exc := memoryStage.Access(&exmem, 0)

			Expect(exc).To(Equal(emu.ExcDataAlign))
			Expect(memwb.Rd).To(Equal(pipeline.NoReg))
			Expect(memory.Busy()).To(BeFalse())
		})

		It("should pass ALU results through", func() {
			exmem.ALUResult = 42
			exmem.Rd = 5

			memwb, _ := memoryStage.Access(&exmem, 0)

			Expect(memwb.Value).To(Equal(uint32(42)))
			Expect(memwb.Rd).To(Equal(uint8(5)))
		})
	})

	Describe("WritebackStage", func() {
		var writebackStage *pipeline.WritebackStage

		BeforeEach(func() {
			writebackStage = pipeline.NewWritebackStage(regFile)
		})

		It("should write the value to the register", func() {
			memwb := pipeline.MEMWBRegister{Valid: true, Rd: 7, Value: 99}

			Expect(writebackStage.Writeback(&memwb)).To(BeTrue())
			Expect(regFile.ReadReg(7)).To(Equal(uint32(99)))
		})

		It("should retire without writing when there is no destination", func() {
			memwb := pipeline.MEMWBRegister{Valid: true, Rd: pipeline.NoReg, Value: 99}

			Expect(writebackStage.Writeback(&memwb)).To(BeTrue())
			Expect(regFile.Snapshot()).To(Equal(emu.NewRegFile().Snapshot()))
		})

		It("should not retire a bubble", func() {
			memwb := pipeline.MEMWBRegister{}
			memwb.Clear()
			Expect(writebackStage.Writeback(&memwb)).To(BeFalse())
		})
	})

	Describe("data cache", func() {
		It("should hold a unified memory for the miss latency", func() {
			memory.SetUnified(true)
			regFile.WriteReg(2, 0x2000)

			pipe := pipeline.NewPipeline(regFile, memory, pipeline.WithDCache(cache.Config{
				Size: 256, Associativity: 1, BlockSize: 16, HitLatency: 1, MissLatency: 5,
			}))
			Expect(pipe.UseDCache()).To(BeTrue())

			words := set.NewBuilder().
				Mem("lw", 1, 0, 2).
				Mem("lw", 3, 4, 2).
				MustWords()
			loadText(memory, words)

			cycles := runUntilRetired(pipe, 2)
			Expect(pipe.DCacheStats().Misses).To(Equal(uint64(1)))
			Expect(pipe.DCacheStats().Hits).To(Equal(uint64(1)))
			Expect(pipe.Stats().FetchStalls).To(Equal(uint64(3)))
			// Instructions already fetched are not slowed down.
			Expect(cycles).To(Equal(6))
		})
	})
})
