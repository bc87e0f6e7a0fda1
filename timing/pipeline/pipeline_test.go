package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

var set = insts.NewSet()

func textEnd(words []uint32) uint32 {
	return emu.TextStart + uint32(len(words)*4)
}

// jumpIndex returns the j/jal index field for the word at index i.
func jumpIndex(i int) int64 {
	return int64(emu.TextStart/4) + int64(i)
}

func loadText(memory *emu.Memory, words []uint32) {
	memory.LoadImage(&emu.Image{
		TextStart: emu.TextStart,
		TextSize:  uint32(len(words) * 4),
		TextWords: words,
	})
}

func newPipe(words []uint32, opts ...pipeline.PipelineOption) *pipeline.Pipeline {
	memory := emu.NewMemory()
	loadText(memory, words)
	return pipeline.NewPipeline(emu.NewRegFile(), memory, opts...)
}

// runToEnd ticks until every instruction inside the text section has left
// the pipeline and fetch has moved past it.
func runToEnd(pipe *pipeline.Pipeline, words []uint32) emu.Exception {
	var exc emu.Exception
	end := textEnd(words)
	for i := 0; i < 10000; i++ {
		pc := pipe.PC()
		inText := pc >= emu.TextStart && pc < end
		if !inText && !pipe.InFlight(emu.TextStart, end) {
			break
		}
		exc |= pipe.Tick()
	}
	return exc
}

func runUntilRetired(pipe *pipeline.Pipeline, n uint64) int {
	cycles := 0
	for pipe.Stats().Instructions < n && cycles < 1000 {
		pipe.Tick()
		cycles++
	}
	return cycles
}

func ticks(pipe *pipeline.Pipeline, n int) emu.Exception {
	var exc emu.Exception
	for i := 0; i < n; i++ {
		exc |= pipe.Tick()
	}
	return exc
}

var _ = Describe("Pipeline", func() {
	var pipe *pipeline.Pipeline

	Describe("NewPipeline", func() {
		It("should start empty at the text entry", func() {
			pipe = newPipe(nil)

			Expect(pipe.PC()).To(Equal(emu.TextStart))
			Expect(pipe.Empty()).To(BeTrue())
			Expect(pipe.GetIDEX().Rd).To(Equal(pipeline.NoReg))
			Expect(pipe.UseDCache()).To(BeFalse())
		})

		It("should honor a custom entry", func() {
			pipe = newPipe(nil, pipeline.WithEntry(0x400))
			Expect(pipe.PC()).To(Equal(uint32(0x400)))
		})
	})

	Describe("Tick", func() {
		Context("single instruction execution", func() {
			It("should retire addi after five cycles", func() {
				pipe = newPipe(set.NewBuilder().RRI("addi", 1, 0, 10).MustWords())

				ticks(pipe, 4)
				Expect(pipe.RegFile().ReadReg(1)).To(BeZero())
				Expect(pipe.GetMEMWB().Valid).To(BeTrue())

				pipe.Tick()
				Expect(pipe.RegFile().ReadReg(1)).To(Equal(uint32(10)))
				Expect(pipe.Stats().Instructions).To(Equal(uint64(1)))
				Expect(pipe.LastTrace().Retired).To(BeTrue())
				Expect(pipe.LastTrace().RetiredPC).To(Equal(emu.TextStart))
			})

			It("should move instructions one stage per cycle", func() {
				pipe = newPipe(set.NewBuilder().
					RRI("addi", 1, 0, 1).
					RRI("addi", 2, 0, 2).
					MustWords())

				pipe.Tick()
				Expect(pipe.GetIFID().PC).To(Equal(emu.TextStart))

				pipe.Tick()
				Expect(pipe.GetIFID().PC).To(Equal(emu.TextStart + 4))
				Expect(pipe.GetIDEX().PC).To(Equal(emu.TextStart))
				Expect(pipe.GetIDEX().Rd).To(Equal(uint8(1)))

				pipe.Tick()
				Expect(pipe.GetEXMEM().ALUResult).To(Equal(uint32(1)))
			})
		})

		Context("register zero", func() {
			It("should never change register 0", func() {
				words := set.NewBuilder().
					RRI("addi", 0, 0, 5).
					RRR("add", 1, 0, 0).
					Mem("lw", 0, 0, 28).
					RRR("add", 2, 0, 0).
					MustWords()
				pipe = newPipe(words)
				pipe.Memory().Write32(emu.GlobalPointer, 77)

				runToEnd(pipe, words)

				Expect(pipe.RegFile().ReadReg(0)).To(BeZero())
				Expect(pipe.RegFile().ReadReg(1)).To(BeZero())
				Expect(pipe.RegFile().ReadReg(2)).To(BeZero())
			})
		})
	})

	Describe("forwarding", func() {
		It("should forward an ALU result from EX/MEM", func() {
			pipe = newPipe(set.NewBuilder().
				RRI("addi", 1, 0, 5).
				RRR("add", 2, 1, 1).
				MustWords())

			ticks(pipe, 4)
			Expect(pipe.LastTrace().ForwardA).To(Equal(pipeline.ForwardFromEXMEM))
			Expect(pipe.LastTrace().ForwardB).To(Equal(pipeline.ForwardFromEXMEM))

			ticks(pipe, 2)
			Expect(pipe.RegFile().ReadReg(2)).To(Equal(uint32(10)))
			Expect(pipe.Stats().Stalls).To(BeZero())
			Expect(pipe.Stats().DataHazards).To(Equal(uint64(1)))
		})

		It("should forward a result from MEM/WB", func() {
			pipe = newPipe(set.NewBuilder().
				RRI("addi", 1, 0, 5).
				Op("nop").
				RRR("add", 2, 1, 1).
				MustWords())

			ticks(pipe, 5)
			Expect(pipe.LastTrace().ForwardA).To(Equal(pipeline.ForwardFromMEMWB))

			ticks(pipe, 2)
			Expect(pipe.RegFile().ReadReg(2)).To(Equal(uint32(10)))
		})

		It("should prefer the nearer producer", func() {
			words := set.NewBuilder().
				RRI("addi", 1, 0, 1).
				RRI("addi", 1, 0, 2).
				RRR("add", 2, 1, 0).
				MustWords()
			pipe = newPipe(words)

			runToEnd(pipe, words)
			Expect(pipe.RegFile().ReadReg(2)).To(Equal(uint32(2)))
		})

		It("should forward store data", func() {
			words := set.NewBuilder().
				RRI("addi", 1, 0, 9).
				Mem("sw", 1, 0, 28).
				MustWords()
			pipe = newPipe(words)

			ticks(pipe, 4)
			Expect(pipe.LastTrace().ForwardStore).To(Equal(pipeline.ForwardFromEXMEM))

			runToEnd(pipe, words)
			Expect(pipe.Memory().Read32(emu.GlobalPointer)).To(Equal(uint32(9)))
		})
	})

	Describe("hazards", func() {
		run := func(words []uint32) *pipeline.Pipeline {
			p := newPipe(words)
			p.Memory().Write32(emu.GlobalPointer, 40)
			runToEnd(p, words)
			return p
		}

		It("should insert exactly one bubble for a load-use dependency", func() {
			dependent := run(set.NewBuilder().
				Mem("lw", 1, 0, 28).
				RRR("add", 3, 1, 0).
				MustWords())
			independent := run(set.NewBuilder().
				Mem("lw", 1, 0, 28).
				RRR("add", 3, 4, 0).
				MustWords())

			Expect(dependent.RegFile().ReadReg(3)).To(Equal(uint32(40)))
			Expect(dependent.Stats().Stalls).To(Equal(uint64(1)))
			Expect(independent.Stats().Stalls).To(BeZero())
			Expect(dependent.Stats().Cycles).To(Equal(independent.Stats().Cycles + 1))
		})

		It("should report the load-use hazard in the trace", func() {
			pipe = newPipe(set.NewBuilder().
				Mem("lw", 1, 0, 28).
				RRR("add", 3, 1, 0).
				MustWords())

			ticks(pipe, 3)
			Expect(pipe.LastTrace().Stall).To(BeTrue())
			Expect(pipe.LastTrace().LoadUseHazard).To(BeTrue())
			Expect(pipe.GetIDEX().Valid).To(BeFalse())
			Expect(pipe.GetIFID().PC).To(Equal(emu.TextStart + 4))
		})

		It("should stall a load-dependent branch for two cycles", func() {
			p := run(set.NewBuilder().
				Mem("lw", 1, 0, 28).
				Branch("beq", 1, 0, "out").
				Op("nop").
				Label("out").
				Op("nop").
				MustWords())

			Expect(p.Stats().Stalls).To(Equal(uint64(2)))
		})

		It("should stall an ALU-dependent branch for one cycle", func() {
			p := run(set.NewBuilder().
				RRI("addi", 1, 0, 1).
				Branch("beq", 1, 0, "out").
				Op("nop").
				Label("out").
				Op("nop").
				MustWords())

			Expect(p.Stats().Stalls).To(Equal(uint64(1)))
		})

		It("should resolve a store of a loaded value", func() {
			p := run(set.NewBuilder().
				Mem("lw", 1, 0, 28).
				Mem("sw", 1, 4, 28).
				MustWords())

			Expect(p.Memory().Read32(emu.GlobalPointer + 4)).To(Equal(uint32(40)))
			Expect(p.Stats().Stalls).To(Equal(uint64(1)))
		})
	})

	Describe("exceptions", func() {
		It("should raise overflow and keep the destination", func() {
			words := set.NewBuilder().
				Lui(1, 0x7FFF).
				RRI("ori", 1, 1, 0xFFFF).
				RRI("addi", 2, 0, 3).
				RRR("add", 2, 1, 1).
				MustWords()
			pipe = newPipe(words)

			exc := runToEnd(pipe, words)

			Expect(exc.Has(emu.ExcOverflow)).To(BeTrue())
			Expect(pipe.RegFile().ReadReg(2)).To(Equal(uint32(3)))
		})

		It("should skip a misaligned load", func() {
			words := set.NewBuilder().
				RRI("addi", 1, 0, 7).
				Mem("lw", 1, 1, 28).
				MustWords()
			pipe = newPipe(words)

			exc := runToEnd(pipe, words)

			Expect(exc).To(Equal(emu.ExcDataAlign))
			Expect(pipe.RegFile().ReadReg(1)).To(Equal(uint32(7)))
		})

		It("should raise breakpoint and invalid instruction in decode", func() {
			words := set.NewBuilder().Op("break").Word(0xFC00003F).MustWords()
			pipe = newPipe(words)

			Expect(ticks(pipe, 2)).To(Equal(emu.ExcBreakpoint))
			Expect(pipe.LastTrace().FaultStage).To(Equal(pipeline.StageID))
			Expect(pipe.Tick()).To(Equal(emu.ExcInvalidInstruction))
		})

		It("should clamp the fetch PC at the limit", func() {
			pipe = newPipe(nil, pipeline.WithMaxPC(emu.TextStart+8))

			exc := ticks(pipe, 3)

			Expect(exc).To(Equal(emu.ExcPCLimit))
			Expect(pipe.PC()).To(Equal(emu.TextStart + 8))
		})
	})

	Describe("control transfers", func() {
		It("should execute exactly one delay slot", func() {
			words := set.NewBuilder().
				Emit("j", insts.Operands{Imm: jumpIndex(3)}).
				RRI("addi", 1, 0, 1).
				RRI("addi", 2, 0, 2).
				RRI("addi", 3, 0, 3).
				MustWords()
			pipe = newPipe(words)

			runToEnd(pipe, words)

			Expect(pipe.RegFile().ReadReg(1)).To(Equal(uint32(1)))
			Expect(pipe.RegFile().ReadReg(2)).To(BeZero())
			Expect(pipe.RegFile().ReadReg(3)).To(Equal(uint32(3)))
			Expect(pipe.Stats().BranchesTaken).To(Equal(uint64(1)))
		})

		It("should trace a confirmed branch", func() {
			pipe = newPipe(set.NewBuilder().
				Label("top").
				Branch("beq", 0, 0, "top").
				Op("nop").
				MustWords())

			ticks(pipe, 2)
			trace := pipe.LastTrace()
			Expect(trace.BranchTaken).To(BeTrue())
			Expect(trace.Cond).To(Equal(emu.CondEQ))
			Expect(trace.BranchTarget).To(Equal(emu.TextStart))
			Expect(pipe.GetIFID().PC).To(Equal(emu.TextStart + 4))
			Expect(pipe.PC()).To(Equal(emu.TextStart))
		})

		It("should link through writeback", func() {
			words := set.NewBuilder().
				Emit("jal", insts.Operands{Imm: jumpIndex(4)}).
				Op("nop").
				Op("nop").
				Op("nop").
				Op("nop").
				MustWords()
			pipe = newPipe(words)

			runToEnd(pipe, words)
			Expect(pipe.RegFile().ReadReg(emu.RegRA)).To(Equal(emu.TextStart + 8))
		})

		It("should reject a branch in a delay slot", func() {
			words := set.NewBuilder().
				Branch("beq", 0, 0, "first").
				Branch("beq", 0, 0, "second").
				RRI("addi", 1, 0, 1).
				Label("first").
				RRI("addi", 2, 0, 2).
				Label("second").
				RRI("addi", 3, 0, 3).
				MustWords()
			pipe = newPipe(words)

			exc := runToEnd(pipe, words)

			Expect(exc.Has(emu.ExcBranchInDelaySlot)).To(BeTrue())
			Expect(pipe.RegFile().ReadReg(1)).To(BeZero())
			Expect(pipe.RegFile().ReadReg(2)).To(Equal(uint32(2)))
			Expect(pipe.RegFile().ReadReg(3)).To(Equal(uint32(3)))
		})

		It("should suppress a misaligned jump", func() {
			words := set.NewBuilder().
				Lui(1, int64(emu.TextStart>>16)).
				RRI("ori", 1, 1, 0x102).
				Reg("jr", 1).
				RRI("addi", 2, 0, 5).
				RRI("addi", 3, 0, 6).
				MustWords()
			pipe = newPipe(words)

			exc := runToEnd(pipe, words)

			Expect(exc).To(Equal(emu.ExcPCAlign))
			Expect(pipe.RegFile().ReadReg(2)).To(Equal(uint32(5)))
			Expect(pipe.RegFile().ReadReg(3)).To(Equal(uint32(6)))
		})
	})

	Describe("unified memory", func() {
		It("should stall fetch while data memory is busy", func() {
			words := set.NewBuilder().
				Mem("sw", 0, 0, 28).
				Op("nop").
				Op("nop").
				MustWords()
			pipe = newPipe(words)
			pipe.Memory().SetUnified(true)

			runToEnd(pipe, words)
			Expect(pipe.Stats().FetchStalls).To(Equal(uint64(1)))
		})

		It("should fetch the delay slot before a redirect confirmed during a fetch stall", func() {
			words := set.NewBuilder().
				Mem("lw", 5, 0, 28).
				Op("nop").
				Branch("beq", 0, 0, "target").
				RRI("addi", 6, 0, 6).
				RRI("addi", 7, 0, 7).
				Label("target").
				RRI("addi", 8, 0, 8).
				MustWords()
			pipe = newPipe(words)
			pipe.Memory().SetUnified(true)

			ticks(pipe, 4)
			Expect(pipe.LastTrace().BranchTaken).To(BeTrue())
			Expect(pipe.LastTrace().FetchStall).To(BeTrue())
			Expect(pipe.PC()).To(Equal(emu.TextStart + 12))

			runToEnd(pipe, words)
			Expect(pipe.RegFile().ReadReg(6)).To(Equal(uint32(6)))
			Expect(pipe.RegFile().ReadReg(7)).To(BeZero())
			Expect(pipe.RegFile().ReadReg(8)).To(Equal(uint32(8)))
		})

		It("should slow fetch with a longer memory latency", func() {
			words := set.NewBuilder().Op("nop").Op("nop").Op("nop").MustWords()

			fast := newPipe(words)
			fast.Memory().SetUnified(true)
			runToEnd(fast, words)

			slow := newPipe(words)
			slow.Memory().SetUnified(true)
			slow.Memory().SetLatency(2)
			runToEnd(slow, words)

			Expect(slow.Stats().Cycles).To(BeNumerically(">", fast.Stats().Cycles))
			Expect(slow.Stats().FetchStalls).To(BeNumerically(">", 0))
		})
	})

	Describe("print", func() {
		It("should emit the forwarded register value", func() {
			var events []emu.PrintEvent
			words := set.NewBuilder().
				RRI("addi", 1, 0, 7).
				Reg("print", 1).
				MustWords()
			pipe = newPipe(words, pipeline.WithPrintSink(func(ev emu.PrintEvent) {
				events = append(events, ev)
			}))

			runToEnd(pipe, words)

			Expect(events).To(HaveLen(1))
			Expect(events[0].PC).To(Equal(emu.TextStart + 4))
			Expect(events[0].Kind).To(Equal(emu.PrintRegister))
			Expect(events[0].Value).To(Equal(uint32(7)))
		})
	})

	Describe("Drain", func() {
		It("should let older instructions finish after a breakpoint", func() {
			pipe = newPipe(set.NewBuilder().
				RRI("addi", 1, 0, 1).
				Op("break").
				RRI("addi", 2, 0, 2).
				RRI("addi", 3, 0, 3).
				MustWords())

			var exc emu.Exception
			for !exc.Has(emu.ExcBreakpoint) {
				exc = pipe.Tick()
			}
			pipe.Drain()
			Expect(pipe.Draining()).To(BeTrue())
			for !pipe.Empty() {
				pipe.Tick()
			}

			Expect(pipe.RegFile().ReadReg(1)).To(Equal(uint32(1)))
			Expect(pipe.RegFile().ReadReg(2)).To(BeZero())
			Expect(pipe.RegFile().ReadReg(3)).To(BeZero())
		})

		It("should discard instructions younger than an overflow", func() {
			pipe = newPipe(set.NewBuilder().
				Lui(1, 0x7FFF).
				RRR("add", 2, 1, 1).
				RRI("addi", 3, 0, 3).
				RRI("addi", 4, 0, 4).
				MustWords())

			var exc emu.Exception
			for !exc.Has(emu.ExcOverflow) {
				exc = pipe.Tick()
			}
			Expect(pipe.LastTrace().FaultStage).To(Equal(pipeline.StageEX))
			pipe.Drain()
			for !pipe.Empty() {
				pipe.Tick()
			}

			Expect(pipe.RegFile().ReadReg(1)).To(Equal(uint32(0x7FFF0000)))
			Expect(pipe.RegFile().ReadReg(2)).To(BeZero())
			Expect(pipe.RegFile().ReadReg(3)).To(BeZero())
			Expect(pipe.RegFile().ReadReg(4)).To(BeZero())
		})
	})

	Describe("Reset", func() {
		It("should restore the reset state", func() {
			words := set.NewBuilder().RRI("addi", 1, 0, 1).MustWords()
			pipe = newPipe(words)
			runToEnd(pipe, words)

			pipe.Reset()

			Expect(pipe.PC()).To(Equal(emu.TextStart))
			Expect(pipe.Empty()).To(BeTrue())
			Expect(pipe.Stats()).To(Equal(pipeline.Statistics{}))
			Expect(pipe.RegFile().ReadReg(1)).To(BeZero())
			Expect(pipe.RegFile().ReadReg(emu.RegSP)).To(Equal(emu.StackPointer))
		})
	})

	Describe("Statistics", func() {
		It("should compute CPI", func() {
			Expect(pipeline.Statistics{Cycles: 10, Instructions: 5}.CPI()).To(Equal(2.0))
			Expect(pipeline.Statistics{Cycles: 10}.CPI()).To(BeZero())
		})

		It("should count the fill latency", func() {
			words := set.NewBuilder().Op("nop").Op("nop").Op("nop").Op("nop").MustWords()
			pipe = newPipe(words)
			runToEnd(pipe, words)

			Expect(pipe.Stats().Instructions).To(BeNumerically(">=", 4))
			Expect(pipe.Stats().Cycles).To(Equal(uint64(8)))
		})
	})

	Describe("Run", func() {
		It("should stop after a cycle raising a stop exception", func() {
			pipe = newPipe(set.NewBuilder().Op("nop").Op("break").MustWords())

			exc := pipe.Run(100, emu.ExcBreakpoint)

			Expect(exc).To(Equal(emu.ExcBreakpoint))
			Expect(pipe.Stats().Cycles).To(Equal(uint64(3)))
		})
	})
})
