package benchmarks

import (
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
)

var set = insts.NewSet()

// dataHi is the upper half of the data section base, loaded with lui.
const dataHi = int64(emu.DataStart >> 16)

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets a specific pipeline characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		loadUse(),
		functionCalls(),
		branchTaken(),
		mixedOperations(),
		matrixMultiply2x2(),
		loopAccumulate(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick validation:
// a loop, a matrix multiply and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopAccumulate(),
		matrixMultiply2x2(),
		branchTaken(),
	}
}

// 1. Arithmetic Sequential - Tests ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	b := set.NewBuilder()
	for i := 0; i < 4; i++ {
		for r := uint8(8); r < 13; r++ {
			b.RRI("addi", r, r, 1)
		}
	}

	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent ADDI operations - measures ALU throughput",
		Program:     b.MustWords(),
		ResultReg:   8,
		Expected:    4,
	}
}

// 2. Dependency Chain - Tests forwarding with back-to-back RAW hazards
func dependencyChain() Benchmark {
	return Benchmark{
		Name:        "dependency_chain",
		Description: "20 dependent ADDIs ($8 = $8 + 1) - measures forwarding",
		Program:     buildDependencyChain(20),
		ResultReg:   8,
		Expected:    20,
	}
}

func buildDependencyChain(n int) []uint32 {
	b := set.NewBuilder()
	for i := 0; i < n; i++ {
		b.RRI("addi", 8, 8, 1)
	}
	return b.MustWords()
}

// 3. Memory Sequential - Tests store/load traffic through the memory port
func memorySequential() Benchmark {
	b := set.NewBuilder().
		Lui(9, dataHi).
		RRI("addi", 8, 0, 42)
	for i := int64(0); i < 10; i++ {
		// The load feeds the next store's data: one bubble per pair.
		b.Mem("sw", 8, 4*i, 9).Mem("lw", 8, 4*i, 9)
	}

	return Benchmark{
		Name:        "memory_sequential",
		Description: "10 store/load pairs to sequential addresses - measures memory latency",
		Program:     b.MustWords(),
		Data:        make([]uint32, 10),
		ResultReg:   8,
		Expected:    42,
	}
}

// 4. Load Use - Every load feeds the next instruction
func loadUse() Benchmark {
	b := set.NewBuilder().Lui(9, dataHi)
	for i := 0; i < 10; i++ {
		b.Mem("lw", 8, 0, 9).
			RRI("addi", 8, 8, 1).
			Mem("sw", 8, 0, 9)
	}

	return Benchmark{
		Name:        "load_use",
		Description: "10 load/increment/store triples - measures load-use stalls",
		Program:     b.MustWords(),
		Data:        []uint32{0},
		ResultReg:   8,
		Expected:    10,
	}
}

// 5. Function Calls - Tests JAL/JR with delay slots
func functionCalls() Benchmark {
	const fn, end = 13, 16

	b := set.NewBuilder().RRI("addi", 2, 0, 0)
	for i := 0; i < 5; i++ {
		b.Emit("jal", insts.Operands{Imm: jumpIndex(fn)}).Op("nop")
	}
	b.Emit("j", insts.Operands{Imm: jumpIndex(end)}).
		Op("nop").
		RRI("addi", 2, 2, 1). // fn
		Reg("jr", emu.RegRA).
		Op("nop")

	return Benchmark{
		Name:        "function_calls",
		Description: "5 calls to a leaf function - measures jump and link overhead",
		Program:     b.MustWords(),
		ResultReg:   2,
		Expected:    5,
	}
}

func jumpIndex(word int) int64 {
	return int64(emu.TextStart/4) + int64(word)
}

// 6. Branch Taken - Tests taken branches over skipped code
func branchTaken() Benchmark {
	b := set.NewBuilder()
	for i := 0; i < 10; i++ {
		skip := "skip" + string(rune('a'+i))
		b.Branch("beq", 0, 0, skip).
			Op("nop").
			RRI("addi", 10, 10, 100).
			Label(skip).
			RRI("addi", 9, 9, 1)
	}

	return Benchmark{
		Name:        "branch_taken",
		Description: "10 unconditional taken branches - measures branch overhead",
		Program:     b.MustWords(),
		ResultReg:   9,
		Expected:    10,
	}
}

// 7. Mixed Operations - Shifts, logic and compares with short dependencies
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "Mix of shift, logic, compare and arithmetic operations",
		Program: set.NewBuilder().
			RRI("addi", 8, 0, 0x55).
			Shift("sll", 9, 8, 4).
			RRR("or", 10, 8, 9).
			RRI("andi", 11, 10, 0xF0).
			RRR("xor", 12, 10, 11).
			Shift("srl", 13, 12, 2).
			RRR("sub", 14, 12, 13).
			RRR("slt", 15, 13, 12).
			RRR("nor", 16, 0, 0).
			Shift("sra", 17, 16, 8).
			RRR("addu", 18, 14, 15).
			MustWords(),
		ResultReg: 18,
		Expected:  0x3C5,
	}
}

// 8. Matrix Multiply 2x2 - Loads, multiplies and stores
func matrixMultiply2x2() Benchmark {
	// A at 0, B at 16 and C at 32 bytes into the data section.
	b := set.NewBuilder().Lui(16, dataHi)
	for i := int64(0); i < 2; i++ {
		for j := int64(0); j < 2; j++ {
			b.Mem("lw", 8, 4*(2*i), 16).
				Mem("lw", 9, 16+4*j, 16).
				Mem("lw", 10, 4*(2*i+1), 16).
				Mem("lw", 11, 16+4*(2+j), 16).
				RRR("mul", 12, 8, 9).
				RRR("mul", 13, 10, 11).
				RRR("add", 14, 12, 13).
				Mem("sw", 14, 32+4*(2*i+j), 16)
		}
	}

	return Benchmark{
		Name:        "matrix_multiply_2x2",
		Description: "2x2 integer matrix multiply - mixed loads, multiplies and stores",
		Program:     b.MustWords(),
		Data:        []uint32{1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0, 0},
		ResultReg:   14,
		Expected:    50,
	}
}

// 9. Loop Accumulate - A counted loop summing 20..1
func loopAccumulate() Benchmark {
	return Benchmark{
		Name:        "loop_accumulate",
		Description: "20-iteration counted loop - measures loop-carried branch stalls",
		Program: set.NewBuilder().
			RRI("addi", 8, 0, 20).
			RRI("addi", 2, 0, 0).
			Label("loop").
			RRR("add", 2, 2, 8).
			RRI("addi", 8, 8, -1).
			Branch("bne", 8, 0, "loop").
			Op("nop").
			MustWords(),
		ResultReg: 2,
		Expected:  210,
	}
}
