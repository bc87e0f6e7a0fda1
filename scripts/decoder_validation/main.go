// Validate decoder allocations - measures the allocation rate of the decode stage
// and of the disassembler.
package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/insts"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

func main() {
	set := insts.NewSet()

	words := set.NewBuilder().
		RRI("addi", 8, 9, 42).
		RRR("add", 8, 9, 10).
		Mem("lw", 11, 8, 29).
		Mem("sw", 11, -4, 29).
		Emit("beq", insts.Operands{Rs: 8, Rt: 0, Imm: 3}).
		Emit("jal", insts.Operands{Imm: int64(emu.TextStart / 4)}).
		MustWords()

	decodeStage := pipeline.NewDecodeStage()

	// Warm up
	for i := 0; i < 1000; i++ {
		decodeStage.Decode(emu.TextStart, words[0])
	}

	// Measure allocations of the decode stage
	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 100000

	for i := 0; i < iterations; i++ {
		for j, w := range words {
			decodeStage.Decode(emu.TextStart+uint32(4*j), w)
		}
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	totalDecodes := iterations * len(words)
	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("Decoder Allocation Results:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Total decode operations: %d\n", totalDecodes)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Decodes per second: %.0f\n", float64(totalDecodes)/elapsed.Seconds())
	fmt.Printf("Allocations: %d\n", allocations)
	fmt.Printf("Allocated bytes: %d\n", allocatedBytes)
	fmt.Printf("Allocations per decode: %.3f\n", float64(allocations)/float64(totalDecodes))
	fmt.Printf("Bytes per decode: %.1f\n", float64(allocatedBytes)/float64(totalDecodes))

	if allocations == 0 {
		fmt.Printf("\nSUCCESS: zero allocations in the decode stage.\n")
	} else if float64(allocations)/float64(totalDecodes) < 0.1 {
		fmt.Printf("\nGOOD: low allocation rate (< 0.1 per decode)\n")
	} else {
		fmt.Printf("\nWARNING: high allocation rate detected\n")
	}

	// The disassembler builds strings, so it is expected to allocate.
	runtime.ReadMemStats(&m1)
	for i := 0; i < iterations/10; i++ {
		for _, w := range words {
			_ = set.Disassemble(w)
		}
	}
	runtime.ReadMemStats(&m2)
	fmt.Printf("Disassembler allocations per word: %.2f\n",
		float64(m2.Mallocs-m1.Mallocs)/float64(iterations/10*len(words)))
}
