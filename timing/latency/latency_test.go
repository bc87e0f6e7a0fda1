package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/timing/cache"
	"github.com/sarchlab/mipsim/timing/latency"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

var _ = Describe("Latency", func() {
	var config *latency.TimingConfig

	BeforeEach(func() {
		config = latency.DefaultTimingConfig()
	})

	Describe("Default Timing Values", func() {
		It("should have a one cycle memory", func() {
			Expect(config.MemoryLatency).To(Equal(uint32(1)))
		})

		It("should use split memory ports", func() {
			Expect(config.UnifiedMemory).To(BeFalse())
		})

		It("should limit the PC to the data segment", func() {
			Expect(config.MaxPC).To(Equal(emu.MaxPC))
		})

		It("should have no data cache", func() {
			Expect(config.DCache).To(BeNil())
			Expect(config.Validate()).To(Succeed())
		})
	})

	Describe("Validate", func() {
		It("should reject a zero memory latency", func() {
			config.MemoryLatency = 0
			Expect(config.Validate()).To(MatchError(ContainSubstring("memory_latency")))
		})

		It("should reject a misaligned PC limit", func() {
			config.MaxPC = 0x1002
			Expect(config.Validate()).NotTo(Succeed())
		})

		It("should validate the data cache", func() {
			dcache := cache.DefaultL1DConfig()
			dcache.BlockSize = 12
			config.DCache = &dcache
			Expect(config.Validate()).To(MatchError(ContainSubstring("dcache")))
		})
	})

	Describe("Clone", func() {
		It("should copy the data cache configuration", func() {
			dcache := cache.DefaultL1DConfig()
			config.DCache = &dcache

			clone := config.Clone()
			clone.DCache.Size = 1024
			clone.MemoryLatency = 5

			Expect(config.DCache.Size).To(Equal(4 * 1024))
			Expect(config.MemoryLatency).To(Equal(uint32(1)))
		})
	})

	Describe("LoadConfig / SaveConfig", func() {
		var dir string

		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "latency")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)
		})

		It("should round trip through a file", func() {
			dcache := cache.DefaultL1DConfig()
			config.DCache = &dcache
			config.UnifiedMemory = true
			config.MemoryLatency = 3

			path := filepath.Join(dir, "timing.json")
			Expect(config.SaveConfig(path)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(config))
		})

		It("should keep defaults for missing fields", func() {
			path := filepath.Join(dir, "partial.json")
			Expect(os.WriteFile(path, []byte(`{"unified_memory": true}`), 0644)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.UnifiedMemory).To(BeTrue())
			Expect(loaded.MemoryLatency).To(Equal(uint32(1)))
		})

		It("should fail on a missing file", func() {
			_, err := latency.LoadConfig(filepath.Join(dir, "missing.json"))
			Expect(err).To(MatchError(ContainSubstring("failed to read timing config file")))
		})

		It("should fail on malformed JSON", func() {
			path := filepath.Join(dir, "bad.json")
			Expect(os.WriteFile(path, []byte("{"), 0644)).To(Succeed())

			_, err := latency.LoadConfig(path)
			Expect(err).To(MatchError(ContainSubstring("failed to parse timing config")))
		})

		It("should fail on invalid values", func() {
			path := filepath.Join(dir, "zero.json")
			Expect(os.WriteFile(path, []byte(`{"memory_latency": 0}`), 0644)).To(Succeed())

			_, err := latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ConfigureMemory", func() {
		It("should set the memory port timing", func() {
			config.MemoryLatency = 4
			config.UnifiedMemory = true
			memory := emu.NewMemory()

			config.ConfigureMemory(memory)

			Expect(memory.Latency()).To(Equal(uint32(4)))
			Expect(memory.Unified()).To(BeTrue())
		})
	})

	Describe("PipelineOptions", func() {
		It("should enable the data cache when configured", func() {
			dcache := cache.DefaultL1DConfig()
			config.DCache = &dcache

			p := pipeline.NewPipeline(emu.NewRegFile(), emu.NewMemory(), config.PipelineOptions()...)
			Expect(p.UseDCache()).To(BeTrue())
		})

		It("should not enable the data cache by default", func() {
			p := pipeline.NewPipeline(emu.NewRegFile(), emu.NewMemory(), config.PipelineOptions()...)
			Expect(p.UseDCache()).To(BeFalse())
		})
	})

	Describe("Access latencies", func() {
		It("should fetch in one cycle on split ports", func() {
			config.MemoryLatency = 5
			Expect(config.FetchLatency()).To(Equal(uint32(1)))

			config.UnifiedMemory = true
			Expect(config.FetchLatency()).To(Equal(uint32(5)))
		})

		It("should use cache latencies for data when a cache is present", func() {
			Expect(config.DataLatency(true)).To(Equal(uint32(1)))

			dcache := cache.DefaultL1DConfig()
			config.DCache = &dcache
			Expect(config.DataLatency(true)).To(Equal(uint32(1)))
			Expect(config.DataLatency(false)).To(Equal(uint32(10)))
		})
	})
})
