// Package latency provides the timing configuration of the pipelined core.
package latency

import (
	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/timing/pipeline"
)

// ConfigureMemory applies the memory port settings to memory.
func (c *TimingConfig) ConfigureMemory(memory *emu.Memory) {
	memory.SetLatency(c.MemoryLatency)
	memory.SetUnified(c.UnifiedMemory)
}

// PipelineOptions returns the pipeline options the configuration implies.
func (c *TimingConfig) PipelineOptions() []pipeline.PipelineOption {
	opts := []pipeline.PipelineOption{pipeline.WithMaxPC(c.MaxPC)}
	if c.DCache != nil {
		opts = append(opts, pipeline.WithDCache(*c.DCache))
	}
	return opts
}

// FetchLatency returns the cycles one instruction fetch occupies the memory
// port, which bounds the fetch rate on a unified memory.
func (c *TimingConfig) FetchLatency() uint32 {
	if !c.UnifiedMemory {
		return 1
	}
	return c.MemoryLatency
}

// DataLatency returns the cycles a data access occupies the memory port on a
// cache hit (hit true) or miss. Without a data cache both equal the memory
// latency.
func (c *TimingConfig) DataLatency(hit bool) uint32 {
	if c.DCache == nil {
		return c.MemoryLatency
	}
	lat := c.DCache.MissLatency
	if hit {
		lat = c.DCache.HitLatency
	}
	if lat < c.MemoryLatency {
		return c.MemoryLatency
	}
	return lat
}
