package latency

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/mipsim/emu"
	"github.com/sarchlab/mipsim/timing/cache"
)

// TimingConfig holds the timing parameters of the pipelined core.
type TimingConfig struct {
	// MemoryLatency is the number of cycles every memory access keeps the
	// memory port busy. Default: 1 cycle.
	MemoryLatency uint32 `json:"memory_latency"`

	// UnifiedMemory makes instruction fetch share one port with data
	// accesses, so fetch stalls while the port is busy. Default: false.
	UnifiedMemory bool `json:"unified_memory"`

	// MaxPC is the highest address the sequential fetch PC may reach.
	// Default: 0x10000000.
	MaxPC uint32 `json:"max_pc"`

	// DCache enables the L1 data cache timing model when set. Default: none.
	DCache *cache.Config `json:"dcache,omitempty"`
}

// DefaultTimingConfig returns a TimingConfig with default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		MemoryLatency: 1,
		UnifiedMemory: false,
		MaxPC:         emu.MaxPC,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config %s: %w", path, err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all timing values are usable.
func (c *TimingConfig) Validate() error {
	if c.MemoryLatency == 0 {
		return fmt.Errorf("memory_latency must be > 0")
	}
	if c.MaxPC&3 != 0 {
		return fmt.Errorf("max_pc 0x%x must be word aligned", c.MaxPC)
	}
	if c.DCache != nil {
		if err := c.DCache.Validate(); err != nil {
			return fmt.Errorf("dcache: %w", err)
		}
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	if c.DCache != nil {
		dcache := *c.DCache
		clone.DCache = &dcache
	}
	return &clone
}
