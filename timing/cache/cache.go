// Package cache provides a data-cache timing model using Akita cache components.
//
// The model tracks tags only. Data always lives in emu.Memory; the cache
// decides how long an access keeps the memory port busy.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size"`
	// HitLatency in cycles
	HitLatency uint32 `json:"hit_latency"`
	// MissLatency in cycles (includes memory access time)
	MissLatency uint32 `json:"miss_latency"`
}

// DefaultL1DConfig returns a small direct L1 data cache configuration:
// 4KB, 2-way, 16B lines, 1-cycle hit and 10-cycle miss.
func DefaultL1DConfig() Config {
	return Config{
		Size:          4 * 1024,
		Associativity: 2,
		BlockSize:     16,
		HitLatency:    1,
		MissLatency:   10,
	}
}

// NumSets returns the number of sets the configuration describes.
func (c Config) NumSets() int {
	if c.Associativity <= 0 || c.BlockSize <= 0 {
		return 0
	}
	return c.Size / (c.Associativity * c.BlockSize)
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Size <= 0 || c.Associativity <= 0 || c.BlockSize <= 0 {
		return fmt.Errorf("cache size, associativity and block size must be positive")
	}
	if c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("cache block size %d is not a power of two", c.BlockSize)
	}
	if c.NumSets() == 0 || c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("cache size %d is not a multiple of associativity*block size", c.Size)
	}
	if c.HitLatency == 0 {
		return fmt.Errorf("cache hit latency must be at least 1")
	}
	if c.MissLatency < c.HitLatency {
		return fmt.Errorf("cache miss latency %d below hit latency %d", c.MissLatency, c.HitLatency)
	}
	return nil
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint32
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint32
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns hits over accesses.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Tags is a set-associative, write-allocate, write-back tag store.
type Tags struct {
	config    Config
	directory *akitacache.DirectoryImpl
	stats     Statistics
}

// New creates a new tag store with the given configuration.
func New(config Config) *Tags {
	return &Tags{
		config: config,
		directory: akitacache.NewDirectory(
			config.NumSets(),
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (t *Tags) Config() Config {
	return t.config
}

// Stats returns cache statistics.
func (t *Tags) Stats() Statistics {
	return t.stats
}

// ResetStats clears cache statistics.
func (t *Tags) ResetStats() {
	t.stats = Statistics{}
}

func (t *Tags) blockAddr(addr uint32) uint64 {
	bs := uint64(t.config.BlockSize)
	return uint64(addr) / bs * bs
}

// Access looks up addr, allocating its block on a miss, and returns the
// access latency.
func (t *Tags) Access(addr uint32, write bool) AccessResult {
	if write {
		t.stats.Writes++
	} else {
		t.stats.Reads++
	}

	blockAddr := t.blockAddr(addr)

	block := t.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		t.stats.Hits++
		t.directory.Visit(block)
		if write {
			block.IsDirty = true
		}
		return AccessResult{Hit: true, Latency: t.config.HitLatency}
	}

	t.stats.Misses++
	return t.handleMiss(blockAddr, write)
}

// handleMiss allocates the block, evicting the LRU victim.
func (t *Tags) handleMiss(blockAddr uint64, write bool) AccessResult {
	result := AccessResult{Latency: t.config.MissLatency}

	victim := t.directory.FindVictim(blockAddr)
	if victim == nil {
		return result
	}

	if victim.IsValid {
		t.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = uint32(victim.Tag)
		if victim.IsDirty {
			t.stats.Writebacks++
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = write
	t.directory.Visit(victim)

	return result
}

// Contains reports whether the block holding addr is cached.
func (t *Tags) Contains(addr uint32) bool {
	block := t.directory.Lookup(0, t.blockAddr(addr))
	return block != nil && block.IsValid
}

// Invalidate marks a cache line as invalid.
func (t *Tags) Invalidate(addr uint32) {
	block := t.directory.Lookup(0, t.blockAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush counts a writeback for every dirty block and invalidates all blocks.
func (t *Tags) Flush() {
	for _, set := range t.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				t.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all cache lines and clears statistics.
func (t *Tags) Reset() {
	t.directory.Reset()
	t.stats = Statistics{}
}
