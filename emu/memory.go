// Package emu provides functional MIPS emulation.
package emu

import (
	"bytes"
	"slices"
)

// Memory geometry.
const (
	ChunkBits = 16
	ChunkSize = 1 << ChunkBits
	chunkMask = ChunkSize - 1
)

// Memory is a sparse big-endian byte-addressable 32-bit address space.
//
// Chunks are allocated on first touch; untouched bytes read as zero.
// Alignment is not checked here; that is the cores' job.
//
// Every access marks the memory busy for Latency cycles. The pipelined core
// calls Step once per cycle and, when the memory is unified, stalls fetch
// while it is busy.
type Memory struct {
	chunks map[uint32]*[ChunkSize]byte

	latency   uint32
	remaining uint32
	busy      bool
	unified   bool
}

// NewMemory creates an empty memory with a latency of one cycle.
func NewMemory() *Memory {
	return &Memory{
		chunks:  make(map[uint32]*[ChunkSize]byte),
		latency: 1,
	}
}

func (m *Memory) chunk(addr uint32) *[ChunkSize]byte {
	c, ok := m.chunks[addr>>ChunkBits]
	if !ok {
		c = new([ChunkSize]byte)
		m.chunks[addr>>ChunkBits] = c
	}
	return c
}

func (m *Memory) touch() {
	m.busy = true
	if m.remaining < m.latency {
		m.remaining = m.latency
	}
}

func (m *Memory) peek(addr uint32) byte {
	c, ok := m.chunks[addr>>ChunkBits]
	if !ok {
		return 0
	}
	return c[addr&chunkMask]
}

func (m *Memory) poke(addr uint32, v byte) {
	m.chunk(addr)[addr&chunkMask] = v
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint32) uint8 {
	m.touch()
	return m.peek(addr)
}

// Read16 reads a big-endian halfword.
func (m *Memory) Read16(addr uint32) uint16 {
	m.touch()
	return uint16(m.peek(addr))<<8 | uint16(m.peek(addr+1))
}

// Read32 reads a big-endian word.
func (m *Memory) Read32(addr uint32) uint32 {
	m.touch()
	if addr&chunkMask <= ChunkSize-4 {
		if c, ok := m.chunks[addr>>ChunkBits]; ok {
			o := addr & chunkMask
			return uint32(c[o])<<24 | uint32(c[o+1])<<16 | uint32(c[o+2])<<8 | uint32(c[o+3])
		}
		return 0
	}
	return uint32(m.peek(addr))<<24 | uint32(m.peek(addr+1))<<16 |
		uint32(m.peek(addr+2))<<8 | uint32(m.peek(addr+3))
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint32, value uint8) {
	m.touch()
	m.poke(addr, value)
}

// Write16 writes a big-endian halfword.
func (m *Memory) Write16(addr uint32, value uint16) {
	m.touch()
	m.poke(addr, byte(value>>8))
	m.poke(addr+1, byte(value))
}

// Write32 writes a big-endian word.
func (m *Memory) Write32(addr uint32, value uint32) {
	m.touch()
	if addr&chunkMask <= ChunkSize-4 {
		c := m.chunk(addr)
		o := addr & chunkMask
		c[o], c[o+1], c[o+2], c[o+3] = byte(value>>24), byte(value>>16), byte(value>>8), byte(value)
		return
	}
	m.poke(addr, byte(value>>24))
	m.poke(addr+1, byte(value>>16))
	m.poke(addr+2, byte(value>>8))
	m.poke(addr+3, byte(value))
}

// Dump copies n bytes starting at start without touching the timing model
// or allocating chunks.
func (m *Memory) Dump(start uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = m.peek(start + uint32(i))
	}
	return out
}

// Chunks returns the base addresses of the allocated chunks in ascending
// order.
func (m *Memory) Chunks() []uint32 {
	out := make([]uint32, 0, len(m.chunks))
	for k := range m.chunks {
		out = append(out, k<<ChunkBits)
	}
	slices.Sort(out)
	return out
}

// Equal reports whether both memories hold the same bytes. A chunk allocated
// in only one of them compares equal to an all-zero chunk.
func (m *Memory) Equal(o *Memory) bool {
	var zero [ChunkSize]byte
	get := func(mem *Memory, k uint32) []byte {
		if c, ok := mem.chunks[k]; ok {
			return c[:]
		}
		return zero[:]
	}

	for k := range m.chunks {
		if !bytes.Equal(get(m, k), get(o, k)) {
			return false
		}
	}
	for k := range o.chunks {
		if _, ok := m.chunks[k]; !ok && !bytes.Equal(zero[:], o.chunks[k][:]) {
			return false
		}
	}
	return true
}

// Busy reports whether an access is still in progress.
func (m *Memory) Busy() bool {
	return m.busy
}

// Step advances the timing model by one cycle.
func (m *Memory) Step() {
	if !m.busy {
		return
	}
	if m.remaining > 0 {
		m.remaining--
	}
	if m.remaining == 0 {
		m.busy = false
	}
}

// Hold keeps the memory busy for at least the given number of cycles.
func (m *Memory) Hold(cycles uint32) {
	if cycles == 0 {
		return
	}
	m.busy = true
	if m.remaining < cycles {
		m.remaining = cycles
	}
}

// ResetTiming clears the busy state.
func (m *Memory) ResetTiming() {
	m.busy = false
	m.remaining = 0
}

// Latency returns the number of cycles an access keeps the memory busy.
func (m *Memory) Latency() uint32 {
	return m.latency
}

// SetLatency sets the access latency. Values below 1 are raised to 1.
func (m *Memory) SetLatency(cycles uint32) {
	if cycles < 1 {
		cycles = 1
	}
	m.latency = cycles
}

// Unified reports whether instruction fetch and data access share one port.
func (m *Memory) Unified() bool {
	return m.unified
}

// SetUnified configures whether fetch contends with data accesses.
func (m *Memory) SetUnified(unified bool) {
	m.unified = unified
}
