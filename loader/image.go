// Package loader reads the memory images produced by the assembler.
//
// An image is a JSON document:
//
//	{
//	  "textStart": 262144, "textSize": 8, "textWords": [537460746, 0],
//	  "dataStart": 268435456, "dataSize": 4, "dataWords": [7],
//	  "sourceMap": [3, 4],
//	  "symbolTable": {"main": 262144}
//	}
//
// textMem and dataMem are accepted as aliases of textWords and dataWords.
// Missing section starts default to the reset text and data addresses.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sarchlab/mipsim/emu"
)

var (
	// ErrOverlap is returned when the text and data sections overlap.
	ErrOverlap = errors.New("overlap between data section and text section")
	// ErrMisaligned is returned when a section start or size is not a
	// multiple of 4.
	ErrMisaligned = errors.New("section is not word aligned")
	// ErrSize is returned when a section holds more words than its size.
	ErrSize = errors.New("section words exceed section size")
)

// Program is a memory image together with its debugging information.
type Program struct {
	emu.Image

	// SourceMap maps a text word index to its 1-based source line. Zero means
	// no line is known.
	SourceMap []int
	// Symbols maps label names to addresses.
	Symbols map[string]uint32
}

type imageFile struct {
	TextStart   *uint32           `json:"textStart,omitempty"`
	TextSize    uint32            `json:"textSize"`
	TextWords   []uint32          `json:"textWords"`
	TextMem     []uint32          `json:"textMem,omitempty"`
	DataStart   *uint32           `json:"dataStart,omitempty"`
	DataSize    uint32            `json:"dataSize"`
	DataWords   []uint32          `json:"dataWords"`
	DataMem     []uint32          `json:"dataMem,omitempty"`
	SourceMap   []int             `json:"sourceMap,omitempty"`
	SymbolTable map[string]uint32 `json:"symbolTable,omitempty"`
}

// Load reads and validates the image at path.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return prog, nil
}

// Parse reads and validates an image from r.
func Parse(r io.Reader) (*Program, error) {
	var raw imageFile
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse image: %w", err)
	}

	prog := &Program{
		Image: emu.Image{
			TextStart: emu.TextStart,
			TextSize:  raw.TextSize,
			TextWords: pick(raw.TextWords, raw.TextMem),
			DataStart: emu.DataStart,
			DataSize:  raw.DataSize,
			DataWords: pick(raw.DataWords, raw.DataMem),
		},
		SourceMap: raw.SourceMap,
		Symbols:   raw.SymbolTable,
	}
	if raw.TextStart != nil {
		prog.TextStart = *raw.TextStart
	}
	if raw.DataStart != nil {
		prog.DataStart = *raw.DataStart
	}

	if err := prog.Validate(); err != nil {
		return nil, err
	}

	return prog, nil
}

func pick(words, alias []uint32) []uint32 {
	if words != nil {
		return words
	}
	return alias
}

// FromImage wraps an image without debugging information.
func FromImage(img emu.Image) *Program {
	return &Program{Image: img}
}

// Validate checks the section layout.
func (p *Program) Validate() error {
	for _, s := range []struct {
		name              string
		start, size, used uint32
	}{
		{"text", p.TextStart, p.TextSize, uint32(len(p.TextWords))},
		{"data", p.DataStart, p.DataSize, uint32(len(p.DataWords))},
	} {
		if s.start&3 != 0 || s.size&3 != 0 {
			return fmt.Errorf("%s start 0x%08x size %d: %w", s.name, s.start, s.size, ErrMisaligned)
		}
		if s.used*4 > s.size {
			return fmt.Errorf("%s has %d words for %d bytes: %w", s.name, s.used, s.size, ErrSize)
		}
	}

	if p.TextSize > 0 && p.DataSize > 0 {
		dEnd := uint64(p.DataStart) + uint64(p.DataSize)
		tEnd := uint64(p.TextStart) + uint64(p.TextSize)
		if uint64(p.DataStart) < tEnd && uint64(p.TextStart) < dEnd {
			return ErrOverlap
		}
	}

	return nil
}

// LoadInto writes the image into memory.
func (p *Program) LoadInto(memory *emu.Memory) {
	memory.LoadImage(&p.Image)
}

// Line returns the source line of the text word at pc.
func (p *Program) Line(pc uint32) (int, bool) {
	if !p.InText(pc) || pc&3 != 0 {
		return 0, false
	}
	i := (pc - p.TextStart) / 4
	if int(i) >= len(p.SourceMap) || p.SourceMap[i] == 0 {
		return 0, false
	}
	return p.SourceMap[i], true
}

// Symbol returns the address of a label.
func (p *Program) Symbol(name string) (uint32, bool) {
	addr, ok := p.Symbols[name]
	return addr, ok
}

// Label returns the name of a label at addr, preferring the alphabetically
// first when several share the address.
func (p *Program) Label(addr uint32) (string, bool) {
	names := make([]string, 0, 1)
	for name, a := range p.Symbols {
		if a == addr {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return names[0], true
}

// Save writes the program as an image file.
func (p *Program) Save(path string) error {
	textStart, dataStart := p.TextStart, p.DataStart
	raw := imageFile{
		TextStart:   &textStart,
		TextSize:    p.TextSize,
		TextWords:   p.TextWords,
		DataStart:   &dataStart,
		DataSize:    p.DataSize,
		DataWords:   p.DataWords,
		SourceMap:   p.SourceMap,
		SymbolTable: p.Symbols,
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize image: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}

	return nil
}
