// Package emu provides functional MIPS emulation.
package emu

// Reset-state addresses.
const (
	TextStart     uint32 = 0x00040000
	DataStart     uint32 = 0x10000000
	GlobalPointer uint32 = 0x10008000
	StackPointer  uint32 = 0x7ffffffc
	MaxPC         uint32 = 0x10000000
)

// Image is the memory image produced by an assembler. Sizes are in bytes.
type Image struct {
	TextStart uint32
	TextSize  uint32
	DataStart uint32
	DataSize  uint32
	TextWords []uint32
	DataWords []uint32
}

// TextEnd returns the first address past the text section.
func (img *Image) TextEnd() uint32 {
	return img.TextStart + img.TextSize
}

// InText reports whether addr lies in the text section.
func (img *Image) InText(addr uint32) bool {
	return addr >= img.TextStart && addr < img.TextEnd()
}

// LoadImage writes the data words and then the text words of img into m at
// consecutive word addresses. Missing words are written as zero. The timing
// state is cleared afterwards.
func (m *Memory) LoadImage(img *Image) {
	writeSection(m, img.DataStart, img.DataSize, img.DataWords)
	writeSection(m, img.TextStart, img.TextSize, img.TextWords)
	m.ResetTiming()
}

func writeSection(m *Memory, start, size uint32, words []uint32) {
	for off, i := uint32(0), 0; off < size; off, i = off+4, i+1 {
		var w uint32
		if i < len(words) {
			w = words[i]
		}
		m.Write32(start+off, w)
	}
}
