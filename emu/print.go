// Package emu provides functional MIPS emulation.
package emu

import (
	"fmt"
	"io"
)

// MaxPrintString bounds the bytes read by a string print.
const MaxPrintString = 1 << 16

// PrintKind tags a print notification.
type PrintKind uint8

// Print kinds, one per print instruction.
const (
	PrintRegister PrintKind = iota // value of a register
	PrintMemory                    // byte at the address held in a register
	PrintString                    // NUL-terminated string at that address
)

func (k PrintKind) String() string {
	switch k {
	case PrintRegister:
		return "r"
	case PrintMemory:
		return "m"
	case PrintString:
		return "s"
	default:
		return "?"
	}
}

// PrintEvent is emitted by the simulation-only print instructions.
//
// Source is "r<n>" for register prints and the 0x-prefixed address for
// memory and string prints. Text is set for string prints only.
type PrintEvent struct {
	PC     uint32
	Source string
	Kind   PrintKind
	Value  uint32
	Text   string
}

// PrintSink receives print notifications. A nil sink discards them.
type PrintSink func(PrintEvent)

// NewPrintEvent builds the event of a print instruction whose rs register is
// reg and holds val. Memory and string prints read from m.
func NewPrintEvent(pc uint32, kind PrintKind, reg uint8, val uint32, m *Memory) PrintEvent {
	ev := PrintEvent{PC: pc, Kind: kind}

	switch kind {
	case PrintRegister:
		ev.Source = fmt.Sprintf("r%d", reg)
		ev.Value = val
	case PrintMemory:
		ev.Source = fmt.Sprintf("0x%08x", val)
		ev.Value = uint32(m.Read8(val))
	case PrintString:
		ev.Source = fmt.Sprintf("0x%08x", val)
		ev.Value = val
		ev.Text = m.ReadString(val, MaxPrintString)
	}

	return ev
}

// ReadString reads bytes starting at addr up to the first NUL or max bytes.
func (m *Memory) ReadString(addr uint32, max int) string {
	buf := make([]byte, 0, 16)
	for i := 0; i < max; i++ {
		b := m.Read8(addr + uint32(i))
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf)
}

// WriterSink returns a sink that writes one line per event to w.
func WriterSink(w io.Writer) PrintSink {
	return func(ev PrintEvent) {
		switch ev.Kind {
		case PrintString:
			_, _ = fmt.Fprintf(w, "%s: %s\n", ev.Source, ev.Text)
		case PrintMemory:
			_, _ = fmt.Fprintf(w, "%s: 0x%02x\n", ev.Source, ev.Value)
		default:
			_, _ = fmt.Fprintf(w, "%s: 0x%08x (%d)\n", ev.Source, ev.Value, int32(ev.Value))
		}
	}
}
