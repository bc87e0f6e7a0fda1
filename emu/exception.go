// Package emu provides functional MIPS emulation.
package emu

import (
	"fmt"
	"strings"
)

// Exception is a bitmask of the faults raised during one step or cycle.
// The simulator never stops by itself; the caller inspects the mask.
type Exception uint32

// Exception flags.
const (
	ExcInvalidInstruction Exception = 1 << iota
	ExcOverflow
	ExcPCAlign
	ExcDataAlign
	ExcBranchInDelaySlot
	ExcBreakpoint
	ExcPCLimit

	ExcNone Exception = 0
	ExcAll            = ExcInvalidInstruction | ExcOverflow | ExcPCAlign | ExcDataAlign |
		ExcBranchInDelaySlot | ExcBreakpoint | ExcPCLimit
)

var exceptionNames = []struct {
	flag Exception
	name string
}{
	{ExcInvalidInstruction, "invalid"},
	{ExcOverflow, "overflow"},
	{ExcPCAlign, "pc-align"},
	{ExcDataAlign, "data-align"},
	{ExcBranchInDelaySlot, "branch-in-delay-slot"},
	{ExcBreakpoint, "break"},
	{ExcPCLimit, "pc-limit"},
}

// Has reports whether any of the flags in f are set.
func (e Exception) Has(f Exception) bool {
	return e&f != 0
}

// Names returns the names of the set flags in bit order.
func (e Exception) Names() []string {
	var out []string
	for _, n := range exceptionNames {
		if e&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (e Exception) String() string {
	if e == ExcNone {
		return "none"
	}
	return strings.Join(e.Names(), "|")
}

// ParseException parses a comma or pipe separated list of flag names.
// "all" selects every flag and "none" or the empty string selects none.
func ParseException(s string) (Exception, error) {
	var mask Exception

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || r == ' '
	})
	for _, f := range fields {
		switch f = strings.ToLower(f); f {
		case "all":
			mask |= ExcAll
			continue
		case "none":
			continue
		}

		found := false
		for _, n := range exceptionNames {
			if n.name == f {
				mask |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown exception %q", f)
		}
	}

	return mask, nil
}
