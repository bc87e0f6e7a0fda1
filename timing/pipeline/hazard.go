package pipeline

// ForwardSource indicates where a forwarded value should come from.
type ForwardSource int

const (
	// ForwardNone means no forwarding needed - use the carried or register file value.
	ForwardNone ForwardSource = iota
	// ForwardFromEXMEM means forward the ALU result held in EX/MEM.
	ForwardFromEXMEM
	// ForwardFromMEMWB means forward the value held in MEM/WB.
	ForwardFromMEMWB
)

func (f ForwardSource) String() string {
	switch f {
	case ForwardFromEXMEM:
		return "EX/MEM"
	case ForwardFromMEMWB:
		return "MEM/WB"
	default:
		return "-"
	}
}

// Sources lists the registers a decoded instruction reads. Unused entries are
// NoReg or ImmReg.
type Sources struct {
	A, B             uint8 // ALU operands
	Store            uint8 // store data
	BranchA, BranchB uint8 // branch condition operands or jump register
}

// NoSources returns a Sources value with every entry unused.
func NoSources() Sources {
	return Sources{A: NoReg, B: NoReg, Store: NoReg, BranchA: NoReg, BranchB: NoReg}
}

func (s Sources) alu() []uint8 {
	return []uint8{s.A, s.B, s.Store}
}

func (s Sources) branch() []uint8 {
	return []uint8{s.BranchA, s.BranchB}
}

// ForwardingResult contains forwarding decisions for the execute stage.
type ForwardingResult struct {
	// ForwardA specifies the forwarding source for the first ALU operand.
	ForwardA ForwardSource
	// ForwardB specifies the forwarding source for the second ALU operand.
	ForwardB ForwardSource
	// ForwardStore specifies the forwarding source for store data.
	ForwardStore ForwardSource
}

// Any reports whether any operand is forwarded.
func (r ForwardingResult) Any() bool {
	return r.ForwardA != ForwardNone || r.ForwardB != ForwardNone || r.ForwardStore != ForwardNone
}

// StallResult contains stall control signals.
type StallResult struct {
	// StallIF indicates the IF stage should hold its PC.
	StallIF bool
	// StallID indicates IF/ID should keep its instruction for retry.
	StallID bool
	// InsertBubbleEX indicates a bubble should be written to ID/EX.
	InsertBubbleEX bool
}

// HazardUnit detects data hazards and determines forwarding/stall signals.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// DetectForwardForReg returns where the value of reg should come from.
// The nearer EX/MEM producer wins over MEM/WB, and EX/MEM only forwards ALU
// results since a load in EX/MEM has not read memory yet.
func (h *HazardUnit) DetectForwardForReg(
	reg uint8,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardSource {
	if !IsReg(reg) {
		return ForwardNone
	}

	if exmem.Valid && exmem.Rd == reg && !exmem.MemToReg() {
		return ForwardFromEXMEM
	}

	if memwb.Valid && memwb.Rd == reg {
		return ForwardFromMEMWB
	}

	return ForwardNone
}

// GetForwardedValue returns the value to use based on a forwarding decision.
func (h *HazardUnit) GetForwardedValue(
	forward ForwardSource,
	originalValue uint32,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) uint32 {
	switch forward {
	case ForwardFromEXMEM:
		return exmem.ALUResult
	case ForwardFromMEMWB:
		return memwb.Value
	default:
		return originalValue
	}
}

// Forward resolves reg against the in-flight producers, falling back to
// value.
func (h *HazardUnit) Forward(
	reg uint8,
	value uint32,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) (uint32, ForwardSource) {
	src := h.DetectForwardForReg(reg, exmem, memwb)
	return h.GetForwardedValue(src, value, exmem, memwb), src
}

// DetectForwarding determines the forwarding sources for the instruction in
// ID/EX.
func (h *HazardUnit) DetectForwarding(
	idex *IDEXRegister,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardingResult {
	result := ForwardingResult{}

	if !idex.Valid {
		return result
	}

	result.ForwardA = h.DetectForwardForReg(idex.SrcA, exmem, memwb)
	result.ForwardB = h.DetectForwardForReg(idex.SrcB, exmem, memwb)
	if idex.MemOp.IsStore() {
		result.ForwardStore = h.DetectForwardForReg(idex.StoreSrc, exmem, memwb)
	}

	return result
}

// DetectLoadUseHazard reports whether the instruction being decoded reads the
// destination of a load still in ID/EX. Its value only exists after the
// next memory access, too late for forwarding into execute or decode.
func (h *HazardUnit) DetectLoadUseHazard(idex *IDEXRegister, next Sources) bool {
	if !idex.IsLoad() || !IsReg(idex.Rd) {
		return false
	}

	for _, r := range append(next.alu(), next.branch()...) {
		if r == idex.Rd {
			return true
		}
	}

	return false
}

// DetectBranchHazard reports whether a branch being decoded needs a value
// that is not available to decode this cycle: any result still being computed
// in execute, or a load in EX/MEM whose memory access happens this cycle.
func (h *HazardUnit) DetectBranchHazard(idex *IDEXRegister, exmem *EXMEMRegister, next Sources) bool {
	for _, r := range next.branch() {
		if !IsReg(r) {
			continue
		}
		if idex.Writes() && idex.Rd == r {
			return true
		}
		if exmem.IsLoad() && exmem.Rd == r {
			return true
		}
	}

	return false
}

// ComputeStalls computes stall signals based on hazard conditions.
func (h *HazardUnit) ComputeStalls(hazard bool) StallResult {
	result := StallResult{}

	// Stall IF and ID, insert bubble in EX
	if hazard {
		result.StallIF = true
		result.StallID = true
		result.InsertBubbleEX = true
	}

	return result
}
