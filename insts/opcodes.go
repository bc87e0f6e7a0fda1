package insts

// Primary opcodes (bits 31-26).
const (
	OpSpecial = 0x00
	OpRegImm  = 0x01
	OpJ       = 0x02
	OpJAL     = 0x03
	OpBEQ     = 0x04
	OpBNE     = 0x05
	OpBLEZ    = 0x06
	OpBGTZ    = 0x07
	OpADDI    = 0x08
	OpADDIU   = 0x09
	OpSLTI    = 0x0A
	OpSLTIU   = 0x0B
	OpANDI    = 0x0C
	OpORI     = 0x0D
	OpXORI    = 0x0E
	OpLUI     = 0x0F
	OpLB      = 0x20
	OpLH      = 0x21
	OpLW      = 0x23
	OpLBU     = 0x24
	OpLHU     = 0x25
	OpSB      = 0x28
	OpSH      = 0x29
	OpSW      = 0x2B
	OpPrint   = 0x3F
)

// Function codes (bits 5-0) under OpSpecial.
const (
	FnSLL   = 0x00
	FnSRL   = 0x02
	FnSRA   = 0x03
	FnSLLV  = 0x04
	FnSRLV  = 0x06
	FnSRAV  = 0x07
	FnJR    = 0x08
	FnBREAK = 0x0D
	FnMUL   = 0x18
	FnMULU  = 0x19
	FnDIV   = 0x1A
	FnDIVU  = 0x1B
	FnADD   = 0x20
	FnADDU  = 0x21
	FnSUB   = 0x22
	FnSUBU  = 0x23
	FnAND   = 0x24
	FnOR    = 0x25
	FnXOR   = 0x26
	FnNOR   = 0x27
	FnSLT   = 0x2A
	FnSLTU  = 0x2B
)

// rt selectors under OpRegImm.
const (
	RtBLTZ   = 0x00
	RtBGEZ   = 0x01
	RtBLTZAL = 0x10
	RtBGEZAL = 0x11
)

// Function codes under OpPrint.
const (
	FnPrintReg = 0x00
	FnPrintMem = 0x01
	FnPrintStr = 0x02
)
