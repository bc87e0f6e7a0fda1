package insts

// Format is the operand format class of an instruction.
type Format uint8

// Operand format classes.
const (
	FormatRRR Format = iota // three registers: rd, rs, rt
	FormatRRI               // two registers and an immediate: rt, rs, imm
	FormatRRA               // two registers and a shift amount: rd, rt, sa
	FormatRC                // register and memory offset: rt, imm(rs)
	FormatRI                // register and immediate: rs|rt, imm
	FormatR                 // single register: rs
	FormatI                 // immediate only
	FormatN                 // no operand
)

var formatNames = [...]string{"RRR", "RRI", "RRA", "RC", "RI", "R", "I", "N"}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "?"
}

// Signedness tells how an instruction's immediate field is interpreted.
type Signedness uint8

// Immediate signedness tags.
const (
	SignNone Signedness = iota
	Signed
	Unsigned
)

func (s Signedness) String() string {
	switch s {
	case Signed:
		return "signed"
	case Unsigned:
		return "unsigned"
	default:
		return "n/a"
	}
}

// definition is one row of the instruction table.
//
// Template characters: 0/1 fixed bits, s/t/d register fields, i immediate,
// a shift amount, c break code (encoded as zero). Spaces are ignored.
// Syntax lists the assembly operand order used by Disassemble.
type definition struct {
	name     string
	template string
	format   Format
	sign     Signedness
	syntax   string
}

var definitions = []definition{
	// load/store
	{"lb", "1000 00ss ssst tttt iiii iiii iiii iiii", FormatRC, Signed, "t, i(s)"},
	{"lbu", "1001 00ss ssst tttt iiii iiii iiii iiii", FormatRC, Signed, "t, i(s)"},
	{"lh", "1000 01ss ssst tttt iiii iiii iiii iiii", FormatRC, Signed, "t, i(s)"},
	{"lhu", "1001 01ss ssst tttt iiii iiii iiii iiii", FormatRC, Signed, "t, i(s)"},
	{"lui", "0011 1100 000t tttt iiii iiii iiii iiii", FormatRI, Unsigned, "t, i"},
	{"lw", "1000 11ss ssst tttt iiii iiii iiii iiii", FormatRC, Signed, "t, i(s)"},
	{"sb", "1010 00ss ssst tttt iiii iiii iiii iiii", FormatRC, Signed, "t, i(s)"},
	{"sh", "1010 01ss ssst tttt iiii iiii iiii iiii", FormatRC, Signed, "t, i(s)"},
	{"sw", "1010 11ss ssst tttt iiii iiii iiii iiii", FormatRC, Signed, "t, i(s)"},

	// arithmetic
	{"addi", "0010 00ss ssst tttt iiii iiii iiii iiii", FormatRRI, Signed, "t, s, i"},
	{"addiu", "0010 01ss ssst tttt iiii iiii iiii iiii", FormatRRI, Unsigned, "t, s, i"},
	{"add", "0000 00ss ssst tttt dddd d000 0010 0000", FormatRRR, SignNone, "d, s, t"},
	{"addu", "0000 00ss ssst tttt dddd d000 0010 0001", FormatRRR, SignNone, "d, s, t"},
	{"sub", "0000 00ss ssst tttt dddd d000 0010 0010", FormatRRR, SignNone, "d, s, t"},
	{"subu", "0000 00ss ssst tttt dddd d000 0010 0011", FormatRRR, SignNone, "d, s, t"},
	{"slt", "0000 00ss ssst tttt dddd d000 0010 1010", FormatRRR, SignNone, "d, s, t"},
	{"slti", "0010 10ss ssst tttt iiii iiii iiii iiii", FormatRRI, Signed, "t, s, i"},
	{"sltu", "0000 00ss ssst tttt dddd d000 0010 1011", FormatRRR, SignNone, "d, s, t"},
	{"sltiu", "0010 11ss ssst tttt iiii iiii iiii iiii", FormatRRI, Unsigned, "t, s, i"},

	// logical
	{"and", "0000 00ss ssst tttt dddd d000 0010 0100", FormatRRR, SignNone, "d, s, t"},
	{"andi", "0011 00ss ssst tttt iiii iiii iiii iiii", FormatRRI, Unsigned, "t, s, i"},
	{"or", "0000 00ss ssst tttt dddd d000 0010 0101", FormatRRR, SignNone, "d, s, t"},
	{"ori", "0011 01ss ssst tttt iiii iiii iiii iiii", FormatRRI, Unsigned, "t, s, i"},
	{"xor", "0000 00ss ssst tttt dddd d000 0010 0110", FormatRRR, SignNone, "d, s, t"},
	{"xori", "0011 10ss ssst tttt iiii iiii iiii iiii", FormatRRI, Unsigned, "t, s, i"},
	{"nor", "0000 00ss ssst tttt dddd d000 0010 0111", FormatRRR, SignNone, "d, s, t"},
	{"sll", "0000 0000 000t tttt dddd daaa aa00 0000", FormatRRA, SignNone, "d, t, a"},
	{"sllv", "0000 00ss ssst tttt dddd d000 0000 0100", FormatRRR, SignNone, "d, t, s"},
	{"srl", "0000 0000 000t tttt dddd daaa aa00 0010", FormatRRA, SignNone, "d, t, a"},
	{"sra", "0000 0000 000t tttt dddd daaa aa00 0011", FormatRRA, SignNone, "d, t, a"},
	{"srlv", "0000 00ss ssst tttt dddd d000 0000 0110", FormatRRR, SignNone, "d, t, s"},
	{"srav", "0000 00ss ssst tttt dddd d000 0000 0111", FormatRRR, SignNone, "d, t, s"},

	// multiplication and division write rd directly
	{"mul", "0000 00ss ssst tttt dddd d000 0001 1000", FormatRRR, SignNone, "d, s, t"},
	{"mulu", "0000 00ss ssst tttt dddd d000 0001 1001", FormatRRR, SignNone, "d, s, t"},
	{"div", "0000 00ss ssst tttt dddd d000 0001 1010", FormatRRR, SignNone, "d, s, t"},
	{"divu", "0000 00ss ssst tttt dddd d000 0001 1011", FormatRRR, SignNone, "d, s, t"},

	// jumps (one delay slot)
	{"j", "0000 10ii iiii iiii iiii iiii iiii iiii", FormatI, Unsigned, "i"},
	{"jal", "0000 11ii iiii iiii iiii iiii iiii iiii", FormatI, Unsigned, "i"},
	{"jr", "0000 00ss sss0 0000 0000 0000 0000 1000", FormatR, SignNone, "s"},

	// branches (one delay slot)
	{"beq", "0001 00ss ssst tttt iiii iiii iiii iiii", FormatRRI, Signed, "s, t, i"},
	{"bne", "0001 01ss ssst tttt iiii iiii iiii iiii", FormatRRI, Signed, "s, t, i"},
	{"blez", "0001 10ss sss0 0000 iiii iiii iiii iiii", FormatRI, Signed, "s, i"},
	{"bgtz", "0001 11ss sss0 0000 iiii iiii iiii iiii", FormatRI, Signed, "s, i"},
	{"bltz", "0000 01ss sss0 0000 iiii iiii iiii iiii", FormatRI, Signed, "s, i"},
	{"bgez", "0000 01ss sss0 0001 iiii iiii iiii iiii", FormatRI, Signed, "s, i"},
	{"bltzal", "0000 01ss sss1 0000 iiii iiii iiii iiii", FormatRI, Signed, "s, i"},
	{"bgezal", "0000 01ss sss1 0001 iiii iiii iiii iiii", FormatRI, Signed, "s, i"},

	// misc
	{"nop", "0000 0000 0000 0000 0000 0000 0000 0000", FormatN, SignNone, ""},
	{"break", "0000 00cc cccc cccc cccc cccc cc00 1101", FormatN, SignNone, ""},

	// simulation only
	{"print", "1111 11ss sss0 0000 0000 0000 0000 0000", FormatR, SignNone, "s"},
	{"printm", "1111 11ss sss0 0000 0000 0000 0000 0001", FormatR, SignNone, "s"},
	{"prints", "1111 11ss sss0 0000 0000 0000 0000 0010", FormatR, SignNone, "s"},
}
