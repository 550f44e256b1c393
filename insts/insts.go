// Package insts provides the ARM64 instruction subset executed by the
// emulator and the instruction categories the monitor counts.
//
// Every Op is one category, so an executed instruction is recorded as
//
//	counters.RecordIssue(inst.Op.Category())
//
// and reports name it by its mnemonic through Categories.
package insts

import "github.com/sarchlab/mpsim/mon"

// Op represents an ARM64 opcode.
type Op uint16

// ARM64 opcodes.
const (
	OpUnknown Op = iota
	OpADD
	OpSUB
	OpAND
	OpORR
	OpEOR
	OpBIC
	OpORN
	OpEON
	OpMOVZ
	OpB
	OpBL
	OpBCond
	OpBR
	OpBLR
	OpRET
	OpLDR
	OpSTR
	OpNOP
	OpSVC

	// NumOps is the number of opcodes, OpUnknown included.
	NumOps int = iota
)

var opNames = [...]string{
	OpUnknown: "unknown",
	OpADD:     "add",
	OpSUB:     "sub",
	OpAND:     "and",
	OpORR:     "orr",
	OpEOR:     "eor",
	OpBIC:     "bic",
	OpORN:     "orn",
	OpEON:     "eon",
	OpMOVZ:    "movz",
	OpB:       "b",
	OpBL:      "bl",
	OpBCond:   "b.cond",
	OpBR:      "br",
	OpBLR:     "blr",
	OpRET:     "ret",
	OpLDR:     "ldr",
	OpSTR:     "str",
	OpNOP:     "nop",
	OpSVC:     "svc",
}

// String returns the lower-case mnemonic.
func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "unknown"
}

// Category returns the monitor category of the opcode.
func (op Op) Category() mon.Category {
	return mon.Category(op)
}

type categoryTable struct{}

func (categoryTable) NumCategories() int {
	return NumOps
}

func (categoryTable) CategoryName(c mon.Category) string {
	return Op(c).String()
}

// Categories is the category table of the ARM64 subset, one category per Op.
var Categories mon.CategoryTable = categoryTable{}
