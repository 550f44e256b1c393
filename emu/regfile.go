package emu

import "github.com/sarchlab/mpsim/insts"

// RegFile represents the ARM64 register file of one CPU.
type RegFile struct {
	// X holds general-purpose registers X0-X30.
	// X[31] is never read: register 31 is XZR or SP depending on the
	// instruction.
	X [32]uint64

	// SP is the stack pointer.
	SP uint64

	// PC is the program counter.
	PC uint64

	// PSTATE holds the condition flags.
	PSTATE PSTATE
}

// PSTATE represents the NZCV condition flags.
type PSTATE struct {
	N bool
	Z bool
	C bool
	V bool
}

// Holds reports whether the condition is true for the current flags.
func (p PSTATE) Holds(cond insts.Cond) bool {
	var result bool

	switch cond >> 1 {
	case 0b000: // EQ / NE
		result = p.Z
	case 0b001: // CS / CC
		result = p.C
	case 0b010: // MI / PL
		result = p.N
	case 0b011: // VS / VC
		result = p.V
	case 0b100: // HI / LS
		result = p.C && !p.Z
	case 0b101: // GE / LT
		result = p.N == p.V
	case 0b110: // GT / LE
		result = p.N == p.V && !p.Z
	default: // AL / NV
		return true
	}

	if cond&1 == 1 {
		return !result
	}
	return result
}

// ReadReg reads a register value. Register 31 reads as zero (XZR).
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg >= 31 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a register value. Writes to register 31 are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg >= 31 {
		return
	}
	r.X[reg] = value
}

// ReadRegOrSP reads a register value, treating register 31 as SP.
func (r *RegFile) ReadRegOrSP(reg uint8) uint64 {
	if reg == 31 {
		return r.SP
	}
	return r.X[reg]
}

// WriteRegOrSP writes a register value, treating register 31 as SP.
func (r *RegFile) WriteRegOrSP(reg uint8, value uint64) {
	if reg == 31 {
		r.SP = value
		return
	}
	r.X[reg] = value
}
