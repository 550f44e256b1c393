// Package emu provides functional ARM64 emulation of a single CPU.
//
// The emulator reports what it executes to a Monitor: every issued
// instruction by category, and every data read and write.
package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/mpsim/insts"
	"github.com/sarchlab/mpsim/mon"
)

// Linux syscall numbers understood by the emulator.
const (
	SyscallExit      = 93
	SyscallExitGroup = 94
)

// ErrMaxInstructions is returned by Step once the instruction limit is hit.
var ErrMaxInstructions = errors.New("max instructions reached")

// Monitor receives the execution events of one CPU. *mon.CPUCounters
// implements it.
type Monitor interface {
	RecordIssue(cat mon.Category)
	RecordRead(ea, ra uint64, size int)
	RecordWrite(ea, ra uint64, size int)
}

// DataCache observes data accesses. It does not hold data; memory stays
// the source of truth.
type DataCache interface {
	Access(addr uint64, write bool) bool
}

type nopMonitor struct{}

func (nopMonitor) RecordIssue(mon.Category)      {}
func (nopMonitor) RecordRead(_, _ uint64, _ int)  {}
func (nopMonitor) RecordWrite(_, _ uint64, _ int) {}

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated (via exit syscall).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes ARM64 instructions functionally.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder
	monitor Monitor
	dcache  DataCache

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit

	halted   bool
	exitCode int64
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMonitor reports execution events to m.
func WithMonitor(m Monitor) EmulatorOption {
	return func(e *Emulator) {
		e.monitor = m
	}
}

// WithDataCache routes every load and store through c.
func WithDataCache(c DataCache) EmulatorOption {
	return func(e *Emulator) {
		e.dcache = c
	}
}

// WithMemory runs the emulator on the given memory.
func WithMemory(m *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = m
	}
}

// WithStackPointer sets the initial stack pointer value.
func WithStackPointer(sp uint64) EmulatorOption {
	return func(e *Emulator) {
		e.regFile.SP = sp
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new ARM64 emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		memory:  NewMemory(),
		decoder: insts.NewDecoder(),
		monitor: nopMonitor{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Halted reports whether the program has exited.
func (e *Emulator) Halted() bool {
	return e.halted
}

// ExitCode returns the exit status once Halted is true.
func (e *Emulator) ExitCode() int64 {
	return e.exitCode
}

// LoadProgram copies program into memory at entry and starts execution
// there.
func (e *Emulator) LoadProgram(entry uint64, program []byte) {
	e.memory.LoadProgram(entry, program)
	e.regFile.PC = entry
}

// SetPC sets the program counter.
func (e *Emulator) SetPC(pc uint64) {
	e.regFile.PC = pc
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.halted {
		return StepResult{Exited: true, ExitCode: e.exitCode}
	}

	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := e.regFile.PC
	word := e.memory.Read32(pc)
	inst := e.decoder.Decode(word)

	if inst.Op == insts.OpUnknown {
		return StepResult{
			Err: fmt.Errorf("unknown instruction 0x%08X at 0x%X", word, pc),
		}
	}

	e.monitor.RecordIssue(inst.Op.Category())
	e.instructionCount++

	return e.execute(inst)
}

// Run executes until the program exits or an error occurs. It returns the
// exit code, or -1 on error.
func (e *Emulator) Run() int64 {
	for {
		result := e.Step()
		if result.Err != nil {
			return -1
		}
		if result.Exited {
			return result.ExitCode
		}
	}
}

func (e *Emulator) execute(inst *insts.Instruction) StepResult {
	nextPC := e.regFile.PC + 4

	switch inst.Format {
	case insts.FormatDPImm:
		e.executeDPImm(inst)
	case insts.FormatDPReg:
		e.executeDPReg(inst)
	case insts.FormatMoveWide:
		e.regFile.WriteReg(inst.Rd, truncate(inst.Imm<<inst.Shift, inst.Is64Bit))
	case insts.FormatLoadStore:
		e.executeLoadStore(inst)
	case insts.FormatBranch:
		if inst.Op == insts.OpBL {
			e.regFile.WriteReg(30, nextPC)
		}
		nextPC = uint64(int64(e.regFile.PC) + inst.BranchOffset)
	case insts.FormatBranchCond:
		if e.regFile.PSTATE.Holds(inst.Cond) {
			nextPC = uint64(int64(e.regFile.PC) + inst.BranchOffset)
		}
	case insts.FormatBranchReg:
		target := e.regFile.ReadReg(inst.Rn)
		if inst.Op == insts.OpBLR {
			e.regFile.WriteReg(30, nextPC)
		}
		nextPC = target
	case insts.FormatSystem:
		if inst.Op == insts.OpSVC {
			return e.executeSVC()
		}
	}

	e.regFile.PC = nextPC

	return StepResult{}
}

func (e *Emulator) executeSVC() StepResult {
	num := e.regFile.ReadReg(8)

	switch num {
	case SyscallExit, SyscallExitGroup:
		e.halted = true
		e.exitCode = int64(e.regFile.ReadReg(0))
		return StepResult{Exited: true, ExitCode: e.exitCode}
	default:
		return StepResult{
			Err: fmt.Errorf("unsupported syscall %d at 0x%X", num, e.regFile.PC),
		}
	}
}

func (e *Emulator) executeDPImm(inst *insts.Instruction) {
	op1 := e.regFile.ReadRegOrSP(inst.Rn)
	op2 := inst.Imm << inst.Shift

	result := e.addSub(op1, op2, inst.Op == insts.OpSUB, inst.Is64Bit, inst.SetFlags)

	if inst.SetFlags {
		e.regFile.WriteReg(inst.Rd, result)
	} else {
		e.regFile.WriteRegOrSP(inst.Rd, result)
	}
}

func (e *Emulator) executeDPReg(inst *insts.Instruction) {
	op1 := e.regFile.ReadReg(inst.Rn)
	op2 := shift(e.regFile.ReadReg(inst.Rm), inst.ShiftType, inst.ShiftAmount, inst.Is64Bit)

	var result uint64

	switch inst.Op {
	case insts.OpADD, insts.OpSUB:
		result = e.addSub(op1, op2, inst.Op == insts.OpSUB, inst.Is64Bit, inst.SetFlags)
	default:
		switch inst.Op {
		case insts.OpAND:
			result = op1 & op2
		case insts.OpORR:
			result = op1 | op2
		case insts.OpEOR:
			result = op1 ^ op2
		case insts.OpBIC:
			result = op1 &^ op2
		case insts.OpORN:
			result = op1 | ^op2
		case insts.OpEON:
			result = op1 ^ ^op2
		}
		result = truncate(result, inst.Is64Bit)

		if inst.SetFlags {
			e.regFile.PSTATE = PSTATE{
				N: signBit(result, inst.Is64Bit),
				Z: result == 0,
			}
		}
	}

	e.regFile.WriteReg(inst.Rd, result)
}

func (e *Emulator) executeLoadStore(inst *insts.Instruction) {
	addr := e.regFile.ReadRegOrSP(inst.Rn) + inst.Imm
	size := inst.AccessSize()
	write := inst.Op == insts.OpSTR

	if e.dcache != nil {
		e.dcache.Access(addr, write)
	}

	if write {
		value := e.regFile.ReadReg(inst.Rd)
		if inst.Is64Bit {
			e.memory.Write64(addr, value)
		} else {
			e.memory.Write32(addr, uint32(value))
		}
		e.monitor.RecordWrite(addr, addr, size)
		return
	}

	var value uint64
	if inst.Is64Bit {
		value = e.memory.Read64(addr)
	} else {
		value = uint64(e.memory.Read32(addr))
	}
	e.regFile.WriteReg(inst.Rd, value)
	e.monitor.RecordRead(addr, addr, size)
}

// addSub computes op1 +/- op2 and optionally updates NZCV.
func (e *Emulator) addSub(op1, op2 uint64, sub, is64, setFlags bool) uint64 {
	carryIn := uint64(0)
	if sub {
		op2 = ^op2
		carryIn = 1
	}

	op1 = truncate(op1, is64)
	op2 = truncate(op2, is64)

	var result uint64
	var carry bool

	if is64 {
		sum := op1 + op2
		result = sum + carryIn
		carry = sum < op1 || result < sum
	} else {
		wide := op1 + op2 + carryIn
		result = truncate(wide, false)
		carry = wide>>32 != 0
	}

	if setFlags {
		s1, s2, sr := signBit(op1, is64), signBit(op2, is64), signBit(result, is64)
		e.regFile.PSTATE = PSTATE{
			N: sr,
			Z: result == 0,
			C: carry,
			V: s1 == s2 && sr != s1,
		}
	}

	return result
}

func shift(value uint64, kind insts.ShiftType, amount uint8, is64 bool) uint64 {
	value = truncate(value, is64)

	width := uint8(64)
	if !is64 {
		width = 32
	}
	amount %= width

	switch kind {
	case insts.ShiftLSL:
		value <<= amount
	case insts.ShiftLSR:
		value >>= amount
	case insts.ShiftASR:
		if is64 {
			value = uint64(int64(value) >> amount)
		} else {
			value = uint64(uint32(int32(uint32(value)) >> amount))
		}
	case insts.ShiftROR:
		if amount != 0 {
			value = value>>amount | value<<(width-amount)
		}
	}

	return truncate(value, is64)
}

func truncate(value uint64, is64 bool) uint64 {
	if is64 {
		return value
	}
	return value & 0xFFFFFFFF
}

func signBit(value uint64, is64 bool) bool {
	if is64 {
		return value>>63 == 1
	}
	return (value>>31)&1 == 1
}
