package insts

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown    Format = iota
	FormatDPImm             // add/sub (immediate)
	FormatDPReg             // add/sub and logical (shifted register)
	FormatBranch            // B, BL
	FormatBranchCond        // B.cond
	FormatBranchReg         // BR, BLR, RET
	FormatMoveWide          // MOVZ
	FormatLoadStore         // LDR, STR (unsigned offset)
	FormatSystem            // NOP, SVC
)

// Cond represents an ARM64 condition code.
type Cond uint8

// ARM64 condition codes.
const (
	CondEQ Cond = 0b0000 // Z == 1
	CondNE Cond = 0b0001 // Z == 0
	CondCS Cond = 0b0010 // C == 1
	CondCC Cond = 0b0011 // C == 0
	CondMI Cond = 0b0100 // N == 1
	CondPL Cond = 0b0101 // N == 0
	CondVS Cond = 0b0110 // V == 1
	CondVC Cond = 0b0111 // V == 0
	CondHI Cond = 0b1000 // C == 1 && Z == 0
	CondLS Cond = 0b1001 // C == 0 || Z == 1
	CondGE Cond = 0b1010 // N == V
	CondLT Cond = 0b1011 // N != V
	CondGT Cond = 0b1100 // Z == 0 && N == V
	CondLE Cond = 0b1101 // Z == 1 || N != V
	CondAL Cond = 0b1110 // always
	CondNV Cond = 0b1111 // always
)

// ShiftType represents a shift type for register operands.
type ShiftType uint8

// Shift types.
const (
	ShiftLSL ShiftType = 0b00
	ShiftLSR ShiftType = 0b01
	ShiftASR ShiftType = 0b10
	ShiftROR ShiftType = 0b11
)

// Instruction represents a decoded ARM64 instruction.
type Instruction struct {
	Op     Op
	Format Format

	Is64Bit  bool  // X registers; W registers otherwise
	SetFlags bool  // S suffix
	Rd       uint8 // destination, or Rt for loads and stores
	Rn       uint8
	Rm       uint8

	Imm   uint64 // byte offset for loads and stores
	Shift uint8  // left shift applied to Imm

	BranchOffset int64 // bytes, relative to the branch
	Cond         Cond

	ShiftType   ShiftType // applied to Rm
	ShiftAmount uint8
}

// AccessSize returns the number of bytes a load or store transfers.
func (i *Instruction) AccessSize() int {
	if i.Is64Bit {
		return 8
	}
	return 4
}

// Decoder decodes ARM64 machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new ARM64 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit ARM64 instruction word.
// Words outside the supported subset decode to OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Op: OpUnknown, Format: FormatUnknown}

	switch {
	case word == nopWord:
		inst.Format = FormatSystem
		inst.Op = OpNOP
	case word&0xFFE0001F == 0xD4000001: // 11010100 000 | imm16 | 000 01
		inst.Format = FormatSystem
		inst.Op = OpSVC
		inst.Imm = uint64(field(word, 20, 5))
	case field(word, 28, 23) == 0b100010:
		decodeAddSubImm(word, inst)
	case field(word, 28, 24) == 0b01011:
		decodeAddSubReg(word, inst)
	case field(word, 28, 24) == 0b01010:
		decodeLogicalReg(word, inst)
	case field(word, 30, 23) == 0b10100101:
		decodeMoveWide(word, inst)
	case field(word, 29, 24) == 0b111001:
		decodeLoadStoreImm(word, inst)
	case field(word, 30, 26) == 0b00101:
		decodeBranchImm(word, inst)
	case field(word, 31, 25) == 0b0101010 && field(word, 4, 4) == 0:
		decodeBranchCond(word, inst)
	case field(word, 31, 25) == 0b1101011:
		decodeBranchReg(word, inst)
	}

	return inst
}

const nopWord = 0xD503201F

// field extracts bits [hi:lo] of word.
func field(word uint32, hi, lo uint) uint32 {
	return (word >> lo) & (1<<(hi-lo+1) - 1)
}

// signExtend treats the low width bits of v as a two's complement value.
func signExtend(v uint32, width uint) int64 {
	shift := 64 - width
	return int64(uint64(v)<<shift) >> shift
}

// decodeAddSubImm decodes ADD, ADDS, SUB, SUBS (immediate).
// sf | op | S | 100010 | sh | imm12 | Rn | Rd
func decodeAddSubImm(word uint32, inst *Instruction) {
	inst.Format = FormatDPImm
	inst.Is64Bit = field(word, 31, 31) == 1
	inst.SetFlags = field(word, 29, 29) == 1
	inst.Imm = uint64(field(word, 21, 10))
	inst.Rn = uint8(field(word, 9, 5))
	inst.Rd = uint8(field(word, 4, 0))

	if field(word, 22, 22) == 1 {
		inst.Shift = 12
	}

	inst.Op = OpADD
	if field(word, 30, 30) == 1 {
		inst.Op = OpSUB
	}
}

// decodeRegOperands fills the fields shared by the shifted register forms.
// sf | .. | 0101x | shift | x | Rm | imm6 | Rn | Rd
func decodeRegOperands(word uint32, inst *Instruction) {
	inst.Format = FormatDPReg
	inst.Is64Bit = field(word, 31, 31) == 1
	inst.ShiftType = ShiftType(field(word, 23, 22))
	inst.Rm = uint8(field(word, 20, 16))
	inst.ShiftAmount = uint8(field(word, 15, 10))
	inst.Rn = uint8(field(word, 9, 5))
	inst.Rd = uint8(field(word, 4, 0))
}

// decodeAddSubReg decodes ADD, ADDS, SUB, SUBS (shifted register). The
// extended register form (bit 21 set) and ROR are not supported.
// sf | op | S | 01011 | shift | 0 | Rm | imm6 | Rn | Rd
func decodeAddSubReg(word uint32, inst *Instruction) {
	if field(word, 21, 21) == 1 || ShiftType(field(word, 23, 22)) == ShiftROR {
		return
	}

	decodeRegOperands(word, inst)
	inst.SetFlags = field(word, 29, 29) == 1

	inst.Op = OpADD
	if field(word, 30, 30) == 1 {
		inst.Op = OpSUB
	}
}

// logicalOps maps opc (bits [30:29]) and N (bit 21) to the opcode. ANDS and
// BICS share the AND and BIC opcodes with SetFlags.
var logicalOps = [4][2]Op{
	{OpAND, OpBIC},
	{OpORR, OpORN},
	{OpEOR, OpEON},
	{OpAND, OpBIC},
}

// decodeLogicalReg decodes AND, ORR, EOR, ANDS and their inverted forms
// BIC, ORN, EON, BICS (shifted register).
// sf | opc | 01010 | shift | N | Rm | imm6 | Rn | Rd
func decodeLogicalReg(word uint32, inst *Instruction) {
	decodeRegOperands(word, inst)

	opc := field(word, 30, 29)
	inst.Op = logicalOps[opc][field(word, 21, 21)]
	inst.SetFlags = opc == 0b11
}

// decodeMoveWide decodes MOVZ.
// sf | 10 | 100101 | hw | imm16 | Rd
func decodeMoveWide(word uint32, inst *Instruction) {
	inst.Format = FormatMoveWide
	inst.Op = OpMOVZ
	inst.Is64Bit = field(word, 31, 31) == 1
	inst.Shift = uint8(field(word, 22, 21) * 16)
	inst.Imm = uint64(field(word, 20, 5))
	inst.Rd = uint8(field(word, 4, 0))
}

// decodeLoadStoreImm decodes 32 and 64-bit integer LDR and STR with an
// unsigned scaled offset.
// size | 111 | 0 | 01 | opc | imm12 | Rn | Rt
func decodeLoadStoreImm(word uint32, inst *Instruction) {
	size := field(word, 31, 30)
	opc := field(word, 23, 22)
	if size < 0b10 || opc > 0b01 {
		return
	}

	inst.Format = FormatLoadStore
	inst.Is64Bit = size == 0b11
	inst.Imm = uint64(field(word, 21, 10)) << size
	inst.Rn = uint8(field(word, 9, 5))
	inst.Rd = uint8(field(word, 4, 0))

	inst.Op = OpSTR
	if opc == 0b01 {
		inst.Op = OpLDR
	}
}

// decodeBranchImm decodes B and BL.
// op | 00101 | imm26
func decodeBranchImm(word uint32, inst *Instruction) {
	inst.Format = FormatBranch
	inst.BranchOffset = signExtend(field(word, 25, 0), 26) * 4
	if inst.BranchOffset >= 0 {
		inst.Imm = uint64(inst.BranchOffset)
	}

	inst.Op = OpB
	if field(word, 31, 31) == 1 {
		inst.Op = OpBL
	}
}

// decodeBranchCond decodes B.cond.
// 0101010 | 0 | imm19 | 0 | cond
func decodeBranchCond(word uint32, inst *Instruction) {
	inst.Format = FormatBranchCond
	inst.Op = OpBCond
	inst.BranchOffset = signExtend(field(word, 23, 5), 19) * 4
	if inst.BranchOffset >= 0 {
		inst.Imm = uint64(inst.BranchOffset)
	}
	inst.Cond = Cond(field(word, 3, 0))
}

// branchRegOps maps opc (bits [22:21]) to the opcode.
var branchRegOps = [4]Op{OpBR, OpBLR, OpRET, OpUnknown}

// decodeBranchReg decodes BR, BLR and RET.
// 1101011 | 0 | 0 | opc | 11111 | 000000 | Rn | 00000
func decodeBranchReg(word uint32, inst *Instruction) {
	if field(word, 24, 23) != 0 || field(word, 20, 16) != 0b11111 ||
		field(word, 15, 10) != 0 || field(word, 4, 0) != 0 {
		return
	}

	inst.Format = FormatBranchReg
	inst.Op = branchRegOps[field(word, 22, 21)]
	inst.Rn = uint8(field(word, 9, 5))
}
