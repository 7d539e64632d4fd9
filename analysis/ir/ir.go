package ir

import "strconv"

// Reg identifies a register in the fixed register file of the bytecode.
// Register FP is the frame pointer; stack accesses are always expressed
// as negative offsets from FP.
type Reg uint8

const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	// FP is the frame pointer register. It may not be written by
	// ordinary instructions.
	FP
)

// NumRegs is the size of the register file, frame pointer included.
const NumRegs = 11

func (r Reg) String() string {
	if r == FP {
		return "fp"
	}
	return "r" + strconv.Itoa(int(r))
}

// Operand is either a register or an immediate constant.
type Operand interface {
	String() string
	operand()
}

// Imm is an immediate 64-bit constant operand.
type Imm int64

func (Reg) operand() {}
func (Imm) operand() {}

func (i Imm) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// BinOp enumerates the binary arithmetic and bitwise operations.
type BinOp int

const (
	ADD BinOp = iota
	SUB
	MUL
	DIV
	MOD
	AND
	OR
	XOR
	LSH
	RSH
)

var binOpStrings = map[BinOp]string{
	ADD: "add",
	SUB: "sub",
	MUL: "mul",
	DIV: "div",
	MOD: "mod",
	AND: "and",
	OR:  "or",
	XOR: "xor",
	LSH: "lsh",
	RSH: "rsh",
}

func (op BinOp) String() string {
	return binOpStrings[op]
}

// Cmp enumerates the comparison predicates usable in conditions.
// The S-prefixed variants are signed comparisons.
type Cmp int

const (
	EQ Cmp = iota
	NE
	LT
	LE
	GT
	GE
	SLT
	SLE
	SGT
	SGE
)

var cmpStrings = map[Cmp]string{
	EQ:  "==",
	NE:  "!=",
	LT:  "<",
	LE:  "<=",
	GT:  ">",
	GE:  ">=",
	SLT: "s<",
	SLE: "s<=",
	SGT: "s>",
	SGE: "s>=",
}

func (op Cmp) String() string {
	return cmpStrings[op]
}

// Signed checks whether the predicate compares under signed semantics.
func (op Cmp) Signed() bool {
	return op >= SLT
}

// Negate returns the predicate matching exactly the complement set of
// value pairs.
func (op Cmp) Negate() Cmp {
	switch op {
	case EQ:
		return NE
	case NE:
		return EQ
	case LT:
		return GE
	case LE:
		return GT
	case GT:
		return LE
	case GE:
		return LT
	case SLT:
		return SGE
	case SLE:
		return SGT
	case SGT:
		return SLE
	case SGE:
		return SLT
	}
	panic("ir: unknown comparison predicate")
}

// Cond is a branch/assume/assert condition `X op Y`.
type Cond struct {
	X  Reg
	Op Cmp
	Y  Operand
}

func (c Cond) String() string {
	return c.X.String() + " " + c.Op.String() + " " + c.Y.String()
}
