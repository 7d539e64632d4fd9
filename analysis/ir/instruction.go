package ir

import (
	"fmt"
	"strconv"
)

type (
	// Instruction is implemented by all non-terminator instructions
	// appearing in the body of a basic block.
	Instruction interface {
		fmt.Stringer
		instr()
	}

	// Assign copies a register or immediate into a register.
	Assign struct {
		Dst Reg
		Src Operand
	}

	// Bin is a binary operation `Dst = X op Y`.
	Bin struct {
		Op  BinOp
		Dst Reg
		X   Reg
		Y   Operand
	}

	// Load reads Width bytes at Base+Off into Dst.
	Load struct {
		Dst   Reg
		Base  Reg
		Off   int64
		Width uint32
	}

	// Store writes the Width-byte value of Src at Base+Off.
	Store struct {
		Base  Reg
		Off   int64
		Width uint32
		Src   Operand
	}

	// Call transfers control to a named function. Arguments and the
	// return value follow the fixed register convention (R1-R5 in,
	// R0 out); the instruction carries only the callee name.
	Call struct {
		Callee string
	}

	// MemCpy copies Len bytes from Src to Dst.
	MemCpy struct {
		Dst, Src Reg
		Len      Operand
	}

	// MemCmp compares Len bytes at X and Y, leaving the result in R0.
	MemCmp struct {
		X, Y Reg
		Len  Operand
	}

	// MemSet writes Len copies of the low byte of Val starting at Dst.
	MemSet struct {
		Dst Reg
		Val Operand
		Len Operand
	}

	// Assume restricts the feasible paths to those satisfying Cond.
	Assume struct {
		Cond Cond
	}

	// Assert requires Cond to hold; the downstream verifier discharges it.
	Assert struct {
		Cond Cond
	}
)

func (Assign) instr() {}
func (Bin) instr()    {}
func (Load) instr()   {}
func (Store) instr()  {}
func (Call) instr()   {}
func (MemCpy) instr() {}
func (MemCmp) instr() {}
func (MemSet) instr() {}
func (Assume) instr() {}
func (Assert) instr() {}

func (i Assign) String() string {
	return i.Dst.String() + " = " + i.Src.String()
}

func (i Bin) String() string {
	return fmt.Sprintf("%s = %s %s %s", i.Dst, i.Op, i.X, i.Y)
}

func (i Load) String() string {
	return fmt.Sprintf("%s = load.%d [%s%+d]", i.Dst, i.Width, i.Base, i.Off)
}

func (i Store) String() string {
	return fmt.Sprintf("store.%d [%s%+d] = %s", i.Width, i.Base, i.Off, i.Src)
}

func (i Call) String() string {
	return "call " + i.Callee
}

func (i MemCpy) String() string {
	return fmt.Sprintf("memcpy %s <- %s, %s", i.Dst, i.Src, i.Len)
}

func (i MemCmp) String() string {
	return fmt.Sprintf("r0 = memcmp %s, %s, %s", i.X, i.Y, i.Len)
}

func (i MemSet) String() string {
	return fmt.Sprintf("memset %s, %s, %s", i.Dst, i.Val, i.Len)
}

func (i Assume) String() string {
	return "assume " + i.Cond.String()
}

func (i Assert) String() string {
	return "assert " + i.Cond.String()
}

type (
	// Terminator is implemented by the instructions ending a basic block.
	Terminator interface {
		fmt.Stringer
		// Succs returns the successor block identifiers.
		Succs() []BlockID
		term()
	}

	// If branches on Cond.
	If struct {
		Cond Cond
		Then BlockID
		Else BlockID
	}

	// Jump transfers control unconditionally.
	Jump struct {
		To BlockID
	}

	// Exit leaves the function. After normalization every function has
	// exactly one block terminated by Exit.
	Exit struct{}
)

func (If) term()   {}
func (Jump) term() {}
func (Exit) term() {}

func (t If) Succs() []BlockID {
	return []BlockID{t.Then, t.Else}
}

func (t Jump) Succs() []BlockID {
	return []BlockID{t.To}
}

func (Exit) Succs() []BlockID {
	return nil
}

func (t If) String() string {
	return fmt.Sprintf("if %s goto b%d else b%d", t.Cond, t.Then, t.Else)
}

func (t Jump) String() string {
	return "goto b" + strconv.Itoa(int(t.To))
}

func (Exit) String() string {
	return "exit"
}
