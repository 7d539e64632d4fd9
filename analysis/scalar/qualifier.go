package scalar

import (
	"fmt"

	"github.com/verikit/memsplit/analysis/ir"
	"github.com/verikit/memsplit/utils"
)

// Qualifier is a relational fact attached to an abstract value.
// The variant set is closed: every domain operation (join, kill,
// propagation) switches exhaustively over it, keeping the
// soundness-critical operators total.
type Qualifier interface {
	fmt.Stringer
	utils.Hashable
	// Equal checks structural equality of qualifiers.
	Equal(Qualifier) bool
	// Mentions checks whether the qualifier refers to the register.
	// Used to kill stale qualifiers when a register is overwritten.
	Mentions(ir.Reg) bool
	qualifier()
}

type (
	// EqWitness states that the value is definitely equal to the
	// current value of Var.
	EqWitness struct {
		Var ir.Reg
	}

	// TagOf states that the value is the tag (discriminant) of Var,
	// extracted with the given mask or modulus.
	TagOf struct {
		Var  ir.Reg
		Mask uint64
	}

	// PathCond states that the value's interval was refined under the
	// given path condition.
	PathCond struct {
		Cond ir.Cond
	}

	// Conj is the conjunction of two qualifiers.
	Conj struct {
		A, B Qualifier
	}
)

func (EqWitness) qualifier() {}
func (TagOf) qualifier()     {}
func (PathCond) qualifier()  {}
func (Conj) qualifier()      {}

func (q EqWitness) String() string {
	return "= " + q.Var.String()
}

func (q TagOf) String() string {
	return fmt.Sprintf("tag(%s, %#x)", q.Var, q.Mask)
}

func (q PathCond) String() string {
	return "under " + q.Cond.String()
}

func (q Conj) String() string {
	return q.A.String() + " ∧ " + q.B.String()
}

func (q EqWitness) Hash() uint32 {
	return utils.HashCombine(1, uint32(q.Var))
}

func (q TagOf) Hash() uint32 {
	return utils.HashCombine(2, uint32(q.Var), uint32(q.Mask), uint32(q.Mask>>32))
}

func (q PathCond) Hash() uint32 {
	return utils.HashCombine(3, uint32(q.Cond.X), uint32(q.Cond.Op), operandHash(q.Cond.Y))
}

func (q Conj) Hash() uint32 {
	return utils.HashCombine(4, q.A.Hash(), q.B.Hash())
}

func operandHash(op ir.Operand) uint32 {
	switch op := op.(type) {
	case ir.Reg:
		return utils.HashCombine(5, uint32(op))
	case ir.Imm:
		v := uint64(op)
		return utils.HashCombine(6, uint32(v), uint32(v>>32))
	}
	panic(fmt.Sprintf("invalid pattern match: %v %T", op, op))
}

func (q1 EqWitness) Equal(q2 Qualifier) bool {
	o, ok := q2.(EqWitness)
	return ok && q1 == o
}

func (q1 TagOf) Equal(q2 Qualifier) bool {
	o, ok := q2.(TagOf)
	return ok && q1 == o
}

func (q1 PathCond) Equal(q2 Qualifier) bool {
	o, ok := q2.(PathCond)
	return ok && q1 == o
}

func (q1 Conj) Equal(q2 Qualifier) bool {
	o, ok := q2.(Conj)
	return ok && q1.A.Equal(o.A) && q1.B.Equal(o.B)
}

func (q EqWitness) Mentions(r ir.Reg) bool {
	return q.Var == r
}

func (q TagOf) Mentions(r ir.Reg) bool {
	return q.Var == r
}

func (q PathCond) Mentions(r ir.Reg) bool {
	if q.Cond.X == r {
		return true
	}
	y, ok := q.Cond.Y.(ir.Reg)
	return ok && y == r
}

func (q Conj) Mentions(r ir.Reg) bool {
	return q.A.Mentions(r) || q.B.Mentions(r)
}
