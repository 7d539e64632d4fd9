// Package scalar implements the non-relational-with-qualifiers scalar
// abstract domain. Each register is tracked as an interval plus a set
// of relational qualifiers; relational reasoning beyond what value
// numbering and explicit qualifiers capture is out of scope.
package scalar

import (
	"github.com/verikit/memsplit/analysis/ir"
	L "github.com/verikit/memsplit/analysis/lattice"
	"github.com/verikit/memsplit/analysis/solver"
)

// ValueNumbering is the host-supplied global value numbering oracle.
// Branch refinement uses it to propagate a condition on one register
// to every register known equal to it.
type ValueNumbering interface {
	// Congruent checks whether two registers are known to hold the
	// same value at every program point where both are live.
	Congruent(x, y ir.Reg) bool
}

// TrivialVN is the value numbering that knows nothing.
type TrivialVN struct{}

// Congruent only relates a register to itself.
func (TrivialVN) Congruent(x, y ir.Reg) bool {
	return x == y
}

// Interp holds the interpretation context of the scalar domain for one
// function.
type Interp struct {
	// TagMasks is the set of masks/moduli recognized as tag
	// (discriminant) extractions.
	TagMasks map[uint64]bool
	// VN is the value numbering oracle.
	VN ValueNumbering
}

// NewInterp creates an interpretation context with the default
// (trivial) value numbering.
func NewInterp(tagMasks map[uint64]bool) Interp {
	return Interp{TagMasks: tagMasks, VN: TrivialVN{}}
}

// Eval computes the abstract value of an operand.
func (ip Interp) Eval(st State, op ir.Operand) Value {
	switch op := op.(type) {
	case ir.Imm:
		return Const(int64(op))
	case ir.Reg:
		return st.Get(op)
	}
	panic("scalar: invalid operand")
}

// Step is the transfer function for a single non-terminator
// instruction.
func (ip Interp) Step(st State, ins ir.Instruction) State {
	if st.IsBot() {
		return st
	}

	switch ins := ins.(type) {
	case ir.Assign:
		v := ip.Eval(st, ins.Src)
		if src, ok := ins.Src.(ir.Reg); ok && src != ins.Dst {
			// Copy propagation: the destination keeps the source's
			// qualifiers and additionally witnesses the equality.
			v = v.WithQualifier(EqWitness{Var: src})
		}
		return st.Set(ins.Dst, v)

	case ir.Bin:
		return st.Set(ins.Dst, ip.evalBin(st, ins))

	case ir.Load:
		// Loads are resolved by the memory domain; scalar-wise the
		// destination becomes unconstrained.
		return st.Set(ins.Dst, Nondet())

	case ir.Call:
		// The register convention makes R0-R5 caller-clobbered.
		for r := ir.R0; r <= ir.R5; r++ {
			st = st.Set(r, Nondet())
		}
		return st

	case ir.MemCmp:
		return st.Set(ir.R0, Nondet())

	case ir.Assume:
		return ip.Refine(st, ins.Cond)

	case ir.Assert:
		// Asserts are discharged downstream; the analysis may still
		// assume them on the fallthrough path.
		return ip.Refine(st, ins.Cond)

	case ir.Store, ir.MemCpy, ir.MemSet:
		return st
	}
	panic("scalar: unhandled instruction")
}

// evalBin is the numeric transfer for binary operations, with
// pattern-specific qualifier synthesis for tag extractions.
func (ip Interp) evalBin(st State, ins ir.Bin) Value {
	x := st.Get(ins.X)
	y := ip.Eval(st, ins.Y)

	switch ins.Op {
	case ir.ADD:
		return FromInterval(x.Interval().Plus(y.Interval()))
	case ir.SUB:
		return FromInterval(x.Interval().Minus(y.Interval()))

	case ir.AND:
		if mask, ok := constOf(ins.Y); ok && mask >= 0 {
			v := FromInterval(L.Elements().IntervalFinite(0, mask))
			if ip.TagMasks[uint64(mask)] && ins.X != ins.Dst {
				// x AND MASK with a known discriminant mask: the
				// result is the tag of x, enabling later case splits.
				v = v.WithQualifier(TagOf{Var: ins.X, Mask: uint64(mask)})
			}
			return v
		}
		return Nondet()

	case ir.MOD:
		if m, ok := constOf(ins.Y); ok && m > 0 {
			v := FromInterval(L.Elements().IntervalFinite(0, m-1))
			if ip.TagMasks[uint64(m)] && ins.X != ins.Dst {
				v = v.WithQualifier(TagOf{Var: ins.X, Mask: uint64(m)})
			}
			return v
		}
		return Nondet()
	}
	return Nondet()
}

func constOf(op ir.Operand) (int64, bool) {
	if imm, ok := op.(ir.Imm); ok {
		return int64(imm), true
	}
	return 0, false
}

// Refine narrows the state under a branch/assume condition. The
// condition on Cond.X is propagated to every register congruent to it
// under the value numbering oracle or an equality witness. Returns ⊥
// when the condition is infeasible.
func (ip Interp) Refine(st State, cond ir.Cond) State {
	if st.IsBot() {
		return st
	}

	k, ok := condConstant(st, cond)
	if !ok {
		return st
	}

	// Collect the registers the constraint applies to.
	targets := []ir.Reg{cond.X}
	for r := ir.R0; r < ir.NumRegs; r++ {
		if r == cond.X {
			continue
		}
		if ip.VN.Congruent(r, cond.X) ||
			st.Get(r).HasQualifier(EqWitness{Var: cond.X}) ||
			st.Get(cond.X).HasQualifier(EqWitness{Var: r}) {
			targets = append(targets, r)
		}
	}

	var cs []solver.Constraint[ir.Reg]
	for _, r := range targets {
		cs = append(cs, solver.Constraint[ir.Reg]{Var: r, Op: cond.Op, K: k})
	}
	sol, sat := solver.NewIntervalSolver(cs...).Solve()
	if !sat {
		return Bot()
	}

	for _, r := range targets {
		v := st.Get(r)
		refined := v.Interval().MonoMeet(sol[r])
		if refined.IsBot() {
			return Bot()
		}
		if !refined.Eq(v.Interval()) {
			st = setPreservingOthers(st, r, v.WithInterval(refined).WithQualifier(PathCond{Cond: cond}))
		}
	}
	return st
}

// setPreservingOthers updates a register's value without killing
// qualifiers that mention it; refinement does not change the
// register's concrete value.
func setPreservingOthers(st State, r ir.Reg, v Value) State {
	res := Initial()
	iter := st.values.Iterator()
	for !iter.Done() {
		reg, val, _ := iter.Next()
		if reg != r {
			res.values = res.values.Set(reg, val)
		}
	}
	res.values = res.values.Set(r, v)
	return res
}

// condConstant extracts the constant side of a condition, either an
// immediate or a register currently pinned to a single value.
func condConstant(st State, cond ir.Cond) (int64, bool) {
	switch y := cond.Y.(type) {
	case ir.Imm:
		return int64(y), true
	case ir.Reg:
		if iv := st.Get(y).Interval(); iv.IsConst() {
			return iv.Const(), true
		}
	}
	return 0, false
}

// StepBranch is the transfer function for a conditional branch edge.
func (ip Interp) StepBranch(st State, cond ir.Cond, taken bool) State {
	if !taken {
		cond.Op = cond.Op.Negate()
	}
	return ip.Refine(st, cond)
}
