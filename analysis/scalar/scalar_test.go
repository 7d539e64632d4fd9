package scalar

import (
	"testing"

	"github.com/verikit/memsplit/analysis/ir"
	L "github.com/verikit/memsplit/analysis/lattice"
)

func TestAssignCopyPropagation(t *testing.T) {
	ip := NewInterp(nil)
	st := Initial()

	st = ip.Step(st, ir.Assign{Dst: ir.R1, Src: ir.Imm(42)})
	st = ip.Step(st, ir.Assign{Dst: ir.R2, Src: ir.R1})

	if iv := st.Get(ir.R2).Interval(); !iv.Eq(L.Elements().IntervalConst(42)) {
		t.Errorf("r2 ∈ %s, expected [42, 42]", iv)
	}
	if !st.Get(ir.R2).HasQualifier(EqWitness{Var: ir.R1}) {
		t.Error("r2 must witness equality with r1")
	}

	// Overwriting r1 must kill the witness in r2.
	st = ip.Step(st, ir.Assign{Dst: ir.R1, Src: ir.Imm(0)})
	if st.Get(ir.R2).HasQualifier(EqWitness{Var: ir.R1}) {
		t.Error("stale equality witness survived overwrite of r1")
	}
}

func TestTagSynthesis(t *testing.T) {
	ip := NewInterp(map[uint64]bool{0xff: true})
	st := Initial()

	st = ip.Step(st, ir.Bin{Op: ir.AND, Dst: ir.R2, X: ir.R1, Y: ir.Imm(0xff)})

	v := st.Get(ir.R2)
	if !v.Interval().Eq(L.Elements().IntervalFinite(0, 0xff)) {
		t.Errorf("r2 ∈ %s, expected [0, 255]", v.Interval())
	}
	if !v.HasQualifier(TagOf{Var: ir.R1, Mask: 0xff}) {
		t.Error("r2 must carry the tag-of qualifier")
	}

	// An unknown mask synthesizes no tag.
	st2 := ip.Step(Initial(), ir.Bin{Op: ir.AND, Dst: ir.R2, X: ir.R1, Y: ir.Imm(0x0f)})
	if st2.Get(ir.R2).HasQualifier(TagOf{Var: ir.R1, Mask: 0x0f}) {
		t.Error("tag-of synthesized for an unregistered mask")
	}
}

func TestRefinePropagatesOverEqualities(t *testing.T) {
	ip := NewInterp(nil)
	st := Initial()
	st = ip.Step(st, ir.Assign{Dst: ir.R2, Src: ir.R1})

	// r2 = r1; branching on r1 must also refine r2.
	st = ip.StepBranch(st, ir.Cond{X: ir.R1, Op: ir.LE, Y: ir.Imm(10)}, true)

	want := L.Elements().Interval(L.FiniteBound(0), L.FiniteBound(10))
	if iv := st.Get(ir.R2).Interval(); !iv.Eq(want) {
		t.Errorf("r2 ∈ %s, expected %s", iv, want)
	}
}

func TestRefineInfeasiblePathIsBot(t *testing.T) {
	ip := NewInterp(nil)
	st := Initial()
	st = ip.Step(st, ir.Assume{Cond: ir.Cond{X: ir.R1, Op: ir.EQ, Y: ir.Imm(3)}})
	st = ip.Step(st, ir.Assume{Cond: ir.Cond{X: ir.R1, Op: ir.NE, Y: ir.Imm(3)}})
	if !st.IsBot() {
		t.Errorf("contradictory assumes must yield ⊥, got %s", st)
	}
}

func TestJoinIntersectsQualifiers(t *testing.T) {
	ip := NewInterp(map[uint64]bool{0xff: true})

	s1 := ip.Step(Initial(), ir.Bin{Op: ir.AND, Dst: ir.R2, X: ir.R1, Y: ir.Imm(0xff)})
	s2 := ip.Step(Initial(), ir.Assign{Dst: ir.R2, Src: ir.Imm(7)})

	joined := s1.MonoJoin(s2)
	v := joined.Get(ir.R2)
	if v.HasQualifier(TagOf{Var: ir.R1, Mask: 0xff}) {
		t.Error("qualifier absent on one path must not survive the join")
	}
	if !v.Interval().Eq(L.Elements().IntervalFinite(0, 0xff)) {
		t.Errorf("r2 ∈ %s after join, expected [0, 255]", v.Interval())
	}
}

func TestWidenStabilizes(t *testing.T) {
	var st State = Initial()
	st = st.Set(ir.R1, FromInterval(L.Elements().IntervalFinite(0, 0)))

	grown := Initial().Set(ir.R1, FromInterval(L.Elements().IntervalFinite(0, 1)))
	widened := st.Widen(grown)

	want := L.Elements().Interval(L.FiniteBound(0), L.PlusInfinity{})
	if iv := widened.Get(ir.R1).Interval(); !iv.Eq(want) {
		t.Errorf("widened r1 ∈ %s, expected %s", iv, want)
	}
	// A second widening step must be a fixpoint.
	again := widened.Widen(grown)
	if !again.Eq(widened) {
		t.Error("widening did not stabilize")
	}
}

func TestFlatConstEvaluation(t *testing.T) {
	ip := NewInterp(nil)
	st := ip.Step(Initial(), ir.Assign{Dst: ir.R1, Src: ir.Imm(8)})

	if f := st.FlatConst(ir.R1); !f.Is(int64(8)) {
		t.Errorf("r1 = %s, expected the constant 8", f)
	}
	if f := st.FlatConst(ir.Imm(3)); !f.Is(int64(3)) {
		t.Errorf("immediate = %s, expected the constant 3", f)
	}
	if f := st.FlatConst(ir.R2); !f.IsTop() {
		t.Errorf("unconstrained r2 = %s, expected ⊤", f)
	}
	if f := st.Set(ir.R1, FromInterval(L.Elements().IntervalFinite(0, 8))).FlatConst(ir.R1); !f.IsTop() {
		t.Errorf("non-singleton r1 = %s, expected ⊤", f)
	}
	if f := Bot().FlatConst(ir.R1); !f.IsBot() {
		t.Errorf("infeasible state yielded %s, expected ⊥", f)
	}
}
