package fixpoint

import (
	"testing"

	"github.com/verikit/memsplit/analysis/ir"
	L "github.com/verikit/memsplit/analysis/lattice"
	"github.com/verikit/memsplit/analysis/scalar"
)

type scalarDomain struct{}

func (scalarDomain) Entry() scalar.State           { return scalar.Initial() }
func (scalarDomain) Join(a, b scalar.State) scalar.State  { return a.MonoJoin(b) }
func (scalarDomain) Widen(a, b scalar.State) scalar.State { return a.Widen(b) }
func (scalarDomain) Leq(a, b scalar.State) bool    { return a.Leq(b) }

type scalarTransfer struct {
	ip scalar.Interp
}

func (t scalarTransfer) Instr(s scalar.State, _ ir.InstrRef, ins ir.Instruction) (scalar.State, error) {
	return t.ip.Step(s, ins), nil
}

func (t scalarTransfer) Branch(s scalar.State, cond ir.Cond, taken bool) scalar.State {
	return t.ip.StepBranch(s, cond, taken)
}

// loopFn builds `r1 = 0; while (r1 < 10) r1 = r1 + 1`.
func loopFn() *ir.Function {
	fn := ir.NewFunction("loop", 0)
	entry := fn.Blocks[fn.Entry]
	head := fn.NewBlock()
	body := fn.NewBlock()
	exit := fn.NewBlock()

	entry.Instrs = []ir.Instruction{ir.Assign{Dst: ir.R1, Src: ir.Imm(0)}}
	entry.Term = ir.Jump{To: head.ID}
	head.Term = ir.If{
		Cond: ir.Cond{X: ir.R1, Op: ir.LT, Y: ir.Imm(10)},
		Then: body.ID,
		Else: exit.ID,
	}
	body.Instrs = []ir.Instruction{ir.Bin{Op: ir.ADD, Dst: ir.R1, X: ir.R1, Y: ir.Imm(1)}}
	body.Term = ir.Jump{To: head.ID}
	exit.Term = ir.Exit{}
	return fn
}

func TestLoopStabilizesWithWidening(t *testing.T) {
	fn := loopFn()
	res, err := Run[scalar.State](fn, scalarDomain{}, scalarTransfer{scalar.NewInterp(nil)}, Config{})
	if err != nil {
		t.Fatal(err)
	}

	// The exit path carries the negated loop condition.
	want := L.Elements().Interval(L.FiniteBound(10), L.PlusInfinity{})
	if iv := res.Exit.Get(ir.R1).Interval(); !iv.Eq(want) {
		t.Errorf("r1 at exit ∈ %s, expected %s", iv, want)
	}
	if res.Iterations > 4*len(fn.Blocks)*DefaultWideningThreshold {
		t.Errorf("fixpoint took %d iterations, expected bounded by widening", res.Iterations)
	}
}

func TestBranchRefinesBothSides(t *testing.T) {
	fn := ir.NewFunction("branch", 0)
	entry := fn.Blocks[fn.Entry]
	then := fn.NewBlock()
	els := fn.NewBlock()
	exit := fn.NewBlock()

	entry.Term = ir.If{
		Cond: ir.Cond{X: ir.R1, Op: ir.LE, Y: ir.Imm(5)},
		Then: then.ID,
		Else: els.ID,
	}
	then.Term = ir.Jump{To: exit.ID}
	els.Term = ir.Jump{To: exit.ID}
	exit.Term = ir.Exit{}

	res, err := Run[scalar.State](fn, scalarDomain{}, scalarTransfer{scalar.NewInterp(nil)}, Config{})
	if err != nil {
		t.Fatal(err)
	}

	if iv := res.In[then.ID].Get(ir.R1).Interval(); !iv.Eq(L.Elements().IntervalFinite(0, 5)) {
		t.Errorf("taken side: r1 ∈ %s, expected [0, 5]", iv)
	}
	wantElse := L.Elements().Interval(L.FiniteBound(6), L.PlusInfinity{})
	if iv := res.In[els.ID].Get(ir.R1).Interval(); !iv.Eq(wantElse) {
		t.Errorf("fallthrough side: r1 ∈ %s, expected %s", iv, wantElse)
	}
	// Joining both sides loses the branch constraint again.
	wantMerged := L.Elements().Interval(L.FiniteBound(0), L.PlusInfinity{})
	if iv := res.In[exit.ID].Get(ir.R1).Interval(); !iv.Eq(wantMerged) {
		t.Errorf("merged: r1 ∈ %s, expected %s", iv, wantMerged)
	}
}

func TestUnreachableBlocksAreSkipped(t *testing.T) {
	fn := ir.NewFunction("dead", 0)
	dead := fn.NewBlock()
	dead.Term = ir.Jump{To: fn.Entry}

	res, err := Run[scalar.State](fn, scalarDomain{}, scalarTransfer{scalar.NewInterp(nil)}, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, reached := res.In[dead.ID]; reached {
		t.Error("unreachable block received an in-state")
	}
}
