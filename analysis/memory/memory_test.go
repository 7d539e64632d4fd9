package memory

import (
	"testing"

	"github.com/verikit/memsplit/analysis/ir"
	L "github.com/verikit/memsplit/analysis/lattice"
	"github.com/verikit/memsplit/analysis/scalar"
	"github.com/verikit/memsplit/analysis/summaries"
)

func allocTable(t *testing.T) *summaries.Table {
	t.Helper()
	tbl, err := summaries.NewTable([]summaries.Summary{{Name: "alloc", Alloc: true}})
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

// run steps the transfer over the instructions, failing the test on
// the first translation error.
func run(t *testing.T, tr *Transfer, st State, sc scalar.State, instrs ...ir.Instruction) State {
	t.Helper()
	for i, ins := range instrs {
		var err error
		st, err = tr.Step(st, sc, ir.InstrRef{Block: 0, Index: i}, ins)
		if err != nil {
			t.Fatalf("instruction %d (%s): %v", i, ins, err)
		}
	}
	return st
}

func TestOverlappingStoresFail(t *testing.T) {
	fn := ir.NewFunction("f", 32)
	tr := NewTransfer(fn, nil, false)
	sc := scalar.Initial()

	st := run(t, tr, Initial(), sc,
		ir.Store{Base: ir.FP, Off: -16, Width: 8, Src: ir.Imm(1)})

	// The second store straddles the first field.
	_, err := tr.Step(st, sc, ir.InstrRef{Block: 0, Index: 1},
		ir.Store{Base: ir.FP, Off: -12, Width: 8, Src: ir.Imm(2)})
	te, ok := AsTranslation(err)
	if !ok {
		t.Fatalf("expected a translation error, got %v", err)
	}
	if te.Kind != ErrOverlappingFields {
		t.Errorf("error kind = %s, expected %s", te.Kind, ErrOverlappingFields)
	}
}

func TestContainedStoreKillsNarrowFields(t *testing.T) {
	fn := ir.NewFunction("f", 32)
	tr := NewTransfer(fn, nil, false)
	sc := scalar.Initial()

	run(t, tr, Initial(), sc,
		ir.Store{Base: ir.FP, Off: -16, Width: 4, Src: ir.Imm(1)},
		ir.Store{Base: ir.FP, Off: -12, Width: 4, Src: ir.Imm(2)},
		ir.Store{Base: ir.FP, Off: -16, Width: 8, Src: ir.Imm(3)})

	acc, ok := tr.Log[ir.InstrRef{Block: 0, Index: 2}]
	if !ok {
		t.Fatal("no access recorded for the covering store")
	}
	if len(acc.Killed) != 2 {
		t.Fatalf("killed = %v, expected both narrow fields", acc.Killed)
	}
}

func TestSummarizedUnknownOffsetWrite(t *testing.T) {
	// r2 = r1 + nondet blurs the cell and summarizes the object; a
	// store through it has no precise encoding.
	prog := []ir.Instruction{
		ir.Load{Dst: ir.R4, Base: ir.R1, Off: 0, Width: 8},
		ir.Bin{Op: ir.ADD, Dst: ir.R2, X: ir.R1, Y: ir.R3},
		ir.Store{Base: ir.R2, Off: 0, Width: 8, Src: ir.Imm(1)},
		ir.Load{Dst: ir.R4, Base: ir.R1, Off: 8, Width: 8},
	}
	sc := scalar.Initial()

	fn := ir.NewFunction("f", 0)
	tr := NewTransfer(fn, nil, false)
	st := run(t, tr, Initial(), sc, prog[:2]...)
	_, err := tr.Step(st, sc, ir.InstrRef{Block: 0, Index: 2}, prog[2])
	te, ok := AsTranslation(err)
	if !ok || te.Kind != ErrSummarizedOverlap {
		t.Fatalf("expected a summarized-overlap error, got %v", err)
	}

	// The optimistic relaxation degrades to an opaque byte map.
	opt := NewTransfer(fn, nil, true)
	run(t, opt, Initial(), sc, prog...)
	acc := opt.Log[ir.InstrRef{Block: 0, Index: 2}]
	if !acc.Opaque {
		t.Error("optimistic unknown-offset store must be marked opaque")
	}
	if !opt.Arena.IsSummarized(acc.Dst.Node) {
		t.Error("the written object must be summarized")
	}
}

func TestPointerArithmeticShiftsOffsets(t *testing.T) {
	fn := ir.NewFunction("f", 0)
	tr := NewTransfer(fn, nil, false)

	st := run(t, tr, Initial(), scalar.Initial(),
		ir.Bin{Op: ir.ADD, Dst: ir.R2, X: ir.R1, Y: ir.Imm(8)},
		ir.Store{Base: ir.R2, Off: 4, Width: 4, Src: ir.Imm(0)})

	c, ok := st.Pointer(ir.R2)
	if !ok {
		t.Fatal("r2 lost its pointer binding")
	}
	if !c.Offs.Eq(L.Elements().OffsetSet(8)) {
		t.Errorf("r2 offsets = %s, expected {8}", c.Offs)
	}
	fields := tr.Arena.Fields(c.Node)
	if len(fields) != 1 || fields[0] != (Field{Off: 12, Width: 4}) {
		t.Errorf("fields = %v, expected a single 4-byte field at 12", fields)
	}
}

func TestBoundedAdditionFansOut(t *testing.T) {
	fn := ir.NewFunction("f", 0)
	tr := NewTransfer(fn, nil, false)
	sc := scalar.Initial().Set(ir.R3, scalar.FromInterval(L.Elements().IntervalFinite(0, 2)))

	st := run(t, tr, Initial(), sc,
		ir.Bin{Op: ir.ADD, Dst: ir.R2, X: ir.R1, Y: ir.R3})

	c, _ := st.Pointer(ir.R2)
	if !c.Offs.Eq(L.Elements().OffsetSet(0, 1, 2)) {
		t.Errorf("r2 offsets = %s, expected {0, 1, 2}", c.Offs)
	}
}

func TestSpillAndReload(t *testing.T) {
	fn := ir.NewFunction("f", 32)
	tr := NewTransfer(fn, allocTable(t), false)
	sc := scalar.Initial().Set(ir.R1, scalar.Const(16))

	st := run(t, tr, Initial(), sc,
		ir.Call{Callee: "alloc"},
		ir.Assign{Dst: ir.R6, Src: ir.R0},
		ir.Store{Base: ir.FP, Off: -8, Width: 8, Src: ir.R6},
		ir.Assign{Dst: ir.R6, Src: ir.Imm(0)},
		ir.Load{Dst: ir.R6, Base: ir.FP, Off: -8, Width: 8})

	c, ok := st.Pointer(ir.R6)
	if !ok {
		t.Fatal("reload did not restore the spilled pointer")
	}
	if c.IsStack() {
		t.Errorf("r6 points to %s, expected the allocated object", c)
	}
}

func TestNestedAllocationFails(t *testing.T) {
	fn := ir.NewFunction("f", 0)
	tr := NewTransfer(fn, allocTable(t), false)
	// R1 unknown: the allocation stays open.
	sc := scalar.Initial()

	st := run(t, tr, Initial(), sc, ir.Call{Callee: "alloc"})
	_, err := tr.Step(st, sc, ir.InstrRef{Block: 0, Index: 1}, ir.Call{Callee: "alloc"})
	te, ok := AsTranslation(err)
	if !ok || te.Kind != ErrNestedAllocation {
		t.Fatalf("expected a nested-allocation error, got %v", err)
	}
}

func TestJoinMergesDistinctObjects(t *testing.T) {
	fn := ir.NewFunction("f", 0)
	tr := NewTransfer(fn, allocTable(t), false)
	sc := scalar.Initial().Set(ir.R1, scalar.Const(16))

	s1 := run(t, tr, Initial(), sc, ir.Call{Callee: "alloc"})
	s2 := run(t, tr, Initial(), sc, ir.Call{Callee: "alloc"})

	joined := s1.MonoJoin(s2, tr.Arena)
	c, ok := joined.Pointer(ir.R0)
	if !ok {
		t.Fatal("join dropped the common pointer binding")
	}
	if !tr.Arena.IsSummarized(c.Node) {
		t.Error("joining two allocation sites must summarize the object")
	}
}

func TestWidenBlursGrowingOffsets(t *testing.T) {
	a := NewArena()
	n := a.ParamNode(1)

	s1 := Initial().SetPointer(ir.R1, Cell{Node: n, Offs: L.Elements().OffsetSet(0)})
	s2 := Initial().SetPointer(ir.R1, Cell{Node: n, Offs: L.Elements().OffsetSet(0, 8)})

	widened := s1.Widen(s2, a)
	c, _ := widened.Pointer(ir.R1)
	if !c.Offs.IsTop() {
		t.Errorf("widened offsets = %s, expected ⊤", c.Offs)
	}
	// Widening again is a fixpoint.
	again := widened.Widen(s2, a)
	if !again.Eq(widened, a) {
		t.Error("widening did not stabilize")
	}
}

func TestMemCpyUnknownLengthOnFrameFails(t *testing.T) {
	fn := ir.NewFunction("f", 64)
	tr := NewTransfer(fn, nil, false)
	sc := scalar.Initial()

	st := run(t, tr, Initial(), sc,
		ir.Bin{Op: ir.ADD, Dst: ir.R1, X: ir.FP, Y: ir.Imm(-32)})
	_, err := tr.Step(st, sc, ir.InstrRef{Block: 0, Index: 1},
		ir.MemCpy{Dst: ir.R1, Src: ir.R2, Len: ir.R3})
	te, ok := AsTranslation(err)
	if !ok || te.Kind != ErrUnknownLength {
		t.Fatalf("expected an unknown-length error, got %v", err)
	}
}

func TestMemCpyCarriesSpilledPointers(t *testing.T) {
	fn := ir.NewFunction("f", 64)
	tr := NewTransfer(fn, allocTable(t), false)
	sc := scalar.Initial().Set(ir.R1, scalar.Const(16))

	st := run(t, tr, Initial(), sc,
		ir.Call{Callee: "alloc"},
		ir.Store{Base: ir.FP, Off: -32, Width: 8, Src: ir.R0},
		ir.Bin{Op: ir.ADD, Dst: ir.R6, X: ir.FP, Y: ir.Imm(-16)},
		ir.Bin{Op: ir.ADD, Dst: ir.R7, X: ir.FP, Y: ir.Imm(-32)},
		ir.MemCpy{Dst: ir.R6, Src: ir.R7, Len: ir.Imm(8)},
		ir.Load{Dst: ir.R8, Base: ir.FP, Off: -16, Width: 8})

	c, ok := st.Pointer(ir.R8)
	if !ok {
		t.Fatal("copied spill slot lost its pointer")
	}
	if c.IsStack() {
		t.Errorf("r8 points to %s, expected the allocated object", c)
	}
}

func TestSummaryEffectsRegisterFields(t *testing.T) {
	tbl, err := summaries.NewTable([]summaries.Summary{{
		Name: "ext_read_write",
		Effects: []summaries.Effect{
			{Reg: ir.R1, Off: 0, Width: 8, Kind: summaries.Write},
			{Reg: ir.R2, Off: 8, Width: 4, Kind: summaries.Read},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	fn := ir.NewFunction("f", 0)
	tr := NewTransfer(fn, tbl, false)

	st := run(t, tr, Initial(), scalar.Initial(), ir.Call{Callee: "ext_read_write"})

	// Effects bind lazily created parameter objects; the bindings
	// themselves are clobbered by the call.
	if _, bound := st.Pointer(ir.R1); bound {
		t.Error("caller-saved register kept its binding across the call")
	}
	var fields []Field
	for id := 0; id < tr.Arena.NumNodes(); id++ {
		fields = append(fields, tr.Arena.Fields(NodeID(id))...)
	}
	if len(fields) != 2 {
		t.Errorf("fields after summary application = %v, expected two", fields)
	}
}
