package inline

import (
	"testing"

	"github.com/verikit/memsplit/analysis/callgraph"
	"github.com/verikit/memsplit/analysis/ir"
)

// leafFn builds a function that stores a constant into its own frame.
func leafFn(name string, frame int64) *ir.Function {
	fn := ir.NewFunction(name, frame)
	entry := fn.Blocks[fn.Entry]
	entry.Instrs = []ir.Instruction{
		ir.Store{Base: ir.FP, Off: -8, Width: 8, Src: ir.Imm(1)},
	}
	return fn
}

// callerFn builds a function whose entry calls each callee in order.
func callerFn(name string, frame int64, callees ...string) *ir.Function {
	fn := ir.NewFunction(name, frame)
	entry := fn.Blocks[fn.Entry]
	for _, c := range callees {
		entry.Instrs = append(entry.Instrs, ir.Call{Callee: c})
	}
	return fn
}

func instructions(fn *ir.Function) []ir.Instruction {
	var res []ir.Instruction
	for _, id := range fn.BlockIDs() {
		res = append(res, fn.Blocks[id].Instrs...)
	}
	return res
}

func callCount(fn *ir.Function) int {
	n := 0
	for _, ins := range instructions(fn) {
		if _, ok := ins.(ir.Call); ok {
			n++
		}
	}
	return n
}

func TestInlineShiftsCalleeFrame(t *testing.T) {
	prog := &ir.Program{Funcs: map[string]*ir.Function{}, Roots: []string{"caller"}}
	prog.Funcs["leaf"] = leafFn("leaf", 16)
	prog.Funcs["caller"] = callerFn("caller", 32, "leaf")

	stats, err := Run(prog, callgraph.Build(prog))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Sites != 1 {
		t.Errorf("inlined %d sites, expected 1", stats.Sites)
	}

	caller := prog.Func("caller")
	if caller.FrameSize != 48 {
		t.Errorf("caller frame = %d, expected 48", caller.FrameSize)
	}
	if callCount(caller) != 0 {
		t.Error("call site survived inlining")
	}
	var stores []ir.Store
	for _, ins := range instructions(caller) {
		if st, ok := ins.(ir.Store); ok {
			stores = append(stores, st)
		}
	}
	if len(stores) != 1 || stores[0].Off != -40 {
		t.Errorf("inlined stores = %v, expected one at fp-40", stores)
	}
	if err := caller.CheckStructure(); err != nil {
		t.Errorf("inlined caller is malformed: %v", err)
	}
}

func TestInlineFlattensTransitively(t *testing.T) {
	prog := &ir.Program{Funcs: map[string]*ir.Function{}, Roots: []string{"a"}}
	prog.Funcs["c"] = leafFn("c", 8)
	prog.Funcs["b"] = callerFn("b", 8, "c")
	prog.Funcs["a"] = callerFn("a", 8, "b")

	if _, err := Run(prog, callgraph.Build(prog)); err != nil {
		t.Fatal(err)
	}

	a := prog.Func("a")
	if callCount(a) != 0 {
		t.Error("calls survived transitive inlining")
	}
	// c's frame ends up below both b's and a's.
	if a.FrameSize != 24 {
		t.Errorf("frame = %d, expected 24", a.FrameSize)
	}
	var off int64
	for _, ins := range instructions(a) {
		if st, ok := ins.(ir.Store); ok {
			off = st.Off
		}
	}
	if off != -24 {
		t.Errorf("store lands at fp%+d, expected fp-24", off)
	}
}

func TestRecursiveCallsStay(t *testing.T) {
	prog := &ir.Program{Funcs: map[string]*ir.Function{}, Roots: []string{"g"}}
	prog.Funcs["f"] = callerFn("f", 8, "f")
	prog.Funcs["g"] = callerFn("g", 8, "f")

	stats, err := Run(prog, callgraph.Build(prog))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Sites != 0 {
		t.Errorf("inlined %d sites into a recursive cycle, expected 0", stats.Sites)
	}
	if callCount(prog.Func("g")) != 1 {
		t.Error("call to a recursive function must stay in place")
	}
}

func TestExternalCallsStay(t *testing.T) {
	prog := &ir.Program{Funcs: map[string]*ir.Function{}, Roots: []string{"f"}}
	prog.Funcs["f"] = callerFn("f", 8, "ext_syscall")

	if _, err := Run(prog, callgraph.Build(prog)); err != nil {
		t.Fatal(err)
	}
	if callCount(prog.Func("f")) != 1 {
		t.Error("bodyless call must stay in place")
	}
}

func TestFramePointerEscapeBlocksInlining(t *testing.T) {
	esc := ir.NewFunction("esc", 16)
	esc.Blocks[esc.Entry].Instrs = []ir.Instruction{
		ir.Assign{Dst: ir.R1, Src: ir.FP},
	}
	prog := &ir.Program{Funcs: map[string]*ir.Function{}, Roots: []string{"f"}}
	prog.Funcs["esc"] = esc
	prog.Funcs["f"] = callerFn("f", 8, "esc")

	stats, err := Run(prog, callgraph.Build(prog))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped == 0 || callCount(prog.Func("f")) != 1 {
		t.Error("a callee leaking its frame pointer must not be inlined")
	}
}
