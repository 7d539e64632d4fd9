// Package memory implements the points-to abstraction: every
// dereferenced register resolves to a symbolic cell, an abstract
// object plus a bounded offset set. The frame is one distinguished
// flow-sensitive node; heap objects accumulate their field layout
// flow-insensitively over the whole function.
package memory

import (
	"github.com/verikit/memsplit/analysis/ir"
	L "github.com/verikit/memsplit/analysis/lattice"
	"github.com/verikit/memsplit/analysis/scalar"
	"github.com/verikit/memsplit/analysis/summaries"
)

// AccessKind classifies a resolved memory access.
type AccessKind int

const (
	AccLoad AccessKind = iota
	AccStore
	AccMemCpy
	AccMemCmp
	AccMemSet
)

var accessKindStrings = map[AccessKind]string{
	AccLoad:   "load",
	AccStore:  "store",
	AccMemCpy: "memcpy",
	AccMemCmp: "memcmp",
	AccMemSet: "memset",
}

func (k AccessKind) String() string {
	return accessKindStrings[k]
}

// Access is the resolved shape of one memory instruction: which cells
// it touches, how wide, and which previously tracked fields it
// invalidates. The lowering pass consumes these.
type Access struct {
	Kind AccessKind
	// Dst is the accessed region; for memcmp, the left operand.
	Dst Cell
	// Src is the source region of memcpy and the right operand of
	// memcmp.
	Src    Cell
	HasSrc bool
	// Width is the field width of a load/store.
	Width uint32
	// Len is the resolved byte length of an intrinsic; -1 when
	// statically unknown.
	Len int64
	// Opaque marks an access to a summarized region with unknown
	// offset, admitted under the optimistic-overlap relaxation. The
	// region must be treated as a byte map with unknown aliasing.
	Opaque bool
	// Killed lists exact-node fields whose tracked value this write
	// invalidates.
	Killed []Field
}

// DefaultMaxOffsets bounds how many distinct offsets a cell may track
// before it is blurred and its object summarized.
const DefaultMaxOffsets = 64

// Transfer is the memory transfer function for one function body. It
// owns the arena and an access log keyed by instruction position.
type Transfer struct {
	Fn    *ir.Function
	Arena *Arena
	// Summaries models the heap effects of external callees. May be
	// nil.
	Summaries *summaries.Table
	// Optimistic relaxes summarized-overlap errors into opaque
	// byte-map handling. Caller opt-in; trades soundness for coverage.
	Optimistic bool
	// MaxOffsets is the offset-set cardinality threshold. Tunable; see
	// DefaultMaxOffsets.
	MaxOffsets int
	// Log records the resolved access of every memory instruction.
	// Replaying a block overwrites its entries, so after the last
	// sweep the log reflects the final states.
	Log map[ir.InstrRef]Access
}

// NewTransfer creates a transfer context with a fresh arena.
func NewTransfer(fn *ir.Function, sums *summaries.Table, optimistic bool) *Transfer {
	return &Transfer{
		Fn:         fn,
		Arena:      NewArena(),
		Summaries:  sums,
		Optimistic: optimistic,
		MaxOffsets: DefaultMaxOffsets,
		Log:        map[ir.InstrRef]Access{},
	}
}

// resolve looks up the cell a base register points to. A register
// dereferenced without a known allocation is bound to a lazily created
// external object, modeling a pointer argument.
func (t *Transfer) resolve(st State, base ir.Reg) (Cell, State) {
	if c, ok := st.Pointer(base); ok {
		return Cell{Node: t.Arena.Find(c.Node), Offs: c.Offs}, st
	}
	c := Cell{Node: t.Arena.ParamNode(int(base)), Offs: L.Elements().OffsetSet(0)}
	return c, st.SetPointer(base, c)
}

// blur forgets a cell's offsets. Heap objects with unknown internal
// offsets lose layout reliability, so the object is summarized.
func (t *Transfer) blur(c Cell) Cell {
	if !c.IsStack() {
		t.Arena.Summarize(c.Node)
	}
	return c.Blur()
}

// Step is the transfer function for a single non-terminator
// instruction. The scalar state supplies constant offsets and lengths.
func (t *Transfer) Step(st State, sc scalar.State, ref ir.InstrRef, ins ir.Instruction) (State, error) {
	if st.IsBot() {
		return st, nil
	}

	switch ins := ins.(type) {
	case ir.Assign:
		if src, ok := ins.Src.(ir.Reg); ok {
			if c, bound := st.Pointer(src); bound {
				return st.SetPointer(ins.Dst, c), nil
			}
		}
		return st.ClearPointer(ins.Dst), nil

	case ir.Bin:
		return t.stepBin(st, sc, ins), nil

	case ir.Load:
		return t.stepLoad(st, sc, ref, ins)

	case ir.Store:
		return t.stepStore(st, sc, ref, ins)

	case ir.Call:
		return t.stepCall(st, sc, ref, ins)

	case ir.MemCpy:
		return t.stepMemCpy(st, sc, ref, ins)

	case ir.MemCmp:
		return t.stepMemCmp(st, sc, ref, ins)

	case ir.MemSet:
		return t.stepMemSet(st, sc, ref, ins)

	case ir.Assume, ir.Assert:
		return st, nil
	}
	panic("memory: unhandled instruction")
}

// stepBin tracks pointer arithmetic: adding or subtracting a bounded
// amount shifts the offset set, anything else loses the pointer.
func (t *Transfer) stepBin(st State, sc scalar.State, ins ir.Bin) State {
	base, bound := st.Pointer(ins.X)
	if !bound || (ins.Op != ir.ADD && ins.Op != ir.SUB) {
		return st.ClearPointer(ins.Dst)
	}

	lo, hi, ok := operandRange(sc, ins.Y)
	if !ok {
		return st.SetPointer(ins.Dst, t.blur(base))
	}
	if ins.Op == ir.SUB {
		lo, hi = -hi, -lo
	}
	if lo == hi {
		return st.SetPointer(ins.Dst, base.Shift(lo))
	}

	if base.Offs.IsTop() {
		return st.SetPointer(ins.Dst, base)
	}
	span := hi - lo + 1
	if span > int64(t.MaxOffsets) || base.Offs.Size()*int(span) > t.MaxOffsets {
		return st.SetPointer(ins.Dst, t.blur(base))
	}
	offs := L.Elements().OffsetSet()
	base.Offs.ForEach(func(o int64) {
		for d := lo; d <= hi; d++ {
			offs = offs.Add(o + d)
		}
	})
	return st.SetPointer(ins.Dst, Cell{Node: base.Node, Offs: offs})
}

func (t *Transfer) stepLoad(st State, sc scalar.State, ref ir.InstrRef, ins ir.Load) (State, error) {
	c, st := t.resolve(st, ins.Base)
	c = c.Shift(ins.Off)

	acc := Access{Kind: AccLoad, Dst: c, Width: ins.Width}
	if c.IsStack() {
		if c.Offs.IsTop() {
			return st, translationErr(ErrUnknownStackOffset, t.Fn.Name, ref,
				"load.%d through %s with unbounded frame offset", ins.Width, ins.Base)
		}
		if err := t.addFields(c, ins.Width, ref); err != nil {
			return st, err
		}
		t.Log[ref] = acc
		// A full-width reload of a spilled pointer restores the binding.
		if c.Offs.IsSingleton() && ins.Width == 8 {
			if spilled, ok := st.Slot(c.Offs.Offset()); ok {
				return st.SetPointer(ins.Dst, spilled), nil
			}
		}
		return st.ClearPointer(ins.Dst), nil
	}

	if c.Offs.IsTop() {
		t.Arena.Summarize(c.Node)
		if !t.Optimistic {
			return st, translationErr(ErrSummarizedOverlap, t.Fn.Name, ref,
				"load.%d at unknown offset into summarized n%d", ins.Width, c.Node)
		}
		acc.Opaque = true
		t.Log[ref] = acc
		return st.ClearPointer(ins.Dst), nil
	}
	if err := t.addFields(c, ins.Width, ref); err != nil {
		return st, err
	}
	t.Log[ref] = acc
	return st.ClearPointer(ins.Dst), nil
}

func (t *Transfer) stepStore(st State, sc scalar.State, ref ir.InstrRef, ins ir.Store) (State, error) {
	c, st := t.resolve(st, ins.Base)
	c = c.Shift(ins.Off)

	acc := Access{Kind: AccStore, Dst: c, Width: ins.Width}
	if c.IsStack() {
		if c.Offs.IsTop() {
			return st, translationErr(ErrUnknownStackOffset, t.Fn.Name, ref,
				"store.%d through %s with unbounded frame offset", ins.Width, ins.Base)
		}
		killed, err := t.killRange(c, int64(ins.Width), c.Offs.IsSingleton(), ref)
		if err != nil {
			return st, err
		}
		if err := t.addFields(c, ins.Width, ref); err != nil {
			return st, err
		}
		c.Offs.ForEach(func(o int64) {
			st = st.ClearSlotRange(o, int64(ins.Width))
		})
		// A full-width store of a pointer register is a spill.
		if src, isReg := ins.Src.(ir.Reg); isReg && c.Offs.IsSingleton() && ins.Width == 8 {
			if spilled, bound := st.Pointer(src); bound {
				st = st.SetSlot(c.Offs.Offset(), spilled)
			}
		}
		acc.Killed = killed
		t.Log[ref] = acc
		return st, nil
	}

	if c.Offs.IsTop() {
		t.Arena.Summarize(c.Node)
		if !t.Optimistic {
			return st, translationErr(ErrSummarizedOverlap, t.Fn.Name, ref,
				"store.%d at unknown offset into summarized n%d", ins.Width, c.Node)
		}
		acc.Opaque = true
		t.Log[ref] = acc
		return st, nil
	}
	killed, err := t.killRange(c, int64(ins.Width), c.Offs.IsSingleton(), ref)
	if err != nil {
		return st, err
	}
	if err := t.addFields(c, ins.Width, ref); err != nil {
		return st, err
	}
	acc.Killed = killed
	t.Log[ref] = acc
	return st, nil
}

// addFields registers a Width-byte field at every offset the cell may
// denote.
func (t *Transfer) addFields(c Cell, width uint32, ref ir.InstrRef) error {
	var conflict *Field
	c.Offs.ForEach(func(o int64) {
		if f, ok := t.Arena.AddField(c.Node, o, width); !ok && conflict == nil {
			conflict = &f
		}
	})
	if conflict != nil {
		return translationErr(ErrOverlappingFields, t.Fn.Name, ref,
			"field %s straddles an existing field of n%d", conflict, c.Node)
	}
	return nil
}

// killRange computes the fields a write of length bytes at the cell
// invalidates. A strong (singleton-offset) update of an identical
// field overwrites rather than havocs it. Partial overlap with an
// existing field has no sound encoding.
func (t *Transfer) killRange(c Cell, length int64, strong bool, ref ir.InstrRef) ([]Field, error) {
	if t.Arena.IsSummarized(c.Node) {
		// Layout unreliable; the overlap query is only meaningful on
		// exact nodes.
		return nil, nil
	}
	seen := map[Field]bool{}
	var killed []Field
	var failAt *int64
	c.Offs.ForEach(func(o int64) {
		if failAt != nil {
			return
		}
		fs, ok := t.Arena.KilledFields(c.Node, o, length)
		if !ok {
			off := o
			failAt = &off
			return
		}
		for _, f := range fs {
			if strong && f.Off == o && int64(f.Width) == length {
				continue
			}
			if !seen[f] {
				seen[f] = true
				killed = append(killed, f)
			}
		}
	})
	if failAt != nil {
		return nil, translationErr(ErrOverlappingFields, t.Fn.Name, ref,
			"write of %d bytes at n%d+%d straddles an existing field", length, c.Node, *failAt)
	}
	return killed, nil
}

func (t *Transfer) stepCall(st State, sc scalar.State, ref ir.InstrRef, ins ir.Call) (State, error) {
	if t.Summaries.IsAlloc(ins.Callee) {
		if t.Arena.HasPendingAlloc() {
			return st, translationErr(ErrNestedAllocation, t.Fn.Name, ref,
				"call to %s while a size-unknown allocation is open", ins.Callee)
		}
		node, _ := t.Arena.StartAlloc()
		// The allocator takes the size in R1. A known size closes the
		// allocation immediately.
		if _, _, sized := operandRange(sc, ir.R1); sized {
			t.Arena.FinishAlloc()
		}
		st = clobberCallerSaved(st)
		return st.SetPointer(ir.R0, Cell{Node: node, Offs: L.Elements().OffsetSet(0)}), nil
	}

	if sum, ok := t.Summaries.Lookup(ins.Callee); ok {
		for _, e := range sum.Effects {
			c, next := t.resolve(st, e.Reg)
			st = next
			c = c.Shift(e.Off)
			if e.Kind == summaries.Write {
				if _, err := t.killRange(c, int64(e.Width), c.Offs.IsSingleton(), ref); err != nil {
					return st, err
				}
				if c.IsStack() && !c.Offs.IsTop() {
					c.Offs.ForEach(func(o int64) {
						st = st.ClearSlotRange(o, int64(e.Width))
					})
				}
			}
			if !c.Offs.IsTop() {
				if err := t.addFields(c, e.Width, ref); err != nil {
					return st, err
				}
			}
		}
	}
	return clobberCallerSaved(st), nil
}

func clobberCallerSaved(st State) State {
	for r := ir.R0; r <= ir.R5; r++ {
		st = st.ClearPointer(r)
	}
	return st
}

func (t *Transfer) stepMemCpy(st State, sc scalar.State, ref ir.InstrRef, ins ir.MemCpy) (State, error) {
	cd, st := t.resolve(st, ins.Dst)
	cs, st := t.resolve(st, ins.Src)

	length, known := constLen(sc, ins.Len)
	mixed := cd.IsStack() != cs.IsStack()
	acc := Access{Kind: AccMemCpy, Dst: cd, Src: cs, HasSrc: true, Len: -1}

	if !known {
		if mixed || cd.IsStack() || cs.IsStack() {
			return st, translationErr(ErrUnknownLength, t.Fn.Name, ref,
				"memcpy touching the frame needs a static length")
		}
		t.Arena.Summarize(cd.Node)
		t.Arena.Summarize(cs.Node)
		if !t.Optimistic {
			return st, translationErr(ErrUnknownLength, t.Fn.Name, ref,
				"memcpy of unbounded length between n%d and n%d", cd.Node, cs.Node)
		}
		acc.Opaque = true
		t.Log[ref] = acc
		return st, nil
	}
	acc.Len = length

	opaqueSrc, err := t.readRange(cs, ref, "memcpy source")
	if err != nil {
		return st, err
	}
	st, killed, opaqueDst, err := t.writeRange(st, cd, length, ref, "memcpy destination")
	if err != nil {
		return st, err
	}
	acc.Killed = killed
	acc.Opaque = opaqueSrc || opaqueDst

	// Frame-to-frame copies with pinned offsets carry spilled pointers
	// across.
	if cd.IsStack() && cs.IsStack() && cd.Offs.IsSingleton() && cs.Offs.IsSingleton() {
		do, so := cd.Offs.Offset(), cs.Offs.Offset()
		for delta := int64(0); delta < length; delta++ {
			if spilled, ok := st.Slot(so + delta); ok {
				st = st.SetSlot(do+delta, spilled)
			}
		}
	}
	t.Log[ref] = acc
	return st, nil
}

func (t *Transfer) stepMemCmp(st State, sc scalar.State, ref ir.InstrRef, ins ir.MemCmp) (State, error) {
	cx, st := t.resolve(st, ins.X)
	cy, st := t.resolve(st, ins.Y)

	length, known := constLen(sc, ins.Len)
	acc := Access{Kind: AccMemCmp, Dst: cx, Src: cy, HasSrc: true, Len: -1}
	if !known {
		if cx.IsStack() || cy.IsStack() {
			return st, translationErr(ErrUnknownLength, t.Fn.Name, ref,
				"memcmp touching the frame needs a static length")
		}
		t.Arena.Summarize(cx.Node)
		t.Arena.Summarize(cy.Node)
		if !t.Optimistic {
			return st, translationErr(ErrUnknownLength, t.Fn.Name, ref,
				"memcmp of unbounded length between n%d and n%d", cx.Node, cy.Node)
		}
		acc.Opaque = true
	} else {
		acc.Len = length
		opx, err := t.readRange(cx, ref, "memcmp left operand")
		if err != nil {
			return st, err
		}
		opy, err := t.readRange(cy, ref, "memcmp right operand")
		if err != nil {
			return st, err
		}
		acc.Opaque = opx || opy
	}
	t.Log[ref] = acc
	// The comparison result lands in R0.
	return st.ClearPointer(ir.R0), nil
}

func (t *Transfer) stepMemSet(st State, sc scalar.State, ref ir.InstrRef, ins ir.MemSet) (State, error) {
	cd, st := t.resolve(st, ins.Dst)

	length, known := constLen(sc, ins.Len)
	acc := Access{Kind: AccMemSet, Dst: cd, Len: -1}
	if !known {
		if cd.IsStack() {
			return st, translationErr(ErrUnknownLength, t.Fn.Name, ref,
				"memset touching the frame needs a static length")
		}
		t.Arena.Summarize(cd.Node)
		if !t.Optimistic {
			return st, translationErr(ErrUnknownLength, t.Fn.Name, ref,
				"memset of unbounded length into n%d", cd.Node)
		}
		acc.Opaque = true
		t.Log[ref] = acc
		return st, nil
	}
	acc.Len = length

	st, killed, opaque, err := t.writeRange(st, cd, length, ref, "memset destination")
	if err != nil {
		return st, err
	}
	acc.Killed = killed
	acc.Opaque = opaque
	t.Log[ref] = acc
	return st, nil
}

// readRange validates a read of a byte range through the cell.
func (t *Transfer) readRange(c Cell, ref ir.InstrRef, what string) (opaque bool, err error) {
	if !c.Offs.IsTop() {
		return false, nil
	}
	if c.IsStack() {
		return false, translationErr(ErrUnknownStackOffset, t.Fn.Name, ref,
			"%s has unbounded frame offset", what)
	}
	t.Arena.Summarize(c.Node)
	if !t.Optimistic {
		return false, translationErr(ErrSummarizedOverlap, t.Fn.Name, ref,
			"%s at unknown offset into summarized n%d", what, c.Node)
	}
	return true, nil
}

// writeRange applies a write of length bytes through the cell:
// computes the killed fields and drops spilled pointers in the range.
func (t *Transfer) writeRange(st State, c Cell, length int64, ref ir.InstrRef, what string) (State, []Field, bool, error) {
	if c.Offs.IsTop() {
		if c.IsStack() {
			return st, nil, false, translationErr(ErrUnknownStackOffset, t.Fn.Name, ref,
				"%s has unbounded frame offset", what)
		}
		t.Arena.Summarize(c.Node)
		if !t.Optimistic {
			return st, nil, false, translationErr(ErrSummarizedOverlap, t.Fn.Name, ref,
				"%s at unknown offset into summarized n%d", what, c.Node)
		}
		return st, nil, true, nil
	}
	killed, err := t.killRange(c, length, false, ref)
	if err != nil {
		return st, nil, false, err
	}
	if c.IsStack() {
		c.Offs.ForEach(func(o int64) {
			st = st.ClearSlotRange(o, length)
		})
	}
	return st, killed, false, nil
}

// operandRange extracts the finite bounds of an operand's value.
func operandRange(sc scalar.State, op ir.Operand) (lo, hi int64, ok bool) {
	switch op := op.(type) {
	case ir.Imm:
		return int64(op), int64(op), true
	case ir.Reg:
		if iv := sc.Get(op).Interval(); iv.HasFiniteBounds() {
			lo, hi = iv.GetFiniteBounds()
			return lo, hi, true
		}
	}
	return 0, 0, false
}

// constLen extracts a statically known intrinsic length through the
// flat constant view of the operand.
func constLen(sc scalar.State, op ir.Operand) (int64, bool) {
	f := sc.FlatConst(op)
	if f.IsBot() || f.IsTop() {
		return 0, false
	}
	if k := f.Value().(int64); k >= 0 {
		return k, true
	}
	return 0, false
}
