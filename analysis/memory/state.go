package memory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/verikit/memsplit/analysis/ir"
	"github.com/verikit/memsplit/utils"
)

// State is the flow-sensitive part of the memory abstraction at one
// program point: which registers hold pointers and where, and which
// frame slots hold spilled pointers. Object layouts live in the arena
// and are flow-insensitive.
type State struct {
	// ptrs binds registers that definitely hold a pointer.
	ptrs *immutable.Map[ir.Reg, Cell]
	// slots binds frame offsets holding a spilled pointer, keyed by the
	// (negative) frame offset of the slot.
	slots *immutable.SortedMap[int64, Cell]
	// bottom marks an unreachable program point.
	bottom bool
}

func emptyPtrs() *immutable.Map[ir.Reg, Cell] {
	return immutable.NewMap[ir.Reg, Cell](utils.IntHasher[ir.Reg]{})
}

func emptySlots() *immutable.SortedMap[int64, Cell] {
	return immutable.NewSortedMap[int64, Cell](nil)
}

// Initial is the entry state: the frame pointer points at the frame
// top and no other pointers are known.
func Initial() State {
	return State{
		ptrs:  emptyPtrs().Set(ir.FP, StackCell()),
		slots: emptySlots(),
	}
}

// Bot is the unreachable state.
func Bot() State {
	return State{ptrs: emptyPtrs(), slots: emptySlots(), bottom: true}
}

// IsBot checks whether the state is ⊥.
func (s State) IsBot() bool {
	return s.bottom
}

// Pointer looks up the cell a register points to.
func (s State) Pointer(r ir.Reg) (Cell, bool) {
	return s.ptrs.Get(r)
}

// SetPointer binds a register to a cell.
func (s State) SetPointer(r ir.Reg, c Cell) State {
	if s.bottom {
		return s
	}
	return State{ptrs: s.ptrs.Set(r, c), slots: s.slots}
}

// ClearPointer removes a register's pointer binding, if any.
func (s State) ClearPointer(r ir.Reg) State {
	if s.bottom {
		return s
	}
	return State{ptrs: s.ptrs.Delete(r), slots: s.slots}
}

// Slot looks up the pointer spilled at a frame offset.
func (s State) Slot(off int64) (Cell, bool) {
	return s.slots.Get(off)
}

// SetSlot records a pointer spill at a frame offset.
func (s State) SetSlot(off int64, c Cell) State {
	if s.bottom {
		return s
	}
	return State{ptrs: s.ptrs, slots: s.slots.Set(off, c)}
}

// ClearSlot removes a spilled pointer.
func (s State) ClearSlot(off int64) State {
	if s.bottom {
		return s
	}
	return State{ptrs: s.ptrs, slots: s.slots.Delete(off)}
}

// ClearSlotRange removes every spilled pointer in [off, off+length).
func (s State) ClearSlotRange(off, length int64) State {
	if s.bottom {
		return s
	}
	slots := s.slots
	iter := s.slots.Iterator()
	for !iter.Done() {
		o, _, _ := iter.Next()
		if off <= o && o < off+length {
			slots = slots.Delete(o)
		}
	}
	return State{ptrs: s.ptrs, slots: slots}
}

// MonoJoin joins two states pointwise over an arena. Registers and
// slots bound on both sides to the same object keep the offset union;
// bindings to different objects merge the objects (losing exactness).
// Bindings present on one side only are dropped.
func (s1 State) MonoJoin(s2 State, a *Arena) State {
	switch {
	case s1.bottom:
		return s2
	case s2.bottom:
		return s1
	}
	ptrs := emptyPtrs()
	iter := s1.ptrs.Iterator()
	for !iter.Done() {
		r, c1, _ := iter.Next()
		if c2, found := s2.ptrs.Get(r); found {
			ptrs = ptrs.Set(r, joinCells(c1, c2, a))
		}
	}
	slots := emptySlots()
	siter := s1.slots.Iterator()
	for !siter.Done() {
		o, c1, _ := siter.Next()
		if c2, found := s2.slots.Get(o); found {
			slots = slots.Set(o, joinCells(c1, c2, a))
		}
	}
	return State{ptrs: ptrs, slots: slots}
}

func joinCells(c1, c2 Cell, a *Arena) Cell {
	n1, n2 := a.Find(c1.Node), a.Find(c2.Node)
	if n1 != n2 {
		n1 = a.Merge(n1, n2)
	}
	return Cell{Node: n1, Offs: c1.Offs.MonoJoin(c2.Offs)}
}

// Widen widens s1 with respect to s2: offset sets still growing after
// the join are blurred to ⊤, cutting off unbounded pointer walks.
func (s1 State) Widen(s2 State, a *Arena) State {
	switch {
	case s1.bottom:
		return s2
	case s2.bottom:
		return s1
	}
	ptrs := emptyPtrs()
	iter := s1.ptrs.Iterator()
	for !iter.Done() {
		r, c1, _ := iter.Next()
		if c2, found := s2.ptrs.Get(r); found {
			ptrs = ptrs.Set(r, widenCells(c1, c2, a))
		}
	}
	slots := emptySlots()
	siter := s1.slots.Iterator()
	for !siter.Done() {
		o, c1, _ := siter.Next()
		if c2, found := s2.slots.Get(o); found {
			slots = slots.Set(o, widenCells(c1, c2, a))
		}
	}
	return State{ptrs: ptrs, slots: slots}
}

func widenCells(c1, c2 Cell, a *Arena) Cell {
	j := joinCells(c1, c2, a)
	if !j.Offs.Leq(c1.Offs) {
		return j.Blur()
	}
	return j
}

// Leq computes s1 ⊑ s2 under an arena.
func (s1 State) Leq(s2 State, a *Arena) bool {
	if s1.bottom {
		return true
	}
	if s2.bottom {
		return false
	}
	iter := s2.ptrs.Iterator()
	for !iter.Done() {
		r, c2, _ := iter.Next()
		c1, found := s1.ptrs.Get(r)
		if !found || !c1.leq(c2, a) {
			return false
		}
	}
	siter := s2.slots.Iterator()
	for !siter.Done() {
		o, c2, _ := siter.Next()
		c1, found := s1.slots.Get(o)
		if !found || !c1.leq(c2, a) {
			return false
		}
	}
	return true
}

// Eq checks state equality under an arena.
func (s1 State) Eq(s2 State, a *Arena) bool {
	return s1.Leq(s2, a) && s2.Leq(s1, a)
}

func (s State) String() string {
	if s.bottom {
		return "⊥"
	}
	var regs []ir.Reg
	iter := s.ptrs.Iterator()
	for !iter.Done() {
		r, _, _ := iter.Next()
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })

	var sb strings.Builder
	sb.WriteString("{")
	for i, r := range regs {
		if i > 0 {
			sb.WriteString(", ")
		}
		c, _ := s.ptrs.Get(r)
		fmt.Fprintf(&sb, "%s ↦ %s", r, c)
	}
	printed := len(regs) > 0
	siter := s.slots.Iterator()
	for !siter.Done() {
		o, c, _ := siter.Next()
		if printed {
			sb.WriteString(", ")
		}
		printed = true
		fmt.Fprintf(&sb, "[fp%+d] ↦ %s", o, c)
	}
	sb.WriteString("}")
	return sb.String()
}
