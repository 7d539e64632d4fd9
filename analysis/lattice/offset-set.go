package lattice

import (
	"golang.org/x/tools/container/intsets"
)

// OffsetSet is a member of the offset powerset lattice used for
// symbolic cells: either ⊥ (unreachable), a bounded enumerable set of
// concrete byte offsets, or ⊤ (statically unknown offset).
//
// Finite members are backed by a sparse integer set which is never
// mutated after construction; all operations copy.
type OffsetSet struct {
	element
	top bool
	set *intsets.Sparse
}

// OffsetSet creates a finite offset set from the given offsets.
func (elementFactory) OffsetSet(offs ...int64) OffsetSet {
	s := new(intsets.Sparse)
	for _, o := range offs {
		s.Insert(int(o))
	}
	return OffsetSet{element: element{offsetSetLattice}, set: s}
}

// OffsetTop creates the ⊤ offset set.
func (elementFactory) OffsetTop() OffsetSet {
	return offsetSetLattice.Top().OffsetSet()
}

// Lattice retrieves the offset set lattice for any offset set.
func (OffsetSet) Lattice() Lattice {
	return offsetSetLattice
}

// OffsetSet safely converts an offset set.
func (e OffsetSet) OffsetSet() OffsetSet {
	return e
}

// IsTop checks whether the offset set is ⊤.
func (e OffsetSet) IsTop() bool {
	return e.top
}

// IsBot checks whether the offset set is ⊥ = ∅.
func (e OffsetSet) IsBot() bool {
	return !e.top && (e.set == nil || e.set.IsEmpty())
}

// Size is the cardinality of a finite offset set; panics on ⊤.
func (e OffsetSet) Size() int {
	if e.top {
		panic("called Size() on the ⊤ offset set")
	}
	if e.set == nil {
		return 0
	}
	return e.set.Len()
}

// IsSingleton checks whether the offset set denotes exactly one offset.
func (e OffsetSet) IsSingleton() bool {
	return !e.top && e.set != nil && e.set.Len() == 1
}

// Offset unpacks the offset of a singleton set; panics otherwise.
func (e OffsetSet) Offset() int64 {
	if !e.IsSingleton() {
		panic("called Offset() on a non-singleton offset set")
	}
	return int64(e.set.Min())
}

// Contains checks finite membership. The ⊤ set contains every offset.
func (e OffsetSet) Contains(off int64) bool {
	if e.top {
		return true
	}
	return e.set != nil && e.set.Has(int(off))
}

// Entries returns the offsets of a finite set in ascending order.
func (e OffsetSet) Entries() []int64 {
	if e.top {
		panic("called Entries() on the ⊤ offset set")
	}
	if e.set == nil {
		return nil
	}
	ints := e.set.AppendTo(nil)
	res := make([]int64, len(ints))
	for i, v := range ints {
		res[i] = int64(v)
	}
	return res
}

// ForEach performs procedure `f` on all members of a finite offset set.
func (e OffsetSet) ForEach(f func(int64)) {
	for _, o := range e.Entries() {
		f(o)
	}
}

// Add returns e ∪ {off}. Adding to ⊤ is a no-op.
func (e OffsetSet) Add(off int64) OffsetSet {
	if e.top || e.Contains(off) {
		return e
	}
	s := new(intsets.Sparse)
	if e.set != nil {
		s.Copy(e.set)
	}
	s.Insert(int(off))
	return OffsetSet{element: e.element, set: s}
}

// Shift translates every offset of a finite set by delta; ⊤ stays ⊤.
func (e OffsetSet) Shift(delta int64) OffsetSet {
	if e.top {
		return e
	}
	s := new(intsets.Sparse)
	e.ForEach(func(o int64) {
		s.Insert(int(o + delta))
	})
	return OffsetSet{element: e.element, set: s}
}

// Height is the cardinality for finite sets, and -1 for ⊤.
func (e OffsetSet) Height() int {
	if e.top {
		return -1
	}
	return e.Size()
}

func (e OffsetSet) String() string {
	if e.top {
		return colorize.Element("T")
	}
	if e.IsBot() {
		return colorize.Element("⊥")
	}
	if e.set == nil {
		return "{}"
	}
	return colorize.Element(e.set.String())
}

// Eq computes e1 = e2. Performs lattice dynamic type checking.
func (e1 OffsetSet) Eq(e2 Element) bool {
	checkLatticeMatch(e1.Lattice(), e2.Lattice(), "=")
	return e1.eq(e2)
}

func (e1 OffsetSet) eq(e2 Element) bool {
	o := e2.OffsetSet()
	if e1.top || o.top {
		return e1.top == o.top
	}
	return e1.leq(o) && e1.geq(o)
}

// Leq computes e1 ⊑ e2 (subset inclusion).
func (e1 OffsetSet) Leq(e2 Element) bool {
	checkLatticeMatch(e1.Lattice(), e2.Lattice(), "⊑")
	return e1.leq(e2)
}

func (e1 OffsetSet) leq(e2 Element) bool {
	o := e2.OffsetSet()
	if o.top {
		return true
	}
	if e1.top {
		return false
	}
	if e1.set == nil {
		return true
	}
	if o.set == nil {
		return e1.set.IsEmpty()
	}
	var diff intsets.Sparse
	diff.Difference(e1.set, o.set)
	return diff.IsEmpty()
}

// Geq computes e1 ⊒ e2.
func (e1 OffsetSet) Geq(e2 Element) bool {
	checkLatticeMatch(e1.Lattice(), e2.Lattice(), "⊒")
	return e1.geq(e2)
}

func (e1 OffsetSet) geq(e2 Element) bool {
	return e2.OffsetSet().leq(e1)
}

// Join computes e1 ⊔ e2 (union; absorbed by ⊤).
func (e1 OffsetSet) Join(e2 Element) Element {
	checkLatticeMatch(e1.Lattice(), e2.Lattice(), "⊔")
	return e1.join(e2)
}

func (e1 OffsetSet) join(e2 Element) Element {
	return e1.MonoJoin(e2.OffsetSet())
}

// MonoJoin is the monomorphic variant of e1 ⊔ e2.
func (e1 OffsetSet) MonoJoin(e2 OffsetSet) OffsetSet {
	switch {
	case e1.top:
		return e1
	case e2.top:
		return e2
	case e1.IsBot():
		return e2
	case e2.IsBot():
		return e1
	}
	s := new(intsets.Sparse)
	s.Union(e1.set, e2.set)
	return OffsetSet{element: e1.element, set: s}
}

// Meet computes e1 ⊓ e2 (intersection).
func (e1 OffsetSet) Meet(e2 Element) Element {
	checkLatticeMatch(e1.Lattice(), e2.Lattice(), "⊓")
	return e1.meet(e2)
}

func (e1 OffsetSet) meet(e2 Element) Element {
	o := e2.OffsetSet()
	switch {
	case e1.top:
		return o
	case o.top:
		return e1
	case e1.IsBot() || o.IsBot():
		return offsetSetLattice.Bot()
	}
	s := new(intsets.Sparse)
	s.Intersection(e1.set, o.set)
	return OffsetSet{element: e1.element, set: s}
}

// OffsetSetLattice represents the offset powerset lattice with an
// artificial ⊤ denoting a statically unknown offset.
type OffsetSetLattice struct {
	lattice
}

// offsetSetLattice is a singleton instantiation of the offset set lattice.
var offsetSetLattice = &OffsetSetLattice{}

// OffsetSet yields the offset set lattice.
func (latticeFactory) OffsetSet() *OffsetSetLattice {
	return offsetSetLattice
}

// Top yields the unknown offset set.
func (*OffsetSetLattice) Top() Element {
	return OffsetSet{element: element{offsetSetLattice}, top: true}
}

// Bot yields ∅.
func (*OffsetSetLattice) Bot() Element {
	return OffsetSet{element: element{offsetSetLattice}, set: new(intsets.Sparse)}
}

func (*OffsetSetLattice) String() string {
	return colorize.Lattice("℘(Offset)")
}

// Eq checks for equality with another lattice.
func (l1 *OffsetSetLattice) Eq(l2 Lattice) bool {
	_, ok := l2.(*OffsetSetLattice)
	return ok
}

// OffsetSet safely converts the offset set lattice to OffsetSetLattice.
func (l *OffsetSetLattice) OffsetSet() *OffsetSetLattice {
	return l
}
