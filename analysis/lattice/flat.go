package lattice

import "fmt"

// FlatLattice is the flat lattice over arbitrary constants:
// ⊥ < {... -1, 0, 1 ...} < ⊤. Used for constant propagation.
type FlatLattice struct {
	lattice
	top FlatTop
	bot FlatBot
}

// flatLattice is a singleton instantiation of the flat lattice.
var flatLattice = func() *FlatLattice {
	lat := &FlatLattice{}
	inner := flatElementBase{element{lat}}
	lat.top = FlatTop{inner}
	lat.bot = FlatBot{inner}
	return lat
}()

// Flat yields the flat constant lattice.
func (latticeFactory) Flat() *FlatLattice {
	return flatLattice
}

func (l *FlatLattice) Top() Element {
	return l.top
}

func (l *FlatLattice) Bot() Element {
	return l.bot
}

// Eq checks for equality with another lattice.
func (l1 *FlatLattice) Eq(l2 Lattice) bool {
	_, ok := l2.(*FlatLattice)
	return ok
}

func (*FlatLattice) String() string {
	return colorize.Lattice("Constant")
}

// Flat safely converts the flat lattice to FlatLattice.
func (l *FlatLattice) Flat() *FlatLattice {
	return l
}

type (
	// flatElementBase is the basis for constructing all members of the
	// flat lattice. Is embedded by ⊥, ⊤ and valued members.
	flatElementBase struct {
		element
	}

	// FlatElement is an interface implemented by all members of the
	// flat lattice.
	FlatElement interface {
		Element
		// IsBot checks whether the flat lattice member is ⊥.
		IsBot() bool
		// IsTop checks whether the flat lattice member is ⊤.
		IsTop() bool
		// Value unpacks the value of a valued member.
		Value() any
		// Is checks whether the flat element represents the given value.
		Is(x any) bool
	}

	// FlatTop is the flat ⊤ element.
	FlatTop struct {
		flatElementBase
	}

	// FlatBot is the flat ⊥ element.
	FlatBot struct {
		flatElementBase
	}

	// flatElement is a valued member of the flat lattice.
	flatElement struct {
		element
		value any
	}
)

// FlatConst creates a valued member of the flat constant lattice.
func (elementFactory) FlatConst(x any) FlatElement {
	return flatElement{element{flatLattice}, x}
}

// Value will panic, and must only be invoked for valued flat lattice members.
func (flatElementBase) Value() any {
	panic("called Value() on a flat ⊥/⊤ element")
}

func (f1 flatElementBase) Is(f2 any) bool {
	return false
}

func (e FlatBot) Flat() FlatElement { return e }
func (e FlatBot) IsBot() bool       { return true }
func (e FlatBot) IsTop() bool       { return false }
func (FlatBot) Height() int         { return 0 }

func (FlatBot) String() string {
	return colorize.Element("⊥")
}

func (e1 FlatBot) Leq(e2 Element) bool {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊑")
	return true
}

func (e1 FlatBot) leq(e2 Element) bool { return true }

func (e1 FlatBot) Geq(e2 Element) bool {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊒")
	return e1.geq(e2)
}

func (e1 FlatBot) geq(e2 Element) bool {
	_, ok := e2.(FlatBot)
	return ok
}

func (e1 FlatBot) Eq(e2 Element) bool {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "=")
	return e1.eq(e2)
}

func (e1 FlatBot) eq(e2 Element) bool {
	_, ok := e2.(FlatBot)
	return ok
}

func (e1 FlatBot) Join(e2 Element) Element {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊔")
	return e2
}

func (e1 FlatBot) join(e2 Element) Element { return e2 }

func (e1 FlatBot) Meet(e2 Element) Element {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊓")
	return e1
}

func (e1 FlatBot) meet(e2 Element) Element { return e1 }

func (e FlatTop) Flat() FlatElement { return e }
func (e FlatTop) IsBot() bool       { return false }
func (e FlatTop) IsTop() bool       { return true }
func (FlatTop) Height() int         { return 2 }

func (FlatTop) String() string {
	return colorize.Element("T")
}

func (e1 FlatTop) Leq(e2 Element) bool {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊑")
	return e1.leq(e2)
}

func (e1 FlatTop) leq(e2 Element) bool {
	_, ok := e2.(FlatTop)
	return ok
}

func (e1 FlatTop) Geq(e2 Element) bool {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊒")
	return true
}

func (e1 FlatTop) geq(e2 Element) bool { return true }

func (e1 FlatTop) Eq(e2 Element) bool {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "=")
	return e1.eq(e2)
}

func (e1 FlatTop) eq(e2 Element) bool {
	_, ok := e2.(FlatTop)
	return ok
}

func (e1 FlatTop) Join(e2 Element) Element {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊔")
	return e1
}

func (e1 FlatTop) join(e2 Element) Element { return e1 }

func (e1 FlatTop) Meet(e2 Element) Element {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊓")
	return e2
}

func (e1 FlatTop) meet(e2 Element) Element { return e2 }

func (e flatElement) Lattice() Lattice   { return flatLattice }
func (e flatElement) Flat() FlatElement  { return e }
func (e flatElement) IsBot() bool        { return false }
func (e flatElement) IsTop() bool        { return false }
func (e flatElement) Value() any         { return e.value }
func (e flatElement) Is(x any) bool      { return e.value == x }
func (flatElement) Height() int          { return 1 }

func (e flatElement) String() string {
	return colorize.Const(fmt.Sprintf("%v", e.value))
}

func (e1 flatElement) Leq(e2 Element) bool {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊑")
	return e1.leq(e2)
}

func (e1 flatElement) leq(e2 Element) bool {
	switch e2 := e2.(type) {
	case FlatTop:
		return true
	case flatElement:
		return e1.value == e2.value
	}
	return false
}

func (e1 flatElement) Geq(e2 Element) bool {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊒")
	return e1.geq(e2)
}

func (e1 flatElement) geq(e2 Element) bool {
	switch e2 := e2.(type) {
	case FlatBot:
		return true
	case flatElement:
		return e1.value == e2.value
	}
	return false
}

func (e1 flatElement) Eq(e2 Element) bool {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "=")
	return e1.eq(e2)
}

func (e1 flatElement) eq(e2 Element) bool {
	if e2, ok := e2.(flatElement); ok {
		return e1.value == e2.value
	}
	return false
}

func (e1 flatElement) Join(e2 Element) Element {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊔")
	return e1.join(e2)
}

func (e1 flatElement) join(e2 Element) Element {
	switch e2 := e2.(type) {
	case FlatBot:
		return e1
	case flatElement:
		if e1.value == e2.value {
			return e1
		}
	}
	return flatLattice.top
}

func (e1 flatElement) Meet(e2 Element) Element {
	checkLatticeMatch(e1.lattice, e2.Lattice(), "⊓")
	return e1.meet(e2)
}

func (e1 flatElement) meet(e2 Element) Element {
	switch e2 := e2.(type) {
	case FlatTop:
		return e1
	case flatElement:
		if e1.value == e2.value {
			return e1
		}
	}
	return flatLattice.bot
}
