package lattice

// Lattice is implemented by all lattices. The conversion methods allow
// quick type conversions, panicking when the dynamic type mismatches.
type Lattice interface {
	Top() Element
	Bot() Element

	String() string
	Eq(Lattice) bool

	Interval() *IntervalLattice
	Flat() *FlatLattice
	OffsetSet() *OffsetSetLattice
}

// lattice is the base embedded by all lattice types.
type lattice struct{}

func (*lattice) Interval() *IntervalLattice {
	panic(errUnsupportedTypeConversion)
}

func (*lattice) Flat() *FlatLattice {
	panic(errUnsupportedTypeConversion)
}

func (*lattice) OffsetSet() *OffsetSetLattice {
	panic(errUnsupportedTypeConversion)
}
