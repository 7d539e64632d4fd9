package lattice

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
)

var colorize = struct {
	Lattice func(...interface{}) string
	Element func(...interface{}) string
	Const   func(...interface{}) string
}{
	Lattice: color.New(color.FgHiBlue).SprintFunc(),
	Element: color.New(color.FgCyan).SprintFunc(),
	Const:   color.New(color.FgHiWhite).SprintFunc(),
}

var (
	errUnsupportedTypeConversion = errors.New("UnsupportedTypeConversion")
	errUnsupportedOperation      = errors.New("UnsupportedOperationError")
	errInternal                  = errors.New("internal error")
)

// Element is implemented by all members of all lattices. The type
// conversion API performs dynamic checking; converting an element to a
// type outside its lattice panics.
type Element interface {
	// Type conversion API
	Interval() Interval
	Flat() FlatElement
	OffsetSet() OffsetSet

	Lattice() Lattice

	// External API for lattice element operations.
	// They dynamically perform lattice type checking.
	Leq(Element) bool
	Geq(Element) bool
	Eq(Element) bool
	Join(Element) Element
	Meet(Element) Element

	// Internal lattice element operations, that skip lattice type
	// checking. Only use under the assumption of lattice type safety.
	leq(Element) bool
	geq(Element) bool
	eq(Element) bool
	join(Element) Element
	meet(Element) Element

	String() string
	// Height encodes the distance from the bottom of the lattice to
	// this element, or -1 when unbounded.
	Height() int
}

// element is the base embedded by all lattice elements.
type element struct {
	lattice Lattice
}

func (e element) Lattice() Lattice {
	return e.lattice
}

func (element) Interval() Interval {
	panic(errUnsupportedTypeConversion)
}

func (element) Flat() FlatElement {
	panic(errUnsupportedTypeConversion)
}

func (element) OffsetSet() OffsetSet {
	panic(errUnsupportedTypeConversion)
}

func (element) Height() int {
	panic(errUnsupportedOperation)
}

// checkLatticeMatch ensures lattice type safety of binary lattice
// element operations.
func checkLatticeMatch(l1, l2 Lattice, op string) {
	if !l1.Eq(l2) {
		panic(fmt.Sprintf(
			"lattice mismatch: %s %s %s",
			colorize.Lattice(l1), op, colorize.Lattice(l2),
		))
	}
}
