package memory

import (
	"fmt"

	L "github.com/verikit/memsplit/analysis/lattice"
)

// Cell is a symbolic memory location: an abstract object together with
// the set of byte offsets a pointer into it may denote.
type Cell struct {
	Node NodeID
	Offs L.OffsetSet
}

// StackCell is the cell a freshly materialized frame pointer denotes.
func StackCell() Cell {
	return Cell{Node: StackNode, Offs: L.Elements().OffsetSet(0)}
}

// Shift translates the cell's offsets.
func (c Cell) Shift(delta int64) Cell {
	return Cell{Node: c.Node, Offs: c.Offs.Shift(delta)}
}

// Blur forgets the cell's offsets, keeping only the object.
func (c Cell) Blur() Cell {
	return Cell{Node: c.Node, Offs: L.Elements().OffsetTop()}
}

// IsStack checks whether the cell points into the frame.
func (c Cell) IsStack() bool {
	return c.Node == StackNode
}

func (c Cell) String() string {
	return fmt.Sprintf("n%d%s", c.Node, c.Offs)
}

// eq compares cells under an arena's current merge relation.
func (c Cell) eq(d Cell, a *Arena) bool {
	return a.Find(c.Node) == a.Find(d.Node) && c.Offs.Eq(d.Offs)
}

// leq checks cell inclusion under an arena's current merge relation.
func (c Cell) leq(d Cell, a *Arena) bool {
	return a.Find(c.Node) == a.Find(d.Node) && c.Offs.Leq(d.Offs)
}
