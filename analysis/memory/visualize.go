package memory

import (
	"fmt"
	"io"

	"github.com/verikit/memsplit/utils/dot"
)

// VisualGraph renders the arena's objects and the pointer bindings of
// a state as a dot graph. Registers and spill slots are dashed;
// summarized objects are tinted.
func (a *Arena) VisualGraph(st State) *dot.DotGraph {
	dg := &dot.DotGraph{Title: "points-to", Options: map[string]string{"rankdir": "LR"}}

	nodes := map[NodeID]*dot.DotNode{}
	for idx := range a.records {
		rep := a.Find(NodeID(idx))
		if _, ok := nodes[rep]; ok {
			continue
		}
		label := fmt.Sprintf("n%d", rep)
		if rep == StackNode {
			label = "stack"
		}
		for _, f := range a.Fields(rep) {
			label += " " + f.String()
		}
		attrs := dot.DotAttrs{"label": label}
		if a.IsSummarized(rep) {
			attrs["fillcolor"] = "lightyellow"
		}
		n := &dot.DotNode{ID: fmt.Sprintf("n%d", rep), Attrs: attrs}
		nodes[rep] = n
		dg.Nodes = append(dg.Nodes, n)
	}

	if st.bottom {
		return dg
	}
	iter := st.ptrs.Iterator()
	for !iter.Done() {
		r, c, _ := iter.Next()
		rn := &dot.DotNode{ID: r.String(), Attrs: dot.DotAttrs{
			"style":     "dashed",
			"fillcolor": "white",
		}}
		dg.Nodes = append(dg.Nodes, rn)
		dg.Edges = append(dg.Edges, &dot.DotEdge{
			From: rn, To: nodes[a.Find(c.Node)],
			Attrs: dot.DotAttrs{"label": c.Offs.String()},
		})
	}
	siter := st.slots.Iterator()
	for !siter.Done() {
		o, c, _ := siter.Next()
		sn := &dot.DotNode{ID: fmt.Sprintf("fp%+d", o), Attrs: dot.DotAttrs{
			"style":     "dashed",
			"fillcolor": "white",
		}}
		dg.Nodes = append(dg.Nodes, sn)
		dg.Edges = append(dg.Edges, &dot.DotEdge{
			From: sn, To: nodes[a.Find(c.Node)],
			Attrs: dot.DotAttrs{"label": c.Offs.String()},
		})
	}
	return dg
}

// WriteDot writes the dot source of the points-to graph at one program
// point.
func (a *Arena) WriteDot(w io.Writer, st State) error {
	return a.VisualGraph(st).WriteDot(w)
}
