package callgraph

import (
	"fmt"
	"io"

	"github.com/goccy/go-graphviz"

	"github.com/verikit/memsplit/utils/dot"
)

// VisualGraph renders the call relation as a dot graph. Multi-member
// strongly connected components become clusters, recursive functions
// are tinted, and bodyless callees are dashed.
func (g *Graph) VisualGraph() *dot.DotGraph {
	dg := &dot.DotGraph{Title: "call graph"}

	nodes := map[string]*dot.DotNode{}
	for _, name := range g.names {
		n := &dot.DotNode{ID: name, Attrs: dot.DotAttrs{}}
		if g.recursive[name] {
			n.Attrs["fillcolor"] = "lightcoral"
		}
		nodes[name] = n
	}

	clustered := map[string]bool{}
	for ci, comp := range g.comps {
		if len(comp) < 2 {
			continue
		}
		cluster := dot.NewDotCluster(fmt.Sprintf("scc%d", ci))
		cluster.Attrs["label"] = fmt.Sprintf("scc %d", ci)
		cluster.Attrs["style"] = "dashed"
		for _, name := range comp {
			cluster.Nodes = append(cluster.Nodes, nodes[name])
			clustered[name] = true
		}
		dg.Clusters = append(dg.Clusters, cluster)
	}

	ext := map[string]*dot.DotNode{}
	for _, name := range g.names {
		if !clustered[name] {
			dg.Nodes = append(dg.Nodes, nodes[name])
		}
		for _, callee := range g.callees[name] {
			dg.Edges = append(dg.Edges, &dot.DotEdge{
				From: nodes[name], To: nodes[callee], Attrs: dot.DotAttrs{},
			})
		}
		for _, callee := range g.externals[name] {
			en, ok := ext[callee]
			if !ok {
				en = &dot.DotNode{ID: callee, Attrs: dot.DotAttrs{
					"style":     "dashed",
					"fillcolor": "white",
				}}
				ext[callee] = en
				dg.Nodes = append(dg.Nodes, en)
			}
			dg.Edges = append(dg.Edges, &dot.DotEdge{
				From: nodes[name], To: en, Attrs: dot.DotAttrs{"style": "dashed"},
			})
		}
	}
	return dg
}

// WriteDot writes the dot source of the call graph.
func (g *Graph) WriteDot(w io.Writer) error {
	return g.VisualGraph().WriteDot(w)
}

// SaveImage lays out and renders the call graph to path.
func (g *Graph) SaveImage(path string, format graphviz.Format) error {
	return g.VisualGraph().RenderFile(path, format)
}
