// Package callgraph derives the call relation of a program, its
// strongly connected components, and the recursive-function set.
// Graphs are pure snapshots: any structural change to the program
// (inlining, pruning) invalidates the graph, and callers re-derive it
// rather than patching it in place.
package callgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yourbasic/graph"

	"github.com/verikit/memsplit/analysis/ir"
	ug "github.com/verikit/memsplit/utils/graph"
)

// Graph is the call graph of one program snapshot. Immutable once
// built.
type Graph struct {
	// names holds the function names in sorted order; the graph
	// operates on their indices.
	names []string
	index map[string]int
	// callees maps a function to its internal callees. Callees with no
	// body (externals) are not graph vertices.
	callees map[string][]string
	// externals maps a function to its bodyless callees.
	externals map[string][]string
	// comps is the SCC partition, callees-first.
	comps     [][]string
	recursive map[string]bool
}

// Build derives the call graph of the program.
func Build(prog *ir.Program) *Graph {
	g := &Graph{
		index:     map[string]int{},
		callees:   map[string][]string{},
		externals: map[string][]string{},
		recursive: map[string]bool{},
	}
	g.names = prog.FuncNames()
	for i, name := range g.names {
		g.index[name] = i
	}

	edges := graph.New(len(g.names))
	selfLoop := make([]bool, len(g.names))
	for _, name := range g.names {
		for _, callee := range prog.Func(name).Callees() {
			j, internal := g.index[callee]
			if !internal {
				g.externals[name] = append(g.externals[name], callee)
				continue
			}
			g.callees[name] = append(g.callees[name], callee)
			if g.index[name] == j {
				selfLoop[j] = true
				continue
			}
			edges.Add(g.index[name], j)
		}
	}

	comps := graph.StrongComponents(edges)
	g.comps = g.sortComponents(comps, edges)
	for _, comp := range g.comps {
		if len(comp) > 1 {
			for _, name := range comp {
				g.recursive[name] = true
			}
		}
	}
	for i, name := range g.names {
		if selfLoop[i] {
			g.recursive[name] = true
		}
	}
	return g
}

// sortComponents orders the SCC partition callees-first via a
// topological sort of the condensation, with deterministic
// member order inside each component.
func (g *Graph) sortComponents(comps [][]int, edges *graph.Mutable) [][]string {
	compOf := make([]int, len(g.names))
	for ci, comp := range comps {
		for _, v := range comp {
			compOf[v] = ci
		}
	}
	cond := graph.New(len(comps))
	for v := 0; v < len(g.names); v++ {
		edges.Visit(v, func(w int, _ int64) bool {
			if compOf[v] != compOf[w] {
				cond.Add(compOf[v], compOf[w])
			}
			return false
		})
	}
	order, ok := graph.TopSort(cond)
	if !ok {
		// The condensation is acyclic by construction.
		panic("callgraph: cyclic condensation")
	}

	res := make([][]string, 0, len(comps))
	// TopSort puts callers first; the analysis wants callees first.
	for i := len(order) - 1; i >= 0; i-- {
		comp := comps[order[i]]
		names := make([]string, len(comp))
		for j, v := range comp {
			names[j] = g.names[v]
		}
		sort.Strings(names)
		res = append(res, names)
	}
	return res
}

// Funcs returns the function names in sorted order.
func (g *Graph) Funcs() []string {
	return g.names
}

// Callees returns the internal callees of a function.
func (g *Graph) Callees(name string) []string {
	return g.callees[name]
}

// Externals returns the bodyless callees of a function.
func (g *Graph) Externals(name string) []string {
	return g.externals[name]
}

// Recursive checks whether the function sits on a call cycle.
func (g *Graph) Recursive(name string) bool {
	return g.recursive[name]
}

// Components returns the SCC partition, callees-first. The inliner
// processes components in this order so every callee is finished
// before its callers.
func (g *Graph) Components() [][]string {
	return g.comps
}

// Reachable computes the set of functions reachable from the seeds by
// the call relation, seeds included. Seeds naming no defined function
// are ignored.
func (g *Graph) Reachable(seeds []string) map[string]bool {
	var starts []string
	for _, s := range seeds {
		if _, ok := g.index[s]; ok {
			starts = append(starts, s)
		}
	}
	seen := map[string]bool{}
	if len(starts) == 0 {
		return seen
	}
	G := ug.OfHashable(func(name string) []string {
		return g.callees[name]
	})
	G.BFSV(func(name string) bool {
		seen[name] = true
		return false
	}, starts...)
	return seen
}

// Prune removes every function that is neither reachable from the
// program roots nor in the transitive closure of the preserved set
// under the call relation. Preserved functions survive even when
// unreachable from any root. Returns the re-derived graph of the
// pruned program.
func Prune(prog *ir.Program, preserved []string) *Graph {
	g := Build(prog)
	keep := g.Reachable(prog.Roots)
	for name := range g.Reachable(preserved) {
		keep[name] = true
	}
	for _, name := range g.names {
		if !keep[name] {
			delete(prog.Funcs, name)
		}
	}
	return Build(prog)
}

func (g *Graph) String() string {
	var sb strings.Builder
	for _, name := range g.names {
		fmt.Fprintf(&sb, "%s -> %s", name, strings.Join(g.callees[name], ", "))
		if g.recursive[name] {
			sb.WriteString(" (recursive)")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
