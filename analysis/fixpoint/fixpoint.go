// Package fixpoint runs forward dataflow analyses over a single
// function's CFG. The worklist is a priority queue ordered by reverse
// postorder, so loop bodies stabilize before their continuations.
package fixpoint

import (
	"fmt"

	"github.com/verikit/memsplit/analysis/ir"
	"github.com/verikit/memsplit/utils/pq"
)

// Domain is the lattice structure of an abstract state.
type Domain[S any] interface {
	// Entry is the abstract state at the function entry.
	Entry() S
	Join(a, b S) S
	// Widen forces stabilization of a growing chain; applied instead
	// of Join once a block has been re-entered more than the
	// configured threshold.
	Widen(a, b S) S
	Leq(a, b S) bool
}

// Transfer is the instruction semantics of an abstract state.
type Transfer[S any] interface {
	// Instr transfers the state across one instruction. An error
	// aborts the whole fixpoint.
	Instr(s S, ref ir.InstrRef, ins ir.Instruction) (S, error)
	// Branch refines the state on a conditional edge.
	Branch(s S, cond ir.Cond, taken bool) S
}

// DefaultWideningThreshold is how often a block may be re-entered
// before joins turn into widenings. Tunable via Config.
const DefaultWideningThreshold = 3

// Config tunes one fixpoint run.
type Config struct {
	// WideningThreshold overrides DefaultWideningThreshold when
	// positive.
	WideningThreshold int
}

func (c Config) threshold() int {
	if c.WideningThreshold > 0 {
		return c.WideningThreshold
	}
	return DefaultWideningThreshold
}

// Result holds the stabilized states of one run.
type Result[S any] struct {
	// In maps every reached block to its stabilized in-state.
	In map[ir.BlockID]S
	// InstrIn maps every reached instruction to the state just before
	// it; the lowering pass replays instructions from these.
	InstrIn map[ir.InstrRef]S
	// Exit is the state at the function exit.
	Exit S
	// Iterations counts block visits until stabilization.
	Iterations int
}

// Run iterates the transfer function to a fixpoint over the function's
// CFG. Blocks unreachable from the entry are not processed.
func Run[S any](fn *ir.Function, dom Domain[S], tf Transfer[S], cfg Config) (*Result[S], error) {
	rpo := fn.ReversePostorder()
	prio := make(map[ir.BlockID]int, len(rpo))
	for i, id := range rpo {
		prio[id] = i
	}

	res := &Result[S]{
		In:      map[ir.BlockID]S{},
		InstrIn: map[ir.InstrRef]S{},
	}
	visits := map[ir.BlockID]int{}
	threshold := cfg.threshold()

	queue := pq.Empty(func(a, b ir.BlockID) bool {
		return prio[a] < prio[b]
	})
	res.In[fn.Entry] = dom.Entry()
	queue.Add(fn.Entry)

	propagate := func(to ir.BlockID, s S) {
		cur, seen := res.In[to]
		if !seen {
			res.In[to] = s
			queue.Add(to)
			return
		}
		var next S
		if visits[to] > threshold {
			next = dom.Widen(cur, s)
		} else {
			next = dom.Join(cur, s)
		}
		if !dom.Leq(next, cur) {
			res.In[to] = next
			queue.Add(to)
		}
	}

	for !queue.IsEmpty() {
		id := queue.GetNext()
		visits[id]++
		res.Iterations++
		b := fn.Block(id)

		s := res.In[id]
		for i, ins := range b.Instrs {
			ref := ir.InstrRef{Block: id, Index: i}
			res.InstrIn[ref] = s
			var err error
			s, err = tf.Instr(s, ref, ins)
			if err != nil {
				return res, fmt.Errorf("analyzing %s: %w", ref, err)
			}
		}

		switch term := b.Term.(type) {
		case ir.If:
			propagate(term.Then, tf.Branch(s, term.Cond, true))
			propagate(term.Else, tf.Branch(s, term.Cond, false))
		case ir.Jump:
			propagate(term.To, s)
		case ir.Exit:
			res.Exit = s
		}
	}
	return res, nil
}
