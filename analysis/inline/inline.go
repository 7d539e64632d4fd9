// Package inline performs bottom-up call inlining: components of the
// call graph are processed callees-first, so every inlined body is
// already fully flattened and one pass over each caller suffices.
// Recursive functions are never inlined; calls to them and to
// bodyless externals stay in place.
package inline

import (
	"fmt"

	"github.com/verikit/memsplit/analysis/callgraph"
	"github.com/verikit/memsplit/analysis/ir"
)

// Stats reports what one inlining run did.
type Stats struct {
	// Sites is the number of call sites expanded.
	Sites int
	// Skipped counts call sites left in place because the callee is
	// recursive or cannot be frame-shifted.
	Skipped int
}

// Run expands every inlinable call site of the program in place.
// The structural single-exit invariant is re-checked for every
// transformed function.
func Run(prog *ir.Program, g *callgraph.Graph) (Stats, error) {
	var stats Stats
	for _, comp := range g.Components() {
		for _, name := range comp {
			fn := prog.Func(name)
			changed, err := inlineInto(fn, prog, g, &stats)
			if err != nil {
				return stats, err
			}
			if changed {
				if err := fn.CheckStructure(); err != nil {
					return stats, fmt.Errorf("after inlining into %s: %w", name, err)
				}
			}
		}
	}
	return stats, nil
}

// inlineInto expands the inlinable call sites of one caller.
func inlineInto(fn *ir.Function, prog *ir.Program, g *callgraph.Graph, stats *Stats) (bool, error) {
	changed := false
	queue := fn.BlockIDs()
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		b := fn.Block(id)

		for i := 0; i < len(b.Instrs); i++ {
			call, ok := b.Instrs[i].(ir.Call)
			if !ok {
				continue
			}
			callee := prog.Func(call.Callee)
			if callee == nil {
				continue
			}
			if g.Recursive(call.Callee) || call.Callee == fn.Name {
				stats.Skipped++
				continue
			}
			if !frameShiftable(callee) {
				stats.Skipped++
				continue
			}
			cont, err := expand(fn, b, i, callee)
			if err != nil {
				return changed, err
			}
			changed = true
			stats.Sites++
			// The continuation holds the rest of this block; scan it
			// next.
			queue = append(queue, cont)
			break
		}
	}
	return changed, nil
}

// expand replaces the call at b.Instrs[i] with the callee's body. The
// callee's frame is carved out below the caller's, so its fp-relative
// offsets shift down by the caller's current frame size. Returns the
// continuation block holding the instructions after the call.
func expand(fn *ir.Function, b *ir.Block, i int, callee *ir.Function) (ir.BlockID, error) {
	calleeExit, err := callee.ExitBlock()
	if err != nil {
		return 0, fmt.Errorf("inlining %s: %w", callee.Name, err)
	}

	shift := fn.FrameSize
	fn.FrameSize += callee.FrameSize

	cont := fn.NewBlock()
	cont.Instrs = append([]ir.Instruction(nil), b.Instrs[i+1:]...)
	cont.Term = b.Term

	// Clone the callee's blocks with fresh identifiers.
	remap := map[ir.BlockID]ir.BlockID{}
	for _, cid := range callee.BlockIDs() {
		remap[cid] = fn.NewBlock().ID
	}
	for _, cid := range callee.BlockIDs() {
		src := callee.Block(cid)
		dst := fn.Block(remap[cid])
		dst.Instrs = make([]ir.Instruction, len(src.Instrs))
		for j, ins := range src.Instrs {
			dst.Instrs[j] = shiftFrame(ins, shift)
		}
		dst.Term = remapTerm(src.Term, remap)
	}
	// The callee's single exit resumes the caller.
	fn.Block(remap[calleeExit]).Term = ir.Jump{To: cont.ID}

	b.Instrs = b.Instrs[:i]
	b.Term = ir.Jump{To: remap[callee.Entry]}
	return cont.ID, nil
}

func remapTerm(t ir.Terminator, remap map[ir.BlockID]ir.BlockID) ir.Terminator {
	switch t := t.(type) {
	case ir.If:
		return ir.If{Cond: t.Cond, Then: remap[t.Then], Else: remap[t.Else]}
	case ir.Jump:
		return ir.Jump{To: remap[t.To]}
	case ir.Exit:
		return t
	}
	panic("inline: unhandled terminator")
}

// shiftFrame rewrites an instruction's fp-relative addressing for a
// frame moved down by shift bytes.
func shiftFrame(ins ir.Instruction, shift int64) ir.Instruction {
	if shift == 0 {
		return ins
	}
	switch ins := ins.(type) {
	case ir.Load:
		if ins.Base == ir.FP {
			ins.Off -= shift
		}
		return ins
	case ir.Store:
		if ins.Base == ir.FP {
			ins.Off -= shift
		}
		return ins
	case ir.Bin:
		if ins.X == ir.FP {
			if d, ok := ins.Y.(ir.Imm); ok && ins.Op == ir.ADD {
				ins.Y = ir.Imm(int64(d) - shift)
			}
		}
		return ins
	}
	return ins
}

// frameShiftable checks that every frame-pointer use of the function
// is one the inliner can rewrite: a load/store base or an fp+imm
// addition. Anything else would leak the callee's unshifted frame
// pointer.
func frameShiftable(fn *ir.Function) bool {
	for _, id := range fn.BlockIDs() {
		for _, ins := range fn.Blocks[id].Instrs {
			switch ins := ins.(type) {
			case ir.Load, ir.Store:
			case ir.Assign:
				if ins.Src == ir.FP {
					return false
				}
			case ir.Bin:
				if ins.X == ir.FP {
					if _, ok := ins.Y.(ir.Imm); !ok || ins.Op != ir.ADD {
						return false
					}
				}
				if y, ok := ins.Y.(ir.Reg); ok && y == ir.FP {
					return false
				}
			case ir.MemCpy:
				if ins.Dst == ir.FP || ins.Src == ir.FP {
					return false
				}
			case ir.MemCmp:
				if ins.X == ir.FP || ins.Y == ir.FP {
					return false
				}
			case ir.MemSet:
				if ins.Dst == ir.FP {
					return false
				}
			}
		}
	}
	return true
}
