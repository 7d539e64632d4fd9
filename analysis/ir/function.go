package ir

import (
	"errors"
	"fmt"
	"sort"

	"github.com/verikit/memsplit/utils/slices"
)

// BlockID identifies a basic block within its function.
type BlockID int

// Block is a basic block: a straight-line instruction sequence ending
// in a terminator.
type Block struct {
	ID     BlockID
	Instrs []Instruction
	Term   Terminator
}

// InstrRef addresses one instruction inside a function, for use as a
// stable key in per-instruction result maps.
type InstrRef struct {
	Block BlockID
	Index int
}

func (r InstrRef) String() string {
	return fmt.Sprintf("b%d:%d", r.Block, r.Index)
}

// ErrMultipleExits is reported when a function body violates the
// single-exit normal form.
var ErrMultipleExits = errors.New("function has multiple exit blocks")

// ErrNoExit is reported when a function body has no exit block.
var ErrNoExit = errors.New("function has no exit block")

// Function is a single-entry, single-exit CFG over basic blocks.
// The representation is owned by the front end; the analysis treats it
// as immutable, except for the inliner and the splitter.
type Function struct {
	Name string
	// FrameSize is the number of stack bytes owned by the function,
	// addressed as [fp-FrameSize, fp).
	FrameSize int64

	Blocks map[BlockID]*Block
	Entry  BlockID

	nextID BlockID
}

// NewFunction creates a function with a single empty entry block
// terminated by Exit.
func NewFunction(name string, frameSize int64) *Function {
	f := &Function{
		Name:      name,
		FrameSize: frameSize,
		Blocks:    map[BlockID]*Block{},
	}
	entry := f.NewBlock()
	entry.Term = Exit{}
	f.Entry = entry.ID
	return f
}

// NewBlock appends a fresh empty block, terminated by Exit until
// otherwise set.
func (f *Function) NewBlock() *Block {
	b := &Block{ID: f.nextID, Term: Exit{}}
	f.nextID++
	f.Blocks[b.ID] = b
	return b
}

// Block returns the block with the given identifier, or nil.
func (f *Function) Block(id BlockID) *Block {
	return f.Blocks[id]
}

// ExitBlock returns the identifier of the unique exit block.
// Errors if the single-exit invariant does not hold.
func (f *Function) ExitBlock() (BlockID, error) {
	found := false
	var exit BlockID
	for _, id := range f.BlockIDs() {
		if _, ok := f.Blocks[id].Term.(Exit); ok {
			if found {
				return 0, fmt.Errorf("%w: %s", ErrMultipleExits, f.Name)
			}
			found = true
			exit = id
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrNoExit, f.Name)
	}
	return exit, nil
}

// CheckStructure validates the structural invariants expected from a
// normalized function: every terminator targets an existing block,
// memory accesses use power-of-two widths up to one word, and there is
// exactly one exit block. Checked after every transformation.
func (f *Function) CheckStructure() error {
	if _, ok := f.Blocks[f.Entry]; !ok {
		return fmt.Errorf("entry block b%d missing in %s", f.Entry, f.Name)
	}
	for _, b := range f.Blocks {
		for i, ins := range b.Instrs {
			var w uint32
			switch m := ins.(type) {
			case Load:
				w = m.Width
			case Store:
				w = m.Width
			default:
				continue
			}
			if !slices.OneOf(w, 1, 2, 4, 8) {
				return fmt.Errorf("access width %d at b%d:%d in %s", w, b.ID, i, f.Name)
			}
		}
		for _, succ := range b.Term.Succs() {
			if _, ok := f.Blocks[succ]; !ok {
				return fmt.Errorf("dangling edge b%d -> b%d in %s", b.ID, succ, f.Name)
			}
		}
	}
	_, err := f.ExitBlock()
	return err
}

// BlockIDs returns all block identifiers in ascending order.
// Deterministic iteration order matters for reproducible analysis runs.
func (f *Function) BlockIDs() []BlockID {
	ids := make([]BlockID, 0, len(f.Blocks))
	for id := range f.Blocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Preds computes the predecessor relation of the CFG.
func (f *Function) Preds() map[BlockID][]BlockID {
	preds := map[BlockID][]BlockID{}
	for _, id := range f.BlockIDs() {
		for _, succ := range f.Blocks[id].Term.Succs() {
			preds[succ] = append(preds[succ], id)
		}
	}
	return preds
}

// ReversePostorder returns the blocks reachable from the entry in
// reverse postorder. Unreachable blocks are not included.
func (f *Function) ReversePostorder() []BlockID {
	var post []BlockID
	visited := map[BlockID]bool{}

	var rec func(BlockID)
	rec = func(id BlockID) {
		visited[id] = true
		for _, succ := range f.Blocks[id].Term.Succs() {
			if !visited[succ] {
				rec(succ)
			}
		}
		post = append(post, id)
	}
	rec(f.Entry)

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// Callees returns the set of function names invoked by call
// instructions, in deterministic order.
func (f *Function) Callees() []string {
	seen := map[string]bool{}
	var res []string
	for _, id := range f.BlockIDs() {
		for _, ins := range f.Blocks[id].Instrs {
			if call, ok := ins.(Call); ok && !seen[call.Callee] {
				seen[call.Callee] = true
				res = append(res, call.Callee)
			}
		}
	}
	sort.Strings(res)
	return res
}

// Clone produces a deep copy of the function. Instructions are value
// types, so copying the slices suffices.
func (f *Function) Clone() *Function {
	g := &Function{
		Name:      f.Name,
		FrameSize: f.FrameSize,
		Blocks:    make(map[BlockID]*Block, len(f.Blocks)),
		Entry:     f.Entry,
		nextID:    f.nextID,
	}
	for id, b := range f.Blocks {
		nb := &Block{ID: b.ID, Term: b.Term}
		nb.Instrs = append([]Instruction(nil), b.Instrs...)
		g.Blocks[id] = nb
	}
	return g
}
