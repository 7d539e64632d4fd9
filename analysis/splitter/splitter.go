// Package splitter lowers memory instructions to concrete encodings
// based on the stabilized analysis results: frame accesses become
// fixed-identity scalar slots, heap accesses become indexed byte-map
// operations, and intrinsics scalarize when layout and length permit.
// This is a linear pass; no fixpoint is involved.
package splitter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/verikit/memsplit/analysis/ir"
	"github.com/verikit/memsplit/analysis/memory"
	"github.com/verikit/memsplit/analysis/scalar"
	"github.com/verikit/memsplit/utils/slices"
)

// Kind is the chosen encoding of one memory instruction.
type Kind int

const (
	// StackSlot maps a frame access to one scalar variable per
	// addressed offset.
	StackSlot Kind = iota
	// ByteMap maps a heap access to an indexed byte-map variable.
	ByteMap
	// ScalarCopy lowers a frame-to-frame memcpy or frame memset to a
	// sequence of scalar assignments. Requires a static length.
	ScalarCopy
	// ByteMapCopy lowers an intrinsic to a byte-map-to-byte-map
	// operation.
	ByteMapCopy
	// MixedCopy lowers a memcpy between the frame and the heap.
	MixedCopy
	// WordCompare scalarizes a memcmp over word-compatible ranges into
	// per-word comparisons.
	WordCompare
	// Unsupported marks an access with no precise encoding; the
	// consumer must havoc the affected locations (for memcmp, the
	// result register).
	Unsupported
)

var kindStrings = map[Kind]string{
	StackSlot:   "stack-slot",
	ByteMap:     "byte-map",
	ScalarCopy:  "scalar-copy",
	ByteMapCopy: "byte-map-copy",
	MixedCopy:   "mixed-copy",
	WordCompare: "word-compare",
	Unsupported: "unsupported",
}

func (k Kind) String() string {
	return kindStrings[k]
}

// Havoc names a tracked field whose symbolic value must be forgotten.
type Havoc struct {
	Node  memory.NodeID
	Field memory.Field
}

func (h Havoc) String() string {
	return fmt.Sprintf("n%d%s", h.Node, h.Field)
}

// Decision is the lowering of one memory instruction.
type Decision struct {
	Kind Kind
	// Node is the accessed heap object of a byte-map encoding.
	Node memory.NodeID
	// Offsets are the concrete offsets the access may touch. For
	// stack-slot encodings these are frame offsets, each mapping to a
	// distinct scalar variable.
	Offsets []int64
	// Width is the access width of a load/store.
	Width uint32
	// Len is the static length of an intrinsic; -1 when unknown.
	Len int64
	// Words is the comparison count of a word-compare encoding.
	Words int
	// Opaque marks a byte-map encoding with unknown aliasing, admitted
	// under the optimistic-overlap relaxation.
	Opaque bool
	// MustHavoc lists locations whose tracked values this instruction
	// invalidates.
	MustHavoc []Havoc
}

// Decisions maps every memory instruction to its lowering.
type Decisions map[ir.InstrRef]Decision

// Input is the stabilized abstract state just before one instruction.
type Input struct {
	Mem  memory.State
	Scal scalar.State
}

// Run replays the function's reachable instructions against the final
// in-states and lowers every logged memory access. Replaying against
// an already-populated arena is layout-stable, so running the pass on
// its own output yields identical decisions.
func Run(fn *ir.Function, tr *memory.Transfer, in map[ir.InstrRef]Input, wordSize uint32) (Decisions, error) {
	dec := Decisions{}
	for _, id := range fn.BlockIDs() {
		b := fn.Block(id)
		for i, ins := range b.Instrs {
			ref := ir.InstrRef{Block: id, Index: i}
			st, reached := in[ref]
			if !reached || st.Mem.IsBot() {
				continue
			}
			if _, err := tr.Step(st.Mem, st.Scal, ref, ins); err != nil {
				return nil, err
			}
			acc, logged := tr.Log[ref]
			if !logged {
				continue
			}
			dec[ref] = lower(tr, acc, wordSize)
		}
	}
	return dec, nil
}

func lower(tr *memory.Transfer, acc memory.Access, wordSize uint32) Decision {
	switch acc.Kind {
	case memory.AccLoad, memory.AccStore:
		return lowerDeref(tr, acc)
	case memory.AccMemCpy:
		return lowerCopy(tr, acc)
	case memory.AccMemCmp:
		return lowerCompare(tr, acc, wordSize)
	case memory.AccMemSet:
		return lowerSet(tr, acc)
	}
	panic("splitter: unhandled access kind")
}

func lowerDeref(tr *memory.Transfer, acc memory.Access) Decision {
	d := Decision{Width: acc.Width, Len: -1, MustHavoc: killedHavocs(acc)}
	if acc.Dst.IsStack() {
		d.Kind = StackSlot
		d.Offsets = acc.Dst.Offs.Entries()
		return d
	}
	d.Kind = ByteMap
	d.Node = tr.Arena.Find(acc.Dst.Node)
	if acc.Opaque {
		d.Opaque = true
		d.MustHavoc = nodeHavocs(tr, d.Node)
		return d
	}
	d.Offsets = acc.Dst.Offs.Entries()
	return d
}

func lowerCopy(tr *memory.Transfer, acc memory.Access) Decision {
	d := Decision{Len: acc.Len, MustHavoc: killedHavocs(acc)}
	switch {
	case acc.Opaque:
		d.Kind = ByteMapCopy
		d.Opaque = true
		d.Node = tr.Arena.Find(acc.Dst.Node)
		d.MustHavoc = nodeHavocs(tr, d.Node)
	case acc.Dst.IsStack() && acc.Src.IsStack():
		d.Kind = ScalarCopy
		d.Offsets = acc.Dst.Offs.Entries()
	case !acc.Dst.IsStack() && !acc.Src.IsStack():
		d.Kind = ByteMapCopy
		d.Node = tr.Arena.Find(acc.Dst.Node)
		d.Offsets = acc.Dst.Offs.Entries()
	default:
		d.Kind = MixedCopy
		if !acc.Dst.IsStack() {
			d.Node = tr.Arena.Find(acc.Dst.Node)
		} else {
			d.Node = tr.Arena.Find(acc.Src.Node)
		}
		d.Offsets = acc.Dst.Offs.Entries()
	}
	return d
}

func lowerCompare(tr *memory.Transfer, acc memory.Access, wordSize uint32) Decision {
	d := Decision{Len: acc.Len}
	if acc.Opaque {
		d.Kind = Unsupported
		d.Opaque = true
		return d
	}
	if wordCompatible(tr, acc.Dst, acc.Len, wordSize) &&
		wordCompatible(tr, acc.Src, acc.Len, wordSize) {
		d.Kind = WordCompare
		d.Words = int(acc.Len / int64(wordSize))
		return d
	}
	if !acc.Dst.IsStack() && !acc.Src.IsStack() {
		d.Kind = ByteMapCopy
		d.Node = tr.Arena.Find(acc.Dst.Node)
		return d
	}
	// A frame range that does not decompose into words has no sound
	// scalar comparison; the result must be havoced.
	d.Kind = Unsupported
	return d
}

func lowerSet(tr *memory.Transfer, acc memory.Access) Decision {
	d := Decision{Len: acc.Len, MustHavoc: killedHavocs(acc)}
	if acc.Opaque {
		d.Kind = ByteMap
		d.Opaque = true
		d.Node = tr.Arena.Find(acc.Dst.Node)
		d.MustHavoc = nodeHavocs(tr, d.Node)
		return d
	}
	if acc.Dst.IsStack() {
		d.Kind = ScalarCopy
		d.Offsets = acc.Dst.Offs.Entries()
		return d
	}
	d.Kind = ByteMap
	d.Node = tr.Arena.Find(acc.Dst.Node)
	d.Offsets = acc.Dst.Offs.Entries()
	return d
}

// wordCompatible checks that a compared range decomposes into exactly
// word-sized, word-aligned accesses: the base offset is pinned and
// aligned, the length is a whole number of words, and every known
// field inside the range is one word.
func wordCompatible(tr *memory.Transfer, c memory.Cell, length int64, wordSize uint32) bool {
	if wordSize == 0 || length <= 0 || length%int64(wordSize) != 0 {
		return false
	}
	if !c.Offs.IsSingleton() {
		return false
	}
	base := c.Offs.Offset()
	if base%int64(wordSize) != 0 {
		return false
	}
	_, bad := slices.Find(tr.Arena.Fields(c.Node), func(f memory.Field) bool {
		if f.Off+int64(f.Width) <= base || f.Off >= base+length {
			return false
		}
		return (f.Off-base)%int64(wordSize) != 0 || f.Width != wordSize
	})
	return !bad
}

func killedHavocs(acc memory.Access) []Havoc {
	if len(acc.Killed) == 0 {
		return nil
	}
	hs := make([]Havoc, len(acc.Killed))
	for i, f := range acc.Killed {
		hs[i] = Havoc{Node: acc.Dst.Node, Field: f}
	}
	return hs
}

// nodeHavocs forgets every tracked field of a node; used when an
// opaque access may alias any of them.
func nodeHavocs(tr *memory.Transfer, n memory.NodeID) []Havoc {
	fields := tr.Arena.Fields(n)
	if len(fields) == 0 {
		return nil
	}
	hs := make([]Havoc, len(fields))
	for i, f := range fields {
		hs[i] = Havoc{Node: n, Field: f}
	}
	return hs
}

func (ds Decisions) String() string {
	refs := make([]ir.InstrRef, 0, len(ds))
	for ref := range ds {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Block != refs[j].Block {
			return refs[i].Block < refs[j].Block
		}
		return refs[i].Index < refs[j].Index
	})

	var sb strings.Builder
	for _, ref := range refs {
		d := ds[ref]
		fmt.Fprintf(&sb, "%s: %s", ref, d.Kind)
		if d.Kind == ByteMap || d.Kind == ByteMapCopy || d.Kind == MixedCopy {
			fmt.Fprintf(&sb, " n%d", d.Node)
		}
		if len(d.Offsets) > 0 {
			fmt.Fprintf(&sb, " offs=%v", d.Offsets)
		}
		if d.Width > 0 {
			fmt.Fprintf(&sb, " w=%d", d.Width)
		}
		if d.Len >= 0 {
			fmt.Fprintf(&sb, " len=%d", d.Len)
		}
		if d.Words > 0 {
			fmt.Fprintf(&sb, " words=%d", d.Words)
		}
		if d.Opaque {
			sb.WriteString(" opaque")
		}
		if len(d.MustHavoc) > 0 {
			havocs := make([]string, len(d.MustHavoc))
			for i, h := range d.MustHavoc {
				havocs[i] = h.String()
			}
			fmt.Fprintf(&sb, " havoc=[%s]", strings.Join(havocs, " "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
