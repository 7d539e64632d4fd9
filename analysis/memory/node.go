package memory

import (
	"fmt"
	"sort"

	"github.com/spakin/disjoint"

	i "github.com/verikit/memsplit/utils/indenter"
)

// NodeID indexes an abstract memory object in the arena. Cells and
// fields hold node indices, never owning references, so merging and
// summarization can coalesce indices without dangling-reference
// concerns.
type NodeID int

// StackNode is the distinguished node of the flow-sensitively tracked
// stack region.
const StackNode NodeID = 0

// Field is a typed slot of a node: Width bytes at byte offset Off.
type Field struct {
	Off   int64
	Width uint32
}

func (f Field) String() string {
	return fmt.Sprintf("[%d:%d)", f.Off, f.Off+int64(f.Width))
}

// overlaps checks whether two fields share any byte.
func (f Field) overlaps(g Field) bool {
	return f.Off < g.Off+int64(g.Width) && g.Off < f.Off+int64(f.Width)
}

// within checks whether f lies entirely inside [off, off+len).
func (f Field) within(off, length int64) bool {
	return off <= f.Off && f.Off+int64(f.Width) <= off+length
}

// contains checks whether g lies entirely inside f.
func (f Field) contains(g Field) bool {
	return g.within(f.Off, int64(f.Width))
}

// nodeRecord is the arena entry of one abstract object. The field
// layout is flow-insensitive: it accumulates over the whole function.
type nodeRecord struct {
	elem *disjoint.Element
	// summarized marks a node merged from several allocation sites or
	// widened inside a loop. Field overlap checking is unreliable once
	// set.
	summarized bool
	// fields holds every access shape ever recorded, including nested
	// ones. Exact nodes reject straddling shapes.
	fields map[Field]bool
	// external marks parameter objects created lazily for pointer
	// arguments with no observed allocation.
	external bool
}

// Arena owns every abstract memory object of one function analysis.
// Arenas never escape the fixpoint computation that created them;
// only per-program-point snapshots escape, for the splitter to query.
type Arena struct {
	records []*nodeRecord
	// paramNodes lazily maps parameter registers to external nodes.
	paramNodes map[int]NodeID
	// pendingAlloc is the node of an allocation whose size is not yet
	// resolved, if any.
	pendingAlloc *NodeID
}

// NewArena creates an arena holding only the stack node.
func NewArena() *Arena {
	a := &Arena{paramNodes: map[int]NodeID{}}
	// Index 0 is the stack node.
	a.fresh(false)
	return a
}

func (a *Arena) fresh(external bool) NodeID {
	id := NodeID(len(a.records))
	rec := &nodeRecord{
		fields:   map[Field]bool{},
		external: external,
	}
	rec.elem = disjoint.NewElement()
	rec.elem.Data = id
	a.records = append(a.records, rec)
	return id
}

// Find resolves a node index to its current representative. Merged
// nodes share one representative.
func (a *Arena) Find(id NodeID) NodeID {
	return a.records[id].elem.Find().Data.(NodeID)
}

func (a *Arena) rec(id NodeID) *nodeRecord {
	return a.records[a.Find(id)]
}

// IsSummarized checks whether the node lost per-instance precision.
func (a *Arena) IsSummarized(id NodeID) bool {
	return a.rec(id).summarized
}

// IsExternal checks whether the node is a lazily created parameter object.
func (a *Arena) IsExternal(id NodeID) bool {
	return a.rec(id).external
}

// NumNodes returns the number of allocated records (including merged
// aliases).
func (a *Arena) NumNodes() int {
	return len(a.records)
}

// StartAlloc opens a fresh exact node for an allocator call. Starting
// a new allocation while a previous one is unfinished is a hard
// translation failure; over-approximating allocator nesting is
// unsupported.
func (a *Arena) StartAlloc() (NodeID, bool) {
	if a.pendingAlloc != nil {
		return 0, false
	}
	id := a.fresh(false)
	a.pendingAlloc = &id
	return id, true
}

// FinishAlloc resolves the pending allocation's size.
func (a *Arena) FinishAlloc() {
	a.pendingAlloc = nil
}

// HasPendingAlloc checks whether an allocation is still unresolved.
func (a *Arena) HasPendingAlloc() bool {
	return a.pendingAlloc != nil
}

// ParamNode returns the external object lazily bound to a parameter
// register, creating it on first use.
func (a *Arena) ParamNode(reg int) NodeID {
	if id, ok := a.paramNodes[reg]; ok {
		return a.Find(id)
	}
	id := a.fresh(true)
	a.paramNodes[reg] = id
	return id
}

// Merge coalesces two nodes into one summarized node. Field layouts
// are unioned without overlap checking, so precision is lost.
func (a *Arena) Merge(x, y NodeID) NodeID {
	rx, ry := a.Find(x), a.Find(y)
	if rx == ry {
		return rx
	}
	recx, recy := a.records[rx], a.records[ry]
	disjoint.Union(recx.elem, recy.elem)
	rep := a.Find(rx)
	into, from := a.records[rep], recx
	if rep == rx {
		from = recy
	}
	for f := range from.fields {
		into.fields[f] = true
	}
	into.summarized = true
	into.external = recx.external && recy.external
	return rep
}

// Summarize marks a node as summarized without merging.
func (a *Arena) Summarize(id NodeID) {
	a.rec(id).summarized = true
}

// AddField registers an access of Width bytes at Off. On exact nodes,
// partial overlap with an existing field is a translation failure
// (reported by the caller with positional context); nesting is fine,
// wider accesses may cover narrower ones. On summarized nodes the
// layout is unreliable anyway and the field is recorded
// unconditionally.
//
// The layout only ever grows, so replaying an instruction sequence
// against an already-populated arena reaches the same layout.
func (a *Arena) AddField(id NodeID, off int64, width uint32) (Field, bool) {
	rec := a.rec(id)
	f := Field{Off: off, Width: width}
	if rec.fields[f] {
		return f, true
	}
	if !rec.summarized {
		for g := range rec.fields {
			if f.overlaps(g) && !f.contains(g) && !g.contains(f) {
				return f, false
			}
		}
	}
	rec.fields[f] = true
	return f, true
}

// Fields returns the node's field layout sorted by offset, then
// width.
func (a *Arena) Fields(id NodeID) []Field {
	rec := a.rec(id)
	fs := make([]Field, 0, len(rec.fields))
	for f := range rec.fields {
		fs = append(fs, f)
	}
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].Off != fs[j].Off {
			return fs[i].Off < fs[j].Off
		}
		return fs[i].Width < fs[j].Width
	})
	return fs
}

// KilledFields returns the fields of an exact node that a write to
// [off, off+length) invalidates: fields entirely inside the range, and
// wider fields fully containing it, are killed (their tracked value
// must be havoced downstream). A field straddling the range boundary
// has no sound encoding and fails.
func (a *Arena) KilledFields(id NodeID, off, length int64) (killed []Field, ok bool) {
	w := Field{Off: off, Width: uint32(length)}
	for _, f := range a.Fields(id) {
		switch {
		case !f.overlaps(w):
		case f.within(off, length), f.contains(w):
			killed = append(killed, f)
		default:
			return nil, false
		}
	}
	return killed, true
}

func (a *Arena) String() string {
	var lines []string
	seen := map[NodeID]bool{}
	for idx := range a.records {
		rep := a.Find(NodeID(idx))
		if seen[rep] {
			continue
		}
		seen[rep] = true
		rec := a.records[rep]
		kind := "exact"
		if rec.summarized {
			kind = "summarized"
		}
		if rec.external {
			kind += " external"
		}
		line := fmt.Sprintf("n%d (%s):", rep, kind)
		for _, f := range a.Fields(rep) {
			line += " " + f.String()
		}
		lines = append(lines, line)
	}
	return i.Indenter().Start("arena {").NestStrings(lines...).End("}")
}
