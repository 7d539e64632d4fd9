package scalar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/verikit/memsplit/analysis/ir"
	L "github.com/verikit/memsplit/analysis/lattice"
	"github.com/verikit/memsplit/utils"
)

// State maps registers to scalar abstract values at one program point.
// States are persistent; transfer functions return updated copies.
// The distinguished ⊥ state marks an infeasible path.
type State struct {
	values *immutable.Map[ir.Reg, Value]
	bottom bool
}

func emptyValues() *immutable.Map[ir.Reg, Value] {
	return immutable.NewMap[ir.Reg, Value](utils.IntHasher[ir.Reg]{})
}

// Initial is the state where every register is unconstrained.
func Initial() State {
	return State{values: emptyValues()}
}

// Bot is the infeasible-path state.
func Bot() State {
	return State{values: emptyValues(), bottom: true}
}

// IsBot checks whether the state is ⊥.
func (s State) IsBot() bool {
	return s.bottom
}

// Get returns the abstract value of a register. Unmapped registers are
// unconstrained.
func (s State) Get(r ir.Reg) Value {
	if v, found := s.values.Get(r); found {
		return v
	}
	return Nondet()
}

// FlatConst evaluates an operand in the flat constant lattice: ⊥ on an
// infeasible path, the constant when the operand is statically known,
// ⊤ otherwise.
func (s State) FlatConst(op ir.Operand) L.FlatElement {
	if s.bottom {
		return L.Create().Lattice().Flat().Bot().Flat()
	}
	switch op := op.(type) {
	case ir.Imm:
		return L.Elements().FlatConst(int64(op))
	case ir.Reg:
		return s.Get(op).Flat()
	}
	return L.Create().Lattice().Flat().Top().Flat()
}

// Set returns the state with the register bound to the value.
// Qualifiers in other registers referring to the overwritten register
// are killed.
func (s State) Set(r ir.Reg, v Value) State {
	if s.bottom {
		return s
	}
	values := emptyValues()
	iter := s.values.Iterator()
	for !iter.Done() {
		reg, val, _ := iter.Next()
		if reg != r {
			values = values.Set(reg, val.KillMentions(r))
		}
	}
	return State{values: values.Set(r, v)}
}

// MonoJoin joins two states pointwise. ⊥ is the identity.
func (s1 State) MonoJoin(s2 State) State {
	switch {
	case s1.bottom:
		return s2
	case s2.bottom:
		return s1
	}
	// A register unmapped on either side is unconstrained there, so
	// only registers mapped on both sides stay mapped.
	values := emptyValues()
	iter := s1.values.Iterator()
	for !iter.Done() {
		r, v1, _ := iter.Next()
		if v2, found := s2.values.Get(r); found {
			if joined := v1.MonoJoin(v2); !joined.IsNondet() {
				values = values.Set(r, joined)
			}
		}
	}
	return State{values: values}
}

// Widen widens s1 with respect to s2, forcing interval stabilization.
func (s1 State) Widen(s2 State) State {
	switch {
	case s1.bottom:
		return s2
	case s2.bottom:
		return s1
	}
	values := emptyValues()
	iter := s1.values.Iterator()
	for !iter.Done() {
		r, v1, _ := iter.Next()
		if v2, found := s2.values.Get(r); found {
			if widened := v1.Widen(v2); !widened.IsNondet() {
				values = values.Set(r, widened)
			}
		}
	}
	return State{values: values}
}

// Leq computes s1 ⊑ s2.
func (s1 State) Leq(s2 State) bool {
	if s1.bottom {
		return true
	}
	if s2.bottom {
		return false
	}
	// s1 ⊑ s2 iff every register constrained in s2 is at least as
	// constrained in s1.
	iter := s2.values.Iterator()
	for !iter.Done() {
		r, v2, _ := iter.Next()
		if !s1.Get(r).Leq(v2) {
			return false
		}
	}
	return true
}

// Eq checks state equality.
func (s1 State) Eq(s2 State) bool {
	return s1.Leq(s2) && s2.Leq(s1)
}

func (s State) String() string {
	if s.bottom {
		return "⊥"
	}
	var regs []ir.Reg
	iter := s.values.Iterator()
	for !iter.Done() {
		r, _, _ := iter.Next()
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })

	var sb strings.Builder
	sb.WriteString("{")
	for i, r := range regs {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, _ := s.values.Get(r)
		fmt.Fprintf(&sb, "%s ↦ %s", r, v)
	}
	sb.WriteString("}")
	return sb.String()
}
