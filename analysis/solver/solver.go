// Package solver implements the per-variable interval constraint
// solver underlying the scalar abstract domain.
//
// A solver instance holds a conjunction of single-variable interval
// constraints. Solving refines, independently per variable, the
// tightest interval consistent with all of the variable's constraints.
// An unsatisfiable conjunction is a normal non-result (the querying
// path is infeasible), not an error.
package solver

import (
	"github.com/verikit/memsplit/analysis/ir"
	L "github.com/verikit/memsplit/analysis/lattice"
)

// Solution maps each constrained variable to its tightest interval.
type Solution[V comparable] map[V]L.Interval

// IntervalSolver solves a conjunction of interval constraints.
// Arithmetic is unsigned: every variable starts at [0, ∞], and signed
// predicates do not restrict.
type IntervalSolver[V comparable] struct {
	constraints map[V][]Constraint[V]
	// order fixes a deterministic variable iteration order.
	order []V
	// dropped counts the constraints discarded at construction because
	// they are not interval-shaped. Callers interested in the known
	// precision gap around relational constraints can observe it here.
	dropped int
}

// NewIntervalSolver creates a solver from interval-shaped constraints.
func NewIntervalSolver[V comparable](cs ...Constraint[V]) *IntervalSolver[V] {
	s := &IntervalSolver[V]{constraints: map[V][]Constraint[V]{}}
	for _, c := range cs {
		s.add(c)
	}
	return s
}

// FromLinear creates a solver from arbitrary linear constraints.
// Constraints that are not interval-shaped (relational constraints
// over several variables, scaled variables, variable-free constant
// comparisons) are dropped without error. A dropped relational
// constraint can mask a real contradiction, so the count is observable
// through Dropped.
func FromLinear[V comparable](lcs ...LinearConstraint[V]) *IntervalSolver[V] {
	s := &IntervalSolver[V]{constraints: map[V][]Constraint[V]{}}
	for _, lc := range lcs {
		if c, ok := lc.interval(); ok {
			s.add(c)
		} else {
			s.dropped++
		}
	}
	return s
}

func (s *IntervalSolver[V]) add(c Constraint[V]) {
	if _, seen := s.constraints[c.Var]; !seen {
		s.order = append(s.order, c.Var)
	}
	s.constraints[c.Var] = append(s.constraints[c.Var], c)
}

// Dropped returns how many non-interval-shaped constraints were
// discarded at construction.
func (s *IntervalSolver[V]) Dropped() int {
	return s.dropped
}

// Solve returns the tightest interval per variable consistent with the
// whole conjunction, or (nil, false) if any variable's constraints are
// jointly unsatisfiable. An empty conjunction yields a defined, empty
// solution.
func (s *IntervalSolver[V]) Solve() (Solution[V], bool) {
	sol := Solution[V]{}
	for _, v := range s.order {
		iv, ok := solveVar(s.constraints[v])
		if !ok {
			return nil, false
		}
		sol[v] = iv
	}
	return sol, true
}

// solveVar refines one variable against its conjunction. Bound
// constraints are applied first; not-equal constraints afterwards,
// iterated to a fixpoint, so that the result does not depend on the
// order constraints were supplied in.
func solveVar[V comparable](cs []Constraint[V]) (L.Interval, bool) {
	iv := L.Elements().Interval(L.FiniteBound(0), L.PlusInfinity{})

	var nes []int64
	for _, c := range cs {
		switch c.Op {
		case ir.EQ:
			iv = iv.MonoMeet(L.Elements().IntervalConst(c.K))
		case ir.NE:
			nes = append(nes, c.K)
		case ir.LT:
			iv = iv.MonoMeet(L.Elements().Interval(L.MinusInfinity{}, L.FiniteBound(c.K-1)))
		case ir.LE:
			iv = iv.MonoMeet(L.Elements().Interval(L.MinusInfinity{}, L.FiniteBound(c.K)))
		case ir.GT:
			iv = iv.MonoMeet(L.Elements().Interval(L.FiniteBound(c.K+1), L.PlusInfinity{}))
		case ir.GE:
			iv = iv.MonoMeet(L.Elements().Interval(L.FiniteBound(c.K), L.PlusInfinity{}))
		default:
			// Signed predicates are universally true for the unsigned
			// solver; skipping them only widens the result.
		}
		if iv.IsBot() {
			return iv, false
		}
	}

	// A not-equal constraint only shrinks the interval when it names an
	// endpoint (intervals are closed, contiguous ranges); interior
	// holes are not representable and the constraint is a no-op.
	// Shrinking can expose another endpoint to a later constraint, so
	// iterate until stable.
	for changed := true; changed; {
		changed = false
		for _, k := range nes {
			iv2, shrunk := shrinkNe(iv, k)
			if shrunk {
				iv = iv2
				changed = true
			}
			if iv.IsBot() {
				return iv, false
			}
		}
	}

	return iv, true
}

func shrinkNe(iv L.Interval, k int64) (L.Interval, bool) {
	kb := L.FiniteBound(k)
	low := kb.Eq(iv.LowBound())
	high := kb.Eq(iv.HighBound())
	switch {
	case low && high:
		// [k, k] ∧ x ≠ k is empty.
		return L.Create().Lattice().Interval().Bot().Interval(), true
	case low:
		return L.Elements().Interval(kb+1, iv.HighBound()), true
	case high:
		return L.Elements().Interval(iv.LowBound(), kb-1), true
	}
	return iv, false
}
