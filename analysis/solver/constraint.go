package solver

import (
	"fmt"

	"github.com/verikit/memsplit/analysis/ir"
)

// Constraint is a single-variable interval constraint `Var op K`.
// Signed predicates are representable but treated as non-restrictive
// by the solver (a documented precision loss; missing information only
// widens results, so soundness is unaffected).
type Constraint[V comparable] struct {
	Var V
	Op  ir.Cmp
	K   int64
}

func (c Constraint[V]) String() string {
	return fmt.Sprintf("%v %s %d", c.Var, c.Op, c.K)
}

// LinearConstraint is a general linear constraint Σ coeff·var op K, as
// produced by condition collection. Only the interval-shaped subset
// (a single variable with coefficient 1) is consumable by the solver.
type LinearConstraint[V comparable] struct {
	// Terms maps each variable to its coefficient.
	Terms map[V]int64
	Op    ir.Cmp
	K     int64
}

// interval extracts the interval-shaped form of a linear constraint.
// The second result is false for constraints the solver cannot
// represent: relational constraints over two or more variables, scaled
// single-variable constraints, and variable-free (constant) constraints.
func (lc LinearConstraint[V]) interval() (Constraint[V], bool) {
	if len(lc.Terms) != 1 {
		return Constraint[V]{}, false
	}
	for v, coeff := range lc.Terms {
		if coeff != 1 {
			return Constraint[V]{}, false
		}
		return Constraint[V]{Var: v, Op: lc.Op, K: lc.K}, true
	}
	panic("unreachable")
}
