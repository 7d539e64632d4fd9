package solver

import (
	"testing"

	"github.com/verikit/memsplit/analysis/ir"
	L "github.com/verikit/memsplit/analysis/lattice"
)

func interval(low, high int64) L.Interval {
	return L.Elements().IntervalFinite(low, high)
}

func TestSolveBounds(t *testing.T) {
	tests := []struct {
		name     string
		cs       []Constraint[string]
		expected L.Interval
		sat      bool
	}{
		{
			"le-gt-ne shrinks to [6,10]",
			[]Constraint[string]{
				{"x", ir.LE, 10},
				{"x", ir.GT, 4},
				{"x", ir.NE, 5},
			},
			interval(6, 10), true,
		},
		{
			"eq pins to constant",
			[]Constraint[string]{{"x", ir.EQ, 7}},
			interval(7, 7), true,
		},
		{
			"interior ne is a no-op",
			[]Constraint[string]{
				{"x", ir.GE, 0},
				{"x", ir.LE, 10},
				{"x", ir.NE, 5},
			},
			interval(0, 10), true,
		},
		{
			"cascading ne shrinks twice",
			[]Constraint[string]{
				{"x", ir.GE, 5},
				{"x", ir.LE, 7},
				{"x", ir.NE, 5},
				{"x", ir.NE, 6},
			},
			interval(7, 7), true,
		},
		{
			"ne empties a singleton",
			[]Constraint[string]{
				{"x", ir.EQ, 3},
				{"x", ir.NE, 3},
			},
			L.Interval{}, false,
		},
		{
			"contradictory bounds are unsat",
			[]Constraint[string]{
				{"x", ir.LT, 3},
				{"x", ir.GT, 5},
			},
			L.Interval{}, false,
		},
		{
			"signed constraints do not restrict",
			[]Constraint[string]{
				{"x", ir.LE, 10},
				{"x", ir.SGT, 1 << 40},
			},
			interval(0, 10), true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sol, ok := NewIntervalSolver(test.cs...).Solve()
			if ok != test.sat {
				t.Fatalf("Solve() sat = %v, expected %v", ok, test.sat)
			}
			if !ok {
				if sol != nil {
					t.Errorf("unsat solve returned non-nil solution %v", sol)
				}
				return
			}
			if res := sol["x"]; !res.Eq(test.expected) {
				t.Errorf("x ∈ %s, expected %s", res, test.expected)
			}
		})
	}
}

func TestSolveEmpty(t *testing.T) {
	sol, ok := NewIntervalSolver[string]().Solve()
	if !ok {
		t.Fatal("empty conjunction must be satisfiable")
	}
	if sol == nil {
		t.Fatal("empty conjunction must yield a defined solution map")
	}
	if len(sol) != 0 {
		t.Errorf("expected empty solution, got %v", sol)
	}
}

// Dropping constant contradictions at construction makes solving
// independent of the order constraints are supplied in.
func TestFromLinearPermutationStable(t *testing.T) {
	lcs := []LinearConstraint[string]{
		{Terms: nil, Op: ir.GT, K: 1},                                // 0 > 1, dropped
		{Terms: map[string]int64{"x": 1}, Op: ir.LE, K: 10},          //
		{Terms: map[string]int64{"x": 1, "y": 1}, Op: ir.EQ, K: 50},  // relational, dropped
		{Terms: map[string]int64{"y": 1}, Op: ir.GE, K: 3},           //
		{Terms: map[string]int64{"x": 2}, Op: ir.EQ, K: 4},           // scaled, dropped
	}

	perms := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
		{1, 3, 0, 4, 2},
	}

	var base Solution[string]
	for i, perm := range perms {
		shuffled := make([]LinearConstraint[string], len(lcs))
		for to, from := range perm {
			shuffled[to] = lcs[from]
		}

		s := FromLinear(shuffled...)
		if s.Dropped() != 3 {
			t.Errorf("permutation %d: Dropped() = %d, expected 3", i, s.Dropped())
		}

		sol, ok := s.Solve()
		if !ok {
			t.Fatalf("permutation %d: unexpectedly unsat", i)
		}
		if base == nil {
			base = sol
			continue
		}
		for v, iv := range base {
			if !sol[v].Eq(iv) {
				t.Errorf("permutation %d: %s ∈ %s, expected %s", i, v, sol[v], iv)
			}
		}
	}

	if !base["x"].Eq(interval(0, 10)) {
		t.Errorf("x ∈ %s, expected %s", base["x"], interval(0, 10))
	}
	if !base["y"].Eq(L.Elements().Interval(L.FiniteBound(3), L.PlusInfinity{})) {
		t.Errorf("y ∈ %s, expected [3, ∞]", base["y"])
	}
}
