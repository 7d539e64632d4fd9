package scalar

import (
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/verikit/memsplit/analysis/ir"
	L "github.com/verikit/memsplit/analysis/lattice"
	"github.com/verikit/memsplit/utils"
)

// Value is a scalar abstract value: a numeric interval paired with a
// set of relational qualifiers. A value without qualifiers and with
// interval ⊤ is "nondet".
type Value struct {
	iv    L.Interval
	quals *immutable.Map[Qualifier, struct{}]
}

func emptyQuals() *immutable.Map[Qualifier, struct{}] {
	return utils.NewImmMap[Qualifier, struct{}]()
}

// Nondet is the unconstrained scalar value.
func Nondet() Value {
	return Value{
		iv:    L.Create().Lattice().Interval().Top().Interval(),
		quals: emptyQuals(),
	}
}

// Const is the singleton value [c, c].
func Const(c int64) Value {
	return Value{
		iv:    L.Elements().IntervalConst(c),
		quals: emptyQuals(),
	}
}

// FromInterval wraps an interval into a qualifier-free value.
func FromInterval(iv L.Interval) Value {
	return Value{iv: iv, quals: emptyQuals()}
}

// Interval returns the numeric component.
func (v Value) Interval() L.Interval {
	return v.iv
}

// Flat projects the value onto the flat constant lattice: a singleton
// interval is the constant, anything wider is ⊤.
func (v Value) Flat() L.FlatElement {
	if v.iv.HasFiniteBounds() {
		if lo, hi := v.iv.GetFiniteBounds(); lo == hi {
			return L.Elements().FlatConst(lo)
		}
	}
	return L.Create().Lattice().Flat().Top().Flat()
}

// WithInterval replaces the numeric component, keeping qualifiers.
func (v Value) WithInterval(iv L.Interval) Value {
	v.iv = iv
	return v
}

// IsNondet checks whether the value carries no information.
func (v Value) IsNondet() bool {
	return v.iv.IsTop() && v.quals.Len() == 0
}

// WithQualifier attaches a relational qualifier.
func (v Value) WithQualifier(q Qualifier) Value {
	v.quals = v.quals.Set(q, struct{}{})
	return v
}

// HasQualifier checks for the presence of a qualifier.
func (v Value) HasQualifier(q Qualifier) bool {
	_, found := v.quals.Get(q)
	return found
}

// ForEachQualifier performs procedure `f` on every qualifier.
func (v Value) ForEachQualifier(f func(Qualifier)) {
	iter := v.quals.Iterator()
	for !iter.Done() {
		q, _, _ := iter.Next()
		f(q)
	}
}

// Qualifiers aggregates the qualifier set into a slice (sorted by
// printed form, for deterministic output).
func (v Value) Qualifiers() []Qualifier {
	var qs []Qualifier
	v.ForEachQualifier(func(q Qualifier) { qs = append(qs, q) })
	sort.Slice(qs, func(i, j int) bool { return qs[i].String() < qs[j].String() })
	return qs
}

// KillMentions drops every qualifier referring to the register.
// Applied when the register is overwritten.
func (v Value) KillMentions(r ir.Reg) Value {
	res := v
	v.ForEachQualifier(func(q Qualifier) {
		if q.Mentions(r) {
			res.quals = res.quals.Delete(q)
		}
	})
	return res
}

// MonoJoin joins two values: intervals are joined, qualifier sets are
// intersected. Qualifiers absent on either path are dropped, which is
// conservative.
func (v1 Value) MonoJoin(v2 Value) Value {
	return Value{
		iv:    v1.iv.MonoJoin(v2.iv),
		quals: intersectQuals(v1.quals, v2.quals),
	}
}

// Widen widens the interval component and intersects qualifiers.
func (v1 Value) Widen(v2 Value) Value {
	return Value{
		iv:    v1.iv.Widen(v2.iv),
		quals: intersectQuals(v1.quals, v2.quals),
	}
}

// Leq orders values: fewer qualifiers and a wider interval is higher.
func (v1 Value) Leq(v2 Value) bool {
	if !v1.iv.Leq(v2.iv) {
		return false
	}
	iter := v2.quals.Iterator()
	for !iter.Done() {
		q, _, _ := iter.Next()
		if _, found := v1.quals.Get(q); !found {
			return false
		}
	}
	return true
}

// Eq checks value equality.
func (v1 Value) Eq(v2 Value) bool {
	return v1.Leq(v2) && v2.Leq(v1)
}

func intersectQuals(
	m1, m2 *immutable.Map[Qualifier, struct{}],
) *immutable.Map[Qualifier, struct{}] {
	if m1.Len() > m2.Len() {
		m1, m2 = m2, m1
	}
	res := emptyQuals()
	iter := m1.Iterator()
	for !iter.Done() {
		q, _, _ := iter.Next()
		if _, found := m2.Get(q); found {
			res = res.Set(q, struct{}{})
		}
	}
	return res
}

func (v Value) String() string {
	if v.quals.Len() == 0 {
		return v.iv.String()
	}
	strs := make([]string, 0, v.quals.Len())
	for _, q := range v.Qualifiers() {
		strs = append(strs, q.String())
	}
	return v.iv.String() + " {" + strings.Join(strs, ", ") + "}"
}
