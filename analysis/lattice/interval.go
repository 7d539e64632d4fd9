package lattice

import (
	"fmt"
	"strconv"
)

// Interval is a member of the interval lattice, consisting of two
// bounds `low` and `high`. The empty interval (⊥) is [∞, -∞].
type Interval struct {
	element
	low  IntervalBound
	high IntervalBound
}

// Interval creates an interval with possibly infinite bounds.
func (elementFactory) Interval(low IntervalBound, high IntervalBound) Interval {
	return Interval{low: low, high: high}
}

// IntervalFinite creates an interval with finite bounds.
func (elementFactory) IntervalFinite(low int64, high int64) Interval {
	return Interval{
		low:  FiniteBound(low),
		high: FiniteBound(high),
	}
}

// IntervalConst creates the singleton interval [c, c].
func (elementFactory) IntervalConst(c int64) Interval {
	return Interval{low: FiniteBound(c), high: FiniteBound(c)}
}

// Lattice retrieves the interval lattice for any interval.
func (Interval) Lattice() Lattice {
	return intervalLattice
}

func (e Interval) String() string {
	_, low := e.low.(PlusInfinity)
	_, high := e.high.(MinusInfinity)
	if low && high {
		return "⊥"
	}
	return "[" + e.low.String() + ", " + e.high.String() + "]"
}

// Height is the difference between the bounds if both are finite, and
// -1 otherwise.
func (e Interval) Height() int {
	l, lok := e.low.(FiniteBound)
	h, hok := e.high.(FiniteBound)
	if !(lok && hok) {
		return -1
	}
	if h < l {
		return 0
	}
	return int(h - l)
}

// Interval safely converts an interval.
func (e Interval) Interval() Interval {
	return e
}

// IsBot checks that the interval is equal to ⊥ = [∞, -∞].
func (e Interval) IsBot() bool {
	return e.low.Gt(e.high)
}

// IsTop checks that the interval is equal to ⊤ = [-∞, ∞].
func (e Interval) IsTop() bool {
	return e == intervalLattice.Top().Interval()
}

// IsConst checks whether the interval denotes a single value.
func (e Interval) IsConst() bool {
	l, lok := e.low.(FiniteBound)
	h, hok := e.high.(FiniteBound)
	return lok && hok && l == h
}

// Const unpacks the single value of a constant interval; panics otherwise.
func (e Interval) Const() int64 {
	if !e.IsConst() {
		panic(fmt.Sprintf("Interval %s is not constant", e))
	}
	return int64(e.low.(FiniteBound))
}

// Eq computes e1 = e2. Performs lattice dynamic type checking.
func (e1 Interval) Eq(e2 Element) bool {
	checkLatticeMatch(e1.Lattice(), e2.Lattice(), "=")
	return e1.eq(e2)
}

func (e1 Interval) eq(e2 Element) bool {
	return e1.leq(e2) && e1.geq(e2)
}

// Leq computes e1 ⊑ e2. Performs lattice dynamic type checking.
func (e1 Interval) Leq(e2 Element) bool {
	checkLatticeMatch(e1.Lattice(), e2.Lattice(), "⊑")
	return e1.leq(e2)
}

func (e1 Interval) leq(e2 Element) bool {
	if e1.IsBot() {
		return true
	}
	o := e2.Interval()
	return e1.low.Geq(o.low) && e1.high.Leq(o.high)
}

// Geq computes e1 ⊒ e2. Performs lattice dynamic type checking.
func (e1 Interval) Geq(e2 Element) bool {
	checkLatticeMatch(e1.Lattice(), e2.Lattice(), "⊒")
	return e1.geq(e2)
}

func (e1 Interval) geq(e2 Element) bool {
	return e2.Interval().leq(e1)
}

// Join computes e1 ⊔ e2. Performs lattice dynamic type checking.
func (e1 Interval) Join(e2 Element) Element {
	checkLatticeMatch(e1.Lattice(), e2.Lattice(), "⊔")
	return e1.join(e2)
}

// join takes the lowest of the lower bounds and the highest of the
// upper bounds.
func (e1 Interval) join(e2 Element) Element {
	return e1.MonoJoin(e2.Interval())
}

// MonoJoin is the monomorphic variant of e1 ⊔ e2.
func (e1 Interval) MonoJoin(e2 Interval) Interval {
	if e1.IsBot() {
		return e2
	}
	if e2.IsBot() {
		return e1
	}
	var low, high IntervalBound
	if e1.low.Leq(e2.low) {
		low = e1.low
	} else {
		low = e2.low
	}
	if e1.high.Geq(e2.high) {
		high = e1.high
	} else {
		high = e2.high
	}
	return Interval{low: low, high: high}
}

// Meet computes e1 ⊓ e2. Performs lattice dynamic type checking.
func (e1 Interval) Meet(e2 Element) Element {
	checkLatticeMatch(e1.Lattice(), e2.Lattice(), "⊓")
	return e1.meet(e2)
}

func (e1 Interval) meet(e2 Element) Element {
	return e1.MonoMeet(e2.Interval())
}

// MonoMeet is the monomorphic variant of e1 ⊓ e2.
func (e1 Interval) MonoMeet(e2 Interval) Interval {
	if e1.IsBot() || e2.IsBot() {
		return intervalLattice.Bot().Interval()
	}
	var low, high IntervalBound
	if e1.low.Geq(e2.low) {
		low = e1.low
	} else {
		low = e2.low
	}
	if e1.high.Leq(e2.high) {
		high = e1.high
	} else {
		high = e2.high
	}
	if low.Gt(high) {
		return intervalLattice.Bot().Interval()
	}
	return Interval{low: low, high: high}
}

// Widen computes the standard interval widening e1 ∇ e2: unstable
// bounds jump directly to the respective infinity, guaranteeing that
// ascending chains stabilize.
func (e1 Interval) Widen(e2 Interval) Interval {
	if e1.IsBot() {
		return e2
	}
	if e2.IsBot() {
		return e1
	}
	low, high := e1.low, e1.high
	if e2.low.Lt(e1.low) {
		low = MinusInfinity{}
	}
	if e2.high.Gt(e1.high) {
		high = PlusInfinity{}
	}
	return Interval{low: low, high: high}
}

// Plus computes the interval sum [l1+l2, h1+h2].
func (e1 Interval) Plus(e2 Interval) Interval {
	if e1.IsBot() || e2.IsBot() {
		return intervalLattice.Bot().Interval()
	}
	return Interval{
		low:  e1.low.Plus(e2.low),
		high: e1.high.Plus(e2.high),
	}
}

// Minus computes the interval difference [l1-h2, h1-l2].
func (e1 Interval) Minus(e2 Interval) Interval {
	if e1.IsBot() || e2.IsBot() {
		return intervalLattice.Bot().Interval()
	}
	return Interval{
		low:  e1.low.Minus(e2.high),
		high: e1.high.Minus(e2.low),
	}
}

// GetFiniteBounds unpacks the interval bounds, if finite, and panics otherwise.
func (i Interval) GetFiniteBounds() (int64, int64) {
	if i.low.IsInfinite() || i.high.IsInfinite() {
		panic(fmt.Sprintf("Interval %s does not have finite bounds", i))
	}
	return int64(i.low.(FiniteBound)), int64(i.high.(FiniteBound))
}

// Low returns the lower bound as an integer, if finite, and panics otherwise.
func (i Interval) Low() int64 {
	if i.low.IsInfinite() {
		panic(fmt.Sprintf("Interval %s does not have finite lower bound", i))
	}
	return int64(i.low.(FiniteBound))
}

// High returns the upper bound as an integer, if finite, and panics otherwise.
func (i Interval) High() int64 {
	if i.high.IsInfinite() {
		panic(fmt.Sprintf("Interval %s does not have finite upper bound", i))
	}
	return int64(i.high.(FiniteBound))
}

// HasFiniteBounds checks that both bounds are finite.
func (i Interval) HasFiniteBounds() bool {
	return !i.low.IsInfinite() && !i.high.IsInfinite()
}

// LowBound returns the lower bound.
func (i Interval) LowBound() IntervalBound {
	return i.low
}

// HighBound returns the upper bound.
func (i Interval) HighBound() IntervalBound {
	return i.high
}

// IntervalBound is an interface implemented by all interval lattice
// bounds i.e., any FiniteBound value, PlusInfinity and MinusInfinity.
type IntervalBound interface {
	String() string

	// IsInfinite checks whether the interval bound is infinite.
	IsInfinite() bool

	// Eq checks for interval bound equality.
	Eq(IntervalBound) bool
	// Leq computes b1 ≤ b2. The semantics is -∞ ≤ c ≤ ∞, where c ∈ ℤ.
	Leq(IntervalBound) bool
	// Geq computes b1 ≥ b2. The semantics is ∞ ≥ c ≥ -∞, where c ∈ ℤ.
	Geq(IntervalBound) bool
	// Lt computes b1 < b2. The semantics is -∞ < c < ∞, where c ∈ ℤ.
	Lt(IntervalBound) bool
	// Gt computes b1 > b2. The semantics is ∞ > c > -∞, where c ∈ ℤ.
	Gt(IntervalBound) bool

	// Plus computes b1 + b2. Summing opposite infinities panics.
	Plus(IntervalBound) IntervalBound
	// Minus computes b1 - b2. Subtracting an infinity from itself panics.
	Minus(IntervalBound) IntervalBound
	// Max computes max(b1, b2).
	Max(IntervalBound) IntervalBound
	// Min computes min(b1, b2).
	Min(IntervalBound) IntervalBound
}

type (
	// FiniteBound is used to represent finite limits of an interval value.
	FiniteBound int64
	// PlusInfinity represents ∞.
	PlusInfinity struct{}
	// MinusInfinity represents -∞.
	MinusInfinity struct{}
)

// IsInfinite is false for the finite bound.
func (FiniteBound) IsInfinite() bool {
	return false
}

func (b FiniteBound) String() string {
	return colorize.Element(strconv.FormatInt(int64(b), 10))
}

// Eq compares for equality with another bound. Two finite bounds
// are equal if their underlying values are equal.
func (b1 FiniteBound) Eq(b2 IntervalBound) bool {
	if b2, ok := b2.(FiniteBound); ok {
		return b1 == b2
	}
	return false
}

// Leq computes b1 ≤ b2.
func (b1 FiniteBound) Leq(b2 IntervalBound) bool {
	switch b2 := b2.(type) {
	case FiniteBound:
		return b1 <= b2
	case PlusInfinity:
		return true
	}
	return false
}

// Geq computes b1 ≥ b2.
func (b1 FiniteBound) Geq(b2 IntervalBound) bool {
	switch b2 := b2.(type) {
	case FiniteBound:
		return b1 >= b2
	case MinusInfinity:
		return true
	}
	return false
}

// Lt computes b1 < b2.
func (b1 FiniteBound) Lt(b2 IntervalBound) bool {
	switch b2 := b2.(type) {
	case FiniteBound:
		return b1 < b2
	case PlusInfinity:
		return true
	}
	return false
}

// Gt computes b1 > b2.
func (b1 FiniteBound) Gt(b2 IntervalBound) bool {
	switch b2 := b2.(type) {
	case FiniteBound:
		return b1 > b2
	case MinusInfinity:
		return true
	}
	return false
}

// Plus computes b1 + b2.
func (b1 FiniteBound) Plus(b2 IntervalBound) IntervalBound {
	switch b2 := b2.(type) {
	case FiniteBound:
		return b1 + b2
	case PlusInfinity:
		return PlusInfinity{}
	case MinusInfinity:
		return MinusInfinity{}
	}
	return nil
}

// Minus computes b1 - b2.
func (b1 FiniteBound) Minus(b2 IntervalBound) IntervalBound {
	switch b2 := b2.(type) {
	case FiniteBound:
		return b1 - b2
	case PlusInfinity:
		return MinusInfinity{}
	case MinusInfinity:
		return PlusInfinity{}
	}
	return nil
}

// Max computes max(b1, b2).
func (b1 FiniteBound) Max(b2 IntervalBound) IntervalBound {
	switch b2 := b2.(type) {
	case FiniteBound:
		if b1 < b2 {
			return b2
		}
		return b1
	case PlusInfinity:
		return b2
	}
	return b1
}

// Min computes min(b1, b2).
func (b1 FiniteBound) Min(b2 IntervalBound) IntervalBound {
	switch b2 := b2.(type) {
	case FiniteBound:
		if b1 < b2 {
			return b1
		}
		return b2
	case MinusInfinity:
		return b2
	}
	return b1
}

// IsInfinite is true for ∞.
func (PlusInfinity) IsInfinite() bool {
	return true
}

func (PlusInfinity) String() string {
	return colorize.Element("∞")
}

// Eq checks for interval bound equality.
func (PlusInfinity) Eq(b2 IntervalBound) bool {
	_, ok := b2.(PlusInfinity)
	return ok
}

// Leq computes ∞ ≤ b.
func (PlusInfinity) Leq(b2 IntervalBound) bool {
	_, ok := b2.(PlusInfinity)
	return ok
}

// Geq computes ∞ ≥ b. Always true as ∞ is the largest possible bound.
func (PlusInfinity) Geq(IntervalBound) bool {
	return true
}

// Lt computes ∞ < b. Always false as ∞ is the largest possible bound.
func (PlusInfinity) Lt(IntervalBound) bool {
	return false
}

// Gt computes ∞ > b.
func (PlusInfinity) Gt(b2 IntervalBound) bool {
	_, ok := b2.(PlusInfinity)
	return !ok
}

// Plus computes ∞ + b.
func (PlusInfinity) Plus(b2 IntervalBound) IntervalBound {
	if _, ok := b2.(MinusInfinity); ok {
		panic("∞ + -∞")
	}
	return PlusInfinity{}
}

// Minus computes ∞ - b.
func (PlusInfinity) Minus(b2 IntervalBound) IntervalBound {
	if _, ok := b2.(PlusInfinity); ok {
		panic("∞ - ∞")
	}
	return PlusInfinity{}
}

// Max computes max(∞, b) = ∞.
func (PlusInfinity) Max(IntervalBound) IntervalBound {
	return PlusInfinity{}
}

// Min computes min(∞, b) = b.
func (PlusInfinity) Min(b2 IntervalBound) IntervalBound {
	return b2
}

// IsInfinite is true for -∞.
func (MinusInfinity) IsInfinite() bool {
	return true
}

func (MinusInfinity) String() string {
	return colorize.Element("-∞")
}

// Eq computes -∞ = b.
func (MinusInfinity) Eq(b2 IntervalBound) bool {
	_, ok := b2.(MinusInfinity)
	return ok
}

// Leq computes -∞ ≤ b. Always true as -∞ is the smallest possible bound.
func (MinusInfinity) Leq(IntervalBound) bool {
	return true
}

// Geq computes -∞ ≥ b.
func (MinusInfinity) Geq(b2 IntervalBound) bool {
	_, ok := b2.(MinusInfinity)
	return ok
}

// Lt computes -∞ < b.
func (MinusInfinity) Lt(b2 IntervalBound) bool {
	_, ok := b2.(MinusInfinity)
	return !ok
}

// Gt computes -∞ > b. Always false as -∞ is the smallest possible bound.
func (MinusInfinity) Gt(IntervalBound) bool {
	return false
}

// Plus computes -∞ + b.
func (MinusInfinity) Plus(b IntervalBound) IntervalBound {
	if _, ok := b.(PlusInfinity); ok {
		panic("-∞ + ∞")
	}
	return MinusInfinity{}
}

// Minus computes -∞ - b.
func (MinusInfinity) Minus(b IntervalBound) IntervalBound {
	if _, ok := b.(MinusInfinity); ok {
		panic("-∞ - (-∞)")
	}
	return MinusInfinity{}
}

// Max computes max(-∞, b) = b.
func (MinusInfinity) Max(b IntervalBound) IntervalBound {
	return b
}

// Min computes min(-∞, b) = -∞.
func (MinusInfinity) Min(IntervalBound) IntervalBound {
	return MinusInfinity{}
}
