// Package slices holds the small generic slice helpers shared by the
// analysis packages.
package slices

// Find returns the first element satisfying pred, and whether any
// element did.
func Find[S ~[]E, E any](xs S, pred func(E) bool) (E, bool) {
	for _, x := range xs {
		if pred(x) {
			return x, true
		}
	}
	var zero E
	return zero, false
}

// OneOf checks membership of x among the listed alternatives.
func OneOf[E comparable](x E, alternatives ...E) bool {
	_, found := Find(alternatives, func(a E) bool { return a == x })
	return found
}
