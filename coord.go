package boxtree

import "github.com/google/btree"

// btreeDegree is the branching degree of the ordered sets backing the
// interner and the registry.
const btreeDegree = 16

// coord is an interned coordinate tuple. Coordinates that are equal within
// epsilon on every axis share one *coord, so handle identity can be tested
// with pointer equality.
type coord struct {
	v []float64
}

// lessWithin orders a and b lexicographically, treating components that are
// within eps of each other as equal.
//
// The order is not transitive for chains of approximately equal values
// (a~b, b~c, but not a~c). The interner and registry accept that risk rather
// than snapping coordinates to a grid.
func lessWithin(a, b []float64, eps float64) bool {
	for k := range a {
		switch {
		case a[k] < b[k]-eps:
			return true
		case a[k] > b[k]+eps:
			return false
		}
	}
	return false
}

// interner deduplicates coordinates within a fixed epsilon.
type interner struct {
	eps float64
	set *btree.BTreeG[*coord]
}

func newInterner(eps float64) *interner {
	return &interner{
		eps: eps,
		set: btree.NewG(btreeDegree, func(a, b *coord) bool {
			return lessWithin(a.v, b.v, eps)
		}),
	}
}

// intern returns the handle for v, creating one if no coordinate within
// epsilon has been seen before. The caller's slice is copied, never retained.
func (in *interner) intern(v []float64) *coord {
	key := &coord{v: v}
	if c, ok := in.set.Get(key); ok {
		return c
	}
	c := &coord{v: append([]float64(nil), v...)}
	if existing, replaced := in.set.ReplaceOrInsert(c); replaced {
		in.set.ReplaceOrInsert(existing)
		return existing
	}
	return c
}

func (in *interner) len() int {
	return in.set.Len()
}

func (in *interner) clear() {
	in.set.Clear(false)
}
