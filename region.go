package boxtree

import "math"

// Region is an axis-aligned bounding region. It describes the extent of a
// subtree and is not necessarily the extent of any single box.
type Region struct {
	Min, Max []float64
}

// lo and hi give the extent of b along axis k. Interning may leave a thin box
// with min[k] slightly above max[k]; the tree always works with the hull of
// the two so that such a box is still placed and bounded.
func (b *box) lo(k int) float64 { return math.Min(b.min.v[k], b.max.v[k]) }
func (b *box) hi(k int) float64 { return math.Max(b.min.v[k], b.max.v[k]) }

// boundBoxes calculates the smallest region that fits every box in the list.
// The list must not be empty.
func boundBoxes(boxes []*box) Region {
	dim := len(boxes[0].min.v)
	rg := Region{Min: make([]float64, dim), Max: make([]float64, dim)}
	for k := 0; k < dim; k++ {
		rg.Min[k], rg.Max[k] = boxes[0].lo(k), boxes[0].hi(k)
	}
	for _, b := range boxes[1:] {
		rg.extend(b)
	}
	return rg
}

// extend grows the region so that it also covers b.
func (r *Region) extend(b *box) {
	for k := range r.Min {
		r.Min[k] = math.Min(r.Min[k], b.lo(k))
		r.Max[k] = math.Max(r.Max[k], b.hi(k))
	}
}

// clamp shrinks the region so that it lies within outer.
func (r *Region) clamp(outer Region) {
	for k := range r.Min {
		r.Min[k] = math.Max(r.Min[k], outer.Min[k])
		r.Max[k] = math.Min(r.Max[k], outer.Max[k])
	}
}

// overlap reports whether the two regions touch or intersect once each is
// widened by eps on every side.
func overlap(aMin, aMax, bMin, bMax []float64, eps float64) bool {
	for k := range aMin {
		if aMax[k] < bMin[k]-eps || aMin[k] > bMax[k]+eps {
			return false
		}
	}
	return true
}

// overlapLoose is overlap with eps widened in proportion to the magnitudes
// involved. Predicates use it for pruning, where a rounding error must never
// reject a region holding a match.
func overlapLoose(aMin, aMax, bMin, bMax []float64, eps float64) bool {
	for k := range aMin {
		pad := eps + slabSlack*(math.Abs(aMin[k])+math.Abs(aMax[k])+math.Abs(bMin[k])+math.Abs(bMax[k]))
		if aMax[k] < bMin[k]-pad || aMin[k] > bMax[k]+pad {
			return false
		}
	}
	return true
}
