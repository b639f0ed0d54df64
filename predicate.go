package boxtree

import "math"

// Predicate drives a tree traversal.
//
// Accept is applied to the region of each subtree and may only return false
// when no box inside the region can match; it is allowed to over-approximate.
// Matches is the exact test applied to each box in a visited leaf.
type Predicate interface {
	Accept(min, max []float64) bool
	Matches(min, max []float64) bool
}

// RegionIntersects matches boxes that touch or overlap [Min, Max].
type RegionIntersects struct {
	Min, Max []float64
	Eps      float64
}

// Accept reports whether the region may hold an intersecting box.
func (p RegionIntersects) Accept(min, max []float64) bool {
	return overlapLoose(p.Min, p.Max, min, max, p.Eps)
}

// Matches reports whether the box touches or overlaps the query region.
func (p RegionIntersects) Matches(min, max []float64) bool {
	return overlap(p.Min, p.Max, min, max, p.Eps)
}

// RegionContains matches boxes that contain [Min, Max].
type RegionContains struct {
	Min, Max []float64
	Eps      float64
}

// Accept reports whether the region touches the query region.
func (p RegionContains) Accept(min, max []float64) bool {
	return overlapLoose(p.Min, p.Max, min, max, p.Eps)
}

// Matches reports whether the box contains the query region.
func (p RegionContains) Matches(min, max []float64) bool {
	for k := range min {
		if min[k] > p.Min[k]+p.Eps || max[k] < p.Max[k]-p.Eps {
			return false
		}
	}
	return true
}

// RegionContained matches boxes that lie within [Min, Max].
type RegionContained struct {
	Min, Max []float64
	Eps      float64
}

// Accept reports whether the region touches the query region.
func (p RegionContained) Accept(min, max []float64) bool {
	return overlapLoose(p.Min, p.Max, min, max, p.Eps)
}

// Matches reports whether the box lies within the query region.
func (p RegionContained) Matches(min, max []float64) bool {
	for k := range min {
		if p.Min[k] > min[k]+p.Eps || p.Max[k] < max[k]-p.Eps {
			return false
		}
	}
	return true
}

// PointIn matches boxes containing P.
type PointIn struct {
	P   []float64
	Eps float64
}

// Accept reports whether the region contains P.
func (p PointIn) Accept(min, max []float64) bool {
	return p.Matches(min, max)
}

// Matches reports whether the box contains P.
func (p PointIn) Matches(min, max []float64) bool {
	for k, x := range p.P {
		if x < min[k]-p.Eps || x > max[k]+p.Eps {
			return false
		}
	}
	return true
}

// slabSlack widens pruning tests in proportion to the magnitudes involved,
// so that rounding never prunes a region holding a box the exact test hits.
const slabSlack = 1e-12

// LineIntersects matches boxes crossed by the infinite line through Origin
// along Dir. When Min and Max are set, a box must also intersect that region.
type LineIntersects struct {
	Origin, Dir []float64
	Min, Max    []float64
	Eps         float64
}

func (p LineIntersects) bounded() bool {
	return p.Min != nil
}

// Accept reports whether the line, or the bounding region when set, may
// reach the region.
func (p LineIntersects) Accept(min, max []float64) bool {
	if p.bounded() {
		return overlapLoose(p.Min, p.Max, min, max, p.Eps)
	}
	lo, hi := math.Inf(-1), math.Inf(1)
	for k, d := range p.Dir {
		o := p.Origin[k]
		pad := p.Eps + slabSlack*(math.Abs(min[k])+math.Abs(max[k])+math.Abs(o))
		rmin, rmax := min[k]-pad, max[k]+pad
		if d == 0 {
			if o < rmin || o > rmax {
				return false
			}
			continue
		}
		t1, t2 := (rmin-o)/d, (rmax-o)/d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		lo, hi = math.Max(lo, t1), math.Min(hi, t2)
		if lo > hi {
			return false
		}
	}
	return true
}

// Matches intersects the line with the two faces of the box on every axis
// the line is not parallel to, and checks whether either hit point lies
// within the box on all the other axes.
func (p LineIntersects) Matches(min, max []float64) bool {
	if p.bounded() && !overlap(p.Min, p.Max, min, max, p.Eps) {
		return false
	}
	for k, d := range p.Dir {
		if d == 0 {
			continue
		}
		for _, face := range [2]float64{min[k], max[k]} {
			if p.onFace((face-p.Origin[k])/d, k, min, max) {
				return true
			}
		}
	}
	return false
}

// onFace reports whether the point at parameter a lies within the box on
// every axis other than k.
func (p LineIntersects) onFace(a float64, k int, min, max []float64) bool {
	for j := range p.Dir {
		if j == k {
			continue
		}
		x := p.Origin[j] + a*p.Dir[j]
		if x < min[j] || x > max[j] {
			return false
		}
	}
	return true
}
