package boxtree

import (
	"fmt"
	"slices"
)

// Query returns the ids of every box the predicate matches, each once, in
// ascending order. It returns ErrNotBuilt unless the tree has been built.
//
// The predicate's coordinates are not checked against the index dimension;
// the Find methods do that.
func (ix *Index) Query(p Predicate) ([]BoxID, error) {
	return ix.query(queryCustom, p)
}

func (ix *Index) query(queryType string, p Predicate) ([]BoxID, error) {
	if !ix.built.Load() {
		return nil, fmt.Errorf("query %s: %w", queryType, ErrNotBuilt)
	}
	ix.metrics.recordQuery(queryType)
	if ix.root < 0 {
		return nil, nil
	}

	// A box straddling a split is reachable from several leaves.
	found := make(map[BoxID]struct{})
	var recurse func(n int)
	recurse = func(n int) {
		nd := &ix.nodes[n]
		if nd.isLeaf {
			for _, b := range nd.boxes {
				if p.Matches(b.min.v, b.max.v) {
					found[b.id] = struct{}{}
				}
			}
			return
		}
		for _, c := range [2]int{nd.left, nd.right} {
			if p.Accept(ix.nodes[c].Min, ix.nodes[c].Max) {
				recurse(c)
			}
		}
	}
	if p.Accept(ix.nodes[ix.root].Min, ix.nodes[ix.root].Max) {
		recurse(ix.root)
	}

	ids := make([]BoxID, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// checkQuery validates query coordinates. The dimension is unknown only for
// an index that has never held a box, which matches nothing, so in that case
// skip is true.
func (ix *Index) checkQuery(what string, coords ...[]float64) (skip bool, err error) {
	if !ix.built.Load() {
		return false, fmt.Errorf("%s: %w", what, ErrNotBuilt)
	}
	if ix.dim == 0 {
		return true, nil
	}
	return false, ix.checkDim(what, coords...)
}

// FindIntersecting returns the boxes that touch or overlap [min, max].
func (ix *Index) FindIntersecting(min, max []float64) ([]BoxID, error) {
	if skip, err := ix.checkQuery("find intersecting", min, max); skip || err != nil {
		return nil, err
	}
	return ix.query(queryIntersecting, RegionIntersects{Min: min, Max: max, Eps: ix.eps})
}

// FindContaining returns the boxes that contain [min, max].
func (ix *Index) FindContaining(min, max []float64) ([]BoxID, error) {
	if skip, err := ix.checkQuery("find containing", min, max); skip || err != nil {
		return nil, err
	}
	return ix.query(queryContaining, RegionContains{Min: min, Max: max, Eps: ix.eps})
}

// FindContained returns the boxes that lie within [min, max].
func (ix *Index) FindContained(min, max []float64) ([]BoxID, error) {
	if skip, err := ix.checkQuery("find contained", min, max); skip || err != nil {
		return nil, err
	}
	return ix.query(queryContained, RegionContained{Min: min, Max: max, Eps: ix.eps})
}

// FindAtPoint returns the boxes that contain p.
func (ix *Index) FindAtPoint(p []float64) ([]BoxID, error) {
	if skip, err := ix.checkQuery("find at point", p); skip || err != nil {
		return nil, err
	}
	return ix.query(queryPoint, PointIn{P: p, Eps: ix.eps})
}

// FindLineIntersecting returns the boxes crossed by the infinite line through
// origin along dir.
func (ix *Index) FindLineIntersecting(origin, dir []float64) ([]BoxID, error) {
	if skip, err := ix.checkLine("find line intersecting", origin, dir); skip || err != nil {
		return nil, err
	}
	return ix.query(queryLine, LineIntersects{Origin: origin, Dir: dir, Eps: ix.eps})
}

// FindLineIntersectingInRegion is like FindLineIntersecting but only reports
// boxes that also intersect [min, max].
func (ix *Index) FindLineIntersectingInRegion(origin, dir, min, max []float64) ([]BoxID, error) {
	if skip, err := ix.checkLine("find line intersecting", origin, dir, min, max); skip || err != nil {
		return nil, err
	}
	return ix.query(queryLine, LineIntersects{Origin: origin, Dir: dir, Min: min, Max: max, Eps: ix.eps})
}

func (ix *Index) checkLine(what string, origin, dir []float64, region ...[]float64) (bool, error) {
	skip, err := ix.checkQuery(what, append([][]float64{origin, dir}, region...)...)
	if err != nil {
		return false, err
	}
	if !slices.ContainsFunc(dir, func(d float64) bool { return d != 0 }) {
		return false, fmt.Errorf("%s: %w", what, ErrZeroDirection)
	}
	return skip, nil
}
