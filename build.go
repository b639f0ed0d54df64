package boxtree

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Stats describes the shape of a built tree.
type Stats struct {
	Boxes       int           // Registered boxes
	Nodes       int           // Internal and leaf nodes
	Leaves      int           // Leaf nodes
	Depth       int           // Longest root to leaf path, in edges
	LargestLeaf int           // Most boxes held by one leaf
	LeafRefs    int           // Box references over all leaves; exceeds Boxes when boxes straddle splits
	BuildTime   time.Duration // Wall time of the last build
}

// Stats returns the shape of the current tree. It is the zero value while
// the index is not built.
func (ix *Index) Stats() Stats {
	if !ix.built.Load() {
		return Stats{}
	}
	return ix.stats
}

// BuildTree builds the tree over the registered boxes. It is a no-op if the
// tree already exists. Concurrent calls collapse into a single build; the
// others block until it finishes. An empty index builds to an empty tree
// that answers every query with no matches.
func (ix *Index) BuildTree(ctx context.Context) {
	if ix.built.Load() {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.built.Load() {
		return
	}

	ctx, span := ix.tracer.Start(ctx, "boxtree.BuildTree",
		trace.WithAttributes(attribute.Int("boxtree.boxes", ix.boxes.Len())),
	)
	defer span.End()
	start := time.Now()

	ix.nodes = nil
	ix.root = -1
	if n := ix.boxes.Len(); n > 0 {
		items := make([]*box, 0, n)
		ix.boxes.Ascend(func(b *box) bool {
			items = append(items, b)
			return true
		})
		ix.root = ix.partition(items, boundBoxes(items), 0, 0)
	}

	ix.stats = ix.measure()
	ix.stats.BuildTime = time.Since(start)
	ix.built.Store(true)

	span.SetAttributes(
		attribute.Int("boxtree.nodes", ix.stats.Nodes),
		attribute.Int("boxtree.leaves", ix.stats.Leaves),
		attribute.Int("boxtree.depth", ix.stats.Depth),
	)
	ix.metrics.recordBuild(ctx, ix.stats)
	ix.logger.Debug("box tree built",
		slog.Int("boxes", ix.stats.Boxes),
		slog.Int("nodes", ix.stats.Nodes),
		slog.Int("leaves", ix.stats.Leaves),
		slog.Int("depth", ix.stats.Depth),
		slog.Duration("build_time", ix.stats.BuildTime),
	)
}

// partition builds the subtree over items, whose bound is rg, and returns its
// arena index. Boxes straddling the split value are placed on both sides.
func (ix *Index) partition(items []*box, rg Region, lastAxis, depth int) int {
	if len(items) <= ix.leafCap || depth >= ix.maxDepth {
		return ix.appendLeaf(items, rg)
	}
	axis, v, ok := ix.chooseSplit(items, rg, lastAxis)
	if !ok {
		return ix.appendLeaf(items, rg)
	}

	// A zero width box lying exactly on v must stay on the left, so the
	// left test is inclusive. Every box lands on at least one side.
	var left, right []*box
	for _, b := range items {
		if b.lo(axis) <= v {
			left = append(left, b)
		}
		if b.hi(axis) > v {
			right = append(right, b)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return ix.appendLeaf(items, rg)
	}

	leftRg := boundBoxes(left)
	leftRg.clamp(rg)
	leftRg.Max[axis] = math.Min(leftRg.Max[axis], v)
	rightRg := boundBoxes(right)
	rightRg.clamp(rg)
	rightRg.Min[axis] = math.Max(rightRg.Min[axis], v)

	n := len(ix.nodes)
	ix.nodes = append(ix.nodes, node{Region: rg})
	l := ix.partition(left, leftRg, axis, depth+1)
	r := ix.partition(right, rightRg, axis, depth+1)
	ix.nodes[n].left, ix.nodes[n].right = l, r
	return n
}

// chooseSplit tries each axis in turn, starting after lastAxis. An axis is
// accepted when the region midpoint has some but not all boxes entirely
// below it. The split value is then tightened to the largest upper extent
// among those boxes. ok is false if no axis qualifies.
func (ix *Index) chooseSplit(items []*box, rg Region, lastAxis int) (axis int, v float64, ok bool) {
	for i := 0; i < ix.dim; i++ {
		axis = (lastAxis + 1 + i) % ix.dim
		mid := (rg.Min[axis] + rg.Max[axis]) / 2
		below := 0
		tight := math.Inf(-1)
		for _, b := range items {
			if m := b.hi(axis); m < mid {
				below++
				tight = math.Max(tight, m)
			}
		}
		if below == 0 || below == len(items) {
			continue
		}
		return axis, tight, true
	}
	return 0, 0, false
}

func (ix *Index) appendLeaf(items []*box, rg Region) int {
	ix.nodes = append(ix.nodes, node{Region: rg, isLeaf: true, boxes: items})
	return len(ix.nodes) - 1
}

// measure walks the tree from the root and summarizes its shape.
func (ix *Index) measure() Stats {
	st := Stats{Boxes: ix.boxes.Len(), Nodes: len(ix.nodes)}
	if ix.root < 0 {
		return st
	}
	type frame struct{ n, depth int }
	stack := []frame{{ix.root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := &ix.nodes[f.n]
		if nd.isLeaf {
			st.Leaves++
			st.LeafRefs += len(nd.boxes)
			if len(nd.boxes) > st.LargestLeaf {
				st.LargestLeaf = len(nd.boxes)
			}
			if f.depth > st.Depth {
				st.Depth = f.depth
			}
			continue
		}
		stack = append(stack, frame{nd.left, f.depth + 1}, frame{nd.right, f.depth + 1})
	}
	return st
}
