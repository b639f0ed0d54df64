// Package boxtree implements an adaptive axis-aligned bounding box tree for
// range and location queries over a set of D-dimensional boxes.
//
// Boxes are registered with AddBox, the tree is built once with BuildTree,
// and then any number of goroutines may query it concurrently. Adding a box
// to a built index discards the tree; it must be built again before the next
// query.
package boxtree

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/btree"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultLeafCapacity is the number of boxes a leaf holds before the
	// builder considers splitting it.
	DefaultLeafCapacity = 32

	// DefaultMaxDepth bounds the depth of the tree. A node at this depth is
	// always a leaf.
	DefaultMaxDepth = 64
)

// BoxID identifies a registered box.
type BoxID uint64

// Options configures an Index. The zero value is usable.
type Options struct {
	// Epsilon is the tolerance applied to every coordinate comparison.
	Epsilon float64

	// Dimension fixes the coordinate arity. Zero means it is taken from the
	// first inserted box.
	Dimension int

	// LeafCapacity defaults to DefaultLeafCapacity.
	LeafCapacity int

	// MaxDepth defaults to DefaultMaxDepth.
	MaxDepth int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// MeterProvider and TracerProvider default to the otel globals.
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// box is a registry entry.
type box struct {
	min, max *coord
	id       BoxID
}

// node is a node in the tree. Leaf nodes hold boxes; internal nodes hold the
// arena indices of exactly two children.
type node struct {
	Region
	isLeaf      bool
	left, right int
	boxes       []*box
}

// Index is a set of boxes and, once built, the tree over them.
//
// AddBox and Clear must be serialized by the caller and must not race with
// queries. BuildTree may be called from any number of goroutines; exactly one
// performs the build. Queries on a built index are safe for concurrent use.
type Index struct {
	eps      float64
	dim      int
	fixedDim bool
	leafCap  int
	maxDepth int

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *instruments

	coords *interner
	boxes  *btree.BTreeG[*box]

	mu    sync.Mutex
	built atomic.Bool
	nodes []node
	root  int
	stats Stats
}

// New creates an empty index.
func New(opts Options) (*Index, error) {
	switch {
	case math.IsNaN(opts.Epsilon) || opts.Epsilon < 0:
		return nil, fmt.Errorf("%w: epsilon %v", ErrInvalidOptions, opts.Epsilon)
	case opts.Dimension < 0:
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidOptions, opts.Dimension)
	case opts.LeafCapacity < 0:
		return nil, fmt.Errorf("%w: leaf capacity %d", ErrInvalidOptions, opts.LeafCapacity)
	case opts.MaxDepth < 0:
		return nil, fmt.Errorf("%w: max depth %d", ErrInvalidOptions, opts.MaxDepth)
	}

	ix := &Index{
		eps:      opts.Epsilon,
		dim:      opts.Dimension,
		fixedDim: opts.Dimension > 0,
		leafCap:  opts.LeafCapacity,
		maxDepth: opts.MaxDepth,
		logger:   opts.Logger,
		root:     -1,
	}
	if ix.leafCap == 0 {
		ix.leafCap = DefaultLeafCapacity
	}
	if ix.maxDepth == 0 {
		ix.maxDepth = DefaultMaxDepth
	}
	if ix.logger == nil {
		ix.logger = slog.Default()
	}

	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	ix.tracer = tp.Tracer(instrumentationName)
	ix.metrics = newInstruments(mp.Meter(instrumentationName), ix.logger)

	ix.coords = newInterner(ix.eps)
	ix.boxes = btree.NewG(btreeDegree, ix.lessBox)
	return ix, nil
}

// lessBox orders boxes by min then max with the epsilon tolerant comparator.
// Identical handles short-circuit the component comparison.
func (ix *Index) lessBox(a, b *box) bool {
	if a.min != b.min {
		if lessWithin(a.min.v, b.min.v, ix.eps) {
			return true
		}
		if lessWithin(b.min.v, a.min.v, ix.eps) {
			return false
		}
	}
	if a.max == b.max {
		return false
	}
	return lessWithin(a.max.v, b.max.v, ix.eps)
}

// Len returns the number of registered boxes.
func (ix *Index) Len() int {
	return ix.boxes.Len()
}

// Dimension returns the coordinate arity, or zero if it is not yet known.
func (ix *Index) Dimension() int {
	return ix.dim
}

// Epsilon returns the comparison tolerance.
func (ix *Index) Epsilon() float64 {
	return ix.eps
}

// Built reports whether a tree currently exists over the registered boxes.
func (ix *Index) Built() bool {
	return ix.built.Load()
}

// checkDim verifies that every coordinate has the index dimension. The
// dimension must already be known.
func (ix *Index) checkDim(what string, coords ...[]float64) error {
	for _, c := range coords {
		if len(c) != ix.dim {
			return fmt.Errorf("%s: %w: got %d, want %d", what, ErrDimensionMismatch, len(c), ix.dim)
		}
	}
	return nil
}
