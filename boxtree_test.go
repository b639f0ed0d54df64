package boxtree

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, opts Options) *Index {
	t.Helper()
	ix, err := New(opts)
	require.NoError(t, err)
	return ix
}

func mustAdd(t *testing.T, ix *Index, min, max []float64) BoxID {
	t.Helper()
	id, err := ix.AddBox(min, max)
	require.NoError(t, err)
	return id
}

func TestScenario(t *testing.T) {
	ix := newTestIndex(t, Options{Epsilon: 1e-10})
	b1 := mustAdd(t, ix, []float64{0, 0}, []float64{1, 1})
	b2 := mustAdd(t, ix, []float64{2, 2}, []float64{3, 3})
	b3 := mustAdd(t, ix, []float64{0.5, 0.5}, []float64{2.5, 2.5})
	assert.Equal(t, []BoxID{0, 1, 2}, []BoxID{b1, b2, b3})
	ix.BuildTree(context.Background())

	got, err := ix.FindIntersecting([]float64{0.9, 0.9}, []float64{2.1, 2.1})
	require.NoError(t, err)
	assert.Equal(t, []BoxID{b1, b2, b3}, got)

	got, err = ix.FindAtPoint([]float64{0.75, 0.75})
	require.NoError(t, err)
	assert.Equal(t, []BoxID{b1, b3}, got)

	got, err = ix.FindContaining([]float64{0.6, 0.6}, []float64{0.7, 0.7})
	require.NoError(t, err)
	assert.Equal(t, []BoxID{b1, b3}, got)

	got, err = ix.FindContained([]float64{-1, -1}, []float64{1.5, 1.5})
	require.NoError(t, err)
	assert.Equal(t, []BoxID{b1}, got)

	got, err = ix.FindLineIntersecting([]float64{-1, 0.5}, []float64{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []BoxID{b1, b3}, got)

	got, err = ix.FindLineIntersectingInRegion([]float64{-1, 0.5}, []float64{1, 0}, []float64{0.6, 0}, []float64{5, 5})
	require.NoError(t, err)
	assert.Equal(t, []BoxID{b1, b3}, got)

	got, err = ix.FindLineIntersectingInRegion([]float64{-1, 0.5}, []float64{1, 0}, []float64{1.5, 0}, []float64{5, 5})
	require.NoError(t, err)
	assert.Equal(t, []BoxID{b3}, got)
}

func TestAddBox_Dedup(t *testing.T) {
	ix := newTestIndex(t, Options{Epsilon: 1e-6})
	a := mustAdd(t, ix, []float64{0, 0}, []float64{1, 1})
	b := mustAdd(t, ix, []float64{0, 0}, []float64{1, 1})
	c := mustAdd(t, ix, []float64{1e-7, 0}, []float64{1, 1 - 1e-7})
	d := mustAdd(t, ix, []float64{1e-5, 0}, []float64{1, 1})

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	assert.Equal(t, BoxID(1), d)
	assert.Equal(t, 2, ix.Len())
}

func TestAddBoxWithID(t *testing.T) {
	ix := newTestIndex(t, Options{})
	id, err := ix.AddBoxWithID([]float64{0}, []float64{1}, 42)
	require.NoError(t, err)
	assert.Equal(t, BoxID(42), id)

	// An existing entry keeps its id; the explicit one is ignored.
	id, err = ix.AddBoxWithID([]float64{0}, []float64{1}, 7)
	require.NoError(t, err)
	assert.Equal(t, BoxID(42), id)

	// Sequential ids come from the registry size.
	assert.Equal(t, BoxID(1), mustAdd(t, ix, []float64{2}, []float64{3}))

	ix.BuildTree(context.Background())
	got, err := ix.FindAtPoint([]float64{0.5})
	require.NoError(t, err)
	assert.Equal(t, []BoxID{42}, got)
}

func TestDimensionMismatch(t *testing.T) {
	ix := newTestIndex(t, Options{})
	_, err := ix.AddBox([]float64{0, 0}, []float64{1})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, ix.Dimension(), "failed first insert must not fix the dimension")

	mustAdd(t, ix, []float64{0, 0}, []float64{1, 1})
	assert.Equal(t, 2, ix.Dimension())

	_, err = ix.AddBox([]float64{0, 0, 0}, []float64{1, 1, 1})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = ix.AddBox(nil, nil)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, ix.Len())

	ix.BuildTree(context.Background())
	_, err = ix.FindIntersecting([]float64{0}, []float64{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = ix.FindContaining([]float64{0, 0}, []float64{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = ix.FindContained([]float64{0, 0, 0}, []float64{1, 1, 1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = ix.FindAtPoint([]float64{0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = ix.FindLineIntersecting([]float64{0}, []float64{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = ix.FindLineIntersectingInRegion([]float64{0, 0}, []float64{1, 0}, []float64{0}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = ix.AddBox([]float64{0}, []float64{1})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.True(t, ix.Built(), "a rejected box must not discard the tree")
}

func TestFixedDimension(t *testing.T) {
	ix := newTestIndex(t, Options{Dimension: 3})
	_, err := ix.AddBox([]float64{0, 0}, []float64{1, 1})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	mustAdd(t, ix, []float64{0, 0, 0}, []float64{1, 1, 1})

	ix.Clear()
	assert.Equal(t, 3, ix.Dimension())
}

func TestNew_InvalidOptions(t *testing.T) {
	for name, opts := range map[string]Options{
		"negative epsilon":       {Epsilon: -1},
		"negative dimension":     {Dimension: -2},
		"negative leaf capacity": {LeafCapacity: -1},
		"negative max depth":     {MaxDepth: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestQueryBeforeBuild(t *testing.T) {
	ix := newTestIndex(t, Options{})
	mustAdd(t, ix, []float64{0, 0}, []float64{1, 1})

	_, err := ix.FindIntersecting([]float64{0, 0}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrNotBuilt)
	_, err = ix.FindContaining([]float64{0, 0}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrNotBuilt)
	_, err = ix.FindContained([]float64{0, 0}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrNotBuilt)
	_, err = ix.FindAtPoint([]float64{0, 0})
	assert.ErrorIs(t, err, ErrNotBuilt)
	_, err = ix.FindLineIntersecting([]float64{0, 0}, []float64{1, 0})
	assert.ErrorIs(t, err, ErrNotBuilt)
	_, err = ix.Query(PointIn{P: []float64{0, 0}})
	assert.ErrorIs(t, err, ErrNotBuilt)
	assert.False(t, ix.Built(), "a query must not build the tree")
}

func TestZeroDirection(t *testing.T) {
	ix := newTestIndex(t, Options{})
	mustAdd(t, ix, []float64{0, 0}, []float64{1, 1})
	ix.BuildTree(context.Background())

	_, err := ix.FindLineIntersecting([]float64{0.5, 0.5}, []float64{0, 0})
	assert.ErrorIs(t, err, ErrZeroDirection)
}

func TestEmptyIndex(t *testing.T) {
	ix := newTestIndex(t, Options{})
	ix.BuildTree(context.Background())
	require.True(t, ix.Built())

	got, err := ix.FindIntersecting([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = ix.Query(PointIn{P: []float64{0}})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, ix.Stats().Nodes)
}

func TestBuildTree_Idempotent(t *testing.T) {
	ix := newTestIndex(t, Options{LeafCapacity: 2})
	for i := 0; i < 20; i++ {
		x := float64(i)
		mustAdd(t, ix, []float64{x, 0}, []float64{x + 1.5, 1})
	}
	ix.BuildTree(context.Background())
	first, err := ix.FindIntersecting([]float64{3.2, 0}, []float64{7.1, 1})
	require.NoError(t, err)
	nodes := ix.nodes

	ix.BuildTree(context.Background())
	second, err := ix.FindIntersecting([]float64{3.2, 0}, []float64{7.1, 1})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []BoxID{2, 3, 4, 5, 6, 7}, second)
	assert.Same(t, &nodes[0], &ix.nodes[0], "second build must not rebuild")
}

func TestAddBox_AfterBuildInvalidates(t *testing.T) {
	var logs bytes.Buffer
	ix := newTestIndex(t, Options{
		LeafCapacity: 1,
		Logger:       slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	a := mustAdd(t, ix, []float64{0, 0}, []float64{1, 1})
	b := mustAdd(t, ix, []float64{2, 2}, []float64{3, 3})
	ix.BuildTree(context.Background())
	require.True(t, ix.Built())
	assert.Contains(t, logs.String(), "box tree built")

	c := mustAdd(t, ix, []float64{0.5, 0.5}, []float64{2.5, 2.5})
	assert.False(t, ix.Built())
	assert.Equal(t, Stats{}, ix.Stats())
	assert.Contains(t, logs.String(), "discarding tree")
	_, err := ix.FindAtPoint([]float64{0.75, 0.75})
	require.ErrorIs(t, err, ErrNotBuilt)

	ix.BuildTree(context.Background())
	got, err := ix.FindIntersecting([]float64{0, 0}, []float64{3, 3})
	require.NoError(t, err)
	assert.Equal(t, []BoxID{a, b, c}, got)
	assert.Equal(t, 3, ix.Stats().Boxes)
}

func TestClear(t *testing.T) {
	ix := newTestIndex(t, Options{Epsilon: 1e-9})
	mustAdd(t, ix, []float64{0, 0}, []float64{1, 1})
	mustAdd(t, ix, []float64{1, 1}, []float64{2, 2})
	ix.BuildTree(context.Background())

	ix.Clear()
	assert.False(t, ix.Built())
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 0, ix.coords.len())
	assert.Equal(t, 0, ix.Dimension())
	assert.Equal(t, 1e-9, ix.Epsilon())

	// The first box after a clear may pick a new dimension and starts the
	// id sequence again.
	assert.Equal(t, BoxID(0), mustAdd(t, ix, []float64{0, 0, 0}, []float64{1, 1, 1}))
	ix.BuildTree(context.Background())
	got, err := ix.FindAtPoint([]float64{0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, []BoxID{0}, got)
}

func TestQuery_CustomPredicate(t *testing.T) {
	ix := newTestIndex(t, Options{LeafCapacity: 1})
	for i := 0; i < 8; i++ {
		x := float64(i)
		mustAdd(t, ix, []float64{x}, []float64{x + 0.5})
	}
	ix.BuildTree(context.Background())

	got, err := ix.Query(wideBoxes{minWidth: 0.4})
	require.NoError(t, err)
	assert.Len(t, got, 8)
	got, err = ix.Query(wideBoxes{minWidth: 0.6})
	require.NoError(t, err)
	assert.Empty(t, got)
}

// wideBoxes matches boxes at least minWidth wide on the first axis.
type wideBoxes struct {
	minWidth float64
}

func (p wideBoxes) Accept(min, max []float64) bool {
	return max[0]-min[0] >= p.minWidth
}

func (p wideBoxes) Matches(min, max []float64) bool {
	return max[0]-min[0] >= p.minWidth
}
