package boxtree

import (
	"context"
	"fmt"
	"log/slog"
)

// AddBox registers the box [min, max] and returns its id. If a box equal to
// it within epsilon is already registered, that box's id is returned.
// Otherwise the new box gets the next sequential id, which is the registry
// size before the insert.
//
// Adding a box to a built index discards the tree. This is expensive and
// callers should register every box before the first BuildTree.
func (ix *Index) AddBox(min, max []float64) (BoxID, error) {
	return ix.addBox(min, max, nil)
}

// AddBoxWithID is like AddBox but assigns id to a newly registered box. When
// an equal box already exists its id wins and id is ignored.
func (ix *Index) AddBoxWithID(min, max []float64, id BoxID) (BoxID, error) {
	return ix.addBox(min, max, &id)
}

func (ix *Index) addBox(min, max []float64, id *BoxID) (BoxID, error) {
	if len(min) == 0 {
		return 0, fmt.Errorf("add box: %w: empty coordinate", ErrDimensionMismatch)
	}
	if ix.dim == 0 {
		ix.dim = len(min)
	}
	if err := ix.checkDim("add box", min, max); err != nil {
		if ix.boxes.Len() == 0 && !ix.fixedDim {
			ix.dim = 0
		}
		return 0, err
	}

	if ix.built.Load() {
		ix.invalidate()
	}

	cand := &box{min: ix.coords.intern(min), max: ix.coords.intern(max)}
	if existing, ok := ix.boxes.Get(cand); ok {
		return existing.id, nil
	}
	if id != nil {
		cand.id = *id
	} else {
		cand.id = BoxID(ix.boxes.Len())
	}
	// The tolerant order is not transitive, so an insert can land on an
	// entry the lookup missed. The existing entry wins, as for Get.
	if existing, replaced := ix.boxes.ReplaceOrInsert(cand); replaced {
		ix.boxes.ReplaceOrInsert(existing)
		return existing.id, nil
	}
	return cand.id, nil
}

// invalidate discards the tree after a post-build insertion.
func (ix *Index) invalidate() {
	ix.logger.Warn("box added to built index; discarding tree",
		slog.Int("boxes", ix.boxes.Len()),
		slog.Int("nodes", len(ix.nodes)),
	)
	ix.metrics.invalidations.Add(context.Background(), 1)
	ix.dropTree()
}

func (ix *Index) dropTree() {
	ix.nodes = nil
	ix.root = -1
	ix.stats = Stats{}
	ix.built.Store(false)
}

// Clear removes every box and coordinate and discards the tree. The options
// passed to New still apply; an inferred dimension is forgotten.
func (ix *Index) Clear() {
	ix.boxes.Clear(false)
	ix.coords.clear()
	ix.dropTree()
	if !ix.fixedDim {
		ix.dim = 0
	}
	ix.logger.Debug("index cleared")
}
