// Package fetch assembles the requested slice of a quilt, as observed at
// a tag, from the patches along that tag's ancestry. Grounded on
// spec.md §4.6 and the teacher's parallel-decode pattern in
// internal/pack/hyperpack.go.
package fetch

import (
	"bytes"
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/patch"
	"github.com/fenilsonani/stoicheia/internal/selection"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
	"github.com/fenilsonani/stoicheia/internal/txn"
)

// Request names, per axis, what slice a caller wants. Axes of the quilt
// left unspecified default to selection.All; axis names present in
// Selections but absent from the quilt are discarded (spec.md §4.6 step 1).
type Request struct {
	QuiltName  string
	TagName    string
	Selections map[string]selection.Selection
}

// Fetch resolves req against t and returns the assembled patch.
func Fetch(ctx context.Context, t *txn.Txn, req Request) (*patch.Patch, error) {
	store := t.Store()
	quilt, err := store.GetQuilt(req.QuiltName)
	if err != nil {
		return nil, err
	}

	resolvedAxes := make([]axis.Axis, len(quilt.AxisNames))
	segmentsByAxis := make([][]selection.Segment, len(quilt.AxisNames))
	total := 1
	for i, name := range quilt.AxisNames {
		global, err := t.ReadAxisCached(name)
		if err != nil {
			return nil, err
		}
		sel, ok := req.Selections[name]
		if !ok {
			sel = selection.Selection{Kind: selection.All}
		}
		a, segs := selection.Resolve(global, sel)
		resolvedAxes[i] = a
		segmentsByAxis[i] = segs
		total *= a.Len()
		if total > patch.MaxElements {
			return nil, stoierr.Newf(stoierr.TooLarge, "requested slice would have more than %d elements", patch.MaxElements)
		}
	}

	boxes := cartesianBoxes(segmentsByAxis)
	boxes = dedupBoxes(boxes)

	commID, ok, err := store.GetTag(req.QuiltName, req.TagName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return patch.NewEmpty(resolvedAxes)
	}
	ancestors, err := store.Ancestors(commID)
	if err != nil {
		return nil, err
	}
	t.Count(txn.SearchPatches, 1)

	refs, err := store.QueryPatchRefs(req.QuiltName, ancestors, boxes)
	if err != nil {
		return nil, err
	}

	target, err := patch.NewEmpty(resolvedAxes)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return target, nil
	}

	decoded := make([]*patch.Patch, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			content, err := store.ReadPatchContent(ref.PatchID)
			if err != nil {
				return err
			}
			p, err := patch.Decode(bytes.NewReader(content))
			if err != nil {
				return err
			}
			decoded[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	t.Count(txn.ReadPatch, int64(len(refs)))

	// Patches were queried in (CommID ASC, PatchID ASC) order; apply them
	// in that same order regardless of which I/O finished first.
	for _, p := range decoded {
		if err := target.Apply(p); err != nil {
			return nil, err
		}
	}
	return target, nil
}

func cartesianBoxes(segmentsByAxis [][]selection.Segment) []patch.BoundingBox {
	base := patch.BoundingBox{}
	for i := range base {
		base[i] = patch.Segment{Min: 0, Max: 1 << 30}
	}
	boxes := []patch.BoundingBox{base}
	for dim, segs := range segmentsByAxis {
		if dim >= 4 || len(segs) == 0 {
			continue
		}
		var next []patch.BoundingBox
		for _, b := range boxes {
			for _, s := range segs {
				nb := b
				nb[dim] = patch.Segment{Min: s.Start, Max: s.End}
				next = append(next, nb)
			}
		}
		boxes = next
	}
	return boxes
}

func dedupBoxes(boxes []patch.BoundingBox) []patch.BoundingBox {
	seen := make(map[patch.BoundingBox]struct{}, len(boxes))
	out := boxes[:0]
	for _, b := range boxes {
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}
