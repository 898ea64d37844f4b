// Package compactor implements the write path of spec.md §4.7: validate
// incoming patches against a quilt, union their labels into the global
// axes, split oversized patches, absorb each resulting piece into its
// smallest overlapping "friend" patch in the current tag, persist the
// result under a new commit, and advance the tag. Grounded on
// original_source/src/sqlite.rs's put_commit and
// original_source/src/quilt.rs's assemble/friend-merge logic.
package compactor

import (
	"bytes"
	"context"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/fetch"
	"github.com/fenilsonani/stoicheia/internal/patch"
	"github.com/fenilsonani/stoicheia/internal/selection"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
	"github.com/fenilsonani/stoicheia/internal/storage"
	"github.com/fenilsonani/stoicheia/internal/txn"
)

// DefaultCompression is the codec new patch content is written with on
// commit: LZ4 at a low quality level, per spec.md §4.7 step 5.
var DefaultCompression = patch.Compression{Kind: patch.CompressionLZ4, Quality: 1}

// Commit runs the write path for one or more patches against quiltName's
// current tagName, returning the new commit id and advancing the tag.
func Commit(ctx context.Context, t *txn.Txn, quiltName, tagName, message string, patches []*patch.Patch) (int64, error) {
	store := t.Store()
	quilt, err := store.GetQuilt(quiltName)
	if err != nil {
		return 0, err
	}
	quiltAxisSet := make(map[string]struct{}, len(quilt.AxisNames))
	for _, n := range quilt.AxisNames {
		quiltAxisSet[n] = struct{}{}
	}
	for _, p := range patches {
		if !axisSetMatches(p, quiltAxisSet) {
			return 0, stoierr.New(stoierr.MisalignedAxes, "patch axis names don't match the quilt's axis set")
		}
	}

	for _, p := range patches {
		for _, a := range p.Axes() {
			if _, _, err := t.UnionAxis(a.Name, a.Labels()); err != nil {
				return 0, err
			}
		}
	}

	globals := make(map[string]axis.Axis, len(quilt.AxisNames))
	for _, name := range quilt.AxisNames {
		g, err := t.ReadAxisCached(name)
		if err != nil {
			return 0, err
		}
		globals[name] = g
	}

	parentCommID, hasParent, err := store.GetTag(quiltName, tagName)
	if err != nil {
		return 0, err
	}

	var pending []*patch.Patch
	for _, p := range patches {
		leaves, err := p.Split(globals)
		if err != nil {
			return 0, err
		}
		pending = append(pending, leaves...)
	}

	var resolved []*patch.Patch
	for len(pending) > 0 {
		piece := pending[0]
		pending = pending[1:]

		merged, absorbed, err := absorbFriend(ctx, t, quiltName, tagName, hasParent, piece, globals, quilt.AxisNames)
		if err != nil {
			return 0, err
		}
		if !absorbed {
			resolved = append(resolved, piece)
			continue
		}
		leaves, err := merged.Split(globals)
		if err != nil {
			return 0, err
		}
		pending = append(pending, leaves...)
	}

	newCommID := store.NextCommID()
	for _, p := range resolved {
		box, err := p.BoundingBox(globals, quilt.AxisNames)
		if err != nil {
			return 0, err
		}
		var buf bytes.Buffer
		if err := patch.Encode(&buf, p, DefaultCompression); err != nil {
			return 0, err
		}
		ref := storage.PatchRef{
			PatchID:          store.NextCommID(),
			CommID:           newCommID,
			DecompressedSize: len(p.Dense()) * 4,
			Box:              box,
		}
		if err := store.PutPatch(ref, buf.Bytes()); err != nil {
			return 0, err
		}
		t.Count(txn.WritePatch, 1)
		t.Count(txn.WriteBytes, int64(buf.Len()))
	}

	comm := storage.Comm{CommID: newCommID, QuiltName: quiltName, Message: message}
	if hasParent {
		comm.ParentCommID = parentCommID
		comm.HasParent = true
	}
	if err := store.PutComm(comm); err != nil {
		return 0, err
	}
	if err := store.SetTag(quiltName, tagName, newCommID); err != nil {
		return 0, err
	}
	return newCommID, nil
}

func axisSetMatches(p *patch.Patch, quiltAxisSet map[string]struct{}) bool {
	if len(p.Axes()) != len(quiltAxisSet) {
		return false
	}
	for _, a := range p.Axes() {
		if _, ok := quiltAxisSet[a.Name]; !ok {
			return false
		}
	}
	return true
}

// absorbFriend looks for the smallest patch already in tagName's current
// commit overlapping piece's box. If found, it fetches that friend's
// *visible* image through the tag (resolving occlusion from intervening
// patches — never reading the friend's raw stored content), deletes the
// friend, and returns piece merged onto that image. The caller is
// responsible for re-splitting the merged result, since merging can grow
// it past the split threshold again.
func absorbFriend(ctx context.Context, t *txn.Txn, quiltName, tagName string, hasParent bool, piece *patch.Patch, globals map[string]axis.Axis, order []string) (*patch.Patch, bool, error) {
	if !hasParent {
		return piece, false, nil
	}
	store := t.Store()
	currentCommID, ok, err := store.GetTag(quiltName, tagName)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return piece, false, nil
	}

	box, err := piece.BoundingBox(globals, order)
	if err != nil {
		return nil, false, err
	}
	t.Count(txn.SearchPatches, 1)
	refs, err := store.QueryPatchRefs(quiltName, []int64{currentCommID}, []patch.BoundingBox{box})
	if err != nil {
		return nil, false, err
	}
	if len(refs) == 0 {
		return piece, false, nil
	}

	friend := refs[0]
	for _, r := range refs[1:] {
		if r.DecompressedSize < friend.DecompressedSize {
			friend = r
		}
	}

	friendContent, err := store.ReadPatchContent(friend.PatchID)
	if err != nil {
		return nil, false, err
	}
	friendPatch, err := patch.Decode(bytes.NewReader(friendContent))
	if err != nil {
		return nil, false, err
	}
	t.Count(txn.ReadPatch, 1)

	sels := make(map[string]selection.Selection, len(friendPatch.Axes()))
	for _, a := range friendPatch.Axes() {
		sels[a.Name] = selection.Selection{Kind: selection.Labels, Set: a.Labels()}
	}
	visible, err := fetch.Fetch(ctx, t, fetch.Request{
		QuiltName:  quiltName,
		TagName:    tagName,
		Selections: sels,
	})
	if err != nil {
		return nil, false, err
	}

	if err := store.DeletePatch(friend.PatchID); err != nil {
		return nil, false, err
	}

	merged, err := patch.Merge(visible, piece)
	if err != nil {
		return nil, false, err
	}
	return merged, true, nil
}
