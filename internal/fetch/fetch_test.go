package fetch

import (
	"bytes"
	"context"
	"testing"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/patch"
	"github.com/fenilsonani/stoicheia/internal/selection"
	"github.com/fenilsonani/stoicheia/internal/storage"
	"github.com/fenilsonani/stoicheia/internal/storage/memory"
	"github.com/fenilsonani/stoicheia/internal/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putPatch(t *testing.T, tx *txn.Txn, patchID, commID int64, p *patch.Patch, globals map[string]axis.Axis, order []string) {
	t.Helper()
	box, err := p.BoundingBox(globals, order)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, patch.Encode(&buf, p, patch.Compression{Kind: patch.CompressionOff}))
	ref := storage.PatchRef{PatchID: patchID, CommID: commID, DecompressedSize: len(p.Dense()) * 4, Box: box}
	require.NoError(t, tx.Store().PutPatch(ref, buf.Bytes()))
}

func TestFetchAssemblesPatchesInCommitOrder(t *testing.T) {
	conn := memory.New()
	ctx := context.Background()
	tx, err := txn.Begin(ctx, conn)
	require.NoError(t, err)

	_, err = tx.Store().CreateQuilt("q", []string{"a"})
	require.NoError(t, err)
	_, _, err = tx.UnionAxis("a", []axis.Label{0, 1, 2})
	require.NoError(t, err)
	globals := map[string]axis.Axis{"a": mustRead(t, tx, "a")}

	aAxis, err := axis.New("a", []axis.Label{0, 1, 2})
	require.NoError(t, err)

	p1, err := patch.New([]axis.Axis{aAxis}, []float32{1, 2, 3})
	require.NoError(t, err)
	putPatch(t, tx, 1, 1, p1, globals, []string{"a"})

	p2Axis, err := axis.New("a", []axis.Label{1})
	require.NoError(t, err)
	p2, err := patch.New([]axis.Axis{p2Axis}, []float32{99})
	require.NoError(t, err)
	putPatch(t, tx, 2, 2, p2, globals, []string{"a"})

	require.NoError(t, tx.Store().PutComm(storage.Comm{CommID: 1, QuiltName: "q"}))
	require.NoError(t, tx.Store().PutComm(storage.Comm{CommID: 2, ParentCommID: 1, HasParent: true, QuiltName: "q"}))
	require.NoError(t, tx.Store().SetTag("q", "latest", 2))

	result, err := Fetch(ctx, tx, Request{QuiltName: "q", TagName: "latest"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 99, 3}, result.Dense())
	require.NoError(t, tx.Finish())
}

func TestFetchUnknownTagReturnsEmptyPatch(t *testing.T) {
	conn := memory.New()
	ctx := context.Background()
	tx, err := txn.Begin(ctx, conn)
	require.NoError(t, err)

	_, err = tx.Store().CreateQuilt("q", []string{"a"})
	require.NoError(t, err)
	_, _, err = tx.UnionAxis("a", []axis.Label{0, 1})
	require.NoError(t, err)

	result, err := Fetch(ctx, tx, Request{QuiltName: "q", TagName: "latest"})
	require.NoError(t, err)
	assert.Len(t, result.Dense(), 2)
	require.NoError(t, tx.Finish())
}

func TestFetchHonorsLabelSelection(t *testing.T) {
	conn := memory.New()
	ctx := context.Background()
	tx, err := txn.Begin(ctx, conn)
	require.NoError(t, err)

	_, err = tx.Store().CreateQuilt("q", []string{"a"})
	require.NoError(t, err)
	_, _, err = tx.UnionAxis("a", []axis.Label{0, 1, 2, 3})
	require.NoError(t, err)
	globals := map[string]axis.Axis{"a": mustRead(t, tx, "a")}

	aAxis, err := axis.New("a", []axis.Label{0, 1, 2, 3})
	require.NoError(t, err)
	p, err := patch.New([]axis.Axis{aAxis}, []float32{10, 20, 30, 40})
	require.NoError(t, err)
	putPatch(t, tx, 1, 1, p, globals, []string{"a"})
	require.NoError(t, tx.Store().PutComm(storage.Comm{CommID: 1, QuiltName: "q"}))
	require.NoError(t, tx.Store().SetTag("q", "latest", 1))

	result, err := Fetch(ctx, tx, Request{
		QuiltName: "q",
		TagName:   "latest",
		Selections: map[string]selection.Selection{
			"a": {Kind: selection.Labels, Set: []axis.Label{1, 3}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{20, 40}, result.Dense())
	require.NoError(t, tx.Finish())
}

func mustRead(t *testing.T, tx *txn.Txn, name string) axis.Axis {
	t.Helper()
	a, err := tx.ReadAxisCached(name)
	require.NoError(t, err)
	return a
}
