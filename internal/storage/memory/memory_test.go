package memory

import (
	"context"
	"testing"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/patch"
	"github.com/fenilsonani/stoicheia/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnlyOneWriterAtATime(t *testing.T) {
	conn := New()
	ctx := context.Background()
	txn1, err := conn.Begin(ctx)
	require.NoError(t, err)

	_, err = conn.Begin(ctx)
	require.Error(t, err)

	require.NoError(t, txn1.Commit())
	_, err = conn.Begin(ctx)
	require.NoError(t, err)
}

func TestRollbackDiscardsChanges(t *testing.T) {
	conn := New()
	ctx := context.Background()

	txn, err := conn.Begin(ctx)
	require.NoError(t, err)
	_, err = txn.CreateQuilt("q", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, txn.Rollback())

	txn2, err := conn.Begin(ctx)
	require.NoError(t, err)
	_, err = txn2.GetQuilt("q")
	require.Error(t, err)
}

func TestCommitPersistsChanges(t *testing.T) {
	conn := New()
	ctx := context.Background()

	txn, err := conn.Begin(ctx)
	require.NoError(t, err)
	_, err = txn.CreateQuilt("q", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	txn2, err := conn.Begin(ctx)
	require.NoError(t, err)
	q, err := txn2.GetQuilt("q")
	require.NoError(t, err)
	assert.Equal(t, "q", q.Name)
}

func TestAncestorsWalksParentChain(t *testing.T) {
	conn := New()
	ctx := context.Background()
	txn, err := conn.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, txn.PutComm(storage.Comm{CommID: 1, QuiltName: "q"}))
	require.NoError(t, txn.PutComm(storage.Comm{CommID: 2, ParentCommID: 1, HasParent: true, QuiltName: "q"}))
	require.NoError(t, txn.PutComm(storage.Comm{CommID: 3, ParentCommID: 2, HasParent: true, QuiltName: "q"}))

	ancestors, err := txn.Ancestors(3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3}, ancestors)
}

func TestQueryPatchRefsFiltersByCommitAndBox(t *testing.T) {
	conn := New()
	ctx := context.Background()
	txn, err := conn.Begin(ctx)
	require.NoError(t, err)

	inBox := patch.BoundingBox{{Min: 0, Max: 5}, {Min: 0, Max: 1 << 30}, {Min: 0, Max: 1 << 30}, {Min: 0, Max: 1 << 30}}
	outOfBox := patch.BoundingBox{{Min: 100, Max: 200}, {Min: 0, Max: 1 << 30}, {Min: 0, Max: 1 << 30}, {Min: 0, Max: 1 << 30}}

	require.NoError(t, txn.PutPatch(storage.PatchRef{PatchID: 1, CommID: 1, Box: inBox}, nil))
	require.NoError(t, txn.PutPatch(storage.PatchRef{PatchID: 2, CommID: 1, Box: outOfBox}, nil))
	require.NoError(t, txn.PutPatch(storage.PatchRef{PatchID: 3, CommID: 2, Box: inBox}, nil))

	refs, err := txn.QueryPatchRefs("q", []int64{1}, []patch.BoundingBox{inBox})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int64(1), refs[0].PatchID)
}

func TestWriteAxisThenReadAxisReturnsSameLabels(t *testing.T) {
	conn := New()
	ctx := context.Background()
	txn, err := conn.Begin(ctx)
	require.NoError(t, err)

	a, _ := axis.New("a", []axis.Label{1, 2})
	require.NoError(t, txn.WriteAxis(a))

	got, err := txn.ReadAxis("a")
	require.NoError(t, err)
	assert.Equal(t, []axis.Label{1, 2}, got.Labels())
}
