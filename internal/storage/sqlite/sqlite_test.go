package sqlite

import (
	"context"
	"testing"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/patch"
	"github.com/fenilsonani/stoicheia/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Connection {
	t.Helper()
	conn, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestCreateAndGetQuilt(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	tx, err := conn.Begin(ctx)
	require.NoError(t, err)

	_, err = tx.CreateQuilt("q", []string{"a", "b"})
	require.NoError(t, err)
	q, err := tx.GetQuilt("q")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, q.AxisNames)
	require.NoError(t, tx.Commit())
}

func TestWriteAndReadAxisRoundTrips(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	tx, err := conn.Begin(ctx)
	require.NoError(t, err)

	a, err := axis.New("a", []axis.Label{5, 1, 9})
	require.NoError(t, err)
	require.NoError(t, tx.WriteAxis(a))

	got, err := tx.ReadAxis("a")
	require.NoError(t, err)
	assert.Equal(t, []axis.Label{5, 1, 9}, got.Labels())
	require.NoError(t, tx.Commit())
}

func TestTagSetAndGet(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	tx, err := conn.Begin(ctx)
	require.NoError(t, err)

	_, ok, err := tx.GetTag("q", "latest")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tx.SetTag("q", "latest", 42))
	id, ok, err := tx.GetTag("q", "latest")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
	require.NoError(t, tx.Commit())
}

func TestAncestorsRecursiveWalk(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	tx, err := conn.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.PutComm(storage.Comm{CommID: 1, QuiltName: "q"}))
	require.NoError(t, tx.PutComm(storage.Comm{CommID: 2, ParentCommID: 1, HasParent: true, QuiltName: "q"}))
	require.NoError(t, tx.PutComm(storage.Comm{CommID: 3, ParentCommID: 2, HasParent: true, QuiltName: "q"}))

	ancestors, err := tx.Ancestors(3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3}, ancestors)
	require.NoError(t, tx.Commit())
}

func TestPatchContentRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	tx, err := conn.Begin(ctx)
	require.NoError(t, err)

	box := patch.BoundingBox{{Min: 0, Max: 1}, {Min: 0, Max: 1 << 30}, {Min: 0, Max: 1 << 30}, {Min: 0, Max: 1 << 30}}
	ref := storage.PatchRef{PatchID: 1, CommID: 1, DecompressedSize: 3, Box: box}
	require.NoError(t, tx.PutPatch(ref, []byte("abc")))

	content, err := tx.ReadPatchContent(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), content)

	refs, err := tx.QueryPatchRefs("q", []int64{1}, []patch.BoundingBox{box})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int64(1), refs[0].PatchID)

	require.NoError(t, tx.DeletePatch(1))
	_, err = tx.ReadPatchContent(1)
	require.Error(t, err)
	require.NoError(t, tx.Commit())
}

func TestNextCommIDIsStrictlyMonotonic(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	tx, err := conn.Begin(ctx)
	require.NoError(t, err)

	prev := int64(0)
	for i := 0; i < 100; i++ {
		id := tx.(*txn).NextCommID()
		assert.Greater(t, id, prev)
		prev = id
	}
	require.NoError(t, tx.Commit())
}
