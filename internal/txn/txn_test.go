package txn

import (
	"context"
	"testing"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnionAxisAppendsAndPersists(t *testing.T) {
	conn := memory.New()
	ctx := context.Background()
	tx, err := Begin(ctx, conn)
	require.NoError(t, err)

	_, mutated, err := tx.UnionAxis("a", []axis.Label{1, 2})
	require.NoError(t, err)
	assert.True(t, mutated)

	_, mutated, err = tx.UnionAxis("a", []axis.Label{2})
	require.NoError(t, err)
	assert.False(t, mutated)

	require.NoError(t, tx.Finish())

	tx2, err := Begin(ctx, conn)
	require.NoError(t, err)
	got, err := tx2.ReadAxisCached("a")
	require.NoError(t, err)
	assert.Equal(t, []axis.Label{1, 2}, got.Labels())
	require.NoError(t, tx2.Finish())
}

func TestRollbackDiscardsAxisChanges(t *testing.T) {
	conn := memory.New()
	ctx := context.Background()
	tx, err := Begin(ctx, conn)
	require.NoError(t, err)

	_, _, err = tx.UnionAxis("a", []axis.Label{1})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	tx2, err := Begin(ctx, conn)
	require.NoError(t, err)
	got, err := tx2.ReadAxisCached("a")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	require.NoError(t, tx2.Finish())
}

func TestFinishTwiceFails(t *testing.T) {
	conn := memory.New()
	ctx := context.Background()
	tx, err := Begin(ctx, conn)
	require.NoError(t, err)
	require.NoError(t, tx.Finish())
	require.Error(t, tx.Finish())
}

func TestCountersAccumulate(t *testing.T) {
	conn := memory.New()
	ctx := context.Background()
	tx, err := Begin(ctx, conn)
	require.NoError(t, err)

	_, err = tx.ReadAxisCached("a")
	require.NoError(t, err)
	tx.Count(WritePatch, 3)

	counters := tx.Counters()
	assert.Equal(t, int64(1), counters["ReadAxis"])
	assert.Equal(t, int64(3), counters["WritePatch"])
	require.NoError(t, tx.Finish())
}
