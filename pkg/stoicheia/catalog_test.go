package stoicheia

import (
	"context"
	"testing"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/patch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogEndToEndCommitAndFetch(t *testing.T) {
	c := OpenMemory()
	defer c.Close()
	ctx := context.Background()

	_, err := c.CreateQuilt(ctx, "prices", []string{"sku", "day"})
	require.NoError(t, err)

	sku, err := axis.New("sku", []axis.Label{1, 2})
	require.NoError(t, err)
	day, err := axis.New("day", []axis.Label{100, 101})
	require.NoError(t, err)
	p, err := patch.New([]axis.Axis{sku, day}, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	commID, err := c.ApplyPatch(ctx, "prices", "latest", "seed", p)
	require.NoError(t, err)
	assert.Greater(t, commID, int64(0))

	got, err := c.Fetch(ctx, "prices", "latest", nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, got.Dense())
}

func TestCatalogTagAndUntag(t *testing.T) {
	c := OpenMemory()
	defer c.Close()
	ctx := context.Background()

	_, err := c.CreateQuilt(ctx, "q", []string{"a"})
	require.NoError(t, err)
	a, _ := axis.New("a", []axis.Label{1})
	p, _ := patch.New([]axis.Axis{a}, []float32{9})

	_, err = c.ApplyPatch(ctx, "q", "latest", "seed", p)
	require.NoError(t, err)

	require.NoError(t, c.Tag(ctx, "q", "latest", "v1"))
	got, err := c.Fetch(ctx, "q", "v1", nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{9}, got.Dense())

	require.NoError(t, c.Untag(ctx, "q", "v1"))
	_, err = c.Fetch(ctx, "q", "v1", nil)
	require.NoError(t, err) // unknown tag resolves to an empty patch, not an error
}

func TestCatalogUnionAxis(t *testing.T) {
	c := OpenMemory()
	defer c.Close()
	ctx := context.Background()

	got, err := c.UnionAxis(ctx, "a", []axis.Label{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []axis.Label{3, 1, 2}, got.Labels())
}
