package patch

import (
	"testing"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLeavesSmallPatchUnsplit(t *testing.T) {
	a := mustAxis(t, "a", []axis.Label{0, 1, 2})
	p, err := New([]axis.Axis{a}, []float32{1, 2, 3})
	require.NoError(t, err)

	globals := map[string]axis.Axis{"a": axis.Range("a", 0, 3)}
	leaves, err := p.Split(globals)
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Same(t, p, leaves[0])
}

func TestSplitBisectsOnAxisWithMostLabels(t *testing.T) {
	// A 4-element patch never reaches SplitThreshold, so the bisection
	// helpers are exercised directly instead of through Split.
	a := axis.Range("a", 0, 4)
	p, err := New([]axis.Axis{a}, []float32{10, 20, 30, 40})
	require.NoError(t, err)

	globals := map[string]axis.Axis{"a": axis.Range("a", 0, 4)}

	// Directly exercise bisect/longestAxis rather than relying on
	// SplitThreshold, since 4 elements never exceeds it.
	dim, err := longestAxis(p, globals)
	require.NoError(t, err)
	assert.Equal(t, 0, dim)

	left, err := bisect(p, 0, []int{0, 1})
	require.NoError(t, err)
	right, err := bisect(p, 0, []int{2, 3})
	require.NoError(t, err)

	assert.Equal(t, []axis.Label{0, 1}, left.Axes()[0].Labels())
	assert.Equal(t, []float32{10, 20}, left.Dense())
	assert.Equal(t, []axis.Label{2, 3}, right.Axes()[0].Labels())
	assert.Equal(t, []float32{30, 40}, right.Dense())
}

func TestSplitRejectsLabelsMissingFromGlobalAxis(t *testing.T) {
	a := mustAxis(t, "a", []axis.Label{0, 1, 2})
	p, err := New([]axis.Axis{a}, []float32{1, 2, 3})
	require.NoError(t, err)

	// Global axis is missing label 2, which p.Axes()[0] carries.
	globals := map[string]axis.Axis{"a": axis.Range("a", 0, 2)}
	_, err = longestAxis(p, globals)
	require.Error(t, err)

	_, err = labelRangeInGlobal(p.Axes()[0], globals["a"])
	require.Error(t, err)
}
